package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Diagram generators selectable as primary
const (
	GeneratorNative = "native"
	GeneratorDBML   = "dbml"
)

// Config is the read-only configuration record of a run
type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Diagram DiagramConfig `yaml:"diagram"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// LLMConfig configures the enhancer and its backend
type LLMConfig struct {
	Enabled       bool    `yaml:"enabled"`
	BatchSize     int     `yaml:"batchSize"`
	MaxRetries    int     `yaml:"maxRetries"`
	RetryDelayMs  int     `yaml:"retryDelayMs"`
	TimeoutMs     int     `yaml:"timeoutMs"`
	MinConfidence float64 `yaml:"minConfidence"`
	Model         string  `yaml:"model"`
	BaseURL       string  `yaml:"baseURL"`
	APIKey        string  `yaml:"-"`
}

// RetryDelay is the base delay between attempts
func (c LLMConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// Timeout is the hard limit of a single attempt
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// DiagramConfig configures ERD generation
type DiagramConfig struct {
	Primary          string   `yaml:"primary"`
	Formats          []string `yaml:"formats"`
	DotPath          string   `yaml:"dotPath"`
	DBMLRendererPath string   `yaml:"dbmlRendererPath"`
	RsvgConvertPath  string   `yaml:"rsvgConvertPath"`
}

// StorageConfig configures the artifact tree
type StorageConfig struct {
	ArtifactsDir string `yaml:"artifactsDir"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Enabled:       false,
			BatchSize:     50,
			MaxRetries:    3,
			RetryDelayMs:  1000,
			TimeoutMs:     30000,
			MinConfidence: 0.7,
			Model:         "gpt-4o-mini",
		},
		Diagram: DiagramConfig{
			Primary:          GeneratorNative,
			Formats:          []string{"png", "svg"},
			DotPath:          "dot",
			DBMLRendererPath: "dbml-renderer",
			RsvgConvertPath:  "rsvg-convert",
		},
		Storage: StorageConfig{ArtifactsDir: "artifacts"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional YAML file, an optional
// dotenv file and the process environment, in that order of increasing precedence.
// Empty paths are skipped. A missing dotenv file is not an error.
func Load(path, envFile string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if envFile != "" {
		// godotenv never overrides variables already present in the process environment
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays recognised environment variables
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error

	boolVar := func(key string, dst *bool) {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	intVar := func(key string, dst *int) {
		if v := getenv(key); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	floatVar := func(key string, dst *float64) {
		if v := getenv(key); v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	stringVar := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	boolVar("LDM_LLM_ENABLED", &c.LLM.Enabled)
	intVar("LDM_LLM_BATCH_SIZE", &c.LLM.BatchSize)
	intVar("LDM_LLM_MAX_RETRIES", &c.LLM.MaxRetries)
	intVar("LDM_LLM_RETRY_DELAY_MS", &c.LLM.RetryDelayMs)
	intVar("LDM_LLM_TIMEOUT_MS", &c.LLM.TimeoutMs)
	floatVar("LDM_LLM_MIN_CONFIDENCE", &c.LLM.MinConfidence)
	stringVar("LDM_LLM_MODEL", &c.LLM.Model)
	stringVar("LDM_LLM_BASE_URL", &c.LLM.BaseURL)
	stringVar("OPENAI_API_KEY", &c.LLM.APIKey)

	stringVar("LDM_DIAGRAM_PRIMARY", &c.Diagram.Primary)
	if v := getenv("LDM_DIAGRAM_FORMATS"); v != "" {
		c.Diagram.Formats = SplitList(strings.ToLower(v))
	}
	stringVar("LDM_DOT_PATH", &c.Diagram.DotPath)
	stringVar("LDM_DBML_RENDERER_PATH", &c.Diagram.DBMLRendererPath)
	stringVar("LDM_RSVG_CONVERT_PATH", &c.Diagram.RsvgConvertPath)

	stringVar("LDM_ARTIFACTS_DIR", &c.Storage.ArtifactsDir)
	stringVar("LOG_LEVEL", &c.Log.Level)

	return errors.Join(errs...)
}

// Validate rejects settings the pipeline cannot run with
func (c Config) Validate() error {
	var errs []error
	if c.LLM.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("llm.batchSize must be positive, got %d", c.LLM.BatchSize))
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("llm.maxRetries must not be negative, got %d", c.LLM.MaxRetries))
	}
	if c.LLM.RetryDelayMs < 0 {
		errs = append(errs, fmt.Errorf("llm.retryDelayMs must not be negative, got %d", c.LLM.RetryDelayMs))
	}
	if c.LLM.TimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeoutMs must be positive, got %d", c.LLM.TimeoutMs))
	}
	if c.LLM.MinConfidence < 0 || c.LLM.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("llm.minConfidence must be within [0,1], got %g", c.LLM.MinConfidence))
	}
	switch c.Diagram.Primary {
	case GeneratorNative, GeneratorDBML:
	default:
		errs = append(errs, fmt.Errorf("diagram.primary must be %q or %q, got %q", GeneratorNative, GeneratorDBML, c.Diagram.Primary))
	}
	seen := make(map[string]bool, len(c.Diagram.Formats))
	for _, f := range c.Diagram.Formats {
		if f != "png" && f != "svg" {
			errs = append(errs, fmt.Errorf("unsupported diagram format: %s (must be png or svg)", f))
		}
		if seen[f] {
			errs = append(errs, fmt.Errorf("diagram format %s listed twice", f))
		}
		seen[f] = true
	}
	if strings.TrimSpace(c.Storage.ArtifactsDir) == "" {
		errs = append(errs, errors.New("storage.artifactsDir is required"))
	}
	return errors.Join(errs...)
}

// SplitList splits a comma-separated list, trimming and dropping empty and repeated items
func SplitList(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" && !seen[part] {
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}
