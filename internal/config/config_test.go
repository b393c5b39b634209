package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.False(t, cfg.LLM.Enabled)
	assert.Equal(t, 50, cfg.LLM.BatchSize)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, time.Second, cfg.LLM.RetryDelay())
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout())
	assert.InDelta(t, 0.7, cfg.LLM.MinConfidence, 1e-9)
	assert.Equal(t, GeneratorNative, cfg.Diagram.Primary)
	assert.Equal(t, []string{"png", "svg"}, cfg.Diagram.Formats)
	assert.Equal(t, "artifacts", cfg.Storage.ArtifactsDir)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LDM_LLM_ENABLED":        "true",
		"LDM_LLM_BATCH_SIZE":     "10",
		"LDM_LLM_MIN_CONFIDENCE": "0.85",
		"LDM_DIAGRAM_PRIMARY":    "dbml",
		"LDM_DIAGRAM_FORMATS":    "SVG, ",
		"LDM_ARTIFACTS_DIR":      "/tmp/out",
		"OPENAI_API_KEY":         "sk-test",
	}
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	assert.True(t, cfg.LLM.Enabled)
	assert.Equal(t, 10, cfg.LLM.BatchSize)
	assert.InDelta(t, 0.85, cfg.LLM.MinConfidence, 1e-9)
	assert.Equal(t, GeneratorDBML, cfg.Diagram.Primary)
	assert.Equal(t, []string{"svg"}, cfg.Diagram.Formats)
	assert.Equal(t, "/tmp/out", cfg.Storage.ArtifactsDir)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestApplyEnvInvalid(t *testing.T) {
	env := map[string]string{
		"LDM_LLM_ENABLED":    "sometimes",
		"LDM_LLM_BATCH_SIZE": "ten",
	}
	cfg := Default()
	err := cfg.ApplyEnv(func(k string) string { return env[k] })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LDM_LLM_ENABLED")
	assert.Contains(t, err.Error(), "LDM_LLM_BATCH_SIZE")
	assert.Equal(t, 50, cfg.LLM.BatchSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero batch size", func(c *Config) { c.LLM.BatchSize = 0 }, "batchSize"},
		{"confidence above one", func(c *Config) { c.LLM.MinConfidence = 1.5 }, "minConfidence"},
		{"unknown primary", func(c *Config) { c.Diagram.Primary = "mermaid" }, "diagram.primary"},
		{"unknown format", func(c *Config) { c.Diagram.Formats = []string{"pdf"} }, "pdf"},
		{"empty artifacts dir", func(c *Config) { c.Storage.ArtifactsDir = " " }, "artifactsDir"},
		{"negative retries", func(c *Config) { c.LLM.MaxRetries = -1 }, "maxRetries"},
		{"repeated format", func(c *Config) { c.Diagram.Formats = []string{"png", "svg", "png"} }, "png listed twice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAcceptsZeroRetries(t *testing.T) {
	cfg := Default()
	cfg.LLM.MaxRetries = 0
	assert.NoError(t, cfg.Validate())
}

func TestSplitListDropsRepeats(t *testing.T) {
	assert.Equal(t, []string{"png", "svg"}, SplitList(" png, svg,,png "))
	assert.Nil(t, SplitList(" , "))
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "ldmgen.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("llm:\n  batchSize: 20\n  maxRetries: 5\ndiagram:\n  primary: dbml\n"), 0o644))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("LDM_LLM_MAX_RETRIES=7\n"), 0o644))

	t.Setenv("LDM_LLM_BATCH_SIZE", "25")
	t.Cleanup(func() { _ = os.Unsetenv("LDM_LLM_MAX_RETRIES") })

	cfg, err := Load(yamlPath, envPath)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.LLM.BatchSize, "environment beats the YAML file")
	assert.Equal(t, 7, cfg.LLM.MaxRetries, "dotenv beats the YAML file")
	assert.Equal(t, GeneratorDBML, cfg.Diagram.Primary, "YAML beats defaults")
	assert.Equal(t, 30000, cfg.LLM.TimeoutMs, "defaults survive when nothing overrides them")
}

func TestLoadMissingFiles(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.Error(t, err)

	cfg, err := Load("", filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.LLM.BatchSize)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
