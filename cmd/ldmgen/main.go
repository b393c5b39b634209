package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tordrt/ldmgen/internal/config"
	"github.com/tordrt/ldmgen/internal/formatter"
	"github.com/tordrt/ldmgen/internal/ingest"
	"github.com/tordrt/ldmgen/internal/pipeline"
	"github.com/tordrt/ldmgen/internal/schema"
)

var (
	dbURL        string
	mysqlURL     string
	sqlitePath   string
	tables       string
	schemaName   string
	inputID      string
	configFile   string
	envFile      string
	printFormat  string
	artifactsDir string
	logLevel     string
	enableLLM    bool
	jsonReport   bool
)

var rootCmd = &cobra.Command{
	Use:   "ldmgen [input]",
	Short: "Generate a logical data model from a spreadsheet or database",
	Long: `ldmgen reads a physical schema from a spreadsheet (.xlsx, .xls, .csv) or from a
PostgreSQL, MySQL or SQLite catalog, infers keys and relationships, and writes the
logical model as DBML, an ERD (PNG and SVG) and JSON under <artifacts-dir>/<id>/.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&dbURL, "db-url", "", "PostgreSQL connection string")
	rootCmd.Flags().StringVar(&mysqlURL, "mysql-url", "", "MySQL connection string")
	rootCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "SQLite database file path")
	rootCmd.Flags().StringVarP(&tables, "tables", "t", "", "Specific tables (comma-separated, optional)")
	rootCmd.Flags().StringVarP(&schemaName, "schema", "s", "", "Database schema name (default: public for PostgreSQL)")
	rootCmd.Flags().StringVar(&inputID, "id", "", "Artifact directory name (default: derived from the input)")
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")
	rootCmd.Flags().StringVarP(&printFormat, "print", "p", "", "Print the model instead of writing artifacts: text, markdown or dbml")
	rootCmd.Flags().StringVarP(&artifactsDir, "artifacts-dir", "o", "", "Artifacts root directory (overrides config)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	rootCmd.Flags().BoolVar(&enableLLM, "llm", false, "Enable language model enhancement (needs OPENAI_API_KEY)")
	rootCmd.Flags().BoolVar(&jsonReport, "json", false, "Print the run report as JSON")
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	input, err := resolveInput(args, dbURL, mysqlURL, sqlitePath)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configFile, envFile)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := config.NewLogger(os.Stderr, cfg.Log.Level)
	p := pipeline.New(cfg, logger)
	req := pipeline.Request{
		Input:  input,
		ID:     inputID,
		Ingest: ingest.Options{Tables: config.SplitList(tables), SchemaName: schemaName},
	}

	if printFormat != "" {
		m, _, err := p.BuildModel(ctx, req)
		if err != nil {
			return err
		}
		return printModel(cmd.OutOrStdout(), printFormat, m)
	}

	report, err := p.Run(ctx, req)
	if err != nil {
		return err
	}
	return writeReport(cmd.OutOrStdout(), report, jsonReport)
}

// resolveInput picks the single input named by the positional argument or a database flag
func resolveInput(args []string, pgURL, myURL, sqlite string) (string, error) {
	var inputs []string
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		inputs = append(inputs, args[0])
	}
	if pgURL != "" {
		inputs = append(inputs, pgURL)
	}
	if myURL != "" {
		if !strings.HasPrefix(myURL, "mysql://") {
			myURL = "mysql://" + myURL
		}
		inputs = append(inputs, myURL)
	}
	if sqlite != "" {
		inputs = append(inputs, "sqlite://"+strings.TrimPrefix(sqlite, "sqlite://"))
	}

	switch len(inputs) {
	case 0:
		return "", errors.New("an input file or one of --db-url, --mysql-url, or --sqlite must be specified")
	case 1:
		return inputs[0], nil
	default:
		return "", errors.New("only one of an input file, --db-url, --mysql-url, or --sqlite can be specified")
	}
}

// applyFlags overlays flags the user set on top of the loaded configuration
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("artifacts-dir") {
		cfg.Storage.ArtifactsDir = artifactsDir
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("llm") {
		cfg.LLM.Enabled = enableLLM
	}
}

func printModel(w io.Writer, format string, m *schema.LogicalModel) error {
	switch format {
	case "text":
		return formatter.NewTextFormatter(w).Format(m)
	case "markdown":
		return formatter.NewMarkdownFormatter(w).Format(m)
	case "dbml":
		return formatter.NewDBMLFormatter(w).Format(m)
	default:
		return fmt.Errorf("invalid format: %s (must be 'text', 'markdown' or 'dbml')", format)
	}
}

func writeReport(w io.Writer, report *pipeline.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	if _, err := fmt.Fprintln(w, report.Summary()); err != nil {
		return err
	}
	for _, a := range report.Artifacts {
		status := "written"
		if a.Skipped {
			status = "skipped"
		}
		if a.Generator != "" {
			status += " (" + a.Generator + ")"
		}
		fmt.Fprintf(w, "  %-8s %s %s\n", a.Kind, a.Path, status)
	}
	for _, e := range report.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
	for _, warn := range report.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warn)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
