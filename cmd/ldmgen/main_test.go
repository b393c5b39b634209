package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/ldmgen/internal/artifacts"
	"github.com/tordrt/ldmgen/internal/config"
	"github.com/tordrt/ldmgen/internal/pipeline"
	"github.com/tordrt/ldmgen/internal/schema"
)

func TestResolveInput(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		pg      string
		mysql   string
		sqlite  string
		want    string
		wantErr bool
	}{
		{name: "spreadsheet", args: []string{"shop.xlsx"}, want: "shop.xlsx"},
		{name: "postgres", pg: "postgres://u:p@localhost/shop", want: "postgres://u:p@localhost/shop"},
		{name: "mysql dsn", mysql: "u:p@tcp(localhost:3306)/shop", want: "mysql://u:p@tcp(localhost:3306)/shop"},
		{name: "mysql url", mysql: "mysql://u:p@tcp(localhost:3306)/shop", want: "mysql://u:p@tcp(localhost:3306)/shop"},
		{name: "sqlite path", sqlite: "./data/app.db", want: "sqlite://./data/app.db"},
		{name: "nothing", wantErr: true},
		{name: "blank argument", args: []string{"  "}, wantErr: true},
		{name: "file and database", args: []string{"shop.csv"}, sqlite: "app.db", wantErr: true},
		{name: "two databases", pg: "postgres://localhost/a", mysql: "tcp(localhost)/b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveInput(tt.args, tt.pg, tt.mysql, tt.sqlite)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().StringVarP(&artifactsDir, "artifacts-dir", "o", "", "")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "")
	cmd.Flags().BoolVar(&enableLLM, "llm", false, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--artifacts-dir", "out", "--llm"}))

	cfg := config.Default()
	applyFlags(cmd, &cfg)
	assert.Equal(t, "out", cfg.Storage.ArtifactsDir)
	assert.True(t, cfg.LLM.Enabled)
	assert.Equal(t, "info", cfg.Log.Level, "unset flags keep the configured value")
}

func TestPrintModelRejectsUnknownFormat(t *testing.T) {
	m := schema.NewLogicalModel("shop.csv", time.Now())
	var buf bytes.Buffer
	assert.Error(t, printModel(&buf, "yaml", m))
	assert.NoError(t, printModel(&buf, "dbml", m))
	assert.Contains(t, buf.String(), "// Source: shop.csv")
}

func TestWriteReport(t *testing.T) {
	report := &pipeline.Report{
		RunID:   "run-1",
		InputID: "shop",
		Artifacts: []artifacts.Artifact{
			{Kind: artifacts.DBML, Path: "artifacts/shop/dbml/schema.dbml"},
			{Kind: artifacts.PNG, Path: "artifacts/shop/logical/erd.png", Generator: "native"},
			{Kind: artifacts.Logical, Path: "artifacts/shop/logical/logical.json", Skipped: true},
		},
		Errors:   []schema.Issue{{Stage: schema.StageEnhance, Kind: schema.KindLLMUnavailable, Detail: "connection refused"}},
		Warnings: []schema.Issue{},
	}

	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, report, false))
	out := buf.String()
	assert.Contains(t, out, "run run-1 (shop): 3 artifacts, 1 errors, 0 warnings")
	assert.Contains(t, out, "erd.png written (native)")
	assert.Contains(t, out, "logical.json skipped")
	assert.Contains(t, out, "error: [enhance] LLMUnavailable: connection refused")

	buf.Reset()
	require.NoError(t, writeReport(&buf, report, true))
	assert.Contains(t, buf.String(), `"runId": "run-1"`)
	assert.Contains(t, buf.String(), `"warnings": []`)
}
