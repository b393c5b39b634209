// Package pipeline runs one input through ingestion, normalisation, inference,
// enhancement and assembly, then writes the DBML, diagram and JSON artifacts.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tordrt/ldmgen/internal/artifacts"
	"github.com/tordrt/ldmgen/internal/assemble"
	"github.com/tordrt/ldmgen/internal/config"
	"github.com/tordrt/ldmgen/internal/db"
	"github.com/tordrt/ldmgen/internal/diagram"
	"github.com/tordrt/ldmgen/internal/enhance"
	"github.com/tordrt/ldmgen/internal/formatter"
	"github.com/tordrt/ldmgen/internal/infer"
	"github.com/tordrt/ldmgen/internal/ingest"
	"github.com/tordrt/ldmgen/internal/llm"
	"github.com/tordrt/ldmgen/internal/normalize"
	"github.com/tordrt/ldmgen/internal/schema"
)

// Report summarises one run
type Report struct {
	RunID     string               `json:"runId"`
	InputID   string               `json:"inputId"`
	Artifacts []artifacts.Artifact `json:"artifacts"`
	Errors    []schema.Issue       `json:"errors"`
	Warnings  []schema.Issue       `json:"warnings"`
}

// Request names the input of a run
type Request struct {
	// Input is a spreadsheet path or a database URL
	Input string
	// ID overrides the artifact directory name derived from Input
	ID     string
	Ingest ingest.Options
}

// Pipeline runs requests against one configuration
type Pipeline struct {
	cfg      config.Config
	logger   *slog.Logger
	client   llm.Client
	primary  diagram.Renderer
	fallback diagram.Renderer
	now      func() time.Time
	backoff  time.Duration
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithLLMClient replaces the OpenAI client built from the configuration
func WithLLMClient(c llm.Client) Option {
	return func(p *Pipeline) { p.client = c }
}

// WithRenderers replaces the diagram renderers built from the configuration
func WithRenderers(primary, fallback diagram.Renderer) Option {
	return func(p *Pipeline) { p.primary, p.fallback = primary, fallback }
}

// WithClock sets the generation time source for inputs without a modification time
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithDiagramBackoff sets the first wait between diagram retries
func WithDiagramBackoff(d time.Duration) Option {
	return func(p *Pipeline) { p.backoff = d }
}

// New creates a pipeline. A nil logger uses slog.Default().
func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{cfg: cfg, logger: logger, now: time.Now, backoff: diagram.DefaultInitialInterval}
	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil && cfg.LLM.Enabled {
		p.client = llm.NewOpenAI(cfg.LLM, logger)
	}
	if p.primary == nil {
		native := diagram.NewGraphvizRenderer(cfg.Diagram.DotPath)
		dbml := diagram.NewDBMLRenderer(cfg.Diagram.DBMLRendererPath, cfg.Diagram.RsvgConvertPath)
		p.primary, p.fallback = native, dbml
		if cfg.Diagram.Primary == config.GeneratorDBML {
			p.primary, p.fallback = dbml, native
		}
	}
	return p
}

// Run processes one input. Fatal errors (unreadable input, missing schema
// columns, empty model) stop the run before any artifact is written and are
// returned alongside the report; every other failure is only recorded in it.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Report, error) {
	id := req.ID
	if id == "" {
		id = artifacts.DeriveID(req.Input)
	}
	report := &Report{RunID: uuid.NewString(), InputID: id}
	logger := p.logger.With("run", report.RunID, "input", id)
	diag := &schema.Diagnostics{}
	defer func() {
		report.Errors = append([]schema.Issue{}, diag.Errors()...)
		report.Warnings = append([]schema.Issue{}, diag.Warnings()...)
	}()

	store, err := artifacts.New(p.cfg.Storage.ArtifactsDir, id, logger, diag)
	if err != nil {
		return report, err
	}

	model, attrs, err := p.build(ctx, req, logger, diag)
	if err != nil {
		if kind := schema.FatalKind(err); kind != "" {
			diag.Error(stageOf(kind), kind, "%v", err)
		}
		logger.Error("run aborted", "error", err)
		return report, err
	}

	report.Artifacts = p.emit(ctx, store, model, attrs, logger, diag)
	logger.Info("run finished", "artifacts", len(report.Artifacts),
		"errors", len(diag.Errors()), "warnings", len(diag.Warnings()))
	return report, nil
}

// BuildModel runs the model stages only, without writing artifacts
func (p *Pipeline) BuildModel(ctx context.Context, req Request) (*schema.LogicalModel, *schema.Diagnostics, error) {
	diag := &schema.Diagnostics{}
	model, _, err := p.build(ctx, req, p.logger, diag)
	return model, diag, err
}

func (p *Pipeline) build(ctx context.Context, req Request, logger *slog.Logger, diag *schema.Diagnostics) (*schema.LogicalModel, []schema.Attribute, error) {
	sheets, err := ingest.New(logger).Read(ctx, req.Input, req.Ingest)
	if err != nil {
		return nil, nil, err
	}

	attrs, err := normalize.New(logger, diag).Normalize(sheets)
	if err != nil {
		return nil, nil, err
	}
	attrs = infer.New(logger, diag).Infer(attrs)

	var enhancer *enhance.Enhancer
	if p.cfg.LLM.Enabled && p.client != nil {
		enhancer = enhance.New(p.client, p.cfg.LLM, logger, diag)
		attrs = enhancer.EnhanceAttributes(ctx, attrs)
	}

	assembler := assemble.New(logger, diag)
	model, err := assembler.Assemble(sourceName(req.Input), p.generatedAt(req.Input), attrs)
	if err != nil {
		return nil, nil, err
	}
	if enhancer != nil && enhancer.Available() {
		enhancer.EnhanceModel(ctx, model)
		assembler.Relate(model)
	}
	return model, Attributes(model), nil
}

// emit writes every artifact of a frozen model. The DBML file goes first since
// the DBML renderer reads it; the two diagram formats render concurrently.
func (p *Pipeline) emit(ctx context.Context, store *artifacts.Store, model *schema.LogicalModel,
	attrs []schema.Attribute, logger *slog.Logger, diag *schema.Diagnostics) []artifacts.Artifact {

	var out []artifacts.Artifact
	keep := func(a artifacts.Artifact, err error) {
		if err == nil {
			out = append(out, a)
		}
	}

	keep(store.WriteJSON(artifacts.Metadata, artifacts.NewMetadata(model.SourceName, model.GeneratedAt, attrs)))
	keep(store.Write(artifacts.DBML, formatter.FormatDBML(model)))
	out = append(out, p.renderDiagrams(ctx, store, model, logger, diag)...)

	if store.Exists(artifacts.Logical) {
		out = append(out, store.Skip(artifacts.Logical))
	} else if data, err := schema.MarshalCanonical(model); err != nil {
		diag.Error(schema.StageArtifacts, schema.KindArtifactWriteFailed, "logical.json: %v", err)
	} else {
		keep(store.Write(artifacts.Logical, data))
	}
	return out
}

func (p *Pipeline) renderDiagrams(ctx context.Context, store *artifacts.Store, model *schema.LogicalModel,
	logger *slog.Logger, diag *schema.Diagnostics) []artifacts.Artifact {

	settings := diagram.SettingsFor(model.Stats())
	job := diagram.Job{
		DOT:      diagram.BuildDOT(model, settings),
		DBMLPath: store.Path(artifacts.DBML),
		Settings: settings,
	}
	orch := diagram.New(p.primary, p.fallback, logger, diag)
	orch.InitialInterval = p.backoff
	formats := uniqueFormats(p.cfg.Diagram.Formats)
	logger.Info("rendering diagrams", "category", settings.Category, "formats", formats)

	// each task owns one slot of out and one target file
	out := make([]*artifacts.Artifact, len(formats))
	g, gctx := errgroup.WithContext(ctx)
	for i, format := range formats {
		kind := artifacts.Kind(format)
		g.Go(func() error {
			if store.Exists(kind) {
				a := store.Skip(kind)
				out[i] = &a
				return nil
			}
			gen, err := orch.Render(gctx, job, format, store.Path(kind))
			if err != nil {
				return nil
			}
			out[i] = &artifacts.Artifact{Kind: kind, Path: store.Path(kind), Generator: gen}
			return nil
		})
	}
	_ = g.Wait()

	var rendered []artifacts.Artifact
	for _, a := range out {
		if a != nil {
			rendered = append(rendered, *a)
		}
	}
	return rendered
}

func uniqueFormats(formats []string) []string {
	var out []string
	seen := make(map[string]bool, len(formats))
	for _, f := range formats {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

// Attributes flattens a model back into its attribute list in entity order
func Attributes(m *schema.LogicalModel) []schema.Attribute {
	var out []schema.Attribute
	for _, e := range m.OrderedEntities() {
		out = append(out, e.Attributes...)
	}
	return out
}

// generatedAt uses the input file's modification time so unchanged inputs
// produce identical artifacts; database inputs use the clock.
func (p *Pipeline) generatedAt(input string) time.Time {
	if !db.IsDatabaseURL(input) {
		if info, err := os.Stat(input); err == nil {
			return info.ModTime().UTC().Truncate(time.Second)
		}
	}
	return p.now().UTC().Truncate(time.Second)
}

// sourceName names the input without leaking database credentials
func sourceName(input string) string {
	if db.IsDatabaseURL(input) {
		dbType, _, err := db.ParseDatabaseURL(input)
		if err != nil {
			return artifacts.DeriveID(input)
		}
		return dbType + ":" + artifacts.DeriveID(input)
	}
	return filepath.Base(input)
}

func stageOf(kind schema.Kind) schema.Stage {
	switch kind {
	case schema.KindSchemaMissing:
		return schema.StageHeaders
	case schema.KindModelEmpty:
		return schema.StageAssemble
	}
	return schema.StageIngest
}

// Summary is a one-line description of a report for the CLI
func (r *Report) Summary() string {
	return fmt.Sprintf("run %s (%s): %d artifacts, %d errors, %d warnings",
		r.RunID, r.InputID, len(r.Artifacts), len(r.Errors), len(r.Warnings))
}
