package diagram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tordrt/ldmgen/internal/schema"
)

// Backoff bounds between attempts of one generator
const (
	DefaultInitialInterval = 500 * time.Millisecond
	MaxInterval            = 10 * time.Second
)

// ErrEmptyOutput is returned when a renderer exits cleanly without writing an image
var ErrEmptyOutput = errors.New("renderer produced no output")

// Orchestrator renders one image per format, trying the primary renderer
// first and the fallback when the primary fails
type Orchestrator struct {
	primary         Renderer
	fallback        Renderer
	logger          *slog.Logger
	diag            *schema.Diagnostics
	InitialInterval time.Duration
}

// New creates an orchestrator. A nil fallback disables the fallback step.
func New(primary, fallback Renderer, logger *slog.Logger, diag *schema.Diagnostics) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		primary:         primary,
		fallback:        fallback,
		logger:          logger,
		diag:            diag,
		InitialInterval: DefaultInitialInterval,
	}
}

// Render writes target in the given format and returns the name of the
// generator that produced it. When both generators fail the target is left
// absent and the fallback's error is returned.
func (o *Orchestrator) Render(ctx context.Context, job Job, format, target string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create diagram directory: %w", err)
	}

	err := o.attempt(ctx, o.primary, job, format, target)
	if err == nil {
		return o.primary.Name(), nil
	}
	o.diag.Error(schema.StageDiagram, schema.KindDiagramPrimaryFailed, "%s %s: %v", o.primary.Name(), format, err)
	o.logger.Warn("primary diagram generator failed", "generator", o.primary.Name(), "format", format, "error", err)

	if o.fallback == nil || ctx.Err() != nil {
		return "", err
	}
	if err := o.attempt(ctx, o.fallback, job, format, target); err != nil {
		o.diag.Error(schema.StageDiagram, schema.KindDiagramFallbackFailed, "%s %s: %v", o.fallback.Name(), format, err)
		o.logger.Error("fallback diagram generator failed", "generator", o.fallback.Name(), "format", format, "error", err)
		return "", err
	}
	return o.fallback.Name(), nil
}

// attempt runs one generator with retries and exponential backoff. Each try
// renders into a temp file next to target, which is renamed on success.
func (o *Orchestrator) attempt(ctx context.Context, r Renderer, job Job, format, target string) error {
	tries := 0
	operation := func() error {
		tries++
		actx, cancel := o.attemptContext(ctx, job.Settings.Timeout)
		defer cancel()

		err := o.renderOnce(actx, r, job, format, target)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		o.logger.Warn("retrying diagram generator", "generator", r.Name(), "format", format,
			"attempt", tries, "wait", wait, "error", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.InitialInterval
	b.MaxInterval = MaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(job.Settings.Retries, 0))), ctx)

	err := backoff.RetryNotify(operation, policy, notify)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	return err
}

func (o *Orchestrator) renderOnce(ctx context.Context, r Renderer, job Job, format, target string) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".erd-*."+format)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	if err := r.Render(ctx, job, format, tmpPath); err != nil {
		return err
	}
	info, err := os.Stat(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmptyOutput, err)
	}
	if info.Size() == 0 {
		return ErrEmptyOutput
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("failed to move diagram into place: %w", err)
	}
	return nil
}

func (o *Orchestrator) attemptContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
