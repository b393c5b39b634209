package diagram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Output formats
const (
	FormatPNG = "png"
	FormatSVG = "svg"
)

// terminateGrace is how long a cancelled subprocess gets after SIGTERM before it is killed
const terminateGrace = 5 * time.Second

// Job is everything a renderer may draw from
type Job struct {
	DOT      []byte
	DBMLPath string
	Settings Settings
}

// Renderer turns a job into one image file at target
type Renderer interface {
	Name() string
	Render(ctx context.Context, job Job, format, target string) error
}

// GraphvizRenderer rasterises the graph description with the dot binary
type GraphvizRenderer struct {
	Path string
}

// NewGraphvizRenderer creates a renderer for the dot binary at path
func NewGraphvizRenderer(path string) *GraphvizRenderer {
	return &GraphvizRenderer{Path: path}
}

func (r *GraphvizRenderer) Name() string { return "native" }

// Render pipes the DOT source to dot on stdin
func (r *GraphvizRenderer) Render(ctx context.Context, job Job, format, target string) error {
	if len(job.DOT) == 0 {
		return errors.New("no graph description")
	}
	args := []string{"-T" + format, "-o", target}
	if format == FormatPNG && job.Settings.DPI > 0 {
		args = append(args, "-Gdpi="+strconv.Itoa(job.Settings.DPI))
	}
	return runCommand(ctx, job.DOT, r.Path, args...)
}

// DBMLRenderer renders the DBML file with dbml-renderer. It only produces
// SVG; PNG output is converted from it with rsvg-convert.
type DBMLRenderer struct {
	Path     string
	RsvgPath string
}

// NewDBMLRenderer creates a renderer for the dbml-renderer and rsvg-convert binaries
func NewDBMLRenderer(path, rsvgPath string) *DBMLRenderer {
	return &DBMLRenderer{Path: path, RsvgPath: rsvgPath}
}

func (r *DBMLRenderer) Name() string { return "dbml" }

func (r *DBMLRenderer) Render(ctx context.Context, job Job, format, target string) error {
	if job.DBMLPath == "" {
		return errors.New("no dbml file")
	}
	if format == FormatSVG {
		return runCommand(ctx, nil, r.Path, "-i", job.DBMLPath, "-o", target)
	}

	dir, err := os.MkdirTemp(filepath.Dir(target), ".dbml-render-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	svg := filepath.Join(dir, "erd.svg")
	if err := runCommand(ctx, nil, r.Path, "-i", job.DBMLPath, "-o", svg); err != nil {
		return err
	}
	args := []string{"-f", format, "-o", target}
	if dpi := job.Settings.DPI; dpi > 0 {
		args = append(args, "-d", strconv.Itoa(dpi), "-p", strconv.Itoa(dpi))
	}
	return runCommand(ctx, nil, r.RsvgPath, append(args, svg)...)
}

// runCommand runs a renderer binary. Cancellation sends SIGTERM and kills
// the process if it has not exited after terminateGrace.
func runCommand(ctx context.Context, stdin []byte, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = terminateGrace
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", name, ctxErr)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
