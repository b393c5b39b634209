package schema

import (
	"errors"
	"fmt"
	"sync"
)

// Fatal errors abort a run before any model artifact is emitted
var (
	ErrInputUnreadable = errors.New("input unreadable")
	ErrSchemaMissing   = errors.New("schema missing: no entity and attribute name columns found")
	ErrModelEmpty      = errors.New("model empty: no entities after normalisation")
)

// Kind classifies a report entry
type Kind string

// Report entry kinds
const (
	KindInputUnreadable       Kind = "InputUnreadable"
	KindSchemaMissing         Kind = "SchemaMissing"
	KindModelEmpty            Kind = "ModelEmpty"
	KindLLMUnavailable        Kind = "LLMUnavailable"
	KindLLMBatchFailed        Kind = "LLMBatchFailed"
	KindDiagramPrimaryFailed  Kind = "DiagramPrimaryFailed"
	KindDiagramFallbackFailed Kind = "DiagramFallbackFailed"
	KindArtifactExists        Kind = "ArtifactExists"
	KindArtifactWriteFailed   Kind = "ArtifactWriteFailed"

	KindDanglingForeignKey   Kind = "DanglingForeignKey"
	KindUnresolvedForeignKey Kind = "UnresolvedForeignKey"
	KindAmbiguousPrimaryKey  Kind = "AmbiguousPrimaryKey"
	KindLLMBatchLength       Kind = "LLMBatchLength"
	KindLLMMergeRejected     Kind = "LLMMergeRejected"
	KindSheetSkipped         Kind = "SheetSkipped"
	KindRowDropped           Kind = "RowDropped"
)

// Stage names a pipeline step in report entries
type Stage string

// Pipeline stages
const (
	StageIngest    Stage = "ingest"
	StageHeaders   Stage = "headers"
	StageNormalize Stage = "normalize"
	StageInfer     Stage = "infer"
	StageEnhance   Stage = "enhance"
	StageAssemble  Stage = "assemble"
	StageDBML      Stage = "dbml"
	StageDiagram   Stage = "diagram"
	StageArtifacts Stage = "artifacts"
)

// Issue is one recoverable error or warning captured during a run
type Issue struct {
	Stage  Stage  `json:"stage"`
	Kind   Kind   `json:"kind"`
	Detail string `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Stage, i.Kind, i.Detail)
}

// Diagnostics collects issues from every stage of a run.
// A nil *Diagnostics discards everything, so stages can be used standalone.
type Diagnostics struct {
	mu       sync.Mutex
	errors   []Issue
	warnings []Issue
}

// Error records a recoverable error
func (d *Diagnostics) Error(stage Stage, kind Kind, format string, args ...any) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors = append(d.errors, Issue{Stage: stage, Kind: kind, Detail: fmt.Sprintf(format, args...)})
}

// Warn records a warning
func (d *Diagnostics) Warn(stage Stage, kind Kind, format string, args ...any) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.warnings = append(d.warnings, Issue{Stage: stage, Kind: kind, Detail: fmt.Sprintf(format, args...)})
}

// Errors returns a copy of the recorded errors
func (d *Diagnostics) Errors() []Issue {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Issue(nil), d.errors...)
}

// Warnings returns a copy of the recorded warnings
func (d *Diagnostics) Warnings() []Issue {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Issue(nil), d.warnings...)
}

// Count returns how many errors and warnings of the given kind were recorded
func (d *Diagnostics) Count(kind Kind) int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, i := range d.errors {
		if i.Kind == kind {
			n++
		}
	}
	for _, i := range d.warnings {
		if i.Kind == kind {
			n++
		}
	}
	return n
}

// IsFatal reports whether err aborts the pipeline
func IsFatal(err error) bool {
	return errors.Is(err, ErrInputUnreadable) || errors.Is(err, ErrSchemaMissing) || errors.Is(err, ErrModelEmpty)
}

// FatalKind maps a fatal error to its report kind
func FatalKind(err error) Kind {
	switch {
	case errors.Is(err, ErrInputUnreadable):
		return KindInputUnreadable
	case errors.Is(err, ErrSchemaMissing):
		return KindSchemaMissing
	case errors.Is(err, ErrModelEmpty):
		return KindModelEmpty
	}
	return ""
}
