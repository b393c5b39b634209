// Package artifacts lays out the outputs of a run under a per-input directory.
// Every write is skip-if-exists, so a run can be repeated to fill in whatever
// an earlier run did not produce.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tordrt/ldmgen/internal/schema"
)

// Kind names one artifact of the layout
type Kind string

// Artifact kinds
const (
	Metadata Kind = "metadata"
	DBML     Kind = "dbml"
	PNG      Kind = "png"
	SVG      Kind = "svg"
	Logical  Kind = "logical"
)

// Kinds lists every artifact in write order
var Kinds = []Kind{Metadata, DBML, PNG, SVG, Logical}

var layout = map[Kind]string{
	Metadata: filepath.Join("json", "metadata.json"),
	DBML:     filepath.Join("dbml", "schema.dbml"),
	PNG:      filepath.Join("logical", "erd.png"),
	SVG:      filepath.Join("logical", "erd.svg"),
	Logical:  filepath.Join("logical", "logical.json"),
}

// ErrInvalidID is returned for identifiers that would escape the artifacts root
var ErrInvalidID = errors.New("invalid artifact id")

// Artifact is one entry of a run report
type Artifact struct {
	Kind      Kind   `json:"kind"`
	Path      string `json:"path"`
	Skipped   bool   `json:"skipped,omitempty"`
	Generator string `json:"generator,omitempty"`
}

// Store writes the artifacts of one input identifier
type Store struct {
	dir    string
	logger *slog.Logger
	diag   *schema.Diagnostics
}

// New creates a store rooted at root/id. Directories are created on write.
func New(root, id string, logger *slog.Logger, diag *schema.Diagnostics) (*Store, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: filepath.Join(root, id), logger: logger, diag: diag}, nil
}

// Dir is the per-input directory
func (s *Store) Dir() string { return s.dir }

// Path returns where an artifact of the given kind lives
func (s *Store) Path(kind Kind) string {
	return filepath.Join(s.dir, layout[kind])
}

// Exists reports whether the artifact is already on disk
func (s *Store) Exists(kind Kind) bool {
	_, err := os.Stat(s.Path(kind))
	return err == nil
}

// Skip reports an artifact that is already present
func (s *Store) Skip(kind Kind) Artifact {
	path := s.Path(kind)
	s.diag.Warn(schema.StageArtifacts, schema.KindArtifactExists, "%s", path)
	s.logger.Info("artifact exists, skipping", "kind", kind, "path", path)
	return Artifact{Kind: kind, Path: path, Skipped: true}
}

// Write stores data unless the artifact already exists. The file is written
// to a temp path in the target directory and renamed into place.
func (s *Store) Write(kind Kind, data []byte) (Artifact, error) {
	if s.Exists(kind) {
		return s.Skip(kind), nil
	}

	path := s.Path(kind)
	if err := writeFileAtomic(path, data); err != nil {
		s.diag.Error(schema.StageArtifacts, schema.KindArtifactWriteFailed, "%s: %v", path, err)
		return Artifact{Kind: kind, Path: path}, err
	}
	s.logger.Info("artifact written", "kind", kind, "path", path, "bytes", len(data))
	return Artifact{Kind: kind, Path: path}, nil
}

// WriteJSON stores v as indented JSON
func (s *Store) WriteJSON(kind Kind, v any) (Artifact, error) {
	if s.Exists(kind) {
		return s.Skip(kind), nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Artifact{Kind: kind, Path: s.Path(kind)}, fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	return s.Write(kind, append(data, '\n'))
}

// MetadataFile is the content of json/metadata.json
type MetadataFile struct {
	SourceName  string             `json:"sourceName"`
	GeneratedAt string             `json:"generatedAt"`
	Attributes  []schema.Attribute `json:"attributes"`
}

// NewMetadata builds the metadata document for a list of normalised attributes
func NewMetadata(sourceName string, generatedAt time.Time, attrs []schema.Attribute) MetadataFile {
	if attrs == nil {
		attrs = []schema.Attribute{}
	}
	return MetadataFile{
		SourceName:  sourceName,
		GeneratedAt: generatedAt.UTC().Format(time.RFC3339),
		Attributes:  attrs,
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DeriveID turns a file path or database URL into a directory-safe identifier:
// the base name without extension, with other characters replaced by "_"
func DeriveID(source string) string {
	if i := strings.IndexAny(source, "?#"); i >= 0 {
		source = source[:i]
	}
	base := filepath.Base(strings.TrimRight(filepath.ToSlash(source), "/"))
	if i := strings.LastIndexByte(base, '@'); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	id := strings.Trim(unsafeIDChars.ReplaceAllString(base, "_"), "_.")
	if id == "" {
		return "input"
	}
	return id
}
