package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/ldmgen/internal/schema"
)

// TextFormatter formats a logical model as compact text
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// Format writes the model in compact text format
func (f *TextFormatter) Format(m *schema.LogicalModel) error {
	for i, e := range m.OrderedEntities() {
		if i > 0 {
			_, _ = fmt.Fprintln(f.writer) // Blank line between entities
		}
		f.formatEntity(m, e)
	}
	return nil
}

func (f *TextFormatter) formatEntity(m *schema.LogicalModel, e *schema.Entity) {
	pkStr := ""
	if pk := e.PrimaryKey(); pk != nil {
		pkStr = fmt.Sprintf(" (PK: %s)", pk.AttributeName)
	}
	_, _ = fmt.Fprintf(f.writer, "ENTITY %s%s\n", e.Name, pkStr)
	if d := e.EffectiveDescription(); d != "" {
		_, _ = fmt.Fprintf(f.writer, "  -- %s\n", d)
	}

	for _, a := range e.Attributes {
		_, _ = fmt.Fprintf(f.writer, "  %s\n", f.formatAttribute(a))
	}

	rels := m.RelationshipsFrom(e.Name)
	if len(rels) > 0 {
		_, _ = fmt.Fprintln(f.writer)
		_, _ = fmt.Fprintln(f.writer, "  RELATIONSHIPS:")
		for _, r := range rels {
			name := ""
			if r.Name != "" {
				name = " " + r.Name
			}
			_, _ = fmt.Fprintf(f.writer, "    %s → %s.%s (%s, %s)%s\n",
				r.FromAttribute, r.ToEntity, r.ToAttribute, r.Cardinality, r.Optionality, name)
		}
	}
}

func (f *TextFormatter) formatAttribute(a schema.Attribute) string {
	parts := []string{a.AttributeName + ":", a.EffectiveLogicalType()}

	if a.IsPrimaryKey {
		parts = append(parts, "PK")
	}
	if a.IsForeignKey {
		parts = append(parts, fmt.Sprintf("FK→%s.%s", a.ReferencesEntity, a.ReferencesAttribute))
	}
	if a.IsUnique && !a.IsPrimaryKey {
		parts = append(parts, "UNIQUE")
	}
	if !a.Nullable && !a.IsPrimaryKey {
		parts = append(parts, "NOT NULL")
	}
	if a.LLMIsDerived {
		parts = append(parts, "DERIVED")
	}

	return strings.Join(parts, " ")
}
