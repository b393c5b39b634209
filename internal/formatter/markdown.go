package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/ldmgen/internal/schema"
)

// MarkdownFormatter formats a logical model as a markdown data dictionary
type MarkdownFormatter struct {
	writer io.Writer
}

// NewMarkdownFormatter creates a new markdown formatter
func NewMarkdownFormatter(w io.Writer) *MarkdownFormatter {
	return &MarkdownFormatter{writer: w}
}

// Format writes the model in markdown format
func (f *MarkdownFormatter) Format(m *schema.LogicalModel) error {
	_, _ = fmt.Fprintln(f.writer, "# Logical Data Model")
	_, _ = fmt.Fprintln(f.writer)
	if m.SourceName != "" {
		_, _ = fmt.Fprintf(f.writer, "Source: `%s`\n\n", m.SourceName)
	}

	for _, e := range m.OrderedEntities() {
		f.formatEntity(m, e)
	}
	return nil
}

func (f *MarkdownFormatter) formatEntity(m *schema.LogicalModel, e *schema.Entity) {
	_, _ = fmt.Fprintf(f.writer, "## %s\n\n", e.Name)
	if d := e.EffectiveDescription(); d != "" {
		_, _ = fmt.Fprintf(f.writer, "%s\n\n", d)
	}

	_, _ = fmt.Fprintln(f.writer, "### Attributes")
	_, _ = fmt.Fprintln(f.writer)
	for _, a := range e.Attributes {
		line := fmt.Sprintf("- **%s:** %s", a.AttributeName, a.EffectiveLogicalType())
		if c := f.formatConstraints(a); c != "" {
			line += ", " + c
		}
		if d := a.EffectiveDescription(); d != "" {
			line += " (" + d + ")"
		}
		_, _ = fmt.Fprintln(f.writer, line)
	}
	_, _ = fmt.Fprintln(f.writer)

	if rels := m.RelationshipsFrom(e.Name); len(rels) > 0 {
		_, _ = fmt.Fprintln(f.writer, "### Relationships")
		_, _ = fmt.Fprintln(f.writer)
		for _, r := range rels {
			_, _ = fmt.Fprintf(f.writer, "- %s → %s.%s: %s\n", r.FromAttribute, r.ToEntity, r.ToAttribute, OptionalitySentence(r))
		}
		_, _ = fmt.Fprintln(f.writer)
	}
}

func (f *MarkdownFormatter) formatConstraints(a schema.Attribute) string {
	var constraints []string

	if a.IsPrimaryKey {
		constraints = append(constraints, "PK")
	}
	if a.IsForeignKey {
		constraints = append(constraints, fmt.Sprintf("FK → %s.%s", a.ReferencesEntity, a.ReferencesAttribute))
	}
	if a.IsUnique && !a.IsPrimaryKey {
		constraints = append(constraints, "UNIQUE")
	}
	if !a.Nullable && !a.IsPrimaryKey {
		constraints = append(constraints, "NOT NULL")
	}
	if a.LLMIsDerived {
		rule := "derived"
		if a.LLMBusinessRule != "" {
			rule = fmt.Sprintf("derived: `%s`", a.LLMBusinessRule)
		}
		constraints = append(constraints, rule)
	}

	return strings.Join(constraints, ", ")
}
