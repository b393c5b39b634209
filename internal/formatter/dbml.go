package formatter

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tordrt/ldmgen/internal/schema"
)

// MaxNoteLength caps entity and attribute notes
const MaxNoteLength = 200

// Section headers of the relationships block
const (
	foreignKeysHeader   = "// Foreign keys"
	inferredRelsHeader  = "// Inferred relationships"
	derivedMarker       = "(derived"
	nameCommentPrefix   = "// Name: "
	descCommentPrefix   = "// Description: "
	sourceCommentPrefix = "// Source: "
	genCommentPrefix    = "// Generated: "
)

// Glyph is one row of the cardinality glyph table
type Glyph struct {
	Index       int
	Cardinality schema.Cardinality
	Optionality schema.Optionality
	Symbol      string
}

// Glyphs maps cardinality and optionality to DBML relationship symbols
var Glyphs = []Glyph{
	{1, schema.OneToMany, schema.Mandatory, ">"},
	{2, schema.OneToMany, schema.Optional, ">?"},
	{3, schema.ManyToOne, schema.Mandatory, "<"},
	{4, schema.ManyToOne, schema.Optional, "<?"},
	{5, schema.OneToOne, schema.Mandatory, "-"},
	{6, schema.OneToOne, schema.Optional, "-?"},
}

// GlyphFor returns the symbol for a cardinality and optionality. Unknown
// combinations fall back to an optional many-to-one.
func GlyphFor(c schema.Cardinality, o schema.Optionality) string {
	for _, g := range Glyphs {
		if g.Cardinality == c && g.Optionality == o {
			return g.Symbol
		}
	}
	return "<?"
}

// DBMLFormatter writes a logical model as DBML
type DBMLFormatter struct {
	writer io.Writer
}

// NewDBMLFormatter creates a new DBML formatter
func NewDBMLFormatter(w io.Writer) *DBMLFormatter {
	return &DBMLFormatter{writer: w}
}

// Format writes the header, one table per entity in model order, then relationships
func (f *DBMLFormatter) Format(m *schema.LogicalModel) error {
	var buf bytes.Buffer
	writeDBML(&buf, m)
	_, err := f.writer.Write(buf.Bytes())
	return err
}

// FormatDBML renders a model to DBML bytes
func FormatDBML(m *schema.LogicalModel) []byte {
	var buf bytes.Buffer
	writeDBML(&buf, m)
	return buf.Bytes()
}

func writeDBML(buf *bytes.Buffer, m *schema.LogicalModel) {
	stats := m.Stats()
	buf.WriteString("// Logical Data Model\n")
	buf.WriteString(sourceCommentPrefix + schema.CleanText(m.SourceName) + "\n")
	buf.WriteString(genCommentPrefix + m.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	fmt.Fprintf(buf, "// Entities: %d, Attributes: %d, Relationships: %d\n",
		stats.TableCount, stats.TotalColumnCount, len(m.Relationships))

	for _, e := range m.OrderedEntities() {
		buf.WriteString("\n")
		writeTable(buf, e)
	}

	var fks, inferred []schema.Relationship
	for _, r := range m.Relationships {
		if r.Source == schema.RelationshipFromLLM {
			inferred = append(inferred, r)
		} else {
			fks = append(fks, r)
		}
	}
	writeRefs(buf, foreignKeysHeader, fks)
	writeRefs(buf, inferredRelsHeader, inferred)
}

func writeTable(buf *bytes.Buffer, e *schema.Entity) {
	fmt.Fprintf(buf, "Table %s {\n", quoteIdent(e.Name))
	if d := e.EffectiveDescription(); d != "" {
		fmt.Fprintf(buf, "  Note: '%s'\n", escapeNote(capNote(d)))
	}
	for _, a := range e.Attributes {
		buf.WriteString("  ")
		buf.WriteString(attributeLine(a))
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
}

// attributeLine renders "name TYPE [settings] // PHYSICAL"
func attributeLine(a schema.Attribute) string {
	var settings []string
	if a.IsPrimaryKey {
		settings = append(settings, "pk")
	}
	if !a.Nullable && !a.IsPrimaryKey {
		settings = append(settings, "not null")
	}
	if a.IsUnique && !a.IsPrimaryKey {
		settings = append(settings, "unique")
	}
	if note := attributeNote(a); note != "" {
		settings = append(settings, "note: '"+escapeNote(note)+"'")
	}

	line := quoteIdent(a.AttributeName) + " " + a.EffectiveLogicalType()
	if len(settings) > 0 {
		line += " [" + strings.Join(settings, ", ") + "]"
	}
	if physical := schema.BaseType(a.DataType); physical != "" {
		line += " // " + physical
	}
	return line
}

// attributeNote builds the single note setting of a column. A column carries
// at most one note, so the description and the derived-attribute marker share
// it as "<description> (derived: <rule>)"; either part may be absent.
func attributeNote(a schema.Attribute) string {
	note := capNote(a.EffectiveDescription())
	if !a.LLMIsDerived {
		return note
	}
	derived := derivedMarker + ")"
	if rule := capNote(schema.CleanText(a.LLMBusinessRule)); rule != "" {
		derived = derivedMarker + ": " + rule + ")"
	}
	if note == "" {
		return derived
	}
	return note + " " + derived
}

func writeRefs(buf *bytes.Buffer, header string, rels []schema.Relationship) {
	if len(rels) == 0 {
		return
	}
	buf.WriteString("\n")
	buf.WriteString(header + "\n")
	for _, r := range rels {
		fmt.Fprintf(buf, "Ref: %s.%s %s %s.%s\n",
			quoteIdent(r.FromEntity), quoteIdent(r.FromAttribute),
			GlyphFor(r.Cardinality, r.Optionality),
			quoteIdent(r.ToEntity), quoteIdent(r.ToAttribute))
		if n := schema.CleanText(r.Name); n != "" {
			buf.WriteString(nameCommentPrefix + n + "\n")
		}
		if d := schema.CleanText(r.Description); d != "" {
			buf.WriteString(descCommentPrefix + d + "\n")
		}
		buf.WriteString("// " + OptionalitySentence(r) + "\n")
	}
}

// OptionalitySentence describes a relationship in words
func OptionalitySentence(r schema.Relationship) string {
	verb := "may"
	if r.Optionality == schema.Mandatory {
		verb = "must"
	}
	switch r.Cardinality {
	case schema.OneToMany:
		return fmt.Sprintf("Each %s %s have many %s.", r.FromEntity, verb, r.ToEntity)
	case schema.OneToOne:
		return fmt.Sprintf("Each %s %s have exactly one %s.", r.FromEntity, verb, r.ToEntity)
	default:
		return fmt.Sprintf("Each %s %s reference one %s.", r.FromEntity, verb, r.ToEntity)
	}
}

// quoteIdent double-quotes names containing spaces or hyphens
func quoteIdent(name string) string {
	if strings.ContainsAny(name, " -") {
		return `"` + name + `"`
	}
	return name
}

func capNote(s string) string {
	s = schema.CleanText(s)
	if r := []rune(s); len(r) > MaxNoteLength {
		return strings.TrimSpace(string(r[:MaxNoteLength]))
	}
	return s
}

func escapeNote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
