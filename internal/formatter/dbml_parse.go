package formatter

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tordrt/ldmgen/internal/schema"
)

// ParseDBML reads DBML written by DBMLFormatter back into a logical model.
// Notes longer than MaxNoteLength were truncated on the way out and stay truncated.
func ParseDBML(r io.Reader) (*schema.LogicalModel, error) {
	p := &dbmlParser{model: schema.NewLogicalModel("", time.Time{}), lastRef: -1}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		p.line++
		if err := p.parseLine(strings.TrimSpace(sc.Text())); err != nil {
			return nil, fmt.Errorf("dbml line %d: %w", p.line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read dbml: %w", err)
	}
	if p.entity != nil {
		return nil, fmt.Errorf("dbml: table %s is not closed", p.entity.Name)
	}
	return p.model, nil
}

type dbmlParser struct {
	model   *schema.LogicalModel
	line    int
	entity  *schema.Entity
	section string
	lastRef int
}

func (p *dbmlParser) parseLine(s string) error {
	switch {
	case s == "":
		return nil
	case p.entity != nil:
		return p.parseTableLine(s)
	case strings.HasPrefix(s, "Table "):
		return p.openTable(s)
	case strings.HasPrefix(s, "Ref:"):
		return p.parseRef(strings.TrimSpace(strings.TrimPrefix(s, "Ref:")))
	case s == foreignKeysHeader || s == inferredRelsHeader:
		p.section = s
		p.lastRef = -1
		return nil
	case strings.HasPrefix(s, sourceCommentPrefix) && len(p.model.Order) == 0:
		p.model.SourceName = strings.TrimPrefix(s, sourceCommentPrefix)
		return nil
	case strings.HasPrefix(s, genCommentPrefix) && len(p.model.Order) == 0:
		t, err := time.Parse(time.RFC3339, strings.TrimPrefix(s, genCommentPrefix))
		if err != nil {
			return fmt.Errorf("generated time: %w", err)
		}
		p.model.GeneratedAt = t
		return nil
	case strings.HasPrefix(s, nameCommentPrefix) && p.lastRef >= 0:
		p.model.Relationships[p.lastRef].Name = strings.TrimPrefix(s, nameCommentPrefix)
		return nil
	case strings.HasPrefix(s, descCommentPrefix) && p.lastRef >= 0:
		p.model.Relationships[p.lastRef].Description = strings.TrimPrefix(s, descCommentPrefix)
		return nil
	case strings.HasPrefix(s, "//"):
		return nil
	}
	return fmt.Errorf("unexpected %q", s)
}

func (p *dbmlParser) openTable(s string) error {
	name, rest, err := readIdent(strings.TrimPrefix(s, "Table "))
	if err != nil {
		return err
	}
	if strings.TrimSpace(rest) != "{" {
		return fmt.Errorf("expected { after table %s", name)
	}
	p.entity = &schema.Entity{Name: name}
	return nil
}

func (p *dbmlParser) parseTableLine(s string) error {
	switch {
	case s == "}":
		p.model.AddEntity(p.entity)
		p.entity = nil
		p.lastRef = -1
		return nil
	case strings.HasPrefix(s, "Note:"):
		note, _, err := readQuoted(strings.TrimSpace(strings.TrimPrefix(s, "Note:")))
		if err != nil {
			return err
		}
		p.entity.Description = note
		return nil
	case strings.HasPrefix(s, "//"):
		return nil
	}

	name, rest, err := readIdent(s)
	if err != nil {
		return err
	}
	rest = strings.TrimSpace(rest)
	logical, rest, _ := strings.Cut(rest, " ")
	if logical == "" {
		return fmt.Errorf("attribute %s has no type", name)
	}

	a := schema.Attribute{
		EntityName: p.entity.Name, EntityDescription: p.entity.Description,
		AttributeName: name, Nullable: true,
	}
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "[") {
		var settings []string
		settings, rest, err = splitSettings(rest)
		if err != nil {
			return err
		}
		if err := applySettings(&a, settings); err != nil {
			return err
		}
	}
	if c, ok := strings.CutPrefix(strings.TrimSpace(rest), "//"); ok {
		a.DataType = strings.TrimSpace(c)
	}
	if a.IsPrimaryKey {
		a.Nullable = false
	}
	if schema.LogicalType(a.DataType) != logical {
		a.LLMLogicalType = logical
	}
	p.entity.Attributes = append(p.entity.Attributes, a)
	return nil
}

func applySettings(a *schema.Attribute, settings []string) error {
	for _, s := range settings {
		switch {
		case s == "pk":
			a.IsPrimaryKey = true
		case s == "not null":
			a.Nullable = false
		case s == "unique":
			a.IsUnique = true
		case strings.HasPrefix(s, "note:"):
			note, _, err := readQuoted(strings.TrimSpace(strings.TrimPrefix(s, "note:")))
			if err != nil {
				return err
			}
			a.Description, a.LLMIsDerived, a.LLMBusinessRule = splitDerived(note)
		default:
			return fmt.Errorf("unknown setting %q", s)
		}
	}
	return nil
}

// splitDerived separates a trailing "(derived: rule)" marker from a note
func splitDerived(note string) (description string, derived bool, rule string) {
	i := strings.LastIndex(note, derivedMarker)
	if i < 0 || !strings.HasSuffix(note, ")") {
		return note, false, ""
	}
	marker := note[i+len(derivedMarker) : len(note)-1]
	if marker != "" && !strings.HasPrefix(marker, ": ") {
		return note, false, ""
	}
	return strings.TrimSpace(note[:i]), true, strings.TrimPrefix(marker, ": ")
}

func (p *dbmlParser) parseRef(s string) error {
	fromEntity, fromAttr, rest, err := readColumnRef(s)
	if err != nil {
		return err
	}
	glyph, rest, _ := strings.Cut(strings.TrimSpace(rest), " ")
	toEntity, toAttr, rest, err := readColumnRef(strings.TrimSpace(rest))
	if err != nil {
		return err
	}
	if strings.TrimSpace(rest) != "" {
		return fmt.Errorf("trailing text after ref: %q", rest)
	}

	var g *Glyph
	for i := range Glyphs {
		if Glyphs[i].Symbol == glyph {
			g = &Glyphs[i]
			break
		}
	}
	if g == nil {
		return fmt.Errorf("unknown relationship glyph %q", glyph)
	}

	r := schema.Relationship{
		FromEntity: fromEntity, FromAttribute: fromAttr,
		ToEntity: toEntity, ToAttribute: toAttr,
		Cardinality: g.Cardinality, Optionality: g.Optionality,
		Source: schema.RelationshipFromFK,
	}
	if p.section == inferredRelsHeader {
		r.Source = schema.RelationshipFromLLM
	} else if e := p.model.Entity(fromEntity); e != nil {
		if a := e.Attribute(fromAttr); a != nil {
			a.IsForeignKey = true
			a.ReferencesEntity, a.ReferencesAttribute = toEntity, toAttr
		}
	}
	p.model.Relationships = append(p.model.Relationships, r)
	p.lastRef = len(p.model.Relationships) - 1
	return nil
}

func readColumnRef(s string) (entity, attribute, rest string, err error) {
	entity, rest, err = readIdent(s)
	if err != nil {
		return "", "", "", err
	}
	if !strings.HasPrefix(rest, ".") {
		return "", "", "", fmt.Errorf("expected . after %s", entity)
	}
	attribute, rest, err = readIdent(rest[1:])
	return entity, attribute, rest, err
}

// readIdent reads a bare or double-quoted identifier
func readIdent(s string) (ident, rest string, err error) {
	if strings.HasPrefix(s, `"`) {
		end := strings.IndexByte(s[1:], '"')
		if end < 0 {
			return "", "", errors.New("unterminated quoted identifier")
		}
		return s[1 : end+1], s[end+2:], nil
	}
	end := strings.IndexAny(s, " .[{")
	if end < 0 {
		end = len(s)
	}
	if end == 0 {
		return "", "", fmt.Errorf("expected identifier at %q", s)
	}
	return s[:end], s[end:], nil
}

// readQuoted reads a single-quoted string with backslash escapes
func readQuoted(s string) (value, rest string, err error) {
	if !strings.HasPrefix(s, "'") {
		return "", "", fmt.Errorf("expected quoted string at %q", s)
	}
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			if i+1 < len(s) {
				i++
				sb.WriteByte(s[i])
			}
		case '\'':
			return sb.String(), s[i+1:], nil
		default:
			sb.WriteByte(c)
		}
	}
	return "", "", errors.New("unterminated quoted string")
}

// splitSettings splits "[a, b, note: 'x, y']" on commas outside quotes
func splitSettings(s string) (settings []string, rest string, err error) {
	var (
		cur     strings.Builder
		inQuote bool
	)
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote && c == '\\' && i+1 < len(s):
			cur.WriteByte(c)
			i++
			cur.WriteByte(s[i])
			continue
		case c == '\'':
			inQuote = !inQuote
		case !inQuote && c == ',':
			settings = append(settings, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		case !inQuote && c == ']':
			if last := strings.TrimSpace(cur.String()); last != "" {
				settings = append(settings, last)
			}
			return settings, s[i+1:], nil
		}
		cur.WriteByte(c)
	}
	return nil, "", errors.New("unterminated settings")
}
