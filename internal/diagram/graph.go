package diagram

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/emicklei/dot"

	"github.com/tordrt/ldmgen/internal/schema"
)

const headerColor = "#dbe9f6"

// BuildGraph lays the model out as a directed graph of record-like entity
// nodes joined by crow's-foot edges. Columns beyond the settings cap are
// hidden; edges over hidden columns attach to the node instead of a port.
func BuildGraph(m *schema.LogicalModel, s Settings) *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "LR")
	g.Attr("splines", "ortho")
	g.Attr("size", s.Size)
	g.Attr("nodesep", formatFloat(s.NodeSep))
	g.Attr("ranksep", formatFloat(s.RankSep))
	g.Attr("fontname", "Helvetica")
	fontSize := strconv.Itoa(s.FontSize)
	g.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "plaintext")
		n.Attr("fontname", "Helvetica")
		n.Attr("fontsize", fontSize)
	})
	g.EdgeInitializer(func(e dot.Edge) {
		e.Attr("dir", "both")
		e.Attr("fontname", "Helvetica")
		e.Attr("fontsize", fontSize)
	})

	nodes := make(map[string]dot.Node, len(m.Order))
	ports := make(map[string]string)
	for _, e := range m.OrderedEntities() {
		kept, hidden := FilterColumns(e.Attributes, s.MaxColumns)
		n := g.Node(e.Name)
		n.Attr("label", dot.HTML(entityLabel(e.Name, kept, hidden)))
		nodes[strings.ToLower(e.Name)] = n
		for i, a := range kept {
			ports[schema.AttributeKey(e.Name, a.AttributeName)] = portName(i)
		}
	}

	for _, r := range m.Relationships {
		from, ok := nodes[strings.ToLower(r.FromEntity)]
		if !ok {
			continue
		}
		to, ok := nodes[strings.ToLower(r.ToEntity)]
		if !ok {
			continue
		}
		edge := g.Edge(from, to)
		tail, head := arrows(r)
		edge.Attr("arrowtail", tail)
		edge.Attr("arrowhead", head)
		if p, ok := ports[schema.AttributeKey(r.FromEntity, r.FromAttribute)]; ok {
			edge.Attr("tailport", p)
		}
		if p, ok := ports[schema.AttributeKey(r.ToEntity, r.ToAttribute)]; ok {
			edge.Attr("headport", p)
		}
		if name := schema.CleanText(r.Name); name != "" {
			edge.Attr("label", name)
		}
		if r.Source == schema.RelationshipFromLLM {
			edge.Attr("style", "dashed")
		}
	}
	return g
}

// BuildDOT renders the graph description consumed by the native renderer
func BuildDOT(m *schema.LogicalModel, s Settings) []byte {
	return []byte(BuildGraph(m, s).String())
}

func entityLabel(name string, attrs []schema.Attribute, hidden int) string {
	var sb strings.Builder
	sb.WriteString(`<table border="0" cellborder="1" cellspacing="0" cellpadding="4">`)
	fmt.Fprintf(&sb, `<tr><td bgcolor="%s"><b>%s</b></td></tr>`, headerColor, html.EscapeString(name))
	for i, a := range attrs {
		fmt.Fprintf(&sb, `<tr><td port="%s" align="left">%s</td></tr>`, portName(i), html.EscapeString(columnText(a)))
	}
	if hidden > 0 {
		fmt.Fprintf(&sb, `<tr><td align="left"><i>%s</i></td></tr>`, html.EscapeString(moreColumnsLabel(hidden)))
	}
	sb.WriteString(`</table>`)
	return sb.String()
}

func columnText(a schema.Attribute) string {
	var marks []string
	if a.IsPrimaryKey {
		marks = append(marks, "PK")
	}
	if a.IsForeignKey {
		marks = append(marks, "FK")
	}
	text := a.AttributeName + " : " + a.EffectiveLogicalType()
	if len(marks) > 0 {
		text = strings.Join(marks, ",") + " " + text
	}
	return text
}

// arrows returns crow's-foot arrow shapes for the tail and head of an edge
func arrows(r schema.Relationship) (tail, head string) {
	one := "teetee"
	if r.Optionality == schema.Optional {
		one = "teeodot"
	}
	switch r.Cardinality {
	case schema.OneToMany:
		many := "crow"
		if r.Optionality == schema.Optional {
			many = "crowodot"
		}
		return "teetee", many
	case schema.OneToOne:
		return "teetee", one
	default:
		return "crow", one
	}
}

func portName(i int) string {
	return "c" + strconv.Itoa(i)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
