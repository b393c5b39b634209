// Package assemble groups attributes into entities and derives the model's relationships.
package assemble

import (
	"log/slog"
	"strings"
	"time"

	"github.com/tordrt/ldmgen/internal/schema"
)

// Assembler builds logical models
type Assembler struct {
	logger *slog.Logger
	diag   *schema.Diagnostics
}

// New creates an Assembler. A nil logger uses slog.Default().
func New(logger *slog.Logger, diag *schema.Diagnostics) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{logger: logger, diag: diag}
}

// Assemble groups attributes by entity in first-seen order and derives relationships.
// It fails with ErrModelEmpty when there is nothing to group.
func (a *Assembler) Assemble(sourceName string, generatedAt time.Time, attrs []schema.Attribute) (*schema.LogicalModel, error) {
	if len(attrs) == 0 {
		return nil, schema.ErrModelEmpty
	}

	m := schema.NewLogicalModel(sourceName, generatedAt)
	for _, attr := range attrs {
		e := m.Entity(attr.EntityName)
		if e == nil {
			e = &schema.Entity{Name: attr.EntityName}
			m.AddEntity(e)
		}
		if e.Description == "" && attr.EntityDescription != "" {
			e.Description = attr.EntityDescription
		}
		attr.EntityName = e.Name
		e.Attributes = append(e.Attributes, attr)
	}

	a.resolveForeignKeys(m)
	a.Relate(m)

	stats := m.Stats()
	a.logger.Info("assembled model", "entities", stats.TableCount, "attributes", stats.TotalColumnCount,
		"relationships", len(m.Relationships))
	return m, nil
}

// resolveForeignKeys points every foreign key at an existing attribute or downgrades it
func (a *Assembler) resolveForeignKeys(m *schema.LogicalModel) {
	for _, e := range m.OrderedEntities() {
		for i := range e.Attributes {
			attr := &e.Attributes[i]
			if !attr.IsForeignKey {
				continue
			}

			target := m.Entity(attr.ReferencesEntity)
			var column *schema.Attribute
			if target != nil {
				column = target.Attribute(attr.ReferencesAttribute)
				if column == nil {
					column = target.PrimaryKey()
				}
			}
			if column == nil {
				a.diag.Warn(schema.StageAssemble, schema.KindDanglingForeignKey,
					"%s.%s references missing %s.%s", e.Name, attr.AttributeName, attr.ReferencesEntity, attr.ReferencesAttribute)
				if attr.RawReferences == "" && attr.ReferencesEntity != "" {
					attr.RawReferences = attr.ReferencesEntity + "." + attr.ReferencesAttribute
				}
				attr.IsForeignKey = false
				attr.ReferencesEntity, attr.ReferencesAttribute = "", ""
				continue
			}
			attr.ReferencesEntity = target.Name
			attr.ReferencesAttribute = column.AttributeName
		}
	}
}

// Relate rebuilds m.Relationships from foreign key attributes and the model's
// proposed relationships. It can be called again after enhancement.
func (a *Assembler) Relate(m *schema.LogicalModel) {
	var rels []schema.Relationship
	seen := make(map[string]int)
	add := func(r schema.Relationship) {
		if _, dup := seen[r.Key()]; dup {
			return
		}
		seen[r.Key()] = len(rels)
		rels = append(rels, r)
	}

	for _, e := range m.OrderedEntities() {
		for _, attr := range e.Attributes {
			if attr.IsForeignKey && attr.ReferencesEntity != "" {
				add(ForeignKeyRelationship(attr))
			}
		}
	}

	for _, e := range m.OrderedEntities() {
		for _, p := range e.LLMRelationships {
			r, ok := proposed(m, e, p)
			if !ok {
				a.diag.Warn(schema.StageAssemble, schema.KindLLMMergeRejected,
					"%s -> %s: no attributes to anchor the relationship", e.Name, p.TargetEntity)
				continue
			}
			if i, found := matchPair(rels, r); found {
				if rels[i].Name == "" {
					rels[i].Name = r.Name
				}
				if rels[i].Description == "" {
					rels[i].Description = r.Description
				}
				continue
			}
			add(r)
		}
	}

	m.Relationships = rels
}

// ForeignKeyRelationship is the relationship implied by one foreign key attribute.
// A foreign key that is also the primary key is one-to-one and never optional.
func ForeignKeyRelationship(attr schema.Attribute) schema.Relationship {
	r := schema.Relationship{
		FromEntity:    attr.EntityName,
		FromAttribute: attr.AttributeName,
		ToEntity:      attr.ReferencesEntity,
		ToAttribute:   attr.ReferencesAttribute,
		Cardinality:   schema.ManyToOne,
		Optionality:   schema.Mandatory,
		Source:        schema.RelationshipFromFK,
	}
	if attr.IsUnique || attr.IsPrimaryKey {
		r.Cardinality = schema.OneToOne
	}
	if attr.Nullable && !attr.IsPrimaryKey {
		r.Optionality = schema.Optional
	}
	return r
}

// proposed anchors a relationship proposal on concrete attributes. A foreign key
// between the two entities is preferred; otherwise both primary keys are used.
func proposed(m *schema.LogicalModel, from *schema.Entity, p schema.LLMRelationship) (schema.Relationship, bool) {
	to := m.Entity(p.TargetEntity)
	if to == nil {
		return schema.Relationship{}, false
	}
	r := schema.Relationship{
		FromEntity:  from.Name,
		ToEntity:    to.Name,
		Cardinality: p.Cardinality,
		Optionality: p.Optionality,
		Name:        p.RelationshipName,
		Description: p.Description,
		Source:      schema.RelationshipFromLLM,
	}

	if fk := foreignKeyTo(from, to.Name); fk != nil {
		r.FromAttribute, r.ToAttribute = fk.AttributeName, fk.ReferencesAttribute
		return r, true
	}
	if fk := foreignKeyTo(to, from.Name); fk != nil {
		r.FromAttribute, r.ToAttribute = fk.ReferencesAttribute, fk.AttributeName
		return r, true
	}

	fromPK, toPK := from.PrimaryKey(), to.PrimaryKey()
	if fromPK == nil || toPK == nil {
		return schema.Relationship{}, false
	}
	r.FromAttribute, r.ToAttribute = fromPK.AttributeName, toPK.AttributeName
	return r, true
}

func foreignKeyTo(e *schema.Entity, target string) *schema.Attribute {
	for i := range e.Attributes {
		a := &e.Attributes[i]
		if a.IsForeignKey && strings.EqualFold(a.ReferencesEntity, target) {
			return a
		}
	}
	return nil
}

// matchPair finds a relationship over the same two attributes in either direction
func matchPair(rels []schema.Relationship, r schema.Relationship) (int, bool) {
	reversed := schema.Relationship{
		FromEntity: r.ToEntity, FromAttribute: r.ToAttribute,
		ToEntity: r.FromEntity, ToAttribute: r.FromAttribute,
	}
	for i, existing := range rels {
		if existing.Key() == r.Key() || existing.Key() == reversed.Key() {
			return i, true
		}
	}
	return 0, false
}
