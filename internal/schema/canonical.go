package schema

import (
	"encoding/json"
	"sort"
	"time"
)

// CanonicalModel is the stable JSON form of a LogicalModel written as logical.json
type CanonicalModel struct {
	SourceName    string                     `json:"sourceName"`
	GeneratedAt   string                     `json:"generatedAt"`
	Entities      map[string]CanonicalEntity `json:"entities"`
	Relationships []Relationship             `json:"relationships"`
}

// CanonicalEntity is one entity of the canonical model
type CanonicalEntity struct {
	Description string               `json:"description,omitempty"`
	Attributes  []CanonicalAttribute `json:"attributes"`
}

// CanonicalAttribute is one attribute of the canonical model
type CanonicalAttribute struct {
	Name             string `json:"name"`
	LogicalType      string `json:"logicalType"`
	OriginalDataType string `json:"_originalDataType,omitempty"`
	IsPrimaryKey     bool   `json:"isPrimaryKey"`
	IsForeignKey     bool   `json:"isForeignKey"`
	Nullable         bool   `json:"nullable"`
	IsUnique         bool   `json:"isUnique"`
	Description      string `json:"description,omitempty"`
	IsDerived        bool   `json:"isDerived,omitempty"`
	BusinessRule     string `json:"businessRule,omitempty"`
	References       string `json:"references,omitempty"`
}

// Canonical converts the model to its stable JSON form.
// Primary keys are reported non-nullable and never separately unique.
func (m *LogicalModel) Canonical() CanonicalModel {
	out := CanonicalModel{
		SourceName:    m.SourceName,
		GeneratedAt:   m.GeneratedAt.UTC().Format(time.RFC3339),
		Entities:      make(map[string]CanonicalEntity, len(m.Order)),
		Relationships: make([]Relationship, 0, len(m.Relationships)),
	}

	for _, e := range m.OrderedEntities() {
		ce := CanonicalEntity{
			Description: e.EffectiveDescription(),
			Attributes:  make([]CanonicalAttribute, 0, len(e.Attributes)),
		}
		for _, a := range e.Attributes {
			ca := CanonicalAttribute{
				Name:             a.AttributeName,
				LogicalType:      a.EffectiveLogicalType(),
				OriginalDataType: BaseType(a.DataType),
				IsPrimaryKey:     a.IsPrimaryKey,
				IsForeignKey:     a.IsForeignKey,
				Nullable:         a.Nullable && !a.IsPrimaryKey,
				IsUnique:         a.IsUnique && !a.IsPrimaryKey,
				Description:      a.EffectiveDescription(),
				IsDerived:        a.LLMIsDerived,
				BusinessRule:     CleanText(a.LLMBusinessRule),
			}
			if a.IsForeignKey && a.ReferencesEntity != "" {
				ca.References = a.ReferencesEntity + "." + a.ReferencesAttribute
			}
			ce.Attributes = append(ce.Attributes, ca)
		}
		out.Entities[e.Name] = ce
	}

	for _, r := range m.Relationships {
		r.Name = CleanText(r.Name)
		r.Description = CleanText(r.Description)
		out.Relationships = append(out.Relationships, r)
	}
	sort.SliceStable(out.Relationships, func(i, j int) bool {
		return out.Relationships[i].Key() < out.Relationships[j].Key()
	})

	return out
}

// MarshalCanonical renders logical.json; map keys are emitted sorted
func MarshalCanonical(m *LogicalModel) ([]byte, error) {
	data, err := json.MarshalIndent(m.Canonical(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
