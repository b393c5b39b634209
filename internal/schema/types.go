package schema

import (
	"strings"
	"time"
)

// PKSource records which rule set an attribute's primary-key flag
type PKSource string

// Primary key provenance codes
const (
	PKExplicit      PKSource = "explicit"
	PKIDPattern     PKSource = "id_pattern"
	PKSuffixPattern PKSource = "suffix_pattern"
	PKIDType        PKSource = "id_type"
	PKLLM           PKSource = "llm"
)

// FKSource records which rule set an attribute's foreign-key flag
type FKSource string

// Foreign key provenance codes
const (
	FKExplicit          FKSource = "explicit"
	FKExplicitReference FKSource = "explicit_reference"
	FKPattern           FKSource = "pattern"
	FKPrefixMatch       FKSource = "prefix_match"
	FKLLM               FKSource = "llm"
)

// RawRow is a single spreadsheet row keyed by header string
type RawRow struct {
	Values      map[string]any
	SourceSheet string
	SheetNumber int
	SourceRow   int
}

// Sheet is one table of the input with its headers in column order
type Sheet struct {
	Name    string
	Index   int
	Headers []string
	Rows    []RawRow
}

// Attribute is the central per-column record carried from normalisation to assembly
type Attribute struct {
	Domain            string `json:"domain,omitempty"`
	SubDomain         string `json:"subDomain,omitempty"`
	EntityName        string `json:"entityName"`
	EntityDescription string `json:"entityDescription,omitempty"`
	AttributeName     string `json:"attributeName"`
	DataType          string `json:"dataType"`

	IsPrimaryKey        bool   `json:"isPrimaryKey"`
	IsForeignKey        bool   `json:"isForeignKey"`
	IsUnique            bool   `json:"isUnique"`
	ReferencesEntity    string `json:"referencesEntity,omitempty"`
	ReferencesAttribute string `json:"referencesAttribute,omitempty"`
	RawReferences       string `json:"rawReferences,omitempty"`
	Nullable            bool   `json:"nullable"`
	Description         string `json:"description,omitempty"`

	SourceSheet string `json:"sourceSheet,omitempty"`
	SourceRow   int    `json:"sourceRow,omitempty"`

	PKSource           PKSource `json:"pkSource,omitempty"`
	FKSource           FKSource `json:"fkSource,omitempty"`
	PKConfidence       float64  `json:"pkConfidence,omitempty"`
	FKConfidence       float64  `json:"fkConfidence,omitempty"`
	TypeOverrideReason string   `json:"typeOverrideReason,omitempty"`

	OriginalName     string `json:"originalName,omitempty"`
	OriginalDataType string `json:"originalDataType,omitempty"`

	LLMLogicalType        string   `json:"_llmLogicalType,omitempty"`
	LLMDescription        string   `json:"_llmDescription,omitempty"`
	LLMIsDerived          bool     `json:"_llmIsDerived,omitempty"`
	LLMBusinessRule       string   `json:"_llmBusinessRule,omitempty"`
	LLMDescriptionQuality string   `json:"_llmDescriptionQuality,omitempty"`
	LLMIssues             []string `json:"_llmIssues,omitempty"`
	LLMSuggestions        []string `json:"_llmSuggestions,omitempty"`
}

// Key returns the case-insensitive identity of the attribute
func (a Attribute) Key() string {
	return AttributeKey(a.EntityName, a.AttributeName)
}

// AttributeKey builds the identity used for deduplication and lookups
func AttributeKey(entity, attribute string) string {
	return strings.ToLower(entity) + "." + strings.ToLower(attribute)
}

// Cardinality of a relationship, read from the "from" side
type Cardinality string

// Supported cardinalities
const (
	OneToMany Cardinality = "1-N"
	ManyToOne Cardinality = "N-1"
	OneToOne  Cardinality = "1-1"
)

// Optionality of a relationship
type Optionality string

// Supported optionalities
const (
	Mandatory Optionality = "mandatory"
	Optional  Optionality = "optional"
)

// Relationship sources
const (
	RelationshipFromFK  = "fk"
	RelationshipFromLLM = "llm"
)

// Relationship is a value record naming both ends by entity and attribute
type Relationship struct {
	FromEntity    string      `json:"fromEntity"`
	FromAttribute string      `json:"fromAttribute"`
	ToEntity      string      `json:"toEntity"`
	ToAttribute   string      `json:"toAttribute"`
	Cardinality   Cardinality `json:"cardinality"`
	Optionality   Optionality `json:"optionality"`
	Name          string      `json:"name,omitempty"`
	Description   string      `json:"description,omitempty"`
	Source        string      `json:"source,omitempty"`
}

// Key identifies a relationship for de-duplication
func (r Relationship) Key() string {
	return strings.Join([]string{
		strings.ToLower(r.FromEntity), strings.ToLower(r.FromAttribute),
		strings.ToLower(r.ToEntity), strings.ToLower(r.ToAttribute),
	}, "|")
}

// LLMRelationship is a relationship proposal attached to an entity by model enhancement
type LLMRelationship struct {
	TargetEntity     string
	Cardinality      Cardinality
	Optionality      Optionality
	RelationshipName string
	Description      string
}

// Entity groups attributes under one name
type Entity struct {
	Name             string
	Description      string
	LLMDescription   string
	Attributes       []Attribute
	LLMRelationships []LLMRelationship
}

// Attribute returns a pointer to the named attribute, or nil
func (e *Entity) Attribute(name string) *Attribute {
	for i := range e.Attributes {
		if strings.EqualFold(e.Attributes[i].AttributeName, name) {
			return &e.Attributes[i]
		}
	}
	return nil
}

// PrimaryKey returns the entity's primary key attribute, or nil
func (e *Entity) PrimaryKey() *Attribute {
	for i := range e.Attributes {
		if e.Attributes[i].IsPrimaryKey {
			return &e.Attributes[i]
		}
	}
	return nil
}

// LogicalModel is the assembled model handed to the emitters
type LogicalModel struct {
	SourceName    string
	GeneratedAt   time.Time
	Entities      map[string]*Entity
	Order         []string
	Relationships []Relationship
}

// NewLogicalModel creates an empty model
func NewLogicalModel(sourceName string, generatedAt time.Time) *LogicalModel {
	return &LogicalModel{
		SourceName:  sourceName,
		GeneratedAt: generatedAt,
		Entities:    make(map[string]*Entity),
	}
}

// Entity looks an entity up by name, case-insensitively
func (m *LogicalModel) Entity(name string) *Entity {
	if e, ok := m.Entities[name]; ok {
		return e
	}
	for _, n := range m.Order {
		if strings.EqualFold(n, name) {
			return m.Entities[n]
		}
	}
	return nil
}

// AddEntity registers an entity, keeping first-seen order
func (m *LogicalModel) AddEntity(e *Entity) {
	if _, ok := m.Entities[e.Name]; !ok {
		m.Order = append(m.Order, e.Name)
	}
	m.Entities[e.Name] = e
}

// OrderedEntities returns entities in insertion order
func (m *LogicalModel) OrderedEntities() []*Entity {
	out := make([]*Entity, 0, len(m.Order))
	for _, n := range m.Order {
		out = append(out, m.Entities[n])
	}
	return out
}

// RelationshipsFrom returns relationships whose from-side is the named entity
func (m *LogicalModel) RelationshipsFrom(entity string) []Relationship {
	var out []Relationship
	for _, r := range m.Relationships {
		if strings.EqualFold(r.FromEntity, entity) {
			out = append(out, r)
		}
	}
	return out
}

// Stats summarises schema size for diagram settings
type Stats struct {
	TableCount         int
	TotalColumnCount   int
	MaxColumnsPerTable int
}

// Stats computes the size summary of the model
func (m *LogicalModel) Stats() Stats {
	s := Stats{TableCount: len(m.Order)}
	for _, e := range m.OrderedEntities() {
		n := len(e.Attributes)
		s.TotalColumnCount += n
		if n > s.MaxColumnsPerTable {
			s.MaxColumnsPerTable = n
		}
	}
	return s
}
