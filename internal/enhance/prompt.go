package enhance

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tordrt/ldmgen/internal/schema"
)

// batchColumn is the per-attribute payload of a metadata prompt
type batchColumn struct {
	Entity      string `json:"entity"`
	Attribute   string `json:"attribute"`
	DataType    string `json:"dataType"`
	Description string `json:"description,omitempty"`
	PrimaryKey  bool   `json:"isPrimaryKey"`
	ForeignKey  bool   `json:"isForeignKey"`
	References  string `json:"references,omitempty"`
}

// schemaSummary lists every entity with its attributes on one line
func schemaSummary(attrs []schema.Attribute) string {
	var order []string
	cols := make(map[string][]string)
	for _, a := range attrs {
		if _, ok := cols[a.EntityName]; !ok {
			order = append(order, a.EntityName)
		}
		col := a.AttributeName + " " + a.DataType
		switch {
		case a.IsPrimaryKey:
			col += " pk"
		case a.IsForeignKey:
			col += " fk->" + a.ReferencesEntity
		}
		cols[a.EntityName] = append(cols[a.EntityName], col)
	}

	var sb strings.Builder
	for _, e := range order {
		sb.WriteString(e)
		sb.WriteString(": ")
		sb.WriteString(strings.Join(cols[e], ", "))
		sb.WriteString("\n")
	}
	return sb.String()
}

func metadataPrompt(summary string, batch []schema.Attribute) (string, error) {
	cols := make([]batchColumn, len(batch))
	for i, a := range batch {
		cols[i] = batchColumn{
			Entity:      a.EntityName,
			Attribute:   a.AttributeName,
			DataType:    a.DataType,
			Description: a.Description,
			PrimaryKey:  a.IsPrimaryKey,
			ForeignKey:  a.IsForeignKey,
		}
		if a.ReferencesEntity != "" {
			cols[i].References = a.ReferencesEntity + "." + a.ReferencesAttribute
		}
	}
	payload, err := json.MarshalIndent(cols, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode batch: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("You are reviewing column metadata of a proposed database schema.\n\n")
	sb.WriteString("Schema summary (every table, for cross-table reasoning):\n")
	sb.WriteString(summary)
	fmt.Fprintf(&sb, "\nReview the %d columns below. Answer with {\"columns\": [...]} holding exactly %d entries in the same order.\n", len(batch), len(batch))
	sb.WriteString("Each entry has these fields:\n")
	sb.WriteString("- normalizedColumnName: snake_case name, or the input name if it is fine\n")
	sb.WriteString("- correctedDataType: SQL data type, with dataTypeConfidence between 0 and 1\n")
	sb.WriteString("- enhancedDescription: one business sentence, with descriptionQuality one of excellent, good, needs_improvement, missing (rating the input description)\n")
	sb.WriteString("- isPrimaryKey with pkConfidence, isForeignKey with fkConfidence, referencesEntity and referencesAttribute for foreign keys\n")
	sb.WriteString("- issues and suggestions: lists of short strings\n\n")
	sb.WriteString("Columns:\n")
	sb.Write(payload)
	sb.WriteString("\n")
	return sb.String(), nil
}

func modelPrompt(model *schema.LogicalModel) string {
	var sb strings.Builder
	sb.WriteString("You are building a logical data model from a proposed database schema.\n\n")
	sb.WriteString("Entities and attributes:\n")
	for _, e := range model.OrderedEntities() {
		fmt.Fprintf(&sb, "Entity %s", e.Name)
		if d := e.EffectiveDescription(); d != "" {
			fmt.Fprintf(&sb, " (%s)", d)
		}
		sb.WriteString("\n")
		for _, a := range e.Attributes {
			fmt.Fprintf(&sb, "  - %s %s", a.AttributeName, a.DataType)
			if a.IsPrimaryKey {
				sb.WriteString(" pk")
			}
			if a.IsForeignKey {
				fmt.Fprintf(&sb, " fk->%s.%s", a.ReferencesEntity, a.ReferencesAttribute)
			}
			if d := a.EffectiveDescription(); d != "" {
				fmt.Fprintf(&sb, ": %s", d)
			}
			sb.WriteString("\n")
		}
	}
	sb.WriteString(`
Answer with this JSON shape:
{"entities": [{"name": "...", "description": "...",
  "attributes": [{"name": "...", "logicalType": "TEXT|NUMBER|DATE|BOOLEAN", "description": "...", "isDerived": false, "businessRule": "..."}],
  "relationships": [{"targetEntity": "...", "cardinality": "1-N|N-1|1-1", "optionality": "mandatory|optional", "relationshipName": "...", "description": "..."}]}]}
Use the entity and attribute names exactly as given. Relationships are read from the entity that holds them.
`)
	return sb.String()
}
