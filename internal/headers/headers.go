// Package headers maps raw spreadsheet headers onto the logical fields of an attribute row.
package headers

import (
	"strings"

	"github.com/tordrt/ldmgen/internal/schema"
)

// Field is a logical column of an attribute row
type Field string

// Logical fields, in resolution order
const (
	Domain               Field = "domain"
	SubDomain            Field = "subDomain"
	EntityName           Field = "entityName"
	EntityDescription    Field = "entityDescription"
	AttributeName        Field = "attributeName"
	AttributeDescription Field = "attributeDescription"
	DataType             Field = "dataType"
	IsPrimaryKey         Field = "isPrimaryKey"
	IsForeignKey         Field = "isForeignKey"
	References           Field = "references"
	Description          Field = "description"
	Nullable             Field = "nullable"
	IsUnique             Field = "isUnique"
)

// Fields lists every logical field in resolution order
var Fields = []Field{
	Domain, SubDomain, EntityName, EntityDescription, AttributeName, AttributeDescription,
	DataType, IsPrimaryKey, IsForeignKey, References, Description, Nullable, IsUnique,
}

// Required are the fields a sheet must resolve to be usable
var Required = []Field{EntityName, AttributeName}

// Synonyms holds the accepted header spellings per field, most preferred first.
// Entries are already normalised.
var Synonyms = map[Field][]string{
	Domain:    {"domain", "business domain", "data domain", "subject area"},
	SubDomain: {"sub domain", "subdomain", "sub-domain", "sub_domain", "sub area"},
	EntityName: {
		"entity name", "entity", "table name", "table", "entity_name", "table_name",
		"object name", "object",
	},
	EntityDescription: {
		"entity description", "table description", "entity_description", "table_description",
		"entity definition", "table comment",
	},
	AttributeName: {
		"attribute name", "attribute", "column name", "column", "field name", "field",
		"attribute_name", "column_name", "field_name",
	},
	AttributeDescription: {
		"attribute description", "column description", "field description",
		"attribute_description", "column_description", "attribute definition", "column comment",
	},
	DataType: {
		"data type", "datatype", "type", "data_type", "column type", "attribute type", "field type",
	},
	IsPrimaryKey: {
		"primary key", "is primary key", "pk", "is_pk", "primary_key", "is_primary_key", "key",
	},
	IsForeignKey: {
		"foreign key", "is foreign key", "fk", "is_fk", "foreign_key", "is_foreign_key",
	},
	References: {
		"references", "reference", "referenced table", "ref", "references table",
		"foreign key reference", "fk reference", "referenced column", "target",
	},
	Description: {
		"description", "comments", "comment", "notes", "definition", "business definition",
	},
	Nullable: {
		"nullable", "is nullable", "null", "allow null", "allows nulls", "optional",
		"is_nullable", "null?",
	},
	IsUnique: {"unique", "is unique", "is_unique", "unique key"},
}

// Normalize lower-cases a header, trims it and collapses inner whitespace
func Normalize(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// Resolution is the field map of one sheet
type Resolution struct {
	headers map[Field]string
}

// Resolve matches raw headers against the synonym lists. For each field the
// earliest synonym present wins; among equal headers the first column wins.
// A header is claimed by at most one field.
func Resolve(raw []string) Resolution {
	r := Resolution{headers: make(map[Field]string)}

	byNorm := make(map[string]string, len(raw))
	for _, h := range raw {
		n := Normalize(h)
		if _, exists := byNorm[n]; !exists {
			byNorm[n] = h
		}
	}

	claimed := make(map[string]bool)
	for _, f := range Fields {
		for _, syn := range Synonyms[f] {
			h, ok := byNorm[syn]
			if !ok || claimed[h] {
				continue
			}
			r.headers[f] = h
			claimed[h] = true
			break
		}
	}
	return r
}

// Header returns the raw header resolved for f
func (r Resolution) Header(f Field) (string, bool) {
	h, ok := r.headers[f]
	return h, ok
}

// Resolved reports whether f has a header
func (r Resolution) Resolved(f Field) bool {
	_, ok := r.headers[f]
	return ok
}

// Unresolved lists the fields without a header, in resolution order
func (r Resolution) Unresolved() []Field {
	var out []Field
	for _, f := range Fields {
		if !r.Resolved(f) {
			out = append(out, f)
		}
	}
	return out
}

// Missing lists the required fields without a header
func (r Resolution) Missing() []Field {
	var out []Field
	for _, f := range Required {
		if !r.Resolved(f) {
			out = append(out, f)
		}
	}
	return out
}

// Value returns the row's cell for f, or nil when f is unresolved
func (r Resolution) Value(row schema.RawRow, f Field) any {
	h, ok := r.headers[f]
	if !ok {
		return nil
	}
	return row.Values[h]
}
