// Package normalize turns raw sheet rows into deduplicated attributes with clean names and types.
package normalize

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tordrt/ldmgen/internal/headers"
	"github.com/tordrt/ldmgen/internal/schema"
)

// Normalizer converts sheets into attributes
type Normalizer struct {
	logger *slog.Logger
	diag   *schema.Diagnostics
}

// New creates a Normalizer. A nil logger uses slog.Default().
func New(logger *slog.Logger, diag *schema.Diagnostics) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger, diag: diag}
}

// Normalize resolves each sheet's headers and converts its rows. Sheets without
// entity and attribute name columns are skipped; if none resolves the result is
// ErrSchemaMissing. Duplicate (entity, attribute) pairs keep the first row.
func (n *Normalizer) Normalize(sheets []schema.Sheet) ([]schema.Attribute, error) {
	var (
		out      []schema.Attribute
		seen     = make(map[string]schema.Attribute)
		resolved int
	)

	for _, sheet := range sheets {
		res := headers.Resolve(sheet.Headers)
		if missing := res.Missing(); len(missing) > 0 {
			n.logger.Warn("skipping sheet without required headers", "sheet", sheet.Name, "missing", missing)
			n.diag.Warn(schema.StageHeaders, schema.KindSheetSkipped, "sheet %q lacks %v", sheet.Name, missing)
			continue
		}
		resolved++
		n.logger.Debug("resolved headers", "sheet", sheet.Name, "unresolved", res.Unresolved())

		for _, row := range sheet.Rows {
			attr, ok := n.convert(res, row)
			if !ok {
				continue
			}
			if first, dup := seen[attr.Key()]; dup {
				n.diag.Warn(schema.StageNormalize, schema.KindRowDropped,
					"duplicate %s.%s at %s, keeping %s", attr.EntityName, attr.AttributeName,
					location(attr), location(first))
				continue
			}
			seen[attr.Key()] = attr
			out = append(out, attr)
		}
	}

	if resolved == 0 {
		return nil, schema.ErrSchemaMissing
	}
	n.logger.Info("normalised attributes", "sheets", len(sheets), "attributes", len(out))
	return out, nil
}

func (n *Normalizer) convert(res headers.Resolution, row schema.RawRow) (schema.Attribute, bool) {
	text := func(f headers.Field) string { return cellText(res.Value(row, f)) }

	attr := schema.Attribute{
		EntityName:    SanitizeName(text(headers.EntityName)),
		AttributeName: SanitizeName(text(headers.AttributeName)),
		SourceSheet:   row.SourceSheet,
		SourceRow:     row.SourceRow,
	}
	if attr.EntityName == "" || attr.AttributeName == "" {
		n.diag.Warn(schema.StageNormalize, schema.KindRowDropped, "%s: empty entity or attribute name", location(attr))
		return attr, false
	}

	attr.Domain = text(headers.Domain)
	attr.SubDomain = text(headers.SubDomain)
	attr.EntityDescription = schema.CleanText(text(headers.EntityDescription))
	attr.Description = schema.CleanText(text(headers.AttributeDescription))
	if attr.Description == "" {
		attr.Description = schema.CleanText(text(headers.Description))
	}

	if ref := text(headers.References); ref != "" {
		if entity, attribute, ok := ParseReference(ref); ok {
			attr.ReferencesEntity, attr.ReferencesAttribute = entity, attribute
		} else {
			attr.RawReferences = ref
		}
	}

	attr.IsPrimaryKey = ParseBool(res.Value(row, headers.IsPrimaryKey), false)
	attr.IsForeignKey = ParseBool(res.Value(row, headers.IsForeignKey), false)
	attr.IsUnique = ParseBool(res.Value(row, headers.IsUnique), false)
	attr.Nullable = ParseBool(res.Value(row, headers.Nullable), true)

	attr.DataType = NormalizeType(text(headers.DataType))
	o := ApplyTypeRules(attr.AttributeName, attr.DataType)
	if o.Rule == 0 && attr.DataType == DefaultType {
		o = ApplyDescriptionRules(attr.Description, attr.DataType)
	}
	if o.Changed() {
		n.logger.Debug("type override", "attribute", attr.Key(), "from", attr.DataType, "to", o.Type, "reason", o.Reason)
		attr.OriginalDataType = attr.DataType
		attr.DataType = o.Type
		attr.TypeOverrideReason = o.Reason
	}
	return attr, true
}

func location(a schema.Attribute) string {
	if a.SourceSheet == "" {
		return fmt.Sprintf("row %d", a.SourceRow)
	}
	return fmt.Sprintf("%s row %d", strings.TrimSpace(a.SourceSheet), a.SourceRow)
}
