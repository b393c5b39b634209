package diagram

import (
	"fmt"

	"github.com/tordrt/ldmgen/internal/schema"
)

// FilterColumns trims an entity's attributes to at most limit for display.
// Primary keys are always kept, then foreign keys, then other attributes in
// their original order until the cap is reached. hidden counts the rest.
func FilterColumns(attrs []schema.Attribute, limit int) (kept []schema.Attribute, hidden int) {
	if limit <= 0 || len(attrs) <= limit {
		return attrs, 0
	}

	var pks, fks, others []schema.Attribute
	for _, a := range attrs {
		switch {
		case a.IsPrimaryKey:
			pks = append(pks, a)
		case a.IsForeignKey:
			fks = append(fks, a)
		default:
			others = append(others, a)
		}
	}

	kept = append(pks, fks...)
	for _, a := range others {
		if len(kept) >= limit {
			break
		}
		kept = append(kept, a)
	}
	return kept, len(attrs) - len(kept)
}

// moreColumnsLabel is the pseudo-row shown below a truncated entity
func moreColumnsLabel(hidden int) string {
	return fmt.Sprintf("… +%d more columns", hidden)
}
