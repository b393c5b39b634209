package schema

import (
	"strings"
)

// Logical types of the LDM
const (
	LogicalText    = "TEXT"
	LogicalNumber  = "NUMBER"
	LogicalDate    = "DATE"
	LogicalBoolean = "BOOLEAN"
)

// Provenance confidences
const (
	ConfidenceExplicit = 1.0
	ConfidenceInferred = 0.7
	ConfidenceAbsent   = 0.0
)

// IsLogicalType reports whether t is a member of the closed logical type set
func IsLogicalType(t string) bool {
	switch strings.ToUpper(strings.TrimSpace(t)) {
	case LogicalText, LogicalNumber, LogicalDate, LogicalBoolean:
		return true
	}
	return false
}

// BaseType upper-cases a physical type and strips any length or precision arguments
func BaseType(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

// LogicalType maps a physical type onto {TEXT, NUMBER, DATE, BOOLEAN}.
// Anything unrecognised is TEXT.
func LogicalType(physical string) string {
	base := BaseType(physical)
	switch base {
	case LogicalText, LogicalNumber, LogicalDate, LogicalBoolean:
		return base
	case "INTEGER", "INT", "INT2", "INT4", "INT8", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT",
		"DECIMAL", "NUMERIC", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION", "REAL",
		"MONEY", "SERIAL", "BIGSERIAL", "SMALLSERIAL":
		return LogicalNumber
	case "TIMESTAMP", "TIMESTAMPTZ", "DATETIME", "TIME", "TIMETZ", "INTERVAL":
		return LogicalDate
	case "BOOL", "BIT":
		return LogicalBoolean
	}
	switch {
	case strings.HasPrefix(base, "TIMESTAMP"), strings.HasPrefix(base, "TIME "):
		return LogicalDate
	case strings.HasSuffix(base, "INT"):
		return LogicalNumber
	}
	return LogicalText
}

// EffectiveLogicalType is the model-proposed logical type when valid,
// otherwise the mapping of the physical type
func (a Attribute) EffectiveLogicalType() string {
	if IsLogicalType(a.LLMLogicalType) {
		return strings.ToUpper(strings.TrimSpace(a.LLMLogicalType))
	}
	return LogicalType(a.DataType)
}

// EffectiveDescription prefers the input description over the model's
func (a Attribute) EffectiveDescription() string {
	if strings.TrimSpace(a.Description) != "" {
		return CleanText(a.Description)
	}
	return CleanText(a.LLMDescription)
}

// EffectiveDescription prefers the input description over the model's
func (e *Entity) EffectiveDescription() string {
	if strings.TrimSpace(e.Description) != "" {
		return CleanText(e.Description)
	}
	return CleanText(e.LLMDescription)
}

// CleanText collapses all whitespace runs, newlines included, to single spaces
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ShouldReplace arbitrates every confidence-gated overwrite.
// Locked (explicit) values are never replaced; otherwise the challenger
// must be strictly more confident than the incumbent.
func ShouldReplace(locked bool, incumbent, challenger float64) bool {
	if locked {
		return false
	}
	return challenger > incumbent
}

// PKLocked reports whether the attribute's primary-key flag came from the input
func (a Attribute) PKLocked() bool { return a.PKSource == PKExplicit }

// FKLocked reports whether the attribute's foreign-key flag came from the input
func (a Attribute) FKLocked() bool {
	return a.FKSource == FKExplicit || a.FKSource == FKExplicitReference
}
