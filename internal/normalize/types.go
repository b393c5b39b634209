package normalize

import (
	"strings"

	"github.com/tordrt/ldmgen/internal/schema"
)

// DefaultType is assigned when the input has no type
const DefaultType = "VARCHAR"

// physicalTypes folds common spellings onto one physical alphabet
var physicalTypes = map[string]string{
	"STRING": "VARCHAR", "TEXT": "VARCHAR", "CHAR": "VARCHAR", "VARCHAR": "VARCHAR",
	"VARCHAR2": "VARCHAR", "NVARCHAR": "VARCHAR", "NVARCHAR2": "VARCHAR", "NCHAR": "VARCHAR",
	"CHARACTER": "VARCHAR", "CHARACTER VARYING": "VARCHAR", "BPCHAR": "VARCHAR", "CLOB": "VARCHAR",
	"NTEXT": "VARCHAR", "TINYTEXT": "VARCHAR", "MEDIUMTEXT": "VARCHAR", "LONGTEXT": "VARCHAR",
	"STR": "VARCHAR", "ALPHANUMERIC": "VARCHAR", "ENUM": "VARCHAR",

	"INT": "INTEGER", "INTEGER": "INTEGER", "INT4": "INTEGER", "MEDIUMINT": "INTEGER", "SERIAL": "INTEGER",
	"BIGINT": "BIGINT", "INT8": "BIGINT", "BIGSERIAL": "BIGINT", "LONG": "BIGINT",
	"SMALLINT": "SMALLINT", "INT2": "SMALLINT", "TINYINT": "SMALLINT", "SMALLSERIAL": "SMALLINT",

	"DECIMAL": "DECIMAL", "NUMERIC": "DECIMAL", "NUMBER": "DECIMAL", "MONEY": "DECIMAL",
	"SMALLMONEY": "DECIMAL", "CURRENCY": "DECIMAL",
	"FLOAT": "FLOAT", "FLOAT4": "FLOAT", "REAL": "FLOAT",
	"DOUBLE": "DOUBLE", "FLOAT8": "DOUBLE", "DOUBLE PRECISION": "DOUBLE",

	"BOOL": "BOOLEAN", "BOOLEAN": "BOOLEAN", "BIT": "BOOLEAN", "YES/NO": "BOOLEAN", "FLAG": "BOOLEAN",

	"DATETIME": "TIMESTAMP", "DATETIME2": "TIMESTAMP", "SMALLDATETIME": "TIMESTAMP",
	"TIMESTAMP": "TIMESTAMP", "TIMESTAMPTZ": "TIMESTAMP", "TIMESTAMP WITH TIME ZONE": "TIMESTAMP",
	"TIMESTAMP WITHOUT TIME ZONE": "TIMESTAMP", "DATETIMEOFFSET": "TIMESTAMP",
	"DATE": "DATE", "TIME": "TIME", "TIMETZ": "TIME",

	"JSON": "JSON", "JSONB": "JSON",
	"UUID": "UUID", "GUID": "UUID", "UNIQUEIDENTIFIER": "UUID",
	"BINARY": "BINARY", "VARBINARY": "BINARY", "BLOB": "BINARY", "BYTEA": "BINARY", "IMAGE": "BINARY",
}

// NormalizeType upper-cases and trims a raw type and folds it onto the physical
// alphabet. Length and precision arguments are dropped for known types; unknown
// types pass through unchanged. A blank type becomes DefaultType.
func NormalizeType(raw string) string {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return DefaultType
	}
	if mapped, ok := physicalTypes[schema.BaseType(t)]; ok {
		return mapped
	}
	return t
}

// TypeClass groups physical types for rule applicability
type TypeClass int

// Type classes
const (
	ClassDefault TypeClass = iota
	ClassNumeric
	ClassTemporal
	ClassBoolean
	ClassOther
)

// ClassOf returns the class of a normalised physical type
func ClassOf(t string) TypeClass {
	switch schema.BaseType(t) {
	case "", "VARCHAR", "STRING", "TEXT":
		return ClassDefault
	case "INTEGER", "BIGINT", "SMALLINT", "DECIMAL", "FLOAT", "DOUBLE":
		return ClassNumeric
	case "DATE", "TIME", "TIMESTAMP":
		return ClassTemporal
	case "BOOLEAN":
		return ClassBoolean
	}
	return ClassOther
}

// Rule classes, used as type override reasons
const (
	ReasonDate    = "date_signal"
	ReasonID      = "id_signal"
	ReasonBoolean = "boolean_signal"
	ReasonString  = "string_signal"
	ReasonNumeric = "numeric_signal"

	descriptionReasonPrefix = "description_"
)

// Stable rule indices
const (
	RuleDate = iota + 1
	RuleID
	RuleBoolean
	RuleString
	RuleCount
	RuleNumeric
)

// TypeRule is one row of the name-driven type override table.
// A rule matches when the name matches any of its word lists and the current
// type falls in one of the classes the rule may replace.
type TypeRule struct {
	Index  int
	Class  string
	Target string

	Names      []string // whole name equals
	FirstWords []string // first word equals
	LastWords  []string // last word equals
	Words      []string // any word equals
	Prefixes   []string // any word starts with, and is longer
	Suffixes   []string // any word ends with, and is longer
	SkipLast   []string // never matches when the last word is one of these

	LastSuffixes []string // last word ends with, and is longer
	SuffixExcept []string // last word endings that never count as LastSuffixes


	AppliesTo []TypeClass
}

// TypeRules is evaluated in order; the first matching rule wins
var TypeRules = []TypeRule{
	{
		Index:  RuleDate,
		Class:  ReasonDate,
		Target: "TIMESTAMP",
		Words: []string{
			"date", "time", "timestamp", "datetime", "maturity", "expiry", "expiration", "expires",
			"created", "updated", "modified", "effective", "dob", "birthday",
		},
		Prefixes:  []string{"maturity", "expiry", "expiration", "created", "updated", "modified", "effective", "timestamp"},
		Suffixes:  []string{"datetime", "timestamp"},
		SkipLast:  []string{"id", "by", "flag", "code", "type", "status"},
		AppliesTo: []TypeClass{ClassDefault, ClassNumeric},
	},
	{
		Index:        RuleID,
		Class:        ReasonID,
		Target:       "VARCHAR",
		Names:        []string{"id"},
		LastWords:    []string{"id"},
		LastSuffixes: []string{"id"},
		SuffixExcept: []string{
			"aid", "void", "valid", "solid", "fluid", "liquid", "squid", "hybrid", "grid", "rapid",
			"acid", "humid", "bid", "mid", "kid", "lid", "did", "hid", "rid", "pyramid", "vivid",
			"lucid", "rigid", "timid", "tepid", "placid", "candid", "splendid", "orchid", "said",
			"android", "steroid", "tabloid",
		},
		AppliesTo:    []TypeClass{ClassDefault, ClassTemporal, ClassBoolean},
	},
	{
		Index:      RuleBoolean,
		Class:      ReasonBoolean,
		Target:     "BOOLEAN",
		Names:      []string{"active", "enabled"},
		FirstWords: []string{"is", "has", "can"},
		LastWords:  []string{"flag"},
		Words:      []string{"indicator"},
		Suffixes:   []string{"indicator"},
		AppliesTo:  []TypeClass{ClassDefault, ClassTemporal},
	},
	{
		Index:  RuleString,
		Class:  ReasonString,
		Target: "VARCHAR",
		Words: []string{
			"code", "type", "status", "country", "currency", "ticker", "isin", "cusip", "sedol",
			"symbol", "category", "zip", "postcode", "phone", "email",
		},
		Prefixes:  []string{"country", "currency"},
		Suffixes:  []string{"code", "type", "status"},
		AppliesTo: []TypeClass{ClassDefault, ClassNumeric, ClassTemporal},
	},
	{
		Index:     RuleCount,
		Class:     ReasonNumeric,
		Target:    "INTEGER",
		Words:     []string{"quantity", "qty", "count", "cnt"},
		Prefixes:  []string{"quantity"},
		AppliesTo: []TypeClass{ClassDefault},
	},
	{
		Index:  RuleNumeric,
		Class:  ReasonNumeric,
		Target: "DECIMAL",
		Words: []string{
			"amount", "amt", "price", "rate", "yield", "balance", "cost", "total", "percent",
			"pct", "ratio", "fee", "salary", "weight", "coupon", "spread", "notional",
		},
		Prefixes:  []string{"amount", "price", "balance", "percent"},
		Suffixes:  []string{"amount", "price", "balance", "total"},
		AppliesTo: []TypeClass{ClassDefault},
	},
}

// Override is the outcome of the type override table
type Override struct {
	Type   string
	Reason string
	Rule   int
}

// Changed reports whether the override altered the type
func (o Override) Changed() bool { return o.Reason != "" }

// ApplyTypeRules evaluates TypeRules against an attribute name. Rule is zero when
// no rule matched; Reason is set only when the type actually changed.
func ApplyTypeRules(name, current string) Override {
	return applyRules(Words(name), strings.ToLower(name), current, "")
}

// ApplyDescriptionRules scans description words with the same table at lower
// priority. Only exact word matches count and the identifier rule is skipped.
func ApplyDescriptionRules(description, current string) Override {
	words := Words(description)
	if len(words) == 0 {
		return Override{Type: current}
	}
	for _, rule := range TypeRules {
		if rule.Index == RuleID || !appliesTo(rule, current) {
			continue
		}
		if lastIn(words, rule.SkipLast) || !anyWordIn(words, rule.Words) {
			continue
		}
		return result(rule, current, descriptionReasonPrefix)
	}
	return Override{Type: current}
}

func applyRules(words []string, lowerName, current, reasonPrefix string) Override {
	for _, rule := range TypeRules {
		if !appliesTo(rule, current) || !nameMatches(rule, words, lowerName) {
			continue
		}
		return result(rule, current, reasonPrefix)
	}
	return Override{Type: current}
}

func result(rule TypeRule, current, reasonPrefix string) Override {
	o := Override{Type: current, Rule: rule.Index}
	if rule.Target != current {
		o.Type = rule.Target
		o.Reason = reasonPrefix + rule.Class
	}
	return o
}

func appliesTo(rule TypeRule, current string) bool {
	class := ClassOf(current)
	for _, c := range rule.AppliesTo {
		if c == class {
			return true
		}
	}
	return false
}

func nameMatches(rule TypeRule, words []string, lowerName string) bool {
	if len(words) == 0 || lastIn(words, rule.SkipLast) {
		return false
	}
	if contains(rule.Names, lowerName) || contains(rule.FirstWords, words[0]) ||
		contains(rule.LastWords, words[len(words)-1]) || anyWordIn(words, rule.Words) {
		return true
	}
	if last := words[len(words)-1]; hasLongerSuffix(last, rule.LastSuffixes) && !hasSuffix(last, rule.SuffixExcept) {
		return true
	}
	for _, w := range words {
		for _, p := range rule.Prefixes {
			if len(w) > len(p) && strings.HasPrefix(w, p) {
				return true
			}
		}
		for _, s := range rule.Suffixes {
			if len(w) > len(s) && strings.HasSuffix(w, s) {
				return true
			}
		}
	}
	return false
}

func hasLongerSuffix(w string, set []string) bool {
	for _, s := range set {
		if len(w) > len(s) && strings.HasSuffix(w, s) {
			return true
		}
	}
	return false
}

func hasSuffix(w string, set []string) bool {
	for _, s := range set {
		if strings.HasSuffix(w, s) {
			return true
		}
	}
	return false
}

func lastIn(words, set []string) bool {
	return len(words) > 0 && contains(set, words[len(words)-1])
}

func anyWordIn(words, set []string) bool {
	for _, w := range words {
		if contains(set, w) {
			return true
		}
	}
	return false
}

func contains(set []string, s string) bool {
	for _, x := range set {
		if x == s {
			return true
		}
	}
	return false
}
