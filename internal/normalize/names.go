package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

var (
	invalidNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	repeatedUnder    = regexp.MustCompile(`_{2,}`)
)

// SanitizeName strips surrounding quotes, replaces characters outside
// [A-Za-z0-9_-] with underscores, collapses underscore runs and trims
// underscores from both ends. An empty result means the name is unusable.
func SanitizeName(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	s = strings.TrimSpace(s)
	s = invalidNameChars.ReplaceAllString(s, "_")
	s = repeatedUnder.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// ParseReference splits an "entity.attribute" reference once on the first dot.
// Both halves must survive sanitisation; anything else is not a reference.
func ParseReference(raw string) (entity, attribute string, ok bool) {
	left, right, found := strings.Cut(strings.TrimSpace(raw), ".")
	if !found {
		return "", "", false
	}
	entity, attribute = SanitizeName(left), SanitizeName(right)
	if entity == "" || attribute == "" {
		return "", "", false
	}
	return entity, attribute, true
}

// Words splits an identifier into lower-case words on separators and
// lower-to-upper case changes, so "customerId" and "customer_id" agree.
func Words(name string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(name)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

// cellText renders a cell as trimmed text
func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

// ParseBool coerces a cell to a boolean. Blank cells yield def; the values
// true, yes, 1, y, pk and fk (any case) are true; everything else is false.
func ParseBool(v any, def bool) bool {
	switch x := v.(type) {
	case nil:
		return def
	case bool:
		return x
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0
	}

	s := strings.ToLower(cellText(v))
	switch s {
	case "":
		return def
	case "true", "yes", "1", "y", "pk", "fk":
		return true
	}
	return false
}
