// Package infer marks primary and foreign keys from naming and type heuristics.
package infer

import (
	"log/slog"
	"strings"

	"github.com/tordrt/ldmgen/internal/schema"
)

// Primary key rules, in precedence order
const (
	PKRuleExplicit = iota + 1
	PKRuleIDPattern
	PKRuleSuffixPattern
	PKRuleIDType
)

// Foreign key rules, in precedence order
const (
	FKRuleExplicit = iota + 1
	FKRuleExplicitReference
	FKRulePattern
	FKRulePrefixMatch
)

// DefaultTargetAttribute is used when a referenced entity has no primary key
const DefaultTargetAttribute = "id"

// Inferencer applies the key rules to a flat attribute list
type Inferencer struct {
	logger *slog.Logger
	diag   *schema.Diagnostics
}

// New creates an Inferencer. A nil logger uses slog.Default().
func New(logger *slog.Logger, diag *schema.Diagnostics) *Inferencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inferencer{logger: logger, diag: diag}
}

// entityIndex groups attribute positions by entity, preserving first-seen order
type entityIndex struct {
	names   []string
	members map[string][]int
}

func indexEntities(attrs []schema.Attribute) entityIndex {
	idx := entityIndex{members: make(map[string][]int)}
	for i, a := range attrs {
		k := strings.ToLower(a.EntityName)
		if _, ok := idx.members[k]; !ok {
			idx.names = append(idx.names, a.EntityName)
		}
		idx.members[k] = append(idx.members[k], i)
	}
	return idx
}

// Infer returns a copy of attrs with key flags and provenance set.
// Primary keys are decided for every entity before any foreign key.
func (in *Inferencer) Infer(attrs []schema.Attribute) []schema.Attribute {
	out := append([]schema.Attribute(nil), attrs...)
	idx := indexEntities(out)

	for _, entity := range idx.names {
		in.inferPrimaryKey(out, idx, entity)
	}
	for i := range out {
		in.inferForeignKey(out, idx, i)
	}
	return out
}

func (in *Inferencer) inferPrimaryKey(attrs []schema.Attribute, idx entityIndex, entity string) {
	members := idx.members[strings.ToLower(entity)]

	var explicit []int
	for _, i := range members {
		if attrs[i].IsPrimaryKey {
			explicit = append(explicit, i)
		}
	}
	if len(explicit) > 0 {
		in.assignPK(attrs, explicit, entity, PKRuleExplicit, schema.PKExplicit, schema.ConfidenceExplicit)
		return
	}

	rules := []struct {
		rule   int
		source schema.PKSource
		match  func(a schema.Attribute) bool
	}{
		{PKRuleIDPattern, schema.PKIDPattern, func(a schema.Attribute) bool { return matchesIDPattern(a.AttributeName, entity) }},
		{PKRuleSuffixPattern, schema.PKSuffixPattern, func(a schema.Attribute) bool { return matchesSuffixPattern(a.AttributeName, entity) }},
		{PKRuleIDType, schema.PKIDType, func(a schema.Attribute) bool {
			if a.IsForeignKey || a.ReferencesEntity != "" {
				return false
			}
			if other, _ := matchForeignEntity(a.AttributeName, entity, idx.names); other != "" {
				return false
			}
			return looksLikeKey(a)
		}},
	}

	for _, r := range rules {
		var hits []int
		for _, i := range members {
			if r.match(attrs[i]) {
				hits = append(hits, i)
			}
		}
		if len(hits) > 0 {
			in.assignPK(attrs, hits, entity, r.rule, r.source, schema.ConfidenceInferred)
			return
		}
	}
}

// assignPK marks the first hit and warns when the winning rule matched more than once
func (in *Inferencer) assignPK(attrs []schema.Attribute, hits []int, entity string, rule int, source schema.PKSource, confidence float64) {
	winner := &attrs[hits[0]]
	winner.IsPrimaryKey = true
	winner.PKSource = source
	winner.PKConfidence = confidence

	if len(hits) > 1 {
		names := make([]string, 0, len(hits))
		for _, i := range hits {
			names = append(names, attrs[i].AttributeName)
		}
		in.diag.Warn(schema.StageInfer, schema.KindAmbiguousPrimaryKey,
			"%s: pk rule %d matched %s, keeping %s", entity, rule, strings.Join(names, ", "), winner.AttributeName)
		for _, i := range hits[1:] {
			attrs[i].IsPrimaryKey = false
			attrs[i].PKSource = ""
			attrs[i].PKConfidence = schema.ConfidenceAbsent
		}
	}
	in.logger.Debug("primary key", "entity", entity, "attribute", winner.AttributeName, "rule", rule, "source", source)
}

func (in *Inferencer) inferForeignKey(attrs []schema.Attribute, idx entityIndex, i int) {
	a := &attrs[i]

	switch {
	case a.IsForeignKey:
		a.FKSource = schema.FKExplicit
		a.FKConfidence = schema.ConfidenceExplicit
		if a.ReferencesEntity == "" {
			if other, _ := matchForeignEntity(a.AttributeName, a.EntityName, idx.names); other != "" {
				a.ReferencesEntity = other
				a.ReferencesAttribute = targetAttribute(attrs, idx, other)
			}
		}
		if a.ReferencesEntity == "" {
			in.diag.Warn(schema.StageInfer, schema.KindUnresolvedForeignKey,
				"%s.%s is declared a foreign key without a resolvable target", a.EntityName, a.AttributeName)
			a.IsForeignKey = false
			a.FKSource = ""
			a.FKConfidence = schema.ConfidenceAbsent
		}
		return
	case a.ReferencesEntity != "":
		a.IsForeignKey = true
		a.FKSource = schema.FKExplicitReference
		a.FKConfidence = schema.ConfidenceExplicit
		if a.ReferencesAttribute == "" {
			a.ReferencesAttribute = targetAttribute(attrs, idx, a.ReferencesEntity)
		}
		return
	case a.IsPrimaryKey:
		return
	}

	other, rule := matchForeignEntity(a.AttributeName, a.EntityName, idx.names)
	if other == "" {
		return
	}
	a.IsForeignKey = true
	a.ReferencesEntity = other
	a.ReferencesAttribute = targetAttribute(attrs, idx, other)
	a.FKConfidence = schema.ConfidenceInferred
	if rule == FKRulePattern {
		a.FKSource = schema.FKPattern
	} else {
		a.FKSource = schema.FKPrefixMatch
	}
	in.logger.Debug("foreign key", "attribute", a.Key(), "target", other, "rule", rule)
}

// targetAttribute is the referenced entity's primary key, or DefaultTargetAttribute
func targetAttribute(attrs []schema.Attribute, idx entityIndex, entity string) string {
	for _, i := range idx.members[strings.ToLower(entity)] {
		if attrs[i].IsPrimaryKey {
			return attrs[i].AttributeName
		}
	}
	return DefaultTargetAttribute
}

// matchesIDPattern is pk rule 2: id, <entity>_id or <entity>id
func matchesIDPattern(name, entity string) bool {
	n, e := strings.ToLower(name), strings.ToLower(entity)
	return n == "id" || n == e+"_id" || n == e+"id"
}

// matchesSuffixPattern is pk rule 3: an id suffix whose prefix is empty or
// names the entity, ignoring separators and a plural s
func matchesSuffixPattern(name, entity string) bool {
	prefix, ok := stripIDSuffix(name)
	if !ok {
		return false
	}
	if prefix == "" {
		return true
	}
	p, e := squash(prefix), squash(entity)
	return p == e || p+"s" == e || p == strings.TrimSuffix(e, "s")
}

// looksLikeKey is pk rule 4
func looksLikeKey(a schema.Attribute) bool {
	t := strings.ToUpper(a.DataType)
	return strings.Contains(t, "INT") || strings.Contains(t, "SERIAL") || strings.Contains(t, "NUMBER") ||
		strings.Contains(strings.ToLower(a.AttributeName), "id")
}

// matchForeignEntity applies fk rules 3 and 4 and returns the referenced entity
// and the rule that bound it. The attribute's own entity never matches.
func matchForeignEntity(name, self string, entities []string) (string, int) {
	n := strings.ToLower(name)
	for _, other := range entities {
		if strings.EqualFold(other, self) {
			continue
		}
		o := strings.ToLower(other)
		if n == o+"_id" || n == o+"id" || n == o+"_fk" || n == "fk_"+o {
			return other, FKRulePattern
		}
	}

	prefix, ok := stripIDSuffix(name)
	if !ok || prefix == "" {
		return "", 0
	}
	p := strings.ToLower(prefix)
	for _, other := range entities {
		if strings.EqualFold(other, self) {
			continue
		}
		o := strings.ToLower(other)
		if p == o || p == o+"s" || p+"s" == o || p == strings.TrimSuffix(o, "s") {
			return other, FKRulePrefixMatch
		}
	}
	return "", 0
}

// stripIDSuffix removes a trailing "_id" or "id" and any separator left behind
func stripIDSuffix(name string) (string, bool) {
	n := strings.ToLower(name)
	if !strings.HasSuffix(n, "id") {
		return "", false
	}
	return strings.TrimRight(name[:len(n)-2], "_-"), true
}

func squash(s string) string {
	return strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(s))
}
