// Package enhance improves attribute metadata and builds logical annotations with a language model.
// Every model failure degrades to returning the input unchanged.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tordrt/ldmgen/internal/config"
	"github.com/tordrt/ldmgen/internal/llm"
	"github.com/tordrt/ldmgen/internal/normalize"
	"github.com/tordrt/ldmgen/internal/schema"
)

// Enhancer runs metadata and logical model enhancement against one client.
// Batches are sent one at a time.
type Enhancer struct {
	client  llm.Client
	cfg     config.LLMConfig
	logger  *slog.Logger
	diag    *schema.Diagnostics
	decode  decoder
	retrier llm.Retrier

	initTried bool
	disabled  bool
}

// New creates an Enhancer. A nil client disables enhancement.
func New(client llm.Client, cfg config.LLMConfig, logger *slog.Logger, diag *schema.Diagnostics) *Enhancer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = config.Default().LLM.BatchSize
	}
	return &Enhancer{
		client: client,
		cfg:    cfg,
		logger: logger,
		diag:   diag,
		decode: newDecoder(),
		retrier: llm.Retrier{
			MaxRetries: cfg.MaxRetries,
			Delay:      cfg.RetryDelay(),
			Timeout:    cfg.Timeout(),
			Logger:     logger,
		},
		disabled: client == nil,
	}
}

// Available reports whether the enhancer will still talk to the model
func (e *Enhancer) Available() bool { return !e.disabled }

// ready lazily initialises the client once
func (e *Enhancer) ready(ctx context.Context) bool {
	if e.disabled {
		return false
	}
	if e.client.Ready() {
		return true
	}
	if e.initTried {
		e.unavailable(llm.ErrNotReady)
		return false
	}
	e.initTried = true
	if err := e.client.Init(ctx); err != nil {
		e.unavailable(err)
		return false
	}
	if !e.client.Ready() {
		e.unavailable(llm.ErrNotReady)
		return false
	}
	return true
}

// unavailable records the outage once and disables the enhancer for the run
func (e *Enhancer) unavailable(err error) {
	if e.disabled {
		return
	}
	e.disabled = true
	e.logger.Warn("llm unavailable, continuing without enhancement", "error", err)
	e.diag.Error(schema.StageEnhance, schema.KindLLMUnavailable, "%v", err)
}

// send runs one request through the retry policy and decodes it with parse
func (e *Enhancer) send(ctx context.Context, name, prompt string, parse func([]byte) error) error {
	return e.retrier.Do(ctx, name, func(ctx context.Context) error {
		raw, err := e.client.Send(ctx, prompt)
		if err != nil {
			return err
		}
		return parse(raw)
	})
}

// failed classifies an exhausted request. It reports whether the run should stop calling the model.
func (e *Enhancer) failed(name string, err error) bool {
	if errors.Is(err, llm.ErrMalformedResponse) {
		if errors.Is(err, errBatchLength) {
			e.diag.Warn(schema.StageEnhance, schema.KindLLMBatchLength, "%s: %v", name, err)
		}
		e.logger.Warn("llm batch failed, keeping input", "batch", name, "error", err)
		e.diag.Error(schema.StageEnhance, schema.KindLLMBatchFailed, "%s: %v", name, err)
		return false
	}
	e.unavailable(err)
	return true
}

// EnhanceAttributes reviews attributes in batches and merges accepted suggestions.
// The returned slice has the same length and order as attrs.
func (e *Enhancer) EnhanceAttributes(ctx context.Context, attrs []schema.Attribute) []schema.Attribute {
	out := append([]schema.Attribute(nil), attrs...)
	if len(out) == 0 || !e.ready(ctx) {
		return out
	}

	summary := schemaSummary(out)
	batches := (len(out) + e.cfg.BatchSize - 1) / e.cfg.BatchSize
	for b := 0; b < batches; b++ {
		start := b * e.cfg.BatchSize
		end := min(start+e.cfg.BatchSize, len(out))
		name := fmt.Sprintf("metadata batch %d/%d", b+1, batches)

		prompt, err := metadataPrompt(summary, out[start:end])
		if err != nil {
			e.failed(name, fmt.Errorf("%w: %w", llm.ErrMalformedResponse, err))
			continue
		}

		var resp metadataResponse
		err = e.send(ctx, name, prompt, func(raw []byte) error {
			var derr error
			resp, derr = e.decode.metadata(raw, end-start)
			return derr
		})
		if err != nil {
			if e.failed(name, err) {
				break
			}
			continue
		}

		for j, s := range resp.Columns {
			e.mergeColumn(out, start+j, s)
		}
		e.logger.Info("metadata batch enhanced", "batch", name, "attributes", end-start)
	}

	e.enforceSinglePK(out)
	return out
}

// mergeColumn applies one suggestion to out[i] under the merge policy
func (e *Enhancer) mergeColumn(out []schema.Attribute, i int, s ColumnSuggestion) {
	a := &out[i]

	if name := normalize.SanitizeName(s.NormalizedColumnName); name != "" && name != a.AttributeName {
		if clash := findAttribute(out, a.EntityName, name); clash >= 0 && clash != i {
			e.diag.Warn(schema.StageEnhance, schema.KindLLMMergeRejected,
				"rename %s.%s to %s clashes with an existing attribute", a.EntityName, a.AttributeName, name)
		} else {
			renameReferences(out, a.EntityName, a.AttributeName, name)
			if a.OriginalName == "" {
				a.OriginalName = a.AttributeName
			}
			a.AttributeName = name
		}
	}

	if s.CorrectedDataType != "" && s.DataTypeConfidence >= e.cfg.MinConfidence {
		if t := normalize.NormalizeType(s.CorrectedDataType); t != a.DataType {
			if a.OriginalDataType == "" {
				a.OriginalDataType = a.DataType
			}
			a.DataType = t
		}
	}

	if d := schema.CleanText(s.EnhancedDescription); d != "" {
		if a.Description == "" || s.DescriptionQuality == QualityMissing || s.DescriptionQuality == QualityNeedsImprovement {
			a.Description = d
		}
	}
	a.LLMDescriptionQuality = s.DescriptionQuality
	a.LLMIssues = nonEmpty(s.Issues)
	a.LLMSuggestions = nonEmpty(s.Suggestions)

	if s.IsPrimaryKey != a.IsPrimaryKey && schema.ShouldReplace(a.PKLocked(), a.PKConfidence, s.PKConfidence) {
		if s.IsPrimaryKey && a.IsForeignKey {
			e.diag.Warn(schema.StageEnhance, schema.KindLLMMergeRejected, "%s.%s is a foreign key, not making it a primary key", a.EntityName, a.AttributeName)
		} else {
			a.IsPrimaryKey = s.IsPrimaryKey
			a.PKSource = schema.PKLLM
			a.PKConfidence = s.PKConfidence
		}
	}

	if s.IsForeignKey != a.IsForeignKey && schema.ShouldReplace(a.FKLocked(), a.FKConfidence, s.FKConfidence) {
		e.mergeForeignKey(a, s)
	}
}

func (e *Enhancer) mergeForeignKey(a *schema.Attribute, s ColumnSuggestion) {
	if !s.IsForeignKey {
		a.IsForeignKey = false
		a.ReferencesEntity, a.ReferencesAttribute = "", ""
		a.FKSource = schema.FKLLM
		a.FKConfidence = s.FKConfidence
		return
	}

	target := normalize.SanitizeName(s.ReferencesEntity)
	switch {
	case target == "":
		e.diag.Warn(schema.StageEnhance, schema.KindLLMMergeRejected, "%s.%s: foreign key without target", a.EntityName, a.AttributeName)
		return
	case a.IsPrimaryKey:
		e.diag.Warn(schema.StageEnhance, schema.KindLLMMergeRejected, "%s.%s is a primary key, not making it a foreign key", a.EntityName, a.AttributeName)
		return
	}

	a.IsForeignKey = true
	a.ReferencesEntity = target
	a.ReferencesAttribute = normalize.SanitizeName(s.ReferencesAttribute)
	if a.ReferencesAttribute == "" {
		a.ReferencesAttribute = "id"
	}
	a.FKSource = schema.FKLLM
	a.FKConfidence = s.FKConfidence
}

// enforceSinglePK keeps the strongest primary key per entity
func (e *Enhancer) enforceSinglePK(attrs []schema.Attribute) {
	best := make(map[string]int)
	for i, a := range attrs {
		if !a.IsPrimaryKey {
			continue
		}
		k := strings.ToLower(a.EntityName)
		j, seen := best[k]
		if !seen {
			best[k] = i
			continue
		}
		keep, drop := j, i
		if stronger(a, attrs[j]) {
			keep, drop = i, j
		}
		best[k] = keep
		e.diag.Warn(schema.StageEnhance, schema.KindAmbiguousPrimaryKey, "%s: keeping %s over %s",
			attrs[keep].EntityName, attrs[keep].AttributeName, attrs[drop].AttributeName)
		attrs[drop].IsPrimaryKey = false
		attrs[drop].PKSource = ""
		attrs[drop].PKConfidence = schema.ConfidenceAbsent
	}
}

func stronger(a, b schema.Attribute) bool {
	if a.PKLocked() != b.PKLocked() {
		return a.PKLocked()
	}
	return a.PKConfidence > b.PKConfidence
}

func findAttribute(attrs []schema.Attribute, entity, name string) int {
	key := schema.AttributeKey(entity, name)
	for i, a := range attrs {
		if a.Key() == key {
			return i
		}
	}
	return -1
}

// renameReferences points foreign keys at a renamed attribute
func renameReferences(attrs []schema.Attribute, entity, from, to string) {
	for i := range attrs {
		a := &attrs[i]
		if strings.EqualFold(a.ReferencesEntity, entity) && strings.EqualFold(a.ReferencesAttribute, from) {
			a.ReferencesAttribute = to
		}
	}
}

func nonEmpty(items []string) []string {
	var out []string
	for _, s := range items {
		if s = schema.CleanText(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EnhanceModel annotates entities and attributes of an assembled model and attaches
// proposed relationships to their holding entity. Existing values are never overwritten.
func (e *Enhancer) EnhanceModel(ctx context.Context, model *schema.LogicalModel) {
	if model == nil || len(model.Order) == 0 || !e.ready(ctx) {
		return
	}

	const name = "logical model"
	var resp modelResponse
	err := e.send(ctx, name, modelPrompt(model), func(raw []byte) error {
		var derr error
		resp, derr = e.decode.model(raw)
		return derr
	})
	if err != nil {
		e.failed(name, err)
		return
	}

	for _, s := range resp.Entities {
		entity := model.Entity(s.Name)
		if entity == nil {
			e.diag.Warn(schema.StageEnhance, schema.KindLLMMergeRejected, "unknown entity %q", s.Name)
			continue
		}
		mergeEntity(entity, s)
		for _, r := range s.Relationships {
			target := model.Entity(r.TargetEntity)
			if target == nil {
				e.diag.Warn(schema.StageEnhance, schema.KindLLMMergeRejected,
					"%s: relationship to unknown entity %q", entity.Name, r.TargetEntity)
				continue
			}
			addRelationship(entity, schema.LLMRelationship{
				TargetEntity:     target.Name,
				Cardinality:      schema.Cardinality(r.Cardinality),
				Optionality:      schema.Optionality(r.Optionality),
				RelationshipName: schema.CleanText(r.RelationshipName),
				Description:      schema.CleanText(r.Description),
			})
		}
	}
	e.logger.Info("logical model enhanced", "entities", len(resp.Entities))
}

func mergeEntity(entity *schema.Entity, s EntitySuggestion) {
	if entity.LLMDescription == "" {
		entity.LLMDescription = schema.CleanText(s.Description)
	}
	for _, as := range s.Attributes {
		a := entity.Attribute(as.Name)
		if a == nil {
			continue
		}
		if a.LLMLogicalType == "" {
			a.LLMLogicalType = as.LogicalType
		}
		if a.LLMDescription == "" {
			a.LLMDescription = schema.CleanText(as.Description)
		}
		if a.LLMBusinessRule == "" {
			a.LLMBusinessRule = schema.CleanText(as.BusinessRule)
		}
		a.LLMIsDerived = a.LLMIsDerived || as.IsDerived
	}
}

func addRelationship(entity *schema.Entity, r schema.LLMRelationship) {
	for _, existing := range entity.LLMRelationships {
		if strings.EqualFold(existing.TargetEntity, r.TargetEntity) && existing.Cardinality == r.Cardinality {
			return
		}
	}
	entity.LLMRelationships = append(entity.LLMRelationships, r)
}
