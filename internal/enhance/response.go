package enhance

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tordrt/ldmgen/internal/llm"
)

var errBatchLength = errors.New("batch length mismatch")

// Description quality ratings
const (
	QualityExcellent        = "excellent"
	QualityGood             = "good"
	QualityNeedsImprovement = "needs_improvement"
	QualityMissing          = "missing"
)

// ColumnSuggestion is the model's review of one attribute
type ColumnSuggestion struct {
	NormalizedColumnName string   `json:"normalizedColumnName"`
	CorrectedDataType    string   `json:"correctedDataType"`
	DataTypeConfidence   float64  `json:"dataTypeConfidence" validate:"gte=0,lte=1"`
	EnhancedDescription  string   `json:"enhancedDescription"`
	DescriptionQuality   string   `json:"descriptionQuality" validate:"omitempty,oneof=excellent good needs_improvement missing"`
	IsPrimaryKey         bool     `json:"isPrimaryKey"`
	PKConfidence         float64  `json:"pkConfidence" validate:"gte=0,lte=1"`
	IsForeignKey         bool     `json:"isForeignKey"`
	FKConfidence         float64  `json:"fkConfidence" validate:"gte=0,lte=1"`
	ReferencesEntity     string   `json:"referencesEntity"`
	ReferencesAttribute  string   `json:"referencesAttribute"`
	Issues               []string `json:"issues"`
	Suggestions          []string `json:"suggestions"`
}

type metadataResponse struct {
	Columns []ColumnSuggestion `json:"columns" validate:"required,dive"`
}

// EntitySuggestion is the model's view of one entity
type EntitySuggestion struct {
	Name          string                   `json:"name" validate:"required"`
	Description   string                   `json:"description"`
	Attributes    []AttributeSuggestion    `json:"attributes" validate:"dive"`
	Relationships []RelationshipSuggestion `json:"relationships" validate:"dive"`
}

// AttributeSuggestion is the model's logical typing of one attribute
type AttributeSuggestion struct {
	Name         string `json:"name" validate:"required"`
	LogicalType  string `json:"logicalType" validate:"omitempty,oneof=TEXT NUMBER DATE BOOLEAN"`
	Description  string `json:"description"`
	IsDerived    bool   `json:"isDerived"`
	BusinessRule string `json:"businessRule"`
}

// RelationshipSuggestion is a relationship proposed from the holding entity
type RelationshipSuggestion struct {
	TargetEntity     string `json:"targetEntity" validate:"required"`
	Cardinality      string `json:"cardinality" validate:"required,oneof=1-N N-1 1-1"`
	Optionality      string `json:"optionality" validate:"required,oneof=mandatory optional"`
	RelationshipName string `json:"relationshipName"`
	Description      string `json:"description"`
}

type modelResponse struct {
	Entities []EntitySuggestion `json:"entities" validate:"required,dive"`
}

// decoder unmarshals and validates model answers
type decoder struct {
	validate *validator.Validate
}

func newDecoder() decoder {
	return decoder{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (d decoder) metadata(raw json.RawMessage, want int) (metadataResponse, error) {
	var resp metadataResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, fmt.Errorf("%w: %w", llm.ErrMalformedResponse, err)
	}
	for i := range resp.Columns {
		resp.Columns[i].DescriptionQuality = strings.ToLower(strings.TrimSpace(resp.Columns[i].DescriptionQuality))
	}
	if err := d.validate.Struct(resp); err != nil {
		return resp, fmt.Errorf("%w: %w", llm.ErrMalformedResponse, err)
	}
	if len(resp.Columns) != want {
		return resp, fmt.Errorf("%w: %w: %d columns for %d attributes", llm.ErrMalformedResponse, errBatchLength, len(resp.Columns), want)
	}
	return resp, nil
}

func (d decoder) model(raw json.RawMessage) (modelResponse, error) {
	var resp modelResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return resp, fmt.Errorf("%w: %w", llm.ErrMalformedResponse, err)
	}
	for i := range resp.Entities {
		e := &resp.Entities[i]
		for j := range e.Attributes {
			e.Attributes[j].LogicalType = strings.ToUpper(strings.TrimSpace(e.Attributes[j].LogicalType))
		}
		for j := range e.Relationships {
			r := &e.Relationships[j]
			r.Cardinality = strings.ToUpper(strings.TrimSpace(r.Cardinality))
			r.Optionality = strings.ToLower(strings.TrimSpace(r.Optionality))
		}
	}
	if err := d.validate.Struct(resp); err != nil {
		return resp, fmt.Errorf("%w: %w", llm.ErrMalformedResponse, err)
	}
	return resp, nil
}
