package assemble

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/ldmgen/internal/schema"
)

var generated = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func shopAttributes() []schema.Attribute {
	return []schema.Attribute{
		{EntityName: "Customer", AttributeName: "id", DataType: "INTEGER", IsPrimaryKey: true},
		{EntityName: "Customer", AttributeName: "name", DataType: "VARCHAR", Nullable: true},
		{EntityName: "Order", EntityDescription: "A purchase", AttributeName: "id", DataType: "INTEGER", IsPrimaryKey: true},
		{EntityName: "order", EntityDescription: "ignored", AttributeName: "customer_id", DataType: "INTEGER", Nullable: true,
			IsForeignKey: true, ReferencesEntity: "customer", ReferencesAttribute: "ID"},
		{EntityName: "Order", AttributeName: "warehouse_id", DataType: "INTEGER",
			IsForeignKey: true, ReferencesEntity: "Warehouse", ReferencesAttribute: "id"},
	}
}

func TestAssemble(t *testing.T) {
	diag := &schema.Diagnostics{}
	m, err := New(nil, diag).Assemble("shop.xlsx", generated, shopAttributes())
	require.NoError(t, err)

	assert.Equal(t, []string{"Customer", "Order"}, m.Order)
	order := m.Entity("Order")
	assert.Equal(t, "A purchase", order.Description)
	require.Len(t, order.Attributes, 3)
	assert.Equal(t, "Order", order.Attributes[1].EntityName)

	fk := order.Attributes[1]
	assert.Equal(t, "Customer", fk.ReferencesEntity)
	assert.Equal(t, "id", fk.ReferencesAttribute)

	dangling := order.Attributes[2]
	assert.False(t, dangling.IsForeignKey)
	assert.Equal(t, "Warehouse.id", dangling.RawReferences)
	assert.Equal(t, 1, diag.Count(schema.KindDanglingForeignKey))

	require.Len(t, m.Relationships, 1)
	assert.Equal(t, schema.Relationship{
		FromEntity: "Order", FromAttribute: "customer_id", ToEntity: "Customer", ToAttribute: "id",
		Cardinality: schema.ManyToOne, Optionality: schema.Optional, Source: schema.RelationshipFromFK,
	}, m.Relationships[0])
}

func TestAssembleEmpty(t *testing.T) {
	_, err := New(nil, nil).Assemble("empty.csv", generated, nil)
	assert.ErrorIs(t, err, schema.ErrModelEmpty)
}

func TestForeignKeyRelationship(t *testing.T) {
	tests := []struct {
		name        string
		attr        schema.Attribute
		cardinality schema.Cardinality
		optionality schema.Optionality
	}{
		{"nullable", schema.Attribute{Nullable: true}, schema.ManyToOne, schema.Optional},
		{"not null", schema.Attribute{}, schema.ManyToOne, schema.Mandatory},
		{"unique", schema.Attribute{IsUnique: true}, schema.OneToOne, schema.Mandatory},
		{"primary key", schema.Attribute{IsPrimaryKey: true, Nullable: true}, schema.OneToOne, schema.Mandatory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ForeignKeyRelationship(tt.attr)
			assert.Equal(t, tt.cardinality, r.Cardinality)
			assert.Equal(t, tt.optionality, r.Optionality)
		})
	}
}

func TestRelateWithProposals(t *testing.T) {
	a := New(nil, nil)
	m, err := a.Assemble("shop.xlsx", generated, append(shopAttributes(),
		schema.Attribute{EntityName: "Product", AttributeName: "id", DataType: "INTEGER", IsPrimaryKey: true},
		schema.Attribute{EntityName: "Note", AttributeName: "body", DataType: "VARCHAR"},
	))
	require.NoError(t, err)

	m.Entity("Customer").LLMRelationships = []schema.LLMRelationship{
		{TargetEntity: "Order", Cardinality: schema.OneToMany, Optionality: schema.Optional, RelationshipName: "places", Description: "Customer places orders"},
		{TargetEntity: "Product", Cardinality: schema.OneToMany, Optionality: schema.Optional, RelationshipName: "favourites"},
		{TargetEntity: "Note", Cardinality: schema.OneToMany, Optionality: schema.Optional},
	}
	a.Relate(m)
	a.Relate(m)

	require.Len(t, m.Relationships, 2)

	fk := m.Relationships[0]
	assert.Equal(t, schema.RelationshipFromFK, fk.Source)
	assert.Equal(t, schema.ManyToOne, fk.Cardinality, "proposal does not override the foreign key")
	assert.Equal(t, "places", fk.Name)
	assert.Equal(t, "Customer places orders", fk.Description)

	llm := m.Relationships[1]
	assert.Equal(t, schema.Relationship{
		FromEntity: "Customer", FromAttribute: "id", ToEntity: "Product", ToAttribute: "id",
		Cardinality: schema.OneToMany, Optionality: schema.Optional, Name: "favourites", Source: schema.RelationshipFromLLM,
	}, llm)
}
