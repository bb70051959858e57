package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/stockflow/pkg/models"
)

func productContext(stock, maxStock float64) *models.ExecutionContext {
	return &models.ExecutionContext{
		Trigger:   models.TriggerInfo{Type: models.EventStockBelowMin, Data: map[string]any{}},
		Product:   &models.Product{ID: "p1", Name: "Widget", StockQuantity: stock, MaxStock: maxStock},
		Variables: map[string]any{},
	}
}

func TestEngine_Compare(t *testing.T) {
	engine := NewEngine()

	tests := []struct {
		actual   any
		op       models.ComparisonOperator
		expected any
		result   bool
	}{
		{5.0, models.OperatorLessThan, 10.0, true},
		{5.0, models.OperatorGreaterThan, 10.0, false},
		{10.0, models.OperatorLessOrEqual, 10.0, true},
		{10.0, models.OperatorGreaterOrEqual, 11.0, false},
		{10.0, models.OperatorEqual, 10.0, true},
		{"OUT", models.OperatorEqual, "OUT", true},
		{"OUT", models.OperatorNotEqual, "IN", true},
	}

	for _, tt := range tests {
		got, err := engine.Compare(tt.actual, tt.op, tt.expected)

		require.NoError(t, err)
		assert.Equal(t, tt.result, got, "%v %s %v", tt.actual, tt.op, tt.expected)
	}

	_, err := engine.Compare(1.0, "=~", 2.0)
	require.ErrorIs(t, err, ErrUnknownOperator)

	_, err = engine.Compare("OUT", models.OperatorLessThan, 3.0)
	require.Error(t, err)
}

func TestEngine_EvaluateConditions(t *testing.T) {
	engine := NewEngine()
	low := models.Condition{Field: models.FieldStockQuantity, Operator: models.OperatorLessThan, Value: 10}
	half := models.Condition{Field: models.FieldStockPercentage, Operator: models.OperatorLessOrEqual, Value: 50.0}

	tests := []struct {
		name     string
		cfg      *models.ConditionConfig
		ctx      *models.ExecutionContext
		expected bool
	}{
		{"and holds", &models.ConditionConfig{Conditions: []models.Condition{low, half}, LogicalOperator: models.LogicalAnd}, productContext(5, 20), true},
		{"and fails on one", &models.ConditionConfig{Conditions: []models.Condition{low, half}, LogicalOperator: models.LogicalAnd}, productContext(5, 8), false},
		{"or holds on one", &models.ConditionConfig{Conditions: []models.Condition{low, half}, LogicalOperator: models.LogicalOr}, productContext(5, 8), true},
		{"or fails", &models.ConditionConfig{Conditions: []models.Condition{low}, LogicalOperator: models.LogicalOr}, productContext(50, 100), false},
		{"missing product never holds", &models.ConditionConfig{Conditions: []models.Condition{low}, LogicalOperator: models.LogicalAnd}, &models.ExecutionContext{}, false},
		{"zero max stock has no percentage", &models.ConditionConfig{Conditions: []models.Condition{half}, LogicalOperator: models.LogicalAnd}, productContext(0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.EvaluateConditions(tt.cfg, tt.ctx)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEngine_EvaluateConditions_Movement(t *testing.T) {
	engine := NewEngine()
	ctx := &models.ExecutionContext{Movement: &models.Movement{Type: models.MovementOut, Quantity: 40}}
	cfg := &models.ConditionConfig{
		Conditions: []models.Condition{
			{Field: models.FieldMovementType, Operator: models.OperatorEqual, Value: "OUT"},
			{Field: models.FieldMovementValue, Operator: models.OperatorGreaterThan, Value: 25.0},
		},
		LogicalOperator: models.LogicalAnd,
	}

	got, err := engine.EvaluateConditions(cfg, ctx)

	require.NoError(t, err)
	assert.True(t, got)
}

func TestEngine_EvaluateConditions_Malformed(t *testing.T) {
	engine := NewEngine()
	ctx := productContext(5, 10)

	_, err := engine.EvaluateConditions(&models.ConditionConfig{
		Conditions:      []models.Condition{{Field: "temperature", Operator: models.OperatorEqual, Value: 1}},
		LogicalOperator: models.LogicalAnd,
	}, ctx)
	require.ErrorIs(t, err, ErrUnknownField)

	_, err = engine.EvaluateConditions(&models.ConditionConfig{
		Conditions:      []models.Condition{{Field: models.FieldStockQuantity, Operator: models.OperatorEqual, Value: 1}},
		LogicalOperator: "NAND",
	}, ctx)
	require.ErrorIs(t, err, ErrUnknownLogicalOperator)

	_, err = engine.EvaluateConditions(&models.ConditionConfig{LogicalOperator: models.LogicalOr}, ctx)
	require.Error(t, err)
}
