package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowNode_UnmarshalJSON_SelectsConfigVariant(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected NodeConfig
	}{
		{
			name:    "trigger",
			payload: `{"id":"t1","type":"TRIGGER","position":{"x":1,"y":2},"data":{"label":"On movement","config":{"eventType":"movement_created","filters":{"movementTypes":["OUT"]}}}}`,
			expected: &TriggerConfig{
				EventType: EventMovementCreated,
				Filters:   &TriggerFilters{MovementTypes: []MovementType{MovementOut}},
			},
		},
		{
			name:    "condition",
			payload: `{"id":"c1","type":"CONDITION","position":{"x":0,"y":0},"data":{"label":"Low","config":{"conditions":[{"field":"stock_quantity","operator":"<","value":5}],"logicalOperator":"AND"}}}`,
			expected: &ConditionConfig{
				Conditions:      []Condition{{Field: FieldStockQuantity, Operator: OperatorLessThan, Value: float64(5)}},
				LogicalOperator: LogicalAnd,
			},
		},
		{
			name:     "action",
			payload:  `{"id":"a1","type":"ACTION","position":{"x":0,"y":0},"data":{"label":"Mail","config":{"type":"email","config":{"to":"ops@example.com"}}}}`,
			expected: &ActionConfig{Type: ActionEmail, Config: map[string]any{"to": "ops@example.com"}},
		},
		{
			name:     "notification uses action config",
			payload:  `{"id":"n1","type":"NOTIFICATION","position":{"x":0,"y":0},"data":{"label":"Notify","config":{"type":"internal_notification","config":{"message":"hi"}}}}`,
			expected: &ActionConfig{Type: ActionInternalNotification, Config: map[string]any{"message": "hi"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var node FlowNode

			require.NoError(t, json.Unmarshal([]byte(tt.payload), &node))
			assert.Equal(t, tt.expected, node.Data.Config)
			assert.True(t, node.Type.Accepts(node.Data.Config))
		})
	}
}

func TestFlowNode_UnmarshalJSON_MissingConfig(t *testing.T) {
	for _, payload := range []string{
		`{"id":"t1","type":"TRIGGER","position":{"x":0,"y":0},"data":{"label":"x"}}`,
		`{"id":"t1","type":"TRIGGER","position":{"x":0,"y":0},"data":{"label":"x","config":null}}`,
		`{"id":"u1","type":"DELAY","position":{"x":0,"y":0},"data":{"label":"x","config":{"seconds":3}}}`,
	} {
		var node FlowNode

		require.NoError(t, json.Unmarshal([]byte(payload), &node))
		assert.Nil(t, node.Data.Config)
	}
}

func TestFlowNode_UnmarshalJSON_MalformedConfig(t *testing.T) {
	var node FlowNode

	err := json.Unmarshal([]byte(`{"id":"c1","type":"CONDITION","data":{"label":"x","config":{"conditions":"nope"}}}`), &node)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "node c1")
}

func TestFlowNode_ConfigAccessors(t *testing.T) {
	node := FlowNode{ID: "t1", Type: NodeTypeTrigger, Data: NodeData{Label: "t", Config: &TriggerConfig{EventType: EventStockChange}}}

	assert.NotNil(t, node.TriggerConfig())
	assert.Nil(t, node.ConditionConfig())
	assert.Nil(t, node.ActionConfig())
	assert.False(t, NodeTypeAction.Accepts(node.Data.Config))
}

func TestConfigConstructors(t *testing.T) {
	_, err := NewTriggerConfig(EventStockBelowMin, TriggerFilters{})
	require.NoError(t, err)

	_, err = NewTriggerConfig("stock_vanished", TriggerFilters{})
	require.ErrorIs(t, err, ErrInvalidNodeConfig)
	assert.Contains(t, err.Error(), `unknown eventType "stock_vanished"`)

	_, err = NewConditionConfig(LogicalOr)
	require.ErrorIs(t, err, ErrInvalidNodeConfig)
	assert.Contains(t, err.Error(), "conditions must contain at least one condition")

	_, err = NewConditionConfig("XOR", Condition{Field: FieldMovementType, Operator: "~", Value: "IN"})
	require.ErrorIs(t, err, ErrInvalidNodeConfig)
	assert.Contains(t, err.Error(), `condition 0: unknown operator "~"`)
	assert.Contains(t, err.Error(), `unknown logicalOperator "XOR"`)

	cfg, err := NewActionConfig(ActionWebhook, map[string]any{"url": "http://example.com"})
	require.NoError(t, err)
	assert.Equal(t, NodeTypeAction, cfg.NodeType())

	_, err = NewActionConfig("fax", nil)
	require.ErrorIs(t, err, ErrInvalidNodeConfig)
}

func TestTriggerFilters_Matches(t *testing.T) {
	filters := &TriggerFilters{
		ProductIDs:    []string{"p1", "p2"},
		MovementTypes: []MovementType{MovementOut},
	}

	tests := []struct {
		name         string
		filters      *TriggerFilters
		productID    string
		storeID      string
		movementType MovementType
		expected     bool
	}{
		{"nil filters match everything", nil, "p9", "s9", MovementIn, true},
		{"empty filters match everything", &TriggerFilters{}, "p9", "s9", "", true},
		{"all dimensions match", filters, "p2", "s1", MovementOut, true},
		{"product outside list", filters, "p3", "s1", MovementOut, false},
		{"movement type outside list", filters, "p1", "s1", MovementIn, false},
		{"store filter", &TriggerFilters{StoreIDs: []string{"s1"}}, "p1", "s2", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.filters.Matches(tt.productID, tt.storeID, tt.movementType))
		})
	}
}

func TestFlowExecution_LogRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	duration := int64(12)
	execution := &FlowExecution{ID: "e1", FlowID: "f1", Status: ExecutionStatusRunning, StartedAt: ts}

	execution.Append(ExecutionLogEntry{NodeID: "t1", NodeType: NodeTypeTrigger, Status: LogStatusSuccess, Timestamp: ts})
	execution.Append(ExecutionLogEntry{NodeID: "c1", NodeType: NodeTypeCondition, Status: LogStatusSkipped, Timestamp: ts})
	execution.Append(ExecutionLogEntry{
		NodeID: "a1", NodeType: NodeTypeAction, Status: LogStatusFailed,
		Error: "boom", Timestamp: ts, DurationMs: &duration,
	})

	first, err := json.Marshal(execution.ExecutionLog)
	require.NoError(t, err)

	var reloaded []ExecutionLogEntry
	require.NoError(t, json.Unmarshal(first, &reloaded))

	second, err := json.Marshal(reloaded)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, []string{"t1", "c1", "a1"}, []string{reloaded[0].NodeID, reloaded[1].NodeID, reloaded[2].NodeID})
}

func TestFlowExecution_Complete(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	execution := &FlowExecution{Status: ExecutionStatusRunning, StartedAt: start}

	assert.False(t, execution.IsCompleted())

	execution.Complete(ExecutionStatusFailed, "boom", start.Add(1500*time.Millisecond))

	assert.True(t, execution.IsCompleted())
	assert.True(t, execution.Status.IsTerminal())
	assert.Equal(t, "boom", execution.Error)
	require.NotNil(t, execution.DurationMs)
	assert.Equal(t, int64(1500), *execution.DurationMs)
}

func TestTriggerEvent_Data(t *testing.T) {
	event := &TriggerEvent{
		EventType: EventMovementCreated,
		StoreID:   "s1",
		Movement:  &Movement{ID: "m1", ProductID: "p1", Type: MovementOut},
		Payload:   map[string]any{"source": "pos"},
	}

	assert.Equal(t, "p1", event.EffectiveProductID())
	assert.Equal(t, MovementOut, event.EffectiveMovementType())
	assert.Equal(t, map[string]any{
		"eventType":    "movement_created",
		"storeId":      "s1",
		"productId":    "p1",
		"movementId":   "m1",
		"movementType": "OUT",
		"source":       "pos",
	}, event.Data())
}

func TestExecutionContext_EnvOmitsAbsentEntities(t *testing.T) {
	ctx := &ExecutionContext{
		Trigger:   TriggerInfo{Type: EventStockChange, Data: map[string]any{}},
		Product:   &Product{ID: "p1", Name: "Widget", StockQuantity: 3, MaxStock: 10},
		Variables: map[string]any{},
	}

	env := ctx.Env()

	assert.Contains(t, env, "product")
	assert.NotContains(t, env, "movement")
	assert.NotContains(t, env, "store")
	assert.Equal(t, "Widget", env["product"].(map[string]any)["name"])

	pct, ok := ctx.Product.StockPercentage()
	assert.True(t, ok)
	assert.InDelta(t, 30.0, pct, 0.0001)
}
