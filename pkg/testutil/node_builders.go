// Package testutil provides test data builders for flows.
package testutil

import (
	"github.com/dukex/stockflow/pkg/models"
)

// TriggerNode creates a trigger node with empty filters.
func TriggerNode(id string, eventType models.TriggerEventType) models.FlowNode {
	return models.FlowNode{
		ID:   id,
		Type: models.NodeTypeTrigger,
		Data: models.NodeData{
			Label:  "Trigger " + id,
			Config: &models.TriggerConfig{EventType: eventType, Filters: &models.TriggerFilters{}},
		},
	}
}

// ConditionNode creates a condition node.
func ConditionNode(id string, logical models.LogicalOperator, conditions ...models.Condition) models.FlowNode {
	return models.FlowNode{
		ID:   id,
		Type: models.NodeTypeCondition,
		Data: models.NodeData{
			Label:  "Condition " + id,
			Config: &models.ConditionConfig{Conditions: conditions, LogicalOperator: logical},
		},
	}
}

// ActionNode creates an ACTION node.
func ActionNode(id string, actionType models.ActionType, config map[string]any) models.FlowNode {
	return models.FlowNode{
		ID:   id,
		Type: models.NodeTypeAction,
		Data: models.NodeData{
			Label:  "Action " + id,
			Config: &models.ActionConfig{Type: actionType, Config: config},
		},
	}
}

// NotificationNode creates a NOTIFICATION node.
func NotificationNode(id string, actionType models.ActionType, config map[string]any) models.FlowNode {
	node := ActionNode(id, actionType, config)
	node.Type = models.NodeTypeNotification
	node.Data.Label = "Notification " + id

	return node
}

// Edge connects source to target.
func Edge(source, target string) models.FlowEdge {
	return models.FlowEdge{ID: source + "-" + target, Source: source, Target: target}
}

// Chain connects the given node ids in order.
func Chain(ids ...string) []models.FlowEdge {
	edges := make([]models.FlowEdge, 0, len(ids))
	for i := 1; i < len(ids); i++ {
		edges = append(edges, Edge(ids[i-1], ids[i]))
	}

	return edges
}

// Less builds a condition comparing field with value using "<".
func Less(field models.ConditionField, value any) models.Condition {
	return models.Condition{Field: field, Operator: models.OperatorLessThan, Value: value}
}

// CreateTestFlow creates an ACTIVE flow for store s1: a stock_change trigger connected to a webhook action.
func CreateTestFlow(overrides ...func(*models.Flow)) *models.Flow {
	flow := &models.Flow{
		ID:      "flow-1",
		StoreID: "s1",
		Name:    "Test flow",
		Status:  models.FlowStatusActive,
		Nodes: []models.FlowNode{
			TriggerNode("t1", models.EventStockChange),
			ActionNode("a1", models.ActionWebhook, map[string]any{"url": "http://localhost/hook"}),
		},
		Edges:     Chain("t1", "a1"),
		CreatedBy: "u1",
	}

	for _, override := range overrides {
		override(flow)
	}

	return flow
}

// WithNodes replaces the flow graph.
func WithNodes(nodes []models.FlowNode, edges []models.FlowEdge) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Nodes = nodes
		f.Edges = edges
	}
}

// WithStatus sets the flow status.
func WithStatus(status models.FlowStatus) func(*models.Flow) {
	return func(f *models.Flow) {
		f.Status = status
	}
}

// WithStore sets the flow store.
func WithStore(storeID string) func(*models.Flow) {
	return func(f *models.Flow) {
		f.StoreID = storeID
	}
}
