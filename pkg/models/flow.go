package models

import "time"

// FlowStatus represents the lifecycle state of a flow.
type FlowStatus string

const (
	FlowStatusActive   FlowStatus = "ACTIVE"   // Runs on matching events
	FlowStatusInactive FlowStatus = "INACTIVE" // Kept, never runs
	FlowStatusDraft    FlowStatus = "DRAFT"    // Editable, may be invalid
)

// Flow is a user-defined automation graph scoped to one store.
type Flow struct {
	ID          string     `json:"id"`
	StoreID     string     `json:"storeId"               validate:"required"`
	Name        string     `json:"name"                  validate:"required"`
	Description string     `json:"description,omitempty"`
	Status      FlowStatus `json:"status"                validate:"required,oneof=ACTIVE INACTIVE DRAFT"`
	Nodes       []FlowNode `json:"nodes"`
	Edges       []FlowEdge `json:"edges"`
	CreatedBy   string     `json:"createdBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// IsActive reports whether the flow reacts to events.
func (f *Flow) IsActive() bool {
	return f.Status == FlowStatusActive && f.DeletedAt == nil
}

// Node returns the node with the given id, or nil.
func (f *Flow) Node(id string) *FlowNode {
	for i := range f.Nodes {
		if f.Nodes[i].ID == id {
			return &f.Nodes[i]
		}
	}

	return nil
}

// TriggerNodes returns the flow's TRIGGER nodes in declaration order.
func (f *Flow) TriggerNodes() []*FlowNode {
	var triggers []*FlowNode

	for i := range f.Nodes {
		if f.Nodes[i].Type == NodeTypeTrigger {
			triggers = append(triggers, &f.Nodes[i])
		}
	}

	return triggers
}

// OutgoingEdges returns the edges leaving nodeID in declaration order.
func (f *Flow) OutgoingEdges(nodeID string) []FlowEdge {
	var out []FlowEdge

	for _, edge := range f.Edges {
		if edge.Source == nodeID {
			out = append(out, edge)
		}
	}

	return out
}
