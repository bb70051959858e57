package web

import "github.com/dukex/stockflow/pkg/models"

// CreateFlowRequest represents the request body for creating a flow.
type CreateFlowRequest struct {
	StoreID     string            `json:"storeId"               validate:"required"`
	Name        string            `json:"name"                  validate:"required,min=1,max=255"`
	Description string            `json:"description,omitempty"`
	Status      models.FlowStatus `json:"status,omitempty"      validate:"omitempty,oneof=ACTIVE INACTIVE DRAFT"`
	Nodes       []models.FlowNode `json:"nodes"`
	Edges       []models.FlowEdge `json:"edges"`
	CreatedBy   string            `json:"createdBy,omitempty"`
}

// Flow converts the request into a flow definition.
func (r CreateFlowRequest) Flow() *models.Flow {
	return &models.Flow{
		StoreID:     r.StoreID,
		Name:        r.Name,
		Description: r.Description,
		Status:      r.Status,
		Nodes:       r.Nodes,
		Edges:       r.Edges,
		CreatedBy:   r.CreatedBy,
	}
}

// UpdateFlowRequest replaces the definition of a flow. An empty status keeps the current one.
type UpdateFlowRequest struct {
	Name        string            `json:"name"                  validate:"required,min=1,max=255"`
	Description string            `json:"description,omitempty"`
	Status      models.FlowStatus `json:"status,omitempty"      validate:"omitempty,oneof=ACTIVE INACTIVE DRAFT"`
	Nodes       []models.FlowNode `json:"nodes"`
	Edges       []models.FlowEdge `json:"edges"`
}

// Flow converts the request into a flow definition.
func (r UpdateFlowRequest) Flow() *models.Flow {
	return &models.Flow{
		Name:        r.Name,
		Description: r.Description,
		Status:      r.Status,
		Nodes:       r.Nodes,
		Edges:       r.Edges,
	}
}

// ValidateFlowRequest is an unsaved flow graph to validate.
type ValidateFlowRequest struct {
	Name  string            `json:"name"`
	Nodes []models.FlowNode `json:"nodes"`
	Edges []models.FlowEdge `json:"edges"`
}
