package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dukex/stockflow/pkg/models"
	"github.com/dukex/stockflow/pkg/persistence"
)

type Execution struct {
	persistence persistence.Persistence
}

// NewExecution creates a new execution query service.
func NewExecution(persistence persistence.Persistence) *Execution {
	return &Execution{persistence: persistence}
}

// ListExecutionsRequest filters and paginates the runs of one flow.
type ListExecutionsRequest struct {
	FlowID      string
	Status      string
	TriggerType string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// FetchByID retrieves an execution by its ID.
func (s *Execution) FetchByID(ctx context.Context, id string) (*models.FlowExecution, error) {
	return s.persistence.Executions().GetByID(ctx, id)
}

// List returns a page of runs of an existing flow, most recent first.
func (s *Execution) List(ctx context.Context, req ListExecutionsRequest) (*persistence.ExecutionPage, error) {
	status := models.ExecutionStatus(req.Status)
	if status != "" && !slices.Contains(models.ExecutionStatuses, status) {
		return nil, NewRequestError("List", "INVALID_STATUS", fmt.Sprintf("invalid execution status '%s'", req.Status), ErrInvalidStatus)
	}

	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return nil, NewRequestError("List", "INVALID_RANGE", "'to' must not be before 'from'", ErrInvalidRequest)
	}

	if req.Limit > persistence.MaxListLimit || req.Limit < 0 || req.Offset < 0 {
		return nil, NewRequestError("List", "INVALID_PAGINATION",
			fmt.Sprintf("limit must be between 0 and %d and offset must not be negative", persistence.MaxListLimit),
			ErrInvalidRequest)
	}

	_, err := s.persistence.Flows().GetByID(ctx, req.FlowID)
	if err != nil {
		return nil, err
	}

	page, err := s.persistence.Executions().List(ctx, persistence.ListExecutionsOptions{
		FlowID:      req.FlowID,
		Status:      status,
		TriggerType: req.TriggerType,
		From:        req.From,
		To:          req.To,
		Limit:       req.Limit,
		Offset:      req.Offset,
	}.Normalized())
	if err != nil {
		return nil, fmt.Errorf("failed to list executions of flow %s: %w", req.FlowID, err)
	}

	return page, nil
}

// Stats aggregates the runs of an existing flow.
func (s *Execution) Stats(ctx context.Context, flowID string) (*models.ExecutionStats, error) {
	_, err := s.persistence.Flows().GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	stats, err := s.persistence.Executions().Stats(ctx, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats of flow %s: %w", flowID, err)
	}

	return stats, nil
}
