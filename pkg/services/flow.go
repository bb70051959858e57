package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/stockflow/pkg/actions"
	"github.com/dukex/stockflow/pkg/models"
	"github.com/dukex/stockflow/pkg/persistence"
	"github.com/dukex/stockflow/pkg/validation"
)

var flowStatuses = []models.FlowStatus{
	models.FlowStatusActive,
	models.FlowStatusInactive,
	models.FlowStatusDraft,
}

// FlowTester runs a flow against an event regardless of its status.
type FlowTester interface {
	Test(ctx context.Context, flow *models.Flow, event *models.TriggerEvent) (*models.FlowExecution, error)
}

type Flow struct {
	persistence persistence.Persistence
	registry    *actions.Registry
	tester      FlowTester
	logger      *slog.Logger
}

// NewFlow creates a new flow service.
func NewFlow(persistence persistence.Persistence, registry *actions.Registry, tester FlowTester, logger *slog.Logger) *Flow {
	return &Flow{
		persistence: persistence,
		registry:    registry,
		tester:      tester,
		logger:      logger.With("module", "flow_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Flow) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListFlowsRequest filters flow listings.
type ListFlowsRequest struct {
	StoreID string
	Status  string
}

// List returns the flows matching the request, most recently created first.
func (s *Flow) List(ctx context.Context, req ListFlowsRequest) ([]*models.Flow, error) {
	status := models.FlowStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if status != "" && !slices.Contains(flowStatuses, status) {
		return nil, NewRequestError("List", "INVALID_STATUS", fmt.Sprintf("invalid status '%s'", req.Status), ErrInvalidStatus)
	}

	flows, err := s.persistence.Flows().List(ctx, persistence.ListFlowsOptions{
		StoreID: strings.TrimSpace(req.StoreID),
		Status:  status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}

	return flows, nil
}

// FetchByID retrieves a flow by its ID.
func (s *Flow) FetchByID(ctx context.Context, id string) (*models.Flow, error) {
	return s.persistence.Flows().GetByID(ctx, id)
}

// Create stores a new flow. Flows default to DRAFT; an ACTIVE flow must be valid.
func (s *Flow) Create(ctx context.Context, input *models.Flow) (*models.Flow, error) {
	if input == nil {
		return nil, ErrFlowNil
	}

	if strings.TrimSpace(input.StoreID) == "" {
		return nil, ErrStoreIDRequired
	}

	if input.Status == "" {
		input.Status = models.FlowStatusDraft
	}

	err := s.checkSavable("Create", input)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate flow id: %w", err)
	}

	now := time.Now().UTC()
	input.ID = id.String()
	input.CreatedAt = now
	input.UpdatedAt = now
	input.DeletedAt = nil

	err = s.persistence.Flows().Save(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create flow: %w", err)
	}

	s.logger.InfoContext(ctx, "Flow created", "flow_id", input.ID, "store_id", input.StoreID, "status", input.Status)

	return input, nil
}

// Update replaces the definition of an existing flow. The store and creation metadata are kept.
func (s *Flow) Update(ctx context.Context, id string, input *models.Flow) (*models.Flow, error) {
	if input == nil {
		return nil, ErrFlowNil
	}

	existing, err := s.persistence.Flows().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.StoreID != "" && input.StoreID != existing.StoreID {
		return nil, ErrStoreIDImmutable
	}

	if input.Status == "" {
		input.Status = existing.Status
	}

	input.ID = existing.ID
	input.StoreID = existing.StoreID
	input.CreatedAt = existing.CreatedAt
	input.UpdatedAt = time.Now().UTC()
	input.DeletedAt = nil

	if input.CreatedBy == "" {
		input.CreatedBy = existing.CreatedBy
	}

	err = s.checkSavable("Update", input)
	if err != nil {
		return nil, err
	}

	err = s.persistence.Flows().Save(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to update flow: %w", err)
	}

	return input, nil
}

// Delete soft deletes a flow.
func (s *Flow) Delete(ctx context.Context, id string) error {
	err := s.persistence.Flows().Delete(ctx, id)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Flow deleted", "flow_id", id)

	return nil
}

// Activate sets a valid flow ACTIVE. Invalid flows are rejected with every problem listed.
func (s *Flow) Activate(ctx context.Context, id string) (*models.Flow, error) {
	return s.setStatus(ctx, "Activate", id, models.FlowStatusActive)
}

// Deactivate sets a flow INACTIVE.
func (s *Flow) Deactivate(ctx context.Context, id string) (*models.Flow, error) {
	return s.setStatus(ctx, "Deactivate", id, models.FlowStatusInactive)
}

func (s *Flow) setStatus(ctx context.Context, op, id string, status models.FlowStatus) (*models.Flow, error) {
	existing, err := s.persistence.Flows().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if existing.Status == status {
		return existing, nil
	}

	existing.Status = status

	err = s.checkSavable(op, existing)
	if err != nil {
		return nil, err
	}

	existing.UpdatedAt = time.Now().UTC()

	err = s.persistence.Flows().Save(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to save flow %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Flow status changed", "flow_id", id, "status", status)

	return existing, nil
}

func (s *Flow) checkSavable(op string, f *models.Flow) error {
	if !slices.Contains(flowStatuses, f.Status) {
		return NewRequestError(op, "INVALID_STATUS", fmt.Sprintf("invalid status '%s'", f.Status), ErrInvalidStatus)
	}

	if f.Status != models.FlowStatusActive {
		return nil
	}

	result := s.Validate(f)
	if !result.Valid {
		return &ValidationError{Op: op, FlowID: f.ID, Problems: result.Errors}
	}

	return nil
}

// Validate checks the flow graph and every action payload against its channel schema.
func (s *Flow) Validate(f *models.Flow) validation.Result {
	if f == nil {
		return validation.Result{Errors: []string{ErrFlowNil.Error()}}
	}

	result := validation.ValidateFlow(f.Nodes, f.Edges, f.Name)

	errs := append([]string{}, result.Errors...)
	for _, node := range f.Nodes {
		errs = append(errs, s.actionProblems(node)...)
	}

	return validation.Result{Valid: len(errs) == 0, Errors: errs}
}

// ValidateByID validates a stored flow.
func (s *Flow) ValidateByID(ctx context.Context, id string) (validation.Result, error) {
	existing, err := s.persistence.Flows().GetByID(ctx, id)
	if err != nil {
		return validation.Result{}, err
	}

	return s.Validate(existing), nil
}

// ValidateNode checks a single node configuration, including its action payload.
func (s *Flow) ValidateNode(node models.FlowNode) validation.Result {
	result := validation.ValidateNodeConfig(node)

	errs := append(append([]string{}, result.Errors...), s.actionProblems(node)...)

	return validation.Result{Valid: len(errs) == 0, Errors: errs}
}

func (s *Flow) actionProblems(node models.FlowNode) []string {
	if node.Type != models.NodeTypeAction && node.Type != models.NodeTypeNotification {
		return nil
	}

	cfg := node.ActionConfig()
	if cfg == nil || len(cfg.Problems()) > 0 || s.registry == nil {
		return nil
	}

	problems := s.registry.ValidateConfig(cfg)

	out := make([]string, 0, len(problems))
	for _, problem := range problems {
		out = append(out, fmt.Sprintf("Node %s: %s", node.ID, problem))
	}

	return out
}

// Test runs a stored flow against event whatever its status. The event store defaults to the flow's.
func (s *Flow) Test(ctx context.Context, id string, event *models.TriggerEvent) (*models.FlowExecution, error) {
	if event == nil || event.EventType == "" {
		return nil, NewRequestError("Test", "INVALID_EVENT", "eventType is required", ErrInvalidEvent)
	}

	existing, err := s.persistence.Flows().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if event.StoreID == "" {
		event.StoreID = existing.StoreID
	}

	execution, err := s.tester.Test(ctx, existing, event)
	if err != nil {
		return execution, fmt.Errorf("failed to test flow %s: %w", id, err)
	}

	return execution, nil
}
