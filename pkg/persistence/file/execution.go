package file

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dukex/stockflow/pkg/models"
	"github.com/dukex/stockflow/pkg/persistence"
)

// ExecutionRepository handles execution-related file operations.
type ExecutionRepository struct {
	executions collection
	mu         sync.RWMutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{executions: newCollection(root, "executions")}
}

// Save writes the execution unless the stored copy is already completed.
func (r *ExecutionRepository) Save(_ context.Context, execution *models.FlowExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.load(execution.ID)

	switch {
	case err == nil && existing.IsCompleted():
		return persistence.NewExecutionError("Save", execution.ID, persistence.ErrExecutionCompleted)
	case err != nil && !persistence.IsExecutionNotFound(err):
		return err
	}

	err = r.executions.write(execution.ID, execution)
	if err != nil {
		return persistence.NewExecutionError("Save", execution.ID, err)
	}

	return nil
}

// GetByID retrieves an execution by its ID.
func (r *ExecutionRepository) GetByID(_ context.Context, id string) (*models.FlowExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.load(id)
}

func (r *ExecutionRepository) load(id string) (*models.FlowExecution, error) {
	var execution models.FlowExecution

	err := r.executions.read(id, &execution)
	if isNotExist(err) {
		return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch execution %s: %w", id, err)
	}

	return &execution, nil
}

// all returns every execution matching opts, most recent first.
func (r *ExecutionRepository) all(opts persistence.ListExecutionsOptions) ([]*models.FlowExecution, error) {
	ids, err := r.executions.ids()
	if err != nil {
		return nil, err
	}

	executions := make([]*models.FlowExecution, 0, len(ids))

	for _, id := range ids {
		execution, err := r.load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load execution %s: %w", id, err)
		}

		if opts.Matches(execution) {
			executions = append(executions, execution)
		}
	}

	sort.SliceStable(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	return executions, nil
}

// List returns paginated and filtered executions with in-memory operations.
func (r *ExecutionRepository) List(_ context.Context, opts persistence.ListExecutionsOptions) (*persistence.ExecutionPage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	opts = opts.Normalized()

	executions, err := r.all(opts)
	if err != nil {
		return nil, err
	}

	total := len(executions)
	if opts.Offset >= total {
		return &persistence.ExecutionPage{
			Executions: make([]*models.FlowExecution, 0),
			TotalCount: total,
		}, nil
	}

	end := min(opts.Offset+opts.Limit, total)

	return &persistence.ExecutionPage{
		Executions:  executions[opts.Offset:end],
		TotalCount:  total,
		HasNextPage: end < total,
	}, nil
}

// Stats aggregates the executions of one flow.
func (r *ExecutionRepository) Stats(_ context.Context, flowID string) (*models.ExecutionStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executions, err := r.all(persistence.ListExecutionsOptions{FlowID: flowID})
	if err != nil {
		return nil, err
	}

	return Aggregate(flowID, executions), nil
}

// Aggregate computes stats over executions ordered most recent first.
func Aggregate(flowID string, executions []*models.FlowExecution) *models.ExecutionStats {
	stats := models.NewExecutionStats(flowID)

	var (
		totalDuration int64
		completed     int
	)

	for _, execution := range executions {
		stats.Total++
		stats.ByStatus[execution.Status]++
		stats.ByTriggerType[execution.TriggerType]++

		if execution.CompletedAt != nil && execution.DurationMs != nil {
			totalDuration += *execution.DurationMs
			completed++
		}
	}

	if completed > 0 {
		avg := float64(totalDuration) / float64(completed)
		stats.AverageDurationMs = &avg
	}

	if len(executions) > 0 {
		stats.LastExecution = executions[0]
	}

	return stats
}
