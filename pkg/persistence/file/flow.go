package file

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dukex/stockflow/pkg/models"
	"github.com/dukex/stockflow/pkg/persistence"
)

// FlowRepository handles flow-related file operations.
type FlowRepository struct {
	flows collection
	mu    sync.RWMutex
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(root string) *FlowRepository {
	return &FlowRepository{flows: newCollection(root, "flows")}
}

// GetByID retrieves a flow by its ID. Soft deleted flows are reported as not found.
func (r *FlowRepository) GetByID(_ context.Context, id string) (*models.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flow, err := r.load(id)
	if err != nil {
		return nil, err
	}

	if flow.DeletedAt != nil {
		return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
	}

	return flow, nil
}

func (r *FlowRepository) load(id string) (*models.Flow, error) {
	var flow models.Flow

	err := r.flows.read(id, &flow)
	if isNotExist(err) {
		return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch flow %s: %w", id, err)
	}

	return &flow, nil
}

// List returns the flows matching opts, most recently created first.
func (r *FlowRepository) List(_ context.Context, opts persistence.ListFlowsOptions) ([]*models.Flow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, err := r.flows.ids()
	if err != nil {
		return nil, err
	}

	flows := make([]*models.Flow, 0, len(ids))

	for _, id := range ids {
		flow, err := r.load(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load flow %s: %w", id, err)
		}

		if flow.DeletedAt != nil {
			continue
		}

		if opts.StoreID != "" && flow.StoreID != opts.StoreID {
			continue
		}

		if opts.Status != "" && flow.Status != opts.Status {
			continue
		}

		flows = append(flows, flow)
	}

	sort.SliceStable(flows, func(i, j int) bool {
		return flows[i].CreatedAt.After(flows[j].CreatedAt)
	})

	return flows, nil
}

// ListActive returns the ACTIVE flows of a store.
func (r *FlowRepository) ListActive(ctx context.Context, storeID string) ([]*models.Flow, error) {
	return r.List(ctx, persistence.ListFlowsOptions{StoreID: storeID, Status: models.FlowStatusActive})
}

// Save saves a flow to the file system.
func (r *FlowRepository) Save(_ context.Context, flow *models.Flow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	err := r.flows.write(flow.ID, flow)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	return nil
}

// Delete soft deletes a flow by setting its deletion time.
func (r *FlowRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	flow, err := r.load(id)
	if err != nil {
		return persistence.NewFlowError("Delete", id, err)
	}

	if flow.DeletedAt != nil {
		return persistence.NewFlowError("Delete", id, persistence.ErrFlowNotFound)
	}

	now := time.Now().UTC()
	flow.DeletedAt = &now
	flow.UpdatedAt = now

	err = r.flows.write(id, flow)
	if err != nil {
		return fmt.Errorf("failed to delete flow %s: %w", id, err)
	}

	return nil
}
