// Package persistence provides the data storage abstraction for flows, executions and inventory reads.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/stockflow/pkg/models"
)

const (
	// DefaultListLimit is the page size used when none is requested.
	DefaultListLimit = 20
	// MaxListLimit caps the page size of list queries.
	MaxListLimit = 100
)

type Persistence interface {
	Flows() FlowRepository
	Executions() ExecutionRepository
	Inventory() InventoryRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// FlowRepository stores flow definitions. Deleted flows are soft deleted and hidden from reads.
type FlowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Flow, error)
	List(ctx context.Context, opts ListFlowsOptions) ([]*models.Flow, error)
	// ListActive returns the ACTIVE flows of a store.
	ListActive(ctx context.Context, storeID string) ([]*models.Flow, error)
	Save(ctx context.Context, flow *models.Flow) error
	Delete(ctx context.Context, id string) error
}

// ListFlowsOptions filters flow listings. Zero values match everything.
type ListFlowsOptions struct {
	StoreID string
	Status  models.FlowStatus
}

// ExecutionRepository stores flow runs.
type ExecutionRepository interface {
	// Save inserts or replaces an execution. It fails with ErrExecutionCompleted when the stored record is completed.
	Save(ctx context.Context, execution *models.FlowExecution) error
	GetByID(ctx context.Context, id string) (*models.FlowExecution, error)
	// List returns executions ordered by start time, most recent first.
	List(ctx context.Context, opts ListExecutionsOptions) (*ExecutionPage, error)
	Stats(ctx context.Context, flowID string) (*models.ExecutionStats, error)
}

// ListExecutionsOptions filters and paginates execution listings. Zero values match everything.
type ListExecutionsOptions struct {
	FlowID      string
	Status      models.ExecutionStatus
	TriggerType string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// Normalized returns a copy with the limit defaulted and capped and a non-negative offset.
func (o ListExecutionsOptions) Normalized() ListExecutionsOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}

	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}

	if o.Offset < 0 {
		o.Offset = 0
	}

	return o
}

// Matches reports whether execution passes the filters.
func (o ListExecutionsOptions) Matches(execution *models.FlowExecution) bool {
	if o.FlowID != "" && execution.FlowID != o.FlowID {
		return false
	}

	if o.Status != "" && execution.Status != o.Status {
		return false
	}

	if o.TriggerType != "" && execution.TriggerType != o.TriggerType {
		return false
	}

	if o.From != nil && execution.StartedAt.Before(*o.From) {
		return false
	}

	if o.To != nil && execution.StartedAt.After(*o.To) {
		return false
	}

	return true
}

// ExecutionPage is one page of an execution listing.
type ExecutionPage struct {
	Executions  []*models.FlowExecution `json:"executions"`
	TotalCount  int                     `json:"totalCount"`
	HasNextPage bool                    `json:"hasNextPage"`
}

// InventoryRepository reads the inventory records flows react to. The write methods exist for the
// development backends and seeding; the inventory itself is owned by the CRUD backend.
type InventoryRepository interface {
	ProductByID(ctx context.Context, id string) (*models.Product, error)
	StoreByID(ctx context.Context, id string) (*models.Store, error)
	MovementByID(ctx context.Context, id string) (*models.Movement, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
	// ProductsOutsideStockRange returns products whose stock is below MinStock or above a positive MaxStock.
	ProductsOutsideStockRange(ctx context.Context) ([]*models.Product, error)

	SaveProduct(ctx context.Context, product *models.Product) error
	SaveStore(ctx context.Context, store *models.Store) error
	SaveMovement(ctx context.Context, movement *models.Movement) error
	SaveUser(ctx context.Context, user *models.User) error
}

// OutsideStockRange reports whether a product is below its minimum or above a positive maximum.
func OutsideStockRange(product *models.Product) bool {
	return product.StockQuantity < product.MinStock ||
		(product.MaxStock > 0 && product.StockQuantity > product.MaxStock)
}
