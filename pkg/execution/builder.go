// Package execution assembles the execution context a flow run reads from.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/stockflow/pkg/models"
	"github.com/dukex/stockflow/pkg/persistence"
)

type ProductReader interface {
	ProductByID(ctx context.Context, id string) (*models.Product, error)
}

type StoreReader interface {
	StoreByID(ctx context.Context, id string) (*models.Store, error)
}

type MovementReader interface {
	MovementByID(ctx context.Context, id string) (*models.Movement, error)
}

type UserReader interface {
	UserByID(ctx context.Context, id string) (*models.User, error)
}

// Builder resolves the entities referenced by a trigger event.
type Builder struct {
	products  ProductReader
	stores    StoreReader
	movements MovementReader
	users     UserReader
	logger    *slog.Logger
}

// NewBuilder creates a Builder reading every entity from inventory.
func NewBuilder(inventory persistence.InventoryRepository, logger *slog.Logger) *Builder {
	return NewBuilderWithReaders(inventory, inventory, inventory, inventory, logger)
}

func NewBuilderWithReaders(
	products ProductReader,
	stores StoreReader,
	movements MovementReader,
	users UserReader,
	logger *slog.Logger,
) *Builder {
	return &Builder{
		products:  products,
		stores:    stores,
		movements: movements,
		users:     users,
		logger:    logger.With("module", "execution_context_builder"),
	}
}

// Build returns the context for event. Snapshots embedded in the event are used as is; missing
// entities are left nil, any other lookup error is returned.
func (b *Builder) Build(ctx context.Context, event *models.TriggerEvent) (*models.ExecutionContext, error) {
	timestamp := event.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	execCtx := &models.ExecutionContext{
		Trigger: models.TriggerInfo{
			Type:      event.EventType,
			Data:      event.Data(),
			Timestamp: timestamp,
		},
		Product:   event.Product,
		Movement:  event.Movement,
		Variables: make(map[string]any),
	}

	if execCtx.Movement == nil && event.MovementID != "" {
		movement, err := lookup(ctx, b, "movement", event.MovementID, b.movements.MovementByID)
		if err != nil {
			return nil, err
		}

		execCtx.Movement = movement
	}

	if execCtx.Product == nil {
		productID := event.ProductID
		if productID == "" && execCtx.Movement != nil {
			productID = execCtx.Movement.ProductID
		}

		if productID != "" {
			product, err := lookup(ctx, b, "product", productID, b.products.ProductByID)
			if err != nil {
				return nil, err
			}

			execCtx.Product = product
		}
	}

	if event.StoreID != "" {
		store, err := lookup(ctx, b, "store", event.StoreID, b.stores.StoreByID)
		if err != nil {
			return nil, err
		}

		execCtx.Store = store
	}

	if event.UserID != "" {
		user, err := lookup(ctx, b, "user", event.UserID, b.users.UserByID)
		if err != nil {
			return nil, err
		}

		execCtx.User = user
	}

	return execCtx, nil
}

func lookup[T any](
	ctx context.Context,
	b *Builder,
	kind, id string,
	read func(context.Context, string) (*T, error),
) (*T, error) {
	entity, err := read(ctx, id)
	if err != nil {
		if persistence.IsNotFound(err) {
			b.logger.DebugContext(ctx, "entity not found, omitting from context", "kind", kind, "id", id)

			return nil, nil
		}

		return nil, fmt.Errorf("failed to load %s %s: %w", kind, id, err)
	}

	return entity, nil
}
