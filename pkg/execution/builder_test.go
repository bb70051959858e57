package execution_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/stockflow/pkg/execution"
	"github.com/dukex/stockflow/pkg/models"
	"github.com/dukex/stockflow/pkg/persistence"
	"github.com/dukex/stockflow/pkg/persistence/file"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededInventory(t *testing.T) persistence.InventoryRepository {
	t.Helper()

	ctx := t.Context()
	inventory := file.NewPersistence(t.TempDir()).Inventory()

	require.NoError(t, inventory.SaveStore(ctx, &models.Store{ID: "s1", Name: "Main"}))
	require.NoError(t, inventory.SaveProduct(ctx, &models.Product{ID: "p1", StoreID: "s1", Name: "Widget", StockQuantity: 3}))
	require.NoError(t, inventory.SaveMovement(ctx, &models.Movement{ID: "m1", StoreID: "s1", ProductID: "p1", Type: models.MovementOut, Quantity: 2}))
	require.NoError(t, inventory.SaveUser(ctx, &models.User{ID: "u1", Name: "Ana"}))

	return inventory
}

func TestBuilder_Build_LoadsEntities(t *testing.T) {
	builder := execution.NewBuilder(seededInventory(t), discardLogger())
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	execCtx, err := builder.Build(t.Context(), &models.TriggerEvent{
		EventType:  models.EventMovementCreated,
		StoreID:    "s1",
		MovementID: "m1",
		UserID:     "u1",
		Timestamp:  ts,
	})

	require.NoError(t, err)
	assert.Equal(t, models.EventMovementCreated, execCtx.Trigger.Type)
	assert.Equal(t, ts, execCtx.Trigger.Timestamp)
	assert.Equal(t, "m1", execCtx.Trigger.Data["movementId"])
	require.NotNil(t, execCtx.Movement)
	require.NotNil(t, execCtx.Product, "product id taken from the movement")
	assert.Equal(t, "Widget", execCtx.Product.Name)
	assert.Equal(t, "Main", execCtx.Store.Name)
	assert.Equal(t, "Ana", execCtx.User.Name)
	assert.NotNil(t, execCtx.Variables)
}

func TestBuilder_Build_EmbeddedSnapshotWins(t *testing.T) {
	builder := execution.NewBuilder(seededInventory(t), discardLogger())

	execCtx, err := builder.Build(t.Context(), &models.TriggerEvent{
		EventType: models.EventStockChange,
		StoreID:   "s1",
		ProductID: "p1",
		Product:   &models.Product{ID: "p1", Name: "Snapshot", StockQuantity: 99},
	})

	require.NoError(t, err)
	assert.Equal(t, "Snapshot", execCtx.Product.Name)
	assert.False(t, execCtx.Trigger.Timestamp.IsZero())
}

func TestBuilder_Build_MissingEntitiesOmitted(t *testing.T) {
	builder := execution.NewBuilder(seededInventory(t), discardLogger())

	execCtx, err := builder.Build(t.Context(), &models.TriggerEvent{
		EventType: models.EventStockChange,
		StoreID:   "unknown-store",
		ProductID: "unknown-product",
		UserID:    "unknown-user",
	})

	require.NoError(t, err)
	assert.Nil(t, execCtx.Product)
	assert.Nil(t, execCtx.Store)
	assert.Nil(t, execCtx.User)
	assert.Nil(t, execCtx.Movement)
}

type failingStores struct{ calls int }

func (f *failingStores) StoreByID(context.Context, string) (*models.Store, error) {
	f.calls++

	return nil, errors.New("connection refused")
}

func TestBuilder_Build_LookupErrorReturned(t *testing.T) {
	inventory := seededInventory(t)
	builder := execution.NewBuilderWithReaders(inventory, &failingStores{}, inventory, inventory, discardLogger())

	_, err := builder.Build(t.Context(), &models.TriggerEvent{EventType: models.EventStockChange, StoreID: "s1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

type countingStores struct{ calls int }

func (c *countingStores) StoreByID(_ context.Context, id string) (*models.Store, error) {
	c.calls++

	return &models.Store{ID: id, Name: "Main"}, nil
}

func TestCachedStoreReader(t *testing.T) {
	next := &countingStores{}
	reader := execution.NewCachedStoreReader(next, time.Minute)

	for range 3 {
		store, err := reader.StoreByID(t.Context(), "s1")
		require.NoError(t, err)
		assert.Equal(t, "Main", store.Name)
	}

	assert.Equal(t, 1, next.calls)

	reader.Invalidate("s1")

	_, err := reader.StoreByID(t.Context(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedStoreReader_ErrorsNotCached(t *testing.T) {
	next := &failingStores{}
	reader := execution.NewCachedStoreReader(next, 0)

	_, err := reader.StoreByID(t.Context(), "s1")
	require.Error(t, err)

	_, err = reader.StoreByID(t.Context(), "s1")
	require.Error(t, err)
	assert.Equal(t, 2, next.calls)
}
