package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/stockflow/pkg/events"
	"github.com/dukex/stockflow/pkg/mocks"
	"github.com/dukex/stockflow/pkg/models"
)

type productList struct {
	products []*models.Product
	err      error
}

func (l productList) ProductsOutsideStockRange(context.Context) ([]*models.Product, error) {
	return l.products, l.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func isEvent(eventType models.TriggerEventType, productID string) any {
	return mock.MatchedBy(func(e events.InventoryEvent) bool {
		return e.Event.EventType == eventType &&
			e.Event.ProductID == productID &&
			e.Event.Product != nil &&
			e.Event.Timestamp.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	})
}

func TestNewSweeper(t *testing.T) {
	s, err := NewSweeper(productList{}, &mocks.MockEventBus{}, "", 0, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedule, s.schedule)

	_, err = NewSweeper(productList{}, &mocks.MockEventBus{}, "every 5 minutes", 0, discardLogger())
	require.Error(t, err)
}

func TestSweeper_Sweep(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "s1", isEvent(models.EventStockBelowMin, "p1")).Return(nil).Once()
	bus.On("Publish", mock.Anything, "s1", isEvent(models.EventStockAboveMax, "p3")).Return(nil).Once()

	products := productList{products: []*models.Product{
		{ID: "p1", StoreID: "s1", StockQuantity: 1, MinStock: 5, MaxStock: 20},
		{ID: "p2", StoreID: "s1", StockQuantity: 10, MinStock: 5, MaxStock: 20},
		{ID: "p3", StoreID: "s1", StockQuantity: 30, MinStock: 5, MaxStock: 20},
	}}

	s, err := NewSweeper(products, bus, DefaultSchedule, time.Hour, discardLogger())
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }

	published, err := s.Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, published)

	published, err = s.Sweep(t.Context())
	require.NoError(t, err)
	assert.Zero(t, published)

	bus.AssertExpectations(t)
}

func TestSweeper_Sweep_Errors(t *testing.T) {
	_, err := mustSweeper(t, productList{err: errors.New("db down")}, &mocks.MockEventBus{}).Sweep(t.Context())
	require.ErrorContains(t, err, "db down")

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "s1", mock.Anything).Return(errors.New("broker down")).Once()
	bus.On("Publish", mock.Anything, "s1", mock.Anything).Return(nil).Once()

	products := productList{products: []*models.Product{
		{ID: "p1", StoreID: "s1", StockQuantity: 1, MinStock: 5},
		{ID: "p2", StoreID: "s1", StockQuantity: 0, MinStock: 5},
	}}
	s := mustSweeper(t, products, bus)

	published, err := s.Sweep(t.Context())
	require.ErrorContains(t, err, "product p1: broker down")
	assert.Equal(t, 1, published)

	bus.On("Publish", mock.Anything, "s1", mock.Anything).Return(nil).Once()

	published, err = s.Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, published, "failed product is retried")
}

func TestSweeper_StartStop(t *testing.T) {
	s := mustSweeper(t, productList{}, &mocks.MockEventBus{})

	require.NoError(t, s.Start(t.Context()))
	require.NoError(t, s.Stop(t.Context()))

	require.NoError(t, mustSweeper(t, productList{}, &mocks.MockEventBus{}).Stop(t.Context()))
}

func mustSweeper(t *testing.T, products ProductLister, bus *mocks.MockEventBus) *Sweeper {
	t.Helper()

	s, err := NewSweeper(products, bus, "", 0, discardLogger())
	require.NoError(t, err)

	return s
}
