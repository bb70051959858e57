package main

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
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dukex/stockflow/pkg/cmd"
	"github.com/dukex/stockflow/pkg/eventbus"
	"github.com/dukex/stockflow/pkg/events"
	"github.com/dukex/stockflow/pkg/mocks"
	"github.com/dukex/stockflow/pkg/models"
	"github.com/dukex/stockflow/pkg/persistence"
	"github.com/dukex/stockflow/pkg/persistence/file"
	"github.com/dukex/stockflow/pkg/sweep"
	tu "github.com/dukex/stockflow/pkg/testutil"
)

type workerFixture struct {
	persistence persistence.Persistence
	bus         *mocks.MockEventBus
	worker      *Worker
}

func newWorkerFixture(t *testing.T, withSweeper bool) *workerFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := file.NewPersistence(t.TempDir())
	bus := &mocks.MockEventBus{}

	require.NoError(t, p.Inventory().SaveStore(t.Context(), &models.Store{ID: "s1", Name: "Main"}))
	require.NoError(t, p.Inventory().SaveProduct(t.Context(), &models.Product{ID: "P1", StoreID: "s1", Name: "Widget", StockQuantity: 4}))

	registry := cmd.NewActionRegistry(cmd.ActionsConfig{}, bus, logger)

	executor, err := cmd.NewExecutor(p, registry, bus, noop.NewTracerProvider().Tracer("test"), cmd.ExecutorConfig{}, logger)
	require.NoError(t, err)

	var sweeper *sweep.Sweeper

	if withSweeper {
		sweeper, err = sweep.NewSweeper(p.Inventory(), bus, "", 0, logger)
		require.NoError(t, err)
	}

	return &workerFixture{
		persistence: p,
		bus:         bus,
		worker:      NewWorker("worker-test", p, bus, executor, sweeper, logger),
	}
}

// start runs the worker until the test ends and returns the registered inventory handler.
func (f *workerFixture) start(t *testing.T) eventbus.EventHandler {
	t.Helper()

	handlers := make(chan eventbus.EventHandler, 1)

	f.bus.On("Handle", events.InventoryEventType, mock.Anything).
		Run(func(args mock.Arguments) { handlers <- args.Get(1).(eventbus.EventHandler) }).
		Return(nil)
	f.bus.On("Subscribe", mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- f.worker.Start(ctx) }()

	t.Cleanup(func() {
		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("worker did not stop")
		}
	})

	select {
	case handler := <-handlers:
		return handler
	case <-time.After(5 * time.Second):
		t.Fatal("inventory handler was not registered")

		return nil
	}
}

func TestWorker_RunsActiveFlowsOnInventoryEvents(t *testing.T) {
	f := newWorkerFixture(t, false)

	flow := tu.CreateTestFlow(tu.WithNodes(
		[]models.FlowNode{
			tu.TriggerNode("t1", models.EventStockChange),
			tu.NotificationNode("n1", models.ActionInternalNotification, map[string]any{"message": "{{product.name}} changed"}),
		},
		tu.Chain("t1", "n1"),
	))
	require.NoError(t, f.persistence.Flows().Save(t.Context(), flow))

	f.bus.On("Publish", mock.Anything, "s1", mock.Anything).Return(nil)

	handler := f.start(t)

	event := events.NewInventoryEvent(models.TriggerEvent{
		EventType: models.EventStockChange,
		StoreID:   "s1",
		ProductID: "P1",
	})
	require.NoError(t, handler(t.Context(), &event))

	page, err := f.persistence.Executions().List(t.Context(), persistence.ListExecutionsOptions{FlowID: flow.ID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Executions, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, page.Executions[0].Status)

	f.bus.AssertCalled(t, "Publish", mock.Anything, "s1", mock.MatchedBy(func(e events.NotificationCreated) bool {
		return e.Message == "Widget changed" && e.FlowID == flow.ID
	}))
}

func TestWorker_DropsInvalidEvents(t *testing.T) {
	f := newWorkerFixture(t, false)

	handler := f.start(t)

	event := events.NewInventoryEvent(models.TriggerEvent{EventType: models.EventStockChange})
	require.NoError(t, handler(t.Context(), &event))

	f.bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorker_StartsAndStopsSweeper(t *testing.T) {
	f := newWorkerFixture(t, true)

	handler := f.start(t)
	assert.NotNil(t, handler)
}

func TestWorker_SubscribeError(t *testing.T) {
	f := newWorkerFixture(t, false)

	subscribeErr := errors.New("broker unavailable")

	f.bus.On("Handle", events.InventoryEventType, mock.Anything).Return(nil)
	f.bus.On("Subscribe", mock.Anything).Return(subscribeErr)

	err := f.worker.Start(t.Context())

	require.ErrorIs(t, err, subscribeErr)
}

func TestWorker_HandleError(t *testing.T) {
	f := newWorkerFixture(t, false)

	handleErr := errors.New("already registered")

	f.bus.On("Handle", events.InventoryEventType, mock.Anything).Return(handleErr)

	err := f.worker.Start(t.Context())

	require.ErrorIs(t, err, handleErr)
	f.bus.AssertNotCalled(t, "Subscribe", mock.Anything)
}
