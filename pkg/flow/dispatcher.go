package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/stockflow/pkg/eventbus"
	"github.com/dukex/stockflow/pkg/events"
	"github.com/dukex/stockflow/pkg/models"
)

var ErrInvalidEvent = errors.New("invalid trigger event")

// ActiveFlowLister returns the ACTIVE flows of a store.
type ActiveFlowLister interface {
	ListActive(ctx context.Context, storeID string) ([]*models.Flow, error)
}

// Dispatcher fans an inventory event out to the active flows of its store.
type Dispatcher struct {
	flows    ActiveFlowLister
	executor *Executor
	logger   *slog.Logger
}

func NewDispatcher(flows ActiveFlowLister, executor *Executor, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		flows:    flows,
		executor: executor,
		logger:   logger.With("module", "flow_dispatcher"),
	}
}

// HandleEvent executes every active flow of the event store and returns the executions created.
// A flow that fails or does not match never stops the others; only listing errors are returned.
func (d *Dispatcher) HandleEvent(ctx context.Context, event *models.TriggerEvent) ([]*models.FlowExecution, error) {
	if event.EventType == "" || event.StoreID == "" {
		return nil, fmt.Errorf("%w: eventType and storeId are required", ErrInvalidEvent)
	}

	flows, err := d.flows.ListActive(ctx, event.StoreID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active flows of store %s: %w", event.StoreID, err)
	}

	logger := d.logger.With("store_id", event.StoreID, "event_type", event.EventType)
	logger.DebugContext(ctx, "Dispatching event", "active_flows", len(flows))

	executions := make([]*models.FlowExecution, 0, len(flows))

	for _, flow := range flows {
		execution, err := d.executor.Execute(ctx, flow, event)

		switch {
		case errors.Is(err, ErrTriggerNotMatched):
			logger.DebugContext(ctx, "Flow not triggered", "flow_id", flow.ID)
		case err != nil:
			logger.ErrorContext(ctx, "Flow execution failed", "flow_id", flow.ID, "error", err)
		}

		if execution != nil {
			executions = append(executions, execution)
		}
	}

	return executions, nil
}

// Register subscribes the dispatcher to inventory events on bus. Invalid events are dropped, listing
// errors are returned so the message is redelivered.
func (d *Dispatcher) Register(bus eventbus.EventSubscriber) error {
	return bus.Handle(events.InventoryEventType, func(ctx context.Context, event any) error {
		inventoryEvent, ok := event.(*events.InventoryEvent)
		if !ok {
			d.logger.ErrorContext(ctx, "Dropping unexpected payload", "type", fmt.Sprintf("%T", event))

			return nil
		}

		_, err := d.HandleEvent(ctx, &inventoryEvent.Event)
		if errors.Is(err, ErrInvalidEvent) {
			d.logger.ErrorContext(ctx, "Dropping invalid inventory event", "event_id", inventoryEvent.ID, "error", err)

			return nil
		}

		return err
	})
}
