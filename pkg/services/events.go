package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dukex/stockflow/pkg/eventbus"
	"github.com/dukex/stockflow/pkg/events"
	"github.com/dukex/stockflow/pkg/models"
)

type Events struct {
	publisher eventbus.EventPublisher
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewEvents creates a service that publishes inventory events for the worker.
func NewEvents(publisher eventbus.EventPublisher, validate *validator.Validate, logger *slog.Logger) *Events {
	return &Events{
		publisher: publisher,
		validate:  validate,
		logger:    logger.With("module", "events_service"),
	}
}

// Emit validates an inventory event and publishes it keyed by store.
func (s *Events) Emit(ctx context.Context, event *models.TriggerEvent) (*events.InventoryEvent, error) {
	if event == nil {
		return nil, ErrInvalidEvent
	}

	err := s.validate.Struct(event)
	if err != nil {
		return nil, NewRequestError("Emit", "INVALID_EVENT", err.Error(), ErrInvalidEvent)
	}

	if !slices.Contains(models.TriggerEventTypes, event.EventType) {
		return nil, NewRequestError("Emit", "INVALID_EVENT", fmt.Sprintf("unknown eventType '%s'", event.EventType), ErrInvalidEvent)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	inventoryEvent := events.NewInventoryEvent(*event)

	err = s.publisher.Publish(ctx, event.StoreID, inventoryEvent)
	if err != nil {
		return nil, fmt.Errorf("failed to publish inventory event: %w", err)
	}

	s.logger.DebugContext(ctx, "Inventory event published",
		"event_id", inventoryEvent.ID,
		"event_type", event.EventType,
		"store_id", event.StoreID,
	)

	return &inventoryEvent, nil
}
