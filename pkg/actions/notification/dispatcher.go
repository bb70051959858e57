// Package notification raises in-app notifications on the event bus.
package notification

import (
	"context"
	"fmt"

	"github.com/dukex/stockflow/pkg/actions"
	"github.com/dukex/stockflow/pkg/eventbus"
	"github.com/dukex/stockflow/pkg/events"
	"github.com/dukex/stockflow/pkg/models"
)

type Dispatcher struct {
	publisher eventbus.EventPublisher
}

func NewDispatcher(publisher eventbus.EventPublisher) *Dispatcher {
	return &Dispatcher{publisher: publisher}
}

func (d *Dispatcher) Type() models.ActionType {
	return models.ActionInternalNotification
}

func (d *Dispatcher) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{"type": "string", "minLength": 1},
			"title":   map[string]any{"type": "string"},
			"userIds": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"message"},
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, req actions.Request) (map[string]any, error) {
	event := events.NotificationCreated{
		BaseEvent: events.NewBaseEvent(events.NotificationCreatedEvent, req.StoreID),
		FlowID:    req.FlowID,
		NodeID:    req.NodeID,
		Title:     actions.String(req.Config, "title"),
		Message:   actions.String(req.Config, "message"),
		UserIDs:   actions.Strings(req.Config, "userIds"),
	}

	err := d.publisher.Publish(ctx, req.StoreID, event)
	if err != nil {
		return nil, fmt.Errorf("failed to publish notification: %w", err)
	}

	return map[string]any{"notificationId": event.ID}, nil
}
