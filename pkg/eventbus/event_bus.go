// Package eventbus carries inventory events to the flow worker and execution results back out.
package eventbus

import (
	"context"

	"github.com/dukex/stockflow/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes events keyed by store id, so events of one store keep their order on
// partitioned transports.
type EventPublisher interface {
	Publish(ctx context.Context, storeID string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event. Returning an error nacks the message.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
