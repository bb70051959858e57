// Package events defines the events exchanged between the API, the worker and the delivery workers.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukex/stockflow/pkg/models"
)

type EventType string

const Topic = "stockflow.events"

const (
	StoreIDMetadataKey   = "store_id"
	EventTypeMetadataKey = "event_type"
)

const (
	InventoryEventType         EventType = "inventory.event"
	FlowExecutionFinishedEvent EventType = "flow.execution.finished"
	NotificationCreatedEvent   EventType = "notification.created"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	StoreID   string         `json:"store_id"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, storeID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		StoreID:   storeID,
		Metadata:  make(map[string]any),
	}
}

// InventoryEvent carries a trigger event from the CRUD backend or the stock sweeper.
type InventoryEvent struct {
	BaseEvent

	Event models.TriggerEvent `json:"event"`
}

func (e InventoryEvent) GetType() EventType {
	return InventoryEventType
}

func NewInventoryEvent(event models.TriggerEvent) InventoryEvent {
	return InventoryEvent{
		BaseEvent: NewBaseEvent(InventoryEventType, event.StoreID),
		Event:     event,
	}
}

// FlowExecutionFinished is published once per completed run.
type FlowExecutionFinished struct {
	BaseEvent

	FlowID      string                 `json:"flow_id"`
	ExecutionID string                 `json:"execution_id"`
	Status      models.ExecutionStatus `json:"status"`
	TriggerType string                 `json:"trigger_type"`
	Error       string                 `json:"error,omitempty"`
	DurationMs  int64                  `json:"duration_ms"`
}

func (e FlowExecutionFinished) GetType() EventType {
	return FlowExecutionFinishedEvent
}

func NewFlowExecutionFinished(flow *models.Flow, execution *models.FlowExecution) FlowExecutionFinished {
	finished := FlowExecutionFinished{
		BaseEvent:   NewBaseEvent(FlowExecutionFinishedEvent, flow.StoreID),
		FlowID:      execution.FlowID,
		ExecutionID: execution.ID,
		Status:      execution.Status,
		TriggerType: execution.TriggerType,
		Error:       execution.Error,
	}

	if execution.DurationMs != nil {
		finished.DurationMs = *execution.DurationMs
	}

	return finished
}

// NotificationCreated is an in-app notification raised by an internal_notification action.
type NotificationCreated struct {
	BaseEvent

	FlowID  string   `json:"flow_id,omitempty"`
	NodeID  string   `json:"node_id,omitempty"`
	Title   string   `json:"title,omitempty"`
	Message string   `json:"message"`
	UserIDs []string `json:"user_ids,omitempty"`
}

func (e NotificationCreated) GetType() EventType {
	return NotificationCreatedEvent
}
