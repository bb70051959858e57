// Package queue hands sms and push notification actions to delivery workers through Redis lists.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/stockflow/pkg/actions"
	"github.com/dukex/stockflow/pkg/models"
)

const (
	SMSQueue  = "stockflow:queue:sms"
	PushQueue = "stockflow:queue:push"
)

var ErrMissingRecipient = errors.New("sms action requires a recipient")

// Pusher is the subset of redis.Cmdable used to enqueue jobs.
type Pusher interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
}

// Job is the payload delivery workers pop from the queue.
type Job struct {
	ID          string            `json:"id"`
	Type        models.ActionType `json:"type"`
	StoreID     string            `json:"storeId"`
	FlowID      string            `json:"flowId"`
	ExecutionID string            `json:"executionId"`
	NodeID      string            `json:"nodeId"`
	Payload     map[string]any    `json:"payload"`
	EnqueuedAt  time.Time         `json:"enqueuedAt"`
}

type Dispatcher struct {
	client     Pusher
	actionType models.ActionType
	key        string
	newID      func() string
}

func NewSMSDispatcher(client Pusher, newID func() string) *Dispatcher {
	return &Dispatcher{client: client, actionType: models.ActionSMS, key: SMSQueue, newID: newID}
}

func NewPushDispatcher(client Pusher, newID func() string) *Dispatcher {
	return &Dispatcher{client: client, actionType: models.ActionPushNotification, key: PushQueue, newID: newID}
}

func (d *Dispatcher) Type() models.ActionType {
	return d.actionType
}

func (d *Dispatcher) Schema() map[string]any {
	if d.actionType == models.ActionSMS {
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to":      map[string]any{"type": "string", "minLength": 1},
				"message": map[string]any{"type": "string", "minLength": 1},
			},
			"required": []string{"to", "message"},
		}
	}

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
	if d.actionType == models.ActionSMS && actions.String(req.Config, "to") == "" {
		return nil, ErrMissingRecipient
	}

	job := Job{
		ID:          d.newID(),
		Type:        d.actionType,
		StoreID:     req.StoreID,
		FlowID:      req.FlowID,
		ExecutionID: req.ExecutionID,
		NodeID:      req.NodeID,
		Payload:     req.Config,
		EnqueuedAt:  time.Now().UTC(),
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s job: %w", d.actionType, err)
	}

	length, err := d.client.LPush(ctx, d.key, payload).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s job: %w", d.actionType, err)
	}

	return map[string]any{
		"jobId":       job.ID,
		"queue":       d.key,
		"queueLength": length,
	}, nil
}
