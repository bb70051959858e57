package cmd

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dukex/stockflow/pkg/actions"
	"github.com/dukex/stockflow/pkg/actions/email"
	"github.com/dukex/stockflow/pkg/actions/notification"
	"github.com/dukex/stockflow/pkg/actions/queue"
	"github.com/dukex/stockflow/pkg/actions/webhook"
	"github.com/dukex/stockflow/pkg/eventbus"
)

// ActionsConfig selects the delivery channels. Email needs an SMTP address and sms/push a Redis client.
type ActionsConfig struct {
	SMTP       email.Config
	Redis      *redis.Client
	HTTPClient *http.Client
}

// NewActionRegistry registers every channel the configuration allows.
func NewActionRegistry(cfg ActionsConfig, publisher eventbus.EventPublisher, logger *slog.Logger) *actions.Registry {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	registry := actions.NewRegistry(
		webhook.NewDispatcher(client, logger),
		notification.NewDispatcher(publisher),
	)

	if cfg.SMTP.Addr != "" {
		registry.Register(email.NewDispatcher(cfg.SMTP, logger))
	} else {
		logger.Warn("SMTP address not configured, email actions are disabled")
	}

	if cfg.Redis != nil {
		registry.Register(queue.NewSMSDispatcher(cfg.Redis, uuid.NewString))
		registry.Register(queue.NewPushDispatcher(cfg.Redis, uuid.NewString))
	} else {
		logger.Warn("Redis not configured, sms and push actions are disabled")
	}

	logger.Info("Action channels registered", "types", registry.Types())

	return registry
}

// NewRedisClient connects to redisURL, or returns nil when it is empty.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	return redis.NewClient(opts), nil
}
