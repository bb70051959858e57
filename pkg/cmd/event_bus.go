// Package cmd provides common initialization functions for the command-line applications.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/dukex/stockflow/pkg/channels/gochannel"
	"github.com/dukex/stockflow/pkg/channels/kafka"
	"github.com/dukex/stockflow/pkg/eventbus"
)

var ErrUnsupportedEventBus = errors.New("unsupported event bus provider")

// IsInProcessEventBus reports whether provider only delivers inside the publishing process.
func IsInProcessEventBus(provider string) bool {
	return provider == "" || provider == "gochannel"
}

// NewEventBus creates the bus for provider "gochannel" (in-process, the default) or "kafka".
// serviceName is the Kafka consumer group.
func NewEventBus(provider, brokers, serviceName string, logger *slog.Logger) (*eventbus.WatermillEventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch {
	case IsInProcessEventBus(provider):
		pub, sub, err := gochannel.CreateChannel(wmLogger, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger), nil
	case provider == "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, kafka.ParseBrokers(brokers), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEventBus, provider)
	}
}
