package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dukex/stockflow/pkg/eventbus"
	"github.com/dukex/stockflow/pkg/events"
)

// MockEventBus records publishes and handler registrations. Payloads reach Publish by value.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, storeID string, event eventbus.Event) error {
	args := m.Called(ctx, storeID, event)

	return args.Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	args := m.Called(eventType, handler)

	return args.Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockEventBus) Close() error {
	args := m.Called()

	return args.Error(0)
}
