package flow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/stockflow/pkg/eventbus"
	"github.com/dukex/stockflow/pkg/otelhelper"
)

// DefaultActionTimeout bounds a single action dispatch.
const DefaultActionTimeout = 10 * time.Second

// FailurePolicy decides what a failed action does to the rest of the run.
type FailurePolicy string

const (
	// PolicyContinue records the failure and keeps visiting other branches. The run ends SUCCESS.
	PolicyContinue FailurePolicy = "continue"
	// PolicyFailFast stops at the first failed action. The run ends FAILED.
	PolicyFailFast FailurePolicy = "fail_fast"
)

func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", PolicyContinue:
		return PolicyContinue, nil
	case PolicyFailFast:
		return PolicyFailFast, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}

type config struct {
	actionTimeout   time.Duration
	policy          FailurePolicy
	startCheckpoint bool
	publisher       eventbus.EventPublisher
	tracer          trace.Tracer
	now             func() time.Time
	newID           func() string
}

type Option func(*config)

func WithActionTimeout(timeout time.Duration) Option {
	return func(c *config) {
		if timeout > 0 {
			c.actionTimeout = timeout
		}
	}
}

func WithFailurePolicy(policy FailurePolicy) Option {
	return func(c *config) {
		c.policy = policy
	}
}

// WithStartCheckpoint saves the RUNNING record before the first node is visited.
func WithStartCheckpoint() Option {
	return func(c *config) {
		c.startCheckpoint = true
	}
}

// WithPublisher publishes a flow.execution.finished event after every saved run.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(c *config) {
		c.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *config) {
		c.tracer = tracer
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(c *config) {
		c.newID = newID
	}
}

func newExecutionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

func defaultConfig() config {
	return config{
		actionTimeout: DefaultActionTimeout,
		policy:        PolicyContinue,
		tracer:        otelhelper.NoopTracer("stockflow/flow"),
		now:           func() time.Time { return time.Now().UTC() },
		newID:         newExecutionID,
	}
}
