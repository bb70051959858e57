package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/stockflow/pkg/actions"
	"github.com/dukex/stockflow/pkg/eventbus"
	"github.com/dukex/stockflow/pkg/execution"
	"github.com/dukex/stockflow/pkg/flow"
	"github.com/dukex/stockflow/pkg/otelhelper"
	"github.com/dukex/stockflow/pkg/persistence"
)

// ExecutorConfig holds the run settings read from flags.
type ExecutorConfig struct {
	ActionTimeout   time.Duration
	FailurePolicy   string
	StoreCacheTTL   time.Duration
	StartCheckpoint bool
}

// NewExecutor wires the context builder, with cached store lookups, and the action registry into an executor.
func NewExecutor(
	p persistence.Persistence,
	registry *actions.Registry,
	publisher eventbus.EventPublisher,
	tracer trace.Tracer,
	cfg ExecutorConfig,
	logger *slog.Logger,
) (*flow.Executor, error) {
	policy, err := flow.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return nil, err
	}

	inventory := p.Inventory()
	builder := execution.NewBuilderWithReaders(
		inventory,
		execution.NewCachedStoreReader(inventory, cfg.StoreCacheTTL),
		inventory,
		inventory,
		logger,
	)

	opts := []flow.Option{
		flow.WithFailurePolicy(policy),
		flow.WithPublisher(publisher),
		flow.WithTracer(tracer),
	}

	if cfg.ActionTimeout > 0 {
		opts = append(opts, flow.WithActionTimeout(cfg.ActionTimeout))
	}

	if cfg.StartCheckpoint {
		opts = append(opts, flow.WithStartCheckpoint())
	}

	return flow.NewExecutor(builder, registry, p.Executions(), logger, opts...), nil
}

// NewTracer returns an OTLP tracer when enabled and a no-op one otherwise. The shutdown func is never nil.
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, enabled bool, serviceName string) (trace.Tracer, func(context.Context) error, error) {
	if !enabled {
		return otelhelper.NoopTracer(serviceName), func(context.Context) error { return nil }, nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	return tracer, shutdown, nil
}
