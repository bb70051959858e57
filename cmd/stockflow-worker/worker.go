package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/stockflow/pkg/eventbus"
	"github.com/dukex/stockflow/pkg/flow"
	"github.com/dukex/stockflow/pkg/persistence"
	"github.com/dukex/stockflow/pkg/sweep"
)

const shutdownTimeout = 30 * time.Second

// Worker consumes inventory events and runs the active flows of their store.
type Worker struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	executor    *flow.Executor
	sweeper     *sweep.Sweeper
}

// NewWorker returns a worker. sweeper may be nil to disable the stock sweep.
func NewWorker(
	id string,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	executor *flow.Executor,
	sweeper *sweep.Sweeper,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		id:          id,
		logger:      logger.With("module", "stockflow-worker", "worker_id", id),
		persistence: persistence,
		eventBus:    eventBus,
		executor:    executor,
		sweeper:     sweeper,
	}
}

// Start blocks until ctx ends or the process receives SIGINT/SIGTERM.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := flow.NewDispatcher(w.persistence.Flows(), w.executor, w.logger)

	err := dispatcher.Register(w.eventBus)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	if w.sweeper != nil {
		err = w.sweeper.Start(ctx)
		if err != nil {
			return err
		}
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	<-ctx.Done()
	w.logger.InfoContext(ctx, "Shutting down worker...")

	if w.sweeper != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		err = w.sweeper.Stop(stopCtx)
		if err != nil {
			w.logger.ErrorContext(ctx, "Stock sweep did not finish before shutdown", "error", err)
		}
	}

	return nil
}
