// Package sweep periodically emits stock_below_min and stock_above_max events for products outside
// their stock band.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"

	"github.com/dukex/stockflow/pkg/eventbus"
	"github.com/dukex/stockflow/pkg/events"
	"github.com/dukex/stockflow/pkg/models"
)

const (
	DefaultSchedule = "*/15 * * * *"
	// DefaultRepeatAfter is how long a product stays silent after an event for the same band.
	DefaultRepeatAfter = 24 * time.Hour
)

// ProductLister returns the products whose stock is outside their min/max band.
type ProductLister interface {
	ProductsOutsideStockRange(ctx context.Context) ([]*models.Product, error)
}

type Sweeper struct {
	products  ProductLister
	publisher eventbus.EventPublisher
	schedule  string
	emitted   *cache.Cache
	cron      *cron.Cron
	now       func() time.Time
	logger    *slog.Logger
}

// NewSweeper validates schedule (standard five field cron, empty for the default) and returns a
// stopped sweeper. A repeatAfter <= 0 uses DefaultRepeatAfter.
func NewSweeper(
	products ProductLister,
	publisher eventbus.EventPublisher,
	schedule string,
	repeatAfter time.Duration,
	logger *slog.Logger,
) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	if repeatAfter <= 0 {
		repeatAfter = DefaultRepeatAfter
	}

	return &Sweeper{
		products:  products,
		publisher: publisher,
		schedule:  schedule,
		emitted:   cache.New(repeatAfter, 2*repeatAfter),
		now:       time.Now,
		logger:    logger.With("module", "stock_sweeper", "schedule", schedule),
	}, nil
}

// Start runs Sweep on the schedule until Stop. Overlapping runs are skipped.
func (s *Sweeper) Start(ctx context.Context) error {
	log := cronLogger{s.logger}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(log),
		cron.Recover(log),
	))

	_, err := s.cron.AddFunc(s.schedule, func() {
		published, err := s.Sweep(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "Stock sweep failed", "error", err, "published", published)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule stock sweep: %w", err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Stock sweeper started")

	return nil
}

// Stop stops the schedule and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep publishes one inventory event per product outside its band and returns how many were published.
// Products already reported for the same band within the repeat window are skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	products, err := s.products.ProductsOutsideStockRange(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list products outside stock range: %w", err)
	}

	var (
		published int
		errs      []error
	)

	for _, product := range products {
		eventType, ok := bandEvent(product)
		if !ok {
			continue
		}

		key := product.ID + ":" + string(eventType)
		if _, seen := s.emitted.Get(key); seen {
			continue
		}

		snapshot := *product
		event := events.NewInventoryEvent(models.TriggerEvent{
			EventType: eventType,
			StoreID:   product.StoreID,
			ProductID: product.ID,
			Product:   &snapshot,
			Timestamp: s.now().UTC(),
		})

		err := s.publisher.Publish(ctx, product.StoreID, event)
		if err != nil {
			errs = append(errs, fmt.Errorf("product %s: %w", product.ID, err))

			continue
		}

		s.emitted.SetDefault(key, struct{}{})
		published++
	}

	s.logger.DebugContext(ctx, "Stock sweep finished", "candidates", len(products), "published", published)

	return published, errors.Join(errs...)
}

func bandEvent(product *models.Product) (models.TriggerEventType, bool) {
	switch {
	case product.StockQuantity < product.MinStock:
		return models.EventStockBelowMin, true
	case product.MaxStock > 0 && product.StockQuantity > product.MaxStock:
		return models.EventStockAboveMax, true
	default:
		return "", false
	}
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
