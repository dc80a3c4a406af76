// Package generator materializes future cron occurrences into the event
// queue. It only inserts future-dated rows while the processor only
// claims past-due rows, so the two loops never contend.
package generator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dhima/webhook-scheduler/internal/logging"
	"github.com/dhima/webhook-scheduler/internal/models"
	"github.com/dhima/webhook-scheduler/internal/schedule"
	"github.com/dhima/webhook-scheduler/internal/storage"
	"github.com/dhima/webhook-scheduler/pkg/clock"
)

// Generator periodically re-hydrates deprived triggers up to the full
// event horizon.
type Generator struct {
	interval time.Duration
	store    EventStore
	catalog  TriggerCatalog
	clk      clock.Clock
	logger   logging.Logger
}

// New constructs a generator with the provided polling cadence.
func New(interval time.Duration, store EventStore, catalog TriggerCatalog, logger logging.Logger) *Generator {
	return NewWithClock(interval, store, catalog, logger, clock.RealClock{})
}

// NewWithClock is New with an injectable clock for tests.
func NewWithClock(interval time.Duration, store EventStore, catalog TriggerCatalog, logger logging.Logger, clk clock.Clock) *Generator {
	return &Generator{
		interval: interval,
		store:    store,
		catalog:  catalog,
		clk:      clk,
		logger:   logger,
	}
}

// Run hydrates once immediately, then on every tick until ctx is
// cancelled. Errors never stop the loop.
func (g *Generator) Run(ctx context.Context) {
	g.logger.Info("generator started", zap.Duration("interval", g.interval))

	g.Hydrate(ctx)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.Hydrate(ctx)
		case <-ctx.Done():
			g.logger.Info("generator shutting down")
			return
		}
	}
}

// Hydrate runs one generator iteration: find deprived triggers, compute
// the next occurrences from each trigger's horizon edge, bulk-insert.
func (g *Generator) Hydrate(ctx context.Context) {
	stats, err := g.store.FetchDeprivedStats(ctx)
	if err != nil {
		g.logger.Error("failed to fetch deprived trigger stats", zap.Error(err))
		return
	}
	if len(stats) == 0 {
		return
	}

	triggers := g.catalog.Snapshot()

	var seeds []models.CronSeed
	for _, stat := range stats {
		def, ok := triggers[stat.TriggerName]
		if !ok {
			g.logger.Error("deprived trigger missing from catalog",
				zap.String("trigger_name", stat.TriggerName))
			continue
		}

		// An empty trigger hydrates from wall clock; otherwise extend
		// past the newest existing occurrence.
		start := g.clk.Now().UTC()
		if stat.MaxScheduledTime != nil {
			start = *stat.MaxScheduledTime
		}

		times, err := schedule.Upcoming(start, storage.HydrationBufferSize, def.Schedule)
		if err != nil {
			g.logger.Error("failed to compute upcoming occurrences",
				zap.String("trigger_name", stat.TriggerName),
				zap.String("schedule", def.Schedule),
				zap.Error(err))
			continue
		}

		for _, t := range times {
			seeds = append(seeds, models.CronSeed{
				ID:            uuid.New().String(),
				TriggerName:   stat.TriggerName,
				ScheduledTime: t,
			})
		}
	}

	if len(seeds) == 0 {
		return
	}
	if err := g.store.InsertCronSeeds(ctx, seeds); err != nil {
		g.logger.Error("failed to insert cron seeds", zap.Error(err))
		return
	}

	g.logger.Info("hydrated deprived triggers",
		zap.Int("triggers", len(stats)),
		zap.Int("seeds", len(seeds)))
}
