// Package processor claims due events, delivers them over HTTP, and
// drives the event-lifecycle state machine. Cross-replica exclusion
// comes entirely from the store's SKIP LOCKED claim queries; within the
// process, the locked-event registry tracks what this replica owns so a
// graceful shutdown can hand it back.
package processor

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dhima/webhook-scheduler/internal/catalog"
	"github.com/dhima/webhook-scheduler/internal/logging"
	"github.com/dhima/webhook-scheduler/internal/models"
	"github.com/dhima/webhook-scheduler/internal/registry"
	"github.com/dhima/webhook-scheduler/pkg/clock"
)

// ErrShuttingDown aborts delivery between the shutdown signal and the
// drain. Events hit by it stay locked and registered so Drain returns
// them to the queue.
var ErrShuttingDown = errors.New("processor is shutting down")

// Processor runs the two-phase claim/deliver loop.
type Processor struct {
	interval   time.Duration
	store      EventStore
	catalog    TriggerCatalog
	registry   *registry.Registry
	httpClient *http.Client
	publisher  OutcomePublisher // optional
	clk        clock.Clock
	logger     logging.Logger
	stopping   atomic.Bool
}

// New constructs a processor. publisher may be nil when outcome
// publishing is not configured.
func New(interval time.Duration, store EventStore, cat TriggerCatalog, reg *registry.Registry, httpClient *http.Client, publisher OutcomePublisher, logger logging.Logger) *Processor {
	return NewWithClock(interval, store, cat, reg, httpClient, publisher, logger, clock.RealClock{})
}

// NewWithClock is New with an injectable clock for tests.
func NewWithClock(interval time.Duration, store EventStore, cat TriggerCatalog, reg *registry.Registry, httpClient *http.Client, publisher OutcomePublisher, logger logging.Logger, clk clock.Clock) *Processor {
	return &Processor{
		interval:   interval,
		store:      store,
		catalog:    cat,
		registry:   reg,
		httpClient: httpClient,
		publisher:  publisher,
		clk:        clk,
		logger:     logger,
	}
}

// Run processes due events until ctx is cancelled, then flags shutdown
// so no further state transitions are written. Call Drain afterwards to
// release still-owned events.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("processor started", zap.Duration("interval", p.interval))

	p.ProcessIteration(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.ProcessIteration(ctx)
		case <-ctx.Done():
			p.stopping.Store(true)
			p.logger.Info("processor shutting down")
			return
		}
	}
}

// ProcessIteration runs one tick: cron phase, then one-off phase.
func (p *Processor) ProcessIteration(ctx context.Context) {
	p.processCronEvents(ctx)
	p.processOneOffEvents(ctx)
}

func (p *Processor) processCronEvents(ctx context.Context) {
	triggers := p.catalog.Snapshot()

	events, err := p.store.LockDueCronEvents(ctx)
	if err != nil {
		p.logger.Error("failed to lock due cron events", zap.Error(err))
		return
	}
	if len(events) == 0 {
		return
	}

	// Register everything before processing anything: if shutdown fires
	// mid-batch, the not-yet-processed claims are still released.
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	p.registry.InsertMany(models.EventClassCron, ids)

	p.logger.Info("processing due cron events", zap.Int("count", len(events)))

	for _, event := range events {
		def, ok := triggers[event.TriggerName]
		if !ok {
			// Row stays locked and registered; a restart's blanket
			// unlock reclaims it once the catalog catches up.
			p.logger.Error("cron event refers to trigger missing from catalog",
				zap.String("event_id", event.ID),
				zap.String("trigger_name", event.TriggerName))
			continue
		}

		full, err := p.buildCronEventFull(event, def)
		if err != nil {
			p.logger.Error("failed to prepare cron event for delivery",
				zap.String("event_id", event.ID),
				zap.String("trigger_name", event.TriggerName),
				zap.Error(err))
			continue
		}

		if err := p.deliver(ctx, models.EventClassCron, full); err != nil {
			p.logger.Error("cron event delivery aborted",
				zap.String("event_id", event.ID),
				zap.String("trigger_name", event.TriggerName),
				zap.Error(err))
			continue
		}
		p.registry.Remove(models.EventClassCron, event.ID)
	}
}

func (p *Processor) processOneOffEvents(ctx context.Context) {
	events, err := p.store.LockDueOneOffEvents(ctx)
	if err != nil {
		p.logger.Error("failed to lock due one-off events", zap.Error(err))
		return
	}
	if len(events) == 0 {
		return
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	p.registry.InsertMany(models.EventClassOneOff, ids)

	p.logger.Info("processing due one-off events", zap.Int("count", len(events)))

	for _, event := range events {
		full, err := p.buildOneOffEventFull(event)
		if err != nil {
			p.logger.Error("failed to prepare one-off event for delivery",
				zap.String("event_id", event.ID),
				zap.Error(err))
			continue
		}

		if err := p.deliver(ctx, models.EventClassOneOff, full); err != nil {
			p.logger.Error("one-off event delivery aborted",
				zap.String("event_id", event.ID),
				zap.Error(err))
			continue
		}
		p.registry.Remove(models.EventClassOneOff, event.ID)
	}
}

func (p *Processor) buildCronEventFull(event models.CronEventPartial, def models.CronTriggerDefinition) (*models.ScheduledEventFull, error) {
	url, err := catalog.ResolveWebhook(def.Webhook)
	if err != nil {
		return nil, err
	}
	headers, err := catalog.ResolveHeaders(def.Headers)
	if err != nil {
		return nil, err
	}

	name := event.TriggerName
	return &models.ScheduledEventFull{
		ID:            event.ID,
		TriggerName:   &name,
		ScheduledTime: event.ScheduledTime,
		Tries:         event.Tries,
		CreatedAt:     event.CreatedAt,
		WebhookURL:    url,
		Payload:       def.Payload,
		RetryConf:     def.Retry,
		Headers:       headers,
		Comment:       def.Comment,
	}, nil
}

func (p *Processor) buildOneOffEventFull(event models.OneOffScheduledEvent) (*models.ScheduledEventFull, error) {
	url, err := catalog.ResolveWebhook(event.WebhookConf)
	if err != nil {
		return nil, err
	}
	headers, err := catalog.ResolveHeaders(event.HeaderConf)
	if err != nil {
		return nil, err
	}

	return &models.ScheduledEventFull{
		ID:            event.ID,
		TriggerName:   nil,
		ScheduledTime: event.ScheduledTime,
		Tries:         event.Tries,
		CreatedAt:     event.CreatedAt,
		WebhookURL:    url,
		Payload:       event.Payload,
		RetryConf:     event.RetryConf,
		Headers:       headers,
		Comment:       event.Comment,
	}, nil
}

// Drain snapshots the registry and returns every still-owned event to
// the queue. Must run after the loop has exited; uses its own context so
// the unlock writes survive the cancellation that stopped the loop.
func (p *Processor) Drain(ctx context.Context) {
	p.stopping.Store(true)

	cronIDs := p.registry.Snapshot(models.EventClassCron)
	oneOffIDs := p.registry.Snapshot(models.EventClassOneOff)

	if len(cronIDs) > 0 {
		n, err := p.store.UnlockCronEvents(ctx, cronIDs)
		if err != nil {
			p.logger.Error("failed to unlock cron events on shutdown",
				zap.Int("owned", len(cronIDs)),
				zap.Error(err))
		} else {
			p.logger.Info("released locked cron events", zap.Int64("count", n))
		}
	}
	if len(oneOffIDs) > 0 {
		n, err := p.store.UnlockOneOffEvents(ctx, oneOffIDs)
		if err != nil {
			p.logger.Error("failed to unlock one-off events on shutdown",
				zap.Int("owned", len(oneOffIDs)),
				zap.Error(err))
		} else {
			p.logger.Info("released locked one-off events", zap.Int64("count", n))
		}
	}
}
