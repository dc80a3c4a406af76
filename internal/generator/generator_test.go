package generator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhima/webhook-scheduler/internal/logging"
	"github.com/dhima/webhook-scheduler/internal/models"
	"github.com/dhima/webhook-scheduler/internal/storage"
	"github.com/dhima/webhook-scheduler/internal/testutil/fakes"
	"github.com/dhima/webhook-scheduler/pkg/clock"
)

func hourlyTrigger() models.CronTriggerDefinition {
	return models.CronTriggerDefinition{
		Name:     "hourly",
		Schedule: "0 * * * *",
		Webhook:  models.WebhookConf{URL: "https://example.com/hook"},
		Retry:    models.DefaultRetryConf(),
	}
}

func TestHydrate_EmptyTriggerGetsFullHorizonFromWallClock(t *testing.T) {
	store := fakes.NewFakeEventStore()
	store.Stats = []models.TriggerStats{{TriggerName: "hourly", UpcomingEventsCount: 0}}
	now := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

	gen := NewWithClock(time.Minute, store, fakes.NewFakeCatalog(hourlyTrigger()),
		logging.NewNoOpLogger(), clock.NewFixed(now))
	gen.Hydrate(context.Background())

	require.Len(t, store.Seeds, storage.HydrationBufferSize)
	// First occurrence is the next hourly boundary after wall clock.
	assert.Equal(t, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), store.Seeds[0].ScheduledTime)
	last := store.Seeds[len(store.Seeds)-1]
	assert.Equal(t, time.Date(2025, 3, 14, 13, 0, 0, 0, time.UTC), last.ScheduledTime)
	for _, s := range store.Seeds {
		assert.Equal(t, "hourly", s.TriggerName)
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, models.EventStatusScheduled, store.Status(s.ID))
	}
}

func TestHydrate_ExtendsPastExistingHorizon(t *testing.T) {
	store := fakes.NewFakeEventStore()
	maxScheduled := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	store.Stats = []models.TriggerStats{{
		TriggerName:         "hourly",
		UpcomingEventsCount: 40,
		MaxScheduledTime:    &maxScheduled,
	}}

	gen := NewWithClock(time.Minute, store, fakes.NewFakeCatalog(hourlyTrigger()),
		logging.NewNoOpLogger(), clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))
	gen.Hydrate(context.Background())

	require.NotEmpty(t, store.Seeds)
	// Seeds continue strictly after the newest existing occurrence, not
	// from wall clock.
	assert.Equal(t, maxScheduled.Add(time.Hour), store.Seeds[0].ScheduledTime)
}

func TestHydrate_MissingTriggerSkippedOthersSurvive(t *testing.T) {
	store := fakes.NewFakeEventStore()
	store.Stats = []models.TriggerStats{
		{TriggerName: "ghost", UpcomingEventsCount: 0},
		{TriggerName: "hourly", UpcomingEventsCount: 0},
	}

	gen := NewWithClock(time.Minute, store, fakes.NewFakeCatalog(hourlyTrigger()),
		logging.NewNoOpLogger(), clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))
	gen.Hydrate(context.Background())

	require.Len(t, store.Seeds, storage.HydrationBufferSize)
	for _, s := range store.Seeds {
		assert.Equal(t, "hourly", s.TriggerName)
	}
}

func TestHydrate_RepeatedRunsAreIdempotent(t *testing.T) {
	store := fakes.NewFakeEventStore()
	stats := []models.TriggerStats{{TriggerName: "hourly", UpcomingEventsCount: 0}}
	store.Stats = stats

	clk := clock.NewFixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	gen := NewWithClock(time.Minute, store, fakes.NewFakeCatalog(hourlyTrigger()),
		logging.NewNoOpLogger(), clk)

	gen.Hydrate(context.Background())
	store.Stats = stats // still reported deprived
	gen.Hydrate(context.Background())

	// Conflicting (trigger, time) pairs collapse; the horizon stays at
	// exactly one row per occurrence.
	assert.Len(t, store.Seeds, storage.HydrationBufferSize)
}

func TestHydrate_StatsErrorDoesNotPanicOrInsert(t *testing.T) {
	store := fakes.NewFakeEventStore()
	store.StatsErr = errors.New("connection refused")

	gen := New(time.Minute, store, fakes.NewFakeCatalog(hourlyTrigger()), logging.NewNoOpLogger())
	gen.Hydrate(context.Background())

	assert.Empty(t, store.Seeds)
}
