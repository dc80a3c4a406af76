package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dhima/webhook-scheduler/internal/models"
)

// FetchDeprivedStats returns one row per trigger whose count of future
// scheduled events is below the hydration buffer. MaxScheduledTime is nil
// for triggers that currently have no events at all.
func (c *Client) FetchDeprivedStats(ctx context.Context) ([]models.TriggerStats, error) {
	query := `
		SELECT name, upcoming_events_count, max_scheduled_time
		FROM hdb_cron_events_stats
		WHERE upcoming_events_count < $1
	`

	rows, err := c.pool.Query(ctx, query, HydrationBufferSize)
	if err != nil {
		return nil, fmt.Errorf("query deprived trigger stats: %w", err)
	}
	defer rows.Close()

	var stats []models.TriggerStats
	for rows.Next() {
		var s models.TriggerStats
		if err := rows.Scan(&s.TriggerName, &s.UpcomingEventsCount, &s.MaxScheduledTime); err != nil {
			return nil, fmt.Errorf("scan trigger stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trigger stats: %w", err)
	}
	return stats, nil
}

// InsertCronSeeds bulk-inserts future cron occurrences. Conflicts on
// (trigger_name, scheduled_time) are ignored so re-hydration after a
// partial failure is idempotent.
func (c *Client) InsertCronSeeds(ctx context.Context, seeds []models.CronSeed) error {
	if len(seeds) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, seed := range seeds {
		batch.Queue(`
			INSERT INTO hdb_cron_events (id, trigger_name, scheduled_time, tries, status, created_at)
			VALUES ($1, $2, $3, 0, 'scheduled', now())
			ON CONFLICT (trigger_name, scheduled_time) DO NOTHING`,
			seed.ID, seed.TriggerName, seed.ScheduledTime,
		)
	}

	results := c.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range seeds {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert cron seeds: %w", err)
		}
	}
	return nil
}

// LockDueCronEvents atomically claims due cron events for this replica:
// it selects scheduled rows whose dispatch time has passed, skipping rows
// locked by other sessions, flips them to 'locked', and returns the
// partial projection. Two replicas running this concurrently receive
// disjoint sets; this is the only cross-replica synchronization.
func (c *Client) LockDueCronEvents(ctx context.Context) ([]models.CronEventPartial, error) {
	query := `
		UPDATE hdb_cron_events
		SET status = 'locked'
		WHERE id IN (
			SELECT id FROM hdb_cron_events
			WHERE status = 'scheduled'
			  AND COALESCE(next_retry_at, scheduled_time) <= now()
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, trigger_name, scheduled_time, tries, created_at
	`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("lock due cron events: %w", err)
	}
	defer rows.Close()

	var events []models.CronEventPartial
	for rows.Next() {
		var e models.CronEventPartial
		if err := rows.Scan(&e.ID, &e.TriggerName, &e.ScheduledTime, &e.Tries, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan locked cron event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked cron events: %w", err)
	}
	return events, nil
}
