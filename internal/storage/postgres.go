// Package storage is the Postgres gateway for the trigger engine. It
// owns every SQL statement the engine issues: hydration stats, seed
// upserts, the SKIP LOCKED claim queries, invocation logging, status
// transitions, and lock recovery.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dhima/webhook-scheduler/internal/models"
)

// HydrationBufferSize is the per-trigger horizon of future scheduled
// events. A trigger with fewer scheduled events than this is deprived and
// gets re-hydrated by the generator; the generator also seeds exactly
// this many occurrences, so a fresh trigger fills in one pass.
const HydrationBufferSize = 100

// ErrEventNotFound is returned when an event id does not exist.
var ErrEventNotFound = errors.New("event not found")

// Client wraps a pgx pool with the engine's database contracts.
type Client struct {
	pool *pgxpool.Pool
}

// NewClient wires a configured pool; pass one from Connect.
func NewClient(pool *pgxpool.Pool) *Client {
	return &Client{pool: pool}
}

// Connect opens a pool against databaseURL and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Ping verifies the backing connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func eventsTable(class models.EventClass) string {
	if class == models.EventClassCron {
		return "hdb_cron_events"
	}
	return "hdb_scheduled_events"
}

func invocationsTable(class models.EventClass) string {
	if class == models.EventClassCron {
		return "hdb_cron_event_invocation_logs"
	}
	return "hdb_scheduled_event_invocation_logs"
}
