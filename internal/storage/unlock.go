package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dhima/webhook-scheduler/internal/models"
)

// UnlockCronEvents returns the given cron events to the queue, touching
// only rows still in 'locked'. Returns how many actually transitioned.
// Called from the shutdown hook with the registry snapshot.
func (c *Client) UnlockCronEvents(ctx context.Context, ids []string) (int64, error) {
	return c.unlockByID(ctx, models.EventClassCron, ids)
}

// UnlockOneOffEvents is the one-off counterpart of UnlockCronEvents.
func (c *Client) UnlockOneOffEvents(ctx context.Context, ids []string) (int64, error) {
	return c.unlockByID(ctx, models.EventClassOneOff, ids)
}

func (c *Client) unlockByID(ctx context.Context, class models.EventClass, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(
		`UPDATE %s SET status = 'scheduled' WHERE id = ANY($1) AND status = 'locked'`,
		eventsTable(class))
	tag, err := c.pool.Exec(ctx, query, ids)
	if err != nil {
		return 0, fmt.Errorf("unlock %s events: %w", class, err)
	}
	return tag.RowsAffected(), nil
}

// UnlockAllLockedEvents resets every 'locked' row in both tables back to
// 'scheduled'. There is no TTL on the lock lease, so each process start
// must run this before the loops begin or rows locked by a crashed
// instance would be pinned forever.
func (c *Client) UnlockAllLockedEvents(ctx context.Context) error {
	return c.withTx(ctx, func(tx pgx.Tx) error {
		for _, table := range []string{"hdb_cron_events", "hdb_scheduled_events"} {
			query := fmt.Sprintf(`UPDATE %s SET status = 'scheduled' WHERE status = 'locked'`, table)
			if _, err := tx.Exec(ctx, query); err != nil {
				return fmt.Errorf("reset locked rows in %s: %w", table, err)
			}
		}
		return nil
	})
}
