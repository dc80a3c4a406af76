package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dhima/webhook-scheduler/internal/models"
)

// InsertInvocationWithStatus records one delivery attempt and applies its
// terminal transition atomically: the invocation row, the tries
// increment, and the status update commit or roll back together. An
// observer therefore never sees a delivered/error row without a matching
// invocation.
func (c *Client) InsertInvocationWithStatus(ctx context.Context, class models.EventClass, inv *models.Invocation, status models.EventStatus) error {
	return c.withTx(ctx, func(tx pgx.Tx) error {
		if err := insertInvocation(ctx, tx, class, inv); err != nil {
			return err
		}
		query := fmt.Sprintf(`UPDATE %s SET tries = tries + 1, status = $2 WHERE id = $1`, eventsTable(class))
		if _, err := tx.Exec(ctx, query, inv.EventID, status); err != nil {
			return fmt.Errorf("set status %s on event %s: %w", status, inv.EventID, err)
		}
		return nil
	})
}

// InsertInvocationWithRetry records one failed attempt and returns the
// event to the queue in the same transaction: tries is incremented,
// next_retry_at is set, and status goes back to 'scheduled'.
func (c *Client) InsertInvocationWithRetry(ctx context.Context, class models.EventClass, inv *models.Invocation, retryAt time.Time) error {
	return c.withTx(ctx, func(tx pgx.Tx) error {
		if err := insertInvocation(ctx, tx, class, inv); err != nil {
			return err
		}
		query := fmt.Sprintf(
			`UPDATE %s SET tries = tries + 1, next_retry_at = $2, status = 'scheduled' WHERE id = $1`,
			eventsTable(class))
		if _, err := tx.Exec(ctx, query, inv.EventID, retryAt); err != nil {
			return fmt.Errorf("set retry on event %s: %w", inv.EventID, err)
		}
		return nil
	})
}

// SetStatus sets the status unconditionally. Used for the dead
// transition, which happens before any HTTP attempt and writes no
// invocation row.
func (c *Client) SetStatus(ctx context.Context, class models.EventClass, eventID string, status models.EventStatus) error {
	query := fmt.Sprintf(`UPDATE %s SET status = $2 WHERE id = $1`, eventsTable(class))
	tag, err := c.pool.Exec(ctx, query, eventID, status)
	if err != nil {
		return fmt.Errorf("set status %s on event %s: %w", status, eventID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// ListInvocations returns the invocation log rows for an event, oldest first.
func (c *Client) ListInvocations(ctx context.Context, class models.EventClass, eventID string) ([]models.Invocation, error) {
	query := fmt.Sprintf(
		`SELECT event_id, status, request, response FROM %s WHERE event_id = $1 ORDER BY id`,
		invocationsTable(class))

	rows, err := c.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("list invocations for event %s: %w", eventID, err)
	}
	defer rows.Close()

	invocations := []models.Invocation{}
	for rows.Next() {
		var inv models.Invocation
		var request, response []byte
		if err := rows.Scan(&inv.EventID, &inv.Status, &request, &response); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		if err := json.Unmarshal(request, &inv.Request); err != nil {
			return nil, fmt.Errorf("decode invocation request: %w", err)
		}
		if err := json.Unmarshal(response, &inv.Response); err != nil {
			return nil, fmt.Errorf("decode invocation response: %w", err)
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return invocations, nil
}

func insertInvocation(ctx context.Context, tx pgx.Tx, class models.EventClass, inv *models.Invocation) error {
	request, err := json.Marshal(inv.Request)
	if err != nil {
		return fmt.Errorf("marshal invocation request: %w", err)
	}
	response, err := json.Marshal(inv.Response)
	if err != nil {
		return fmt.Errorf("marshal invocation response: %w", err)
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (event_id, status, request, response) VALUES ($1, $2, $3, $4)`,
		invocationsTable(class))
	if _, err := tx.Exec(ctx, query, inv.EventID, inv.Status, request, response); err != nil {
		return fmt.Errorf("insert invocation for event %s: %w", inv.EventID, err)
	}
	return nil
}

func (c *Client) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
