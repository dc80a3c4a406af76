package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dhima/webhook-scheduler/internal/models"
)

const oneOffColumns = `id, scheduled_time, next_retry_at, tries, status,
	webhook_conf, payload, retry_conf, header_conf, comment, created_at`

// LockDueOneOffEvents claims due one-off events using the same SKIP
// LOCKED protocol as the cron claim. One-off rows are self-describing,
// so the full row comes back.
func (c *Client) LockDueOneOffEvents(ctx context.Context) ([]models.OneOffScheduledEvent, error) {
	query := fmt.Sprintf(`
		UPDATE hdb_scheduled_events
		SET status = 'locked'
		WHERE id IN (
			SELECT id FROM hdb_scheduled_events
			WHERE status = 'scheduled'
			  AND COALESCE(next_retry_at, scheduled_time) <= now()
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, oneOffColumns)

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("lock due one-off events: %w", err)
	}
	defer rows.Close()

	var events []models.OneOffScheduledEvent
	for rows.Next() {
		e, err := scanOneOffEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked one-off events: %w", err)
	}
	return events, nil
}

// InsertOneOffEvent persists a user-created one-off scheduled event.
func (c *Client) InsertOneOffEvent(ctx context.Context, event *models.OneOffScheduledEvent) error {
	webhookConf, err := json.Marshal(event.WebhookConf)
	if err != nil {
		return fmt.Errorf("marshal webhook conf: %w", err)
	}
	retryConf, err := json.Marshal(event.RetryConf)
	if err != nil {
		return fmt.Errorf("marshal retry conf: %w", err)
	}
	headerConf, err := json.Marshal(event.HeaderConf)
	if err != nil {
		return fmt.Errorf("marshal header conf: %w", err)
	}

	var payload *[]byte
	if len(event.Payload) > 0 {
		b := []byte(event.Payload)
		payload = &b
	}

	query := `
		INSERT INTO hdb_scheduled_events
			(id, scheduled_time, tries, status, webhook_conf, payload, retry_conf, header_conf, comment, created_at)
		VALUES ($1, $2, 0, 'scheduled', $3, $4, $5, $6, $7, now())
		RETURNING created_at
	`

	err = c.pool.QueryRow(ctx, query,
		event.ID, event.ScheduledTime, webhookConf, payload, retryConf, headerConf, event.Comment,
	).Scan(&event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert one-off event: %w", err)
	}
	event.Status = models.EventStatusScheduled
	return nil
}

// GetOneOffEvent fetches a single one-off event by id.
func (c *Client) GetOneOffEvent(ctx context.Context, eventID string) (*models.OneOffScheduledEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM hdb_scheduled_events WHERE id = $1`, oneOffColumns)

	event, err := scanOneOffEvent(c.pool.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

// ListOneOffEvents returns one-off events filtered by status with
// pagination, newest scheduled first, plus the total count.
func (c *Client) ListOneOffEvents(ctx context.Context, query models.ListEventsQuery) ([]models.OneOffScheduledEvent, int64, error) {
	where := []string{}
	args := []any{}
	if query.Status != "" {
		args = append(args, query.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM hdb_scheduled_events %s", whereClause)
	if err := c.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count one-off events: %w", err)
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	args = append(args, limit, (page-1)*limit)

	listQuery := fmt.Sprintf(`
		SELECT %s FROM hdb_scheduled_events
		%s
		ORDER BY scheduled_time DESC
		LIMIT $%d OFFSET $%d`, oneOffColumns, whereClause, len(args)-1, len(args))

	rows, err := c.pool.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list one-off events: %w", err)
	}
	defer rows.Close()

	events := []models.OneOffScheduledEvent{}
	for rows.Next() {
		e, err := scanOneOffEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate one-off events: %w", err)
	}
	return events, total, nil
}

func scanOneOffEvent(row pgx.Row) (*models.OneOffScheduledEvent, error) {
	var e models.OneOffScheduledEvent
	var webhookConf, retryConf []byte
	// pgx cannot scan NULL jsonb into json.RawMessage directly.
	var payload, headerConf *[]byte

	err := row.Scan(
		&e.ID, &e.ScheduledTime, &e.NextRetryAt, &e.Tries, &e.Status,
		&webhookConf, &payload, &retryConf, &headerConf, &e.Comment, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan one-off event: %w", err)
	}

	if err := json.Unmarshal(webhookConf, &e.WebhookConf); err != nil {
		return nil, fmt.Errorf("decode webhook conf for event %s: %w", e.ID, err)
	}
	if err := json.Unmarshal(retryConf, &e.RetryConf); err != nil {
		return nil, fmt.Errorf("decode retry conf for event %s: %w", e.ID, err)
	}
	if payload != nil {
		e.Payload = json.RawMessage(*payload)
	}
	if headerConf != nil {
		if err := json.Unmarshal(*headerConf, &e.HeaderConf); err != nil {
			return nil, fmt.Errorf("decode header conf for event %s: %w", e.ID, err)
		}
	}
	return &e, nil
}
