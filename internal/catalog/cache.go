// Package catalog maintains the trigger-definition catalog: a periodically
// refreshed snapshot of hdb_cron_triggers, plus resolution of webhook and
// header references to concrete values.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dhima/webhook-scheduler/internal/logging"
	"github.com/dhima/webhook-scheduler/internal/models"
	"github.com/dhima/webhook-scheduler/internal/schedule"
)

// Cache holds the current trigger catalog snapshot. The generator and
// processor read snapshots; a background loop refreshes from the
// database. Rows that fail validation are logged and excluded so one bad
// definition cannot block the rest of the catalog.
type Cache struct {
	pool     *pgxpool.Pool
	logger   logging.Logger
	interval time.Duration

	mu       sync.RWMutex
	triggers map[string]models.CronTriggerDefinition
}

// NewCache builds a catalog cache refreshing at the given interval.
func NewCache(pool *pgxpool.Pool, logger logging.Logger, interval time.Duration) *Cache {
	return &Cache{
		pool:     pool,
		logger:   logger,
		interval: interval,
		triggers: make(map[string]models.CronTriggerDefinition),
	}
}

// Load performs a synchronous refresh. Called once at startup; a failure
// here is fatal and propagates to the supervisor.
func (c *Cache) Load(ctx context.Context) error {
	triggers, err := c.fetch(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.triggers = triggers
	c.mu.Unlock()
	return nil
}

// Run refreshes the catalog until ctx is cancelled. Refresh failures are
// logged and the previous snapshot stays in effect.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.Load(ctx); err != nil {
				c.logger.Error("failed to refresh trigger catalog", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Snapshot returns a copy of the current catalog keyed by trigger name.
func (c *Cache) Snapshot() map[string]models.CronTriggerDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]models.CronTriggerDefinition, len(c.triggers))
	for name, def := range c.triggers {
		out[name] = def
	}
	return out
}

func (c *Cache) fetch(ctx context.Context) (map[string]models.CronTriggerDefinition, error) {
	query := `
		SELECT name, cron_schedule, webhook_conf, payload, retry_conf, header_conf, comment
		FROM hdb_cron_triggers
	`

	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query cron triggers: %w", err)
	}
	defer rows.Close()

	triggers := make(map[string]models.CronTriggerDefinition)
	for rows.Next() {
		var name, cronSchedule string
		var webhookConf, retryConf []byte
		var payload, headerConf *[]byte
		var comment *string

		if err := rows.Scan(&name, &cronSchedule, &webhookConf, &payload, &retryConf, &headerConf, &comment); err != nil {
			return nil, fmt.Errorf("scan cron trigger: %w", err)
		}

		def, err := buildDefinition(name, cronSchedule, webhookConf, payload, retryConf, headerConf, comment)
		if err != nil {
			c.logger.Error("skipping invalid trigger definition",
				zap.String("trigger_name", name),
				zap.Error(err))
			continue
		}
		triggers[name] = *def
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cron triggers: %w", err)
	}
	return triggers, nil
}

func buildDefinition(name, cronSchedule string, webhookConf []byte, payload *[]byte, retryConf []byte, headerConf *[]byte, comment *string) (*models.CronTriggerDefinition, error) {
	if err := schedule.Validate(cronSchedule); err != nil {
		return nil, err
	}
	if err := ValidateWebhookConf(webhookConf); err != nil {
		return nil, err
	}

	def := models.CronTriggerDefinition{
		Name:     name,
		Schedule: cronSchedule,
		Retry:    models.DefaultRetryConf(),
		Comment:  comment,
	}
	if err := json.Unmarshal(webhookConf, &def.Webhook); err != nil {
		return nil, fmt.Errorf("decode webhook conf: %w", err)
	}

	if len(retryConf) > 0 {
		if err := ValidateRetryConf(retryConf); err != nil {
			return nil, err
		}
		// Partial retry confs overlay the defaults.
		if err := json.Unmarshal(retryConf, &def.Retry); err != nil {
			return nil, fmt.Errorf("decode retry conf: %w", err)
		}
	}
	if headerConf != nil {
		if err := ValidateHeaderConf(*headerConf); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(*headerConf, &def.Headers); err != nil {
			return nil, fmt.Errorf("decode header conf: %w", err)
		}
	}
	if payload != nil {
		def.Payload = json.RawMessage(*payload)
	}
	return &def, nil
}
