package generator

import (
	"context"

	"github.com/dhima/webhook-scheduler/internal/models"
)

// EventStore defines the database operations the generator needs.
type EventStore interface {
	FetchDeprivedStats(ctx context.Context) ([]models.TriggerStats, error)
	InsertCronSeeds(ctx context.Context, seeds []models.CronSeed) error
}

// TriggerCatalog supplies the current trigger-definition snapshot.
type TriggerCatalog interface {
	Snapshot() map[string]models.CronTriggerDefinition
}
