package processor

import (
	"context"
	"time"

	"github.com/dhima/webhook-scheduler/internal/models"
)

// EventStore defines the database operations required by the processor
// and its delivery subroutine.
type EventStore interface {
	LockDueCronEvents(ctx context.Context) ([]models.CronEventPartial, error)
	LockDueOneOffEvents(ctx context.Context) ([]models.OneOffScheduledEvent, error)
	InsertInvocationWithStatus(ctx context.Context, class models.EventClass, inv *models.Invocation, status models.EventStatus) error
	InsertInvocationWithRetry(ctx context.Context, class models.EventClass, inv *models.Invocation, retryAt time.Time) error
	SetStatus(ctx context.Context, class models.EventClass, eventID string, status models.EventStatus) error
	UnlockCronEvents(ctx context.Context, ids []string) (int64, error)
	UnlockOneOffEvents(ctx context.Context, ids []string) (int64, error)
}

// TriggerCatalog supplies the current trigger-definition snapshot.
type TriggerCatalog interface {
	Snapshot() map[string]models.CronTriggerDefinition
}

// OutcomePublisher notifies downstream consumers of terminal
// transitions. Publishing is best effort and never affects event state.
type OutcomePublisher interface {
	Publish(ctx context.Context, outcome models.DeliveryOutcome) error
}
