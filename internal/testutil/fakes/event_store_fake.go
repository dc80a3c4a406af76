package fakes

import (
	"context"
	"sync"
	"time"

	"github.com/dhima/webhook-scheduler/internal/models"
)

// FakeEventStore is an in-memory event store covering both the generator
// and processor contracts. Fields are exported for test assertions.
type FakeEventStore struct {
	mu sync.Mutex

	Stats     []models.TriggerStats
	Seeds     []models.CronSeed
	DueCron   []models.CronEventPartial
	DueOneOff []models.OneOffScheduledEvent

	Statuses    map[string]models.EventStatus
	NextRetries map[string]time.Time
	Tries       map[string]int
	Invocations map[string][]models.Invocation

	StatsErr error
	LockErr  error
	WriteErr error
}

func NewFakeEventStore() *FakeEventStore {
	return &FakeEventStore{
		Statuses:    make(map[string]models.EventStatus),
		NextRetries: make(map[string]time.Time),
		Tries:       make(map[string]int),
		Invocations: make(map[string][]models.Invocation),
	}
}

func (f *FakeEventStore) FetchDeprivedStats(_ context.Context) ([]models.TriggerStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StatsErr != nil {
		return nil, f.StatsErr
	}
	return f.Stats, nil
}

func (f *FakeEventStore) InsertCronSeeds(_ context.Context, seeds []models.CronSeed) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	// Mirror the ON CONFLICT DO NOTHING semantics on (trigger, time).
	seen := make(map[string]map[time.Time]bool)
	for _, s := range f.Seeds {
		if seen[s.TriggerName] == nil {
			seen[s.TriggerName] = make(map[time.Time]bool)
		}
		seen[s.TriggerName][s.ScheduledTime] = true
	}
	for _, s := range seeds {
		if seen[s.TriggerName][s.ScheduledTime] {
			continue
		}
		if seen[s.TriggerName] == nil {
			seen[s.TriggerName] = make(map[time.Time]bool)
		}
		seen[s.TriggerName][s.ScheduledTime] = true
		f.Seeds = append(f.Seeds, s)
		f.Statuses[s.ID] = models.EventStatusScheduled
	}
	return nil
}

func (f *FakeEventStore) LockDueCronEvents(_ context.Context) ([]models.CronEventPartial, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LockErr != nil {
		return nil, f.LockErr
	}
	due := f.DueCron
	f.DueCron = nil
	for _, e := range due {
		f.Statuses[e.ID] = models.EventStatusLocked
	}
	return due, nil
}

func (f *FakeEventStore) LockDueOneOffEvents(_ context.Context) ([]models.OneOffScheduledEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LockErr != nil {
		return nil, f.LockErr
	}
	due := f.DueOneOff
	f.DueOneOff = nil
	for _, e := range due {
		f.Statuses[e.ID] = models.EventStatusLocked
	}
	return due, nil
}

func (f *FakeEventStore) InsertInvocationWithStatus(_ context.Context, _ models.EventClass, inv *models.Invocation, status models.EventStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.Invocations[inv.EventID] = append(f.Invocations[inv.EventID], *inv)
	f.Tries[inv.EventID]++
	f.Statuses[inv.EventID] = status
	return nil
}

func (f *FakeEventStore) InsertInvocationWithRetry(_ context.Context, _ models.EventClass, inv *models.Invocation, retryAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.Invocations[inv.EventID] = append(f.Invocations[inv.EventID], *inv)
	f.Tries[inv.EventID]++
	f.NextRetries[inv.EventID] = retryAt
	f.Statuses[inv.EventID] = models.EventStatusScheduled
	return nil
}

func (f *FakeEventStore) SetStatus(_ context.Context, _ models.EventClass, eventID string, status models.EventStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.Statuses[eventID] = status
	return nil
}

func (f *FakeEventStore) UnlockCronEvents(_ context.Context, ids []string) (int64, error) {
	return f.unlock(ids)
}

func (f *FakeEventStore) UnlockOneOffEvents(_ context.Context, ids []string) (int64, error) {
	return f.unlock(ids)
}

func (f *FakeEventStore) unlock(ids []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return 0, f.WriteErr
	}
	var n int64
	for _, id := range ids {
		if f.Statuses[id] == models.EventStatusLocked {
			f.Statuses[id] = models.EventStatusScheduled
			n++
		}
	}
	return n, nil
}

// Status returns the recorded status for an event id.
func (f *FakeEventStore) Status(id string) models.EventStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Statuses[id]
}
