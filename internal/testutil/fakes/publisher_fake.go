package fakes

import (
	"context"
	"sync"

	"github.com/dhima/webhook-scheduler/internal/models"
)

// FakeOutcomePublisher records published delivery outcomes.
type FakeOutcomePublisher struct {
	mu       sync.Mutex
	Outcomes []models.DeliveryOutcome
	Err      error
}

func (f *FakeOutcomePublisher) Publish(_ context.Context, outcome models.DeliveryOutcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Outcomes = append(f.Outcomes, outcome)
	return nil
}

// Published returns a copy of the recorded outcomes.
func (f *FakeOutcomePublisher) Published() []models.DeliveryOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.DeliveryOutcome, len(f.Outcomes))
	copy(out, f.Outcomes)
	return out
}
