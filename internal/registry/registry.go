// Package registry tracks the event ids currently locked by this
// replica. The shutdown hook snapshots it to return in-flight events to
// the queue; the processor mutates it as events are claimed and finished.
package registry

import (
	"sync"

	"github.com/dhima/webhook-scheduler/internal/models"
)

// Registry holds two disjoint sets of locked event ids, one per event
// class. Safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	cron   map[string]struct{}
	oneOff map[string]struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		cron:   make(map[string]struct{}),
		oneOff: make(map[string]struct{}),
	}
}

func (r *Registry) set(class models.EventClass) map[string]struct{} {
	if class == models.EventClassCron {
		return r.cron
	}
	return r.oneOff
}

// InsertMany registers ids as owned by this replica.
func (r *Registry) InsertMany(class models.EventClass, ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.set(class)
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Remove releases ownership of id. Removing an absent id is a no-op.
func (r *Registry) Remove(class models.EventClass, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.set(class), id)
}

// Snapshot returns the ids currently owned for the class.
func (r *Registry) Snapshot(class models.EventClass) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.set(class)
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// Len returns the number of owned ids for the class.
func (r *Registry) Len(class models.EventClass) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.set(class))
}
