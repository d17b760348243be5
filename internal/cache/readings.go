// Package cache holds the most recent sensor snapshot.
package cache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/navigator-gateway/internal/domain"
)

// Readings is a single-cell store. Publish replaces the whole snapshot, so a
// reader always sees one tick's values, never a mix of two.
type Readings struct {
	clock clockwork.Clock

	mu        sync.RWMutex
	snapshot  domain.SensorSnapshot
	updatedAt time.Time
	published bool
}

func New(clock clockwork.Clock) *Readings {
	return &Readings{clock: clock}
}

func (r *Readings) Publish(snapshot domain.SensorSnapshot) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = snapshot
	r.updatedAt = now
	r.published = true
}

// Read returns a copy of the stored snapshot. ok is false, and the snapshot
// zeroed, until the first Publish.
func (r *Readings) Read() (snapshot domain.SensorSnapshot, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot, r.published
}

// UpdatedAt is the time of the last Publish, zero if none.
func (r *Readings) UpdatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.updatedAt
}
