// Package progress publishes sync status for UI polling through a
// TTL-capable key-value store.
package progress

import (
	"context"
	"fmt"
	"time"
)

// Store is a TTL key-value store. The redis implementation backs production;
// the memory implementation backs tests.
type Store interface {
	Put(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Get unmarshals into out and reports whether the key existed.
	Get(ctx context.Context, key string, out interface{}) (bool, error)
	Delete(ctx context.Context, key string) error
}

const (
	StatusIdle      = "idle"
	StatusSyncing   = "syncing"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	runningTTL  = 10 * time.Minute
	terminalTTL = 1 * time.Minute
)

// State is the published progress snapshot for one account and sync kind.
type State struct {
	Status    string                 `json:"status"`
	Percent   int                    `json:"percent"`
	Message   string                 `json:"message"`
	Summary   map[string]interface{} `json:"summary,omitempty"`
	StartedAt time.Time              `json:"started_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Tracker writes progress states keyed by account and kind. The entry
// expires on its own so stale runs disappear from polling.
type Tracker struct {
	store Store
}

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

func key(kind string, accountID uint) string {
	return fmt.Sprintf("sync:%s:%d", kind, accountID)
}

func (t *Tracker) Start(ctx context.Context, kind string, accountID uint) {
	now := time.Now()
	t.put(ctx, kind, accountID, &State{
		Status:    StatusSyncing,
		Percent:   0,
		StartedAt: now,
		UpdatedAt: now,
	}, runningTTL)
}

func (t *Tracker) Update(ctx context.Context, kind string, accountID uint, percent int, message string) {
	state, _ := t.Get(ctx, kind, accountID)
	if state == nil {
		state = &State{Status: StatusSyncing, StartedAt: time.Now()}
	}
	state.Status = StatusSyncing
	state.Percent = percent
	state.Message = message
	state.UpdatedAt = time.Now()
	t.put(ctx, kind, accountID, state, runningTTL)
}

func (t *Tracker) Complete(ctx context.Context, kind string, accountID uint, summary map[string]interface{}) {
	state, _ := t.Get(ctx, kind, accountID)
	if state == nil {
		state = &State{StartedAt: time.Now()}
	}
	state.Status = StatusCompleted
	state.Percent = 100
	state.Summary = summary
	state.UpdatedAt = time.Now()
	t.put(ctx, kind, accountID, state, terminalTTL)
}

func (t *Tracker) Fail(ctx context.Context, kind string, accountID uint, message string) {
	state, _ := t.Get(ctx, kind, accountID)
	if state == nil {
		state = &State{StartedAt: time.Now()}
	}
	state.Status = StatusFailed
	state.Message = message
	state.UpdatedAt = time.Now()
	t.put(ctx, kind, accountID, state, terminalTTL)
}

// Get returns the current state, or nil when none is published.
func (t *Tracker) Get(ctx context.Context, kind string, accountID uint) (*State, error) {
	var state State
	ok, err := t.store.Get(ctx, key(kind, accountID), &state)
	if err != nil || !ok {
		return nil, err
	}
	return &state, nil
}

// Progress writes are advisory; a cache outage must not fail a sync.
func (t *Tracker) put(ctx context.Context, kind string, accountID uint, state *State, ttl time.Duration) {
	_ = t.store.Put(ctx, key(kind, accountID), state, ttl)
}
