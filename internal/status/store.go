// Package status holds the monitored database's health state, its bounded
// transition history and cumulative probe metrics.
package status

import (
	"encoding/json"
	"sync"
	"time"
)

// HealthState is the observed reachability of the monitored database.
type HealthState string

const (
	StateUp   HealthState = "UP"
	StateDown HealthState = "DOWN"
)

// StateFor maps a probe outcome to a HealthState.
func StateFor(up bool) HealthState {
	if up {
		return StateUp
	}
	return StateDown
}

const (
	// HistoryCap bounds the stored transition history.
	HistoryCap = 1000
	// RecentHistory is how many transitions a Snapshot carries.
	RecentHistory = 50
)

// TransitionRecord is one observed change of HealthState.
type TransitionRecord struct {
	Timestamp time.Time   `json:"timestamp"`
	State     HealthState `json:"status"`
}

// Metrics are cumulative probe counters.
type Metrics struct {
	SuccessCount    uint64     `json:"successCount"`
	FailureCount    uint64     `json:"failureCount"`
	LastRemediation *time.Time `json:"lastRestart"`
	Uptime          float64    `json:"uptime"`
}

// UptimePercent is success/(success+failure) as a percentage, 100 before any observation.
func UptimePercent(success, failure uint64) float64 {
	total := success + failure
	if total == 0 {
		return 100
	}
	return float64(success) / float64(total) * 100
}

// Snapshot is an immutable view of the store at one instant.
type Snapshot struct {
	State   HealthState        `json:"status"`
	History []TransitionRecord `json:"history"`
	Metrics Metrics            `json:"metrics"`
}

// MarshalJSON renders an empty history as [] rather than null.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type alias Snapshot
	if s.History == nil {
		s.History = []TransitionRecord{}
	}
	return json.Marshal(alias(s))
}

// Store is safe for concurrent use. Writers are the monitor loop and the
// remediator; every read returns a consistent Snapshot.
type Store struct {
	mu              sync.RWMutex
	state           HealthState
	history         []TransitionRecord
	success         uint64
	failure         uint64
	lastRemediation *time.Time
	capacity        int
	now             func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity overrides HistoryCap.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a Store in the optimistic initial state UP.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state:    StateUp,
		capacity: HistoryCap,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.history = make([]TransitionRecord, 0, min(s.capacity, 64))
	return s
}

// Observe folds one probe outcome into the store: the success or failure
// counter always moves, and a TransitionRecord is appended when the outcome
// differs from the current state. It reports whether a transition happened
// together with the snapshot taken under the same lock.
func (s *Store) Observe(up bool) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if up {
		s.success++
	} else {
		s.failure++
	}

	next := StateFor(up)
	changed := next != s.state
	if changed {
		s.appendLocked(next)
	}
	return s.snapshotLocked(), changed
}

// recordTransition appends a transition to newState with the current time,
// regardless of the current state, and makes newState current. The success
// and failure counters change only through Observe.
func (s *Store) recordTransition(newState HealthState) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(newState)
	return s.snapshotLocked()
}

// RecordRemediation stamps the last successful remediation time.
func (s *Store) RecordRemediation(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := at
	s.lastRemediation = &t
}

// State returns the current HealthState.
func (s *Store) State() HealthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Len returns the number of stored transitions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// History returns a copy of the full stored history, oldest first.
func (s *Store) History() []TransitionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TransitionRecord, len(s.history))
	copy(out, s.history)
	return out
}

// Snapshot returns the current state, the most recent RecentHistory transitions and metrics.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) appendLocked(next HealthState) {
	s.state = next
	if len(s.history) >= s.capacity {
		drop := len(s.history) - s.capacity + 1
		// FIFO eviction, in place.
		n := copy(s.history, s.history[drop:])
		s.history = s.history[:n]
	}
	s.history = append(s.history, TransitionRecord{Timestamp: s.now(), State: next})
}

func (s *Store) snapshotLocked() Snapshot {
	start := 0
	if len(s.history) > RecentHistory {
		start = len(s.history) - RecentHistory
	}
	recent := make([]TransitionRecord, len(s.history)-start)
	copy(recent, s.history[start:])

	var last *time.Time
	if s.lastRemediation != nil {
		t := *s.lastRemediation
		last = &t
	}

	return Snapshot{
		State:   s.state,
		History: recent,
		Metrics: Metrics{
			SuccessCount:    s.success,
			FailureCount:    s.failure,
			LastRemediation: last,
			Uptime:          UptimePercent(s.success, s.failure),
		},
	}
}
