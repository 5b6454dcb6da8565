// Package monitor runs the periodic probe loop that drives the status store,
// operator notifications and subscriber pushes.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/nrep-ug/mysql-monitor/internal/metrics"
	"github.com/nrep-ug/mysql-monitor/internal/status"
	"github.com/nrep-ug/mysql-monitor/pkg/logging"
)

// DefaultInterval is the probe period.
const DefaultInterval = 30 * time.Second

// MessageType tags status frames pushed to subscribers.
const MessageType = "status"

// Notification texts.
const (
	AlertSubject    = "ALERT: Database is DOWN"
	AlertBody       = "The monitored database appears to be down."
	RecoverySubject = "RECOVERY: Database is UP"
	RecoveryBody    = "The monitored database is back up."
)

// Prober performs one reachability check.
type Prober interface {
	Check(ctx context.Context) bool
}

// Notifier delivers an operator message without blocking.
type Notifier interface {
	Notify(subject, body string)
}

// Publisher fans a frame out to live subscribers.
type Publisher interface {
	Broadcast(msgType string, data any) int
}

// Monitor owns the UP/DOWN state machine. Store updates and pushes are
// committed under one lock, which Subscribe also takes, so a subscriber sees
// exactly one initial snapshot followed by every later transition.
type Monitor struct {
	probe     Prober
	store     *status.Store
	notifier  Notifier
	publisher Publisher
	interval  time.Duration
	logger    logging.Logger
	metrics   *metrics.Metrics

	mu sync.Mutex
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithMetrics counts transitions.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

// New returns a Monitor that probes every DefaultInterval unless WithInterval is given.
func New(probe Prober, store *status.Store, notifier Notifier, publisher Publisher, logger logging.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		probe:     probe,
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		interval:  DefaultInterval,
		logger:    logger,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Interval returns the probe period.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Run probes immediately and then once per interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.WithFields(logging.Fields{
		"interval": m.interval.String(),
		"state":    m.store.State(),
	}).Info("Database monitor started")

	m.Tick(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Database monitor stopped")
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one probe and applies the transition rule. On a transition the
// new snapshot is pushed and the matching notification is sent; otherwise
// nothing but the counters change. It reports whether a transition happened.
func (m *Monitor) Tick(ctx context.Context) (status.Snapshot, bool) {
	up := m.probe.Check(ctx)

	m.mu.Lock()
	previous := m.store.State()
	snap, changed := m.store.Observe(up)
	delivered := 0
	if changed {
		delivered = m.publisher.Broadcast(MessageType, snap)
	}
	m.mu.Unlock()

	if !changed {
		return snap, false
	}

	if m.metrics != nil {
		m.metrics.Transitions.WithLabelValues(string(snap.State)).Inc()
	}

	log := m.logger.WithFields(logging.Fields{
		"state":          snap.State,
		"previous_state": previous,
		"uptime":         snap.Metrics.Uptime,
		"subscribers":    delivered,
	})
	switch snap.State {
	case status.StateDown:
		log.Warn("Database went down")
		m.notifier.Notify(AlertSubject, AlertBody)
	case status.StateUp:
		log.Info("Database recovered")
		m.notifier.Notify(RecoverySubject, RecoveryBody)
	}
	return snap, true
}

// Subscribe hands admit the current snapshot while holding the commit lock.
// No transition can be pushed between the snapshot and admit returning.
func (m *Monitor) Subscribe(admit func(initial status.Snapshot) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return admit(m.store.Snapshot())
}

// Snapshot returns the store's current snapshot.
func (m *Monitor) Snapshot() status.Snapshot {
	return m.store.Snapshot()
}
