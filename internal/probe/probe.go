// Package probe checks whether the monitored database is reachable.
package probe

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nrep-ug/mysql-monitor/internal/metrics"
	"github.com/nrep-ug/mysql-monitor/pkg/logging"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 5 * time.Second

// Opener opens a connection handle. sql.Open satisfies it.
type Opener func(driver, dsn string) (*sql.DB, error)

// Probe performs reachability checks. Every Check opens its own connection
// and closes it before returning.
type Probe struct {
	driver  string
	dsn     string
	timeout time.Duration
	open    Opener
	logger  logging.Logger
	metrics *metrics.Metrics
}

// Option configures a Probe.
type Option func(*Probe)

// WithOpener replaces sql.Open.
func WithOpener(open Opener) Option {
	return func(p *Probe) { p.open = open }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Probe) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMetrics records probe outcomes and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Probe) { p.metrics = m }
}

// New returns a Probe for the given driver and DSN.
func New(driver, dsn string, logger logging.Logger, opts ...Option) *Probe {
	p := &Probe{
		driver:  driver,
		dsn:     dsn,
		timeout: DefaultTimeout,
		open:    sql.Open,
		logger:  logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Check reports whether the database answered SELECT 1 within the timeout.
// Failures of any kind report false.
func (p *Probe) Check(ctx context.Context) bool {
	start := time.Now()
	err := p.check(ctx)
	elapsed := time.Since(start)

	up := err == nil
	if p.metrics != nil {
		result := "up"
		if !up {
			result = "down"
		}
		p.metrics.Probes.WithLabelValues(result).Inc()
		p.metrics.ProbeDuration.WithLabelValues(p.driver).Observe(elapsed.Seconds())
		gauge := 0.0
		if up {
			gauge = 1
		}
		p.metrics.DatabaseUp.WithLabelValues(p.driver).Set(gauge)
	}

	if err != nil {
		p.logger.WithError(err).WithFields(logging.Fields{
			"driver":  p.driver,
			"latency": elapsed,
		}).Warn("Database probe failed")
		return false
	}
	p.logger.WithFields(logging.Fields{
		"driver":  p.driver,
		"latency": elapsed,
	}).Debug("Database probe succeeded")
	return true
}

func (p *Probe) check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	db, err := p.open(p.driver, p.dsn)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("query: %w", err)
	}
	return nil
}
