// Package notify alerts operators about health transitions by email.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/nrep-ug/mysql-monitor/internal/metrics"
	"github.com/nrep-ug/mysql-monitor/pkg/clients"
	"github.com/nrep-ug/mysql-monitor/pkg/email"
	"github.com/nrep-ug/mysql-monitor/pkg/logging"
)

const sendTimeout = 30 * time.Second

// Mailer delivers one message. *email.Sender satisfies it.
type Mailer interface {
	SendMail(ctx context.Context, to, subject, body string) error
}

// Notifier sends each notification on its own goroutine. A failed send is
// logged and dropped. With no mailer or no recipient Notify does nothing.
type Notifier struct {
	mailer  Mailer
	to      string
	breaker *clients.CircuitBreaker
	logger  logging.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	wg      sync.WaitGroup
}

// New returns a Notifier delivering to recipient through mailer. mailer may be nil.
func New(mailer Mailer, recipient string, logger logging.Logger, m *metrics.Metrics) *Notifier {
	return &Notifier{
		mailer: mailer,
		to:     recipient,
		breaker: clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
			Name:   "smtp",
			Logger: logger,
		}),
		logger:  logger,
		metrics: m,
		timeout: sendTimeout,
	}
}

// NewEmail builds a Notifier on pkg/email. An unconfigured relay yields a no-op Notifier.
func NewEmail(cfg email.Config, recipient string, logger logging.Logger, m *metrics.Metrics) *Notifier {
	if !cfg.Configured() {
		return New(nil, recipient, logger, m)
	}
	return New(email.NewSender(cfg), recipient, logger, m)
}

// Enabled reports whether notifications will actually be sent.
func (n *Notifier) Enabled() bool {
	return n.mailer != nil && n.to != ""
}

// Notify dispatches the message and returns immediately.
func (n *Notifier) Notify(subject, body string) {
	if !n.Enabled() {
		n.count("skipped")
		n.logger.WithField("subject", subject).Debug("Notifications not configured, skipping")
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		err := n.breaker.Call(func() error {
			return n.mailer.SendMail(ctx, n.to, subject, body)
		})
		if err != nil {
			n.count("failed")
			n.logger.WithError(err).WithFields(logging.Fields{
				"subject":         subject,
				"circuit_breaker": n.breaker.State().String(),
			}).Error("Failed to send notification")
			return
		}
		n.count("sent")
		n.logger.WithField("subject", subject).Info("Notification sent")
	}()
}

// Wait blocks until in-flight notifications finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func (n *Notifier) count(result string) {
	if n.metrics != nil {
		n.metrics.Notifications.WithLabelValues(result).Inc()
	}
}
