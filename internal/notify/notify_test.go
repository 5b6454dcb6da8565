package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nrep-ug/mysql-monitor/internal/metrics"
	"github.com/nrep-ug/mysql-monitor/pkg/email"
	"github.com/nrep-ug/mysql-monitor/pkg/logging"
	"github.com/nrep-ug/mysql-monitor/pkg/monitoring"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

type sent struct {
	to, subject, body string
}

type fakeMailer struct {
	mu    sync.Mutex
	calls []sent
	err   error
	block chan struct{}
}

func (f *fakeMailer) SendMail(ctx context.Context, to, subject, body string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sent{to, subject, body})
	return f.err
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestNotifyDelivers(t *testing.T) {
	mailer := &fakeMailer{}
	n := New(mailer, "ops@example.com", logging.NewDiscardLogger(), nil)

	n.Notify("ALERT: Database is DOWN", "The monitored database appears to be down.")
	n.Wait()

	if mailer.count() != 1 {
		t.Fatalf("expected 1 send, got %d", mailer.count())
	}
	got := mailer.calls[0]
	if got.to != "ops@example.com" || got.subject != "ALERT: Database is DOWN" {
		t.Fatalf("unexpected message %+v", got)
	}
}

func TestNotifyDoesNotBlockCaller(t *testing.T) {
	mailer := &fakeMailer{block: make(chan struct{})}
	n := New(mailer, "ops@example.com", logging.NewDiscardLogger(), nil)

	n.Notify("subject", "body")
	if mailer.count() != 0 {
		t.Fatal("send completed before release")
	}
	close(mailer.block)
	n.Wait()
	if mailer.count() != 1 {
		t.Fatalf("expected 1 send after release, got %d", mailer.count())
	}
}

func TestNotifyFailureIsNotRetried(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("connection refused")}
	m := metrics.New(monitoring.NewMetricsCollector("dbwatch", "test", "abc"))
	n := New(mailer, "ops@example.com", logging.NewDiscardLogger(), m)

	n.Notify("subject", "body")
	n.Wait()

	if mailer.count() != 1 {
		t.Fatalf("expected exactly one attempt, got %d", mailer.count())
	}
	if got := promtest.ToFloat64(m.Notifications.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected failed counter 1, got %v", got)
	}
}

func TestOpenBreakerSkipsSend(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("relay down")}
	n := New(mailer, "ops@example.com", logging.NewDiscardLogger(), nil)

	for i := 0; i < 5; i++ {
		n.Notify("subject", "body")
		n.Wait()
	}
	if mailer.count() != 3 {
		t.Fatalf("expected breaker to open after 3 failures, mailer saw %d sends", mailer.count())
	}
}

func TestUnconfiguredNotifierIsNoop(t *testing.T) {
	m := metrics.New(monitoring.NewMetricsCollector("dbwatch", "test", "abc"))
	n := NewEmail(email.Config{}, "ops@example.com", logging.NewDiscardLogger(), m)
	if n.Enabled() {
		t.Fatal("expected notifier without relay to be disabled")
	}
	n.Notify("subject", "body")
	n.Wait()
	if got := promtest.ToFloat64(m.Notifications.WithLabelValues("skipped")); got != 1 {
		t.Fatalf("expected skipped counter 1, got %v", got)
	}

	noRecipient := New(&fakeMailer{}, "", logging.NewDiscardLogger(), nil)
	if noRecipient.Enabled() {
		t.Fatal("expected notifier without recipient to be disabled")
	}
}
