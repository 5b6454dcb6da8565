package remediate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nrep-ug/mysql-monitor/internal/status"
	"github.com/nrep-ug/mysql-monitor/pkg/logging"
)

func TestRemediateReturnsStdoutAndRecordsTime(t *testing.T) {
	store := status.NewStore()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := New("echo restarted", store, logging.NewDiscardLogger())
	r.now = func() time.Time { return at }

	out, err := r.Remediate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "restarted\n" {
		t.Fatalf("unexpected output %q", out)
	}
	last := store.Snapshot().Metrics.LastRemediation
	if last == nil || !last.Equal(at) {
		t.Fatalf("expected remediation time %v, got %v", at, last)
	}
}

func TestRemediateFailureCarriesStderrVerbatim(t *testing.T) {
	store := status.NewStore()
	r := New("echo 'Job for mysql.service failed' >&2; exit 1", store, logging.NewDiscardLogger())

	_, err := r.Remediate(context.Background())
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if rerr.Output != "Job for mysql.service failed\n" {
		t.Fatalf("unexpected output %q", rerr.Output)
	}
	var exitErr interface{ ExitCode() int }
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		t.Fatalf("expected wrapped exit error, got %v", rerr.Err)
	}
	if store.Snapshot().Metrics.LastRemediation != nil {
		t.Fatal("failed remediation must not be recorded")
	}
}

func TestRemediateFailureFallsBackToStdout(t *testing.T) {
	r := New("echo only-stdout; exit 3", nil, logging.NewDiscardLogger())
	_, err := r.Remediate(context.Background())
	var rerr *Error
	if !errors.As(err, &rerr) || rerr.Output != "only-stdout\n" {
		t.Fatalf("expected stdout as output, got %v", err)
	}
}

func TestRemediateTimeout(t *testing.T) {
	r := New("sleep 5", nil, logging.NewDiscardLogger(), WithTimeout(50*time.Millisecond))
	start := time.Now()
	_, err := r.Remediate(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatal("command was not cut off by the timeout")
	}
}

func TestConcurrentRemediationsShareOneRun(t *testing.T) {
	var runs atomic.Int32
	release := make(chan struct{})
	r := New("restart", nil, logging.NewDiscardLogger(), WithRunner(func(ctx context.Context, command string) ([]byte, []byte, error) {
		runs.Add(1)
		<-release
		return []byte("ok"), nil, nil
	}))

	const callers = 5
	var wg sync.WaitGroup
	results := make([]string, callers)
	started := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started <- struct{}{}
			out, err := r.Remediate(context.Background())
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
			}
			results[i] = out
		}(i)
	}
	for i := 0; i < callers; i++ {
		<-started
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := runs.Load(); n != 1 {
		t.Fatalf("expected one shared run, got %d", n)
	}
	for i, out := range results {
		if out != "ok" {
			t.Fatalf("caller %d got %q", i, out)
		}
	}
}

func TestRemediateCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	r := New("restart", nil, logging.NewDiscardLogger(), WithRunner(func(ctx context.Context, command string) ([]byte, []byte, error) {
		<-release
		return nil, nil, nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.Remediate(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
