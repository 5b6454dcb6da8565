package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheSetPeekDelete(t *testing.T) {
	c := New[string](Options{TTL: time.Minute, MaxEntries: 10})

	c.Set("alpha", "value")
	if val, ok := c.Peek("alpha"); !ok || val != "value" {
		t.Fatalf("expected peeked value")
	}

	c.Delete("alpha")
	if _, ok := c.Peek("alpha"); ok {
		t.Fatalf("expected key to be deleted")
	}
}

func TestCacheGetLoadsOnceUntilExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := New[int](Options{TTL: 5 * time.Second})
	c.now = func() time.Time { return now }

	calls := 0
	loader := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Get(context.Background(), "report", loader)
		if err != nil || v != 1 {
			t.Fatalf("expected cached first load, got %d, %v", v, err)
		}
	}

	now = now.Add(5 * time.Second)
	v, err := c.Get(context.Background(), "report", loader)
	if err != nil || v != 2 {
		t.Fatalf("expected reload after expiry, got %d, %v", v, err)
	}
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	c := New[string](Options{TTL: time.Minute})
	boom := errors.New("boom")

	if _, err := c.Get(context.Background(), "k", func(context.Context) (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	v, err := c.Get(context.Background(), "k", func(context.Context) (string, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Fatalf("expected fresh load after error, got %q, %v", v, err)
	}
}

func TestCacheCoalescesConcurrentMisses(t *testing.T) {
	c := New[string](Options{TTL: time.Minute})
	var calls atomic.Int32
	release := make(chan struct{})
	loader := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "v", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := c.Get(context.Background(), "k", loader); err != nil || v != "v" {
				t.Errorf("unexpected result %q, %v", v, err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("expected one loader call, got %d", n)
	}
}

func TestCacheFIFOEviction(t *testing.T) {
	c := New[int](Options{TTL: time.Minute, MaxEntries: 2})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if _, ok := c.Peek("a"); ok {
		t.Fatal("expected oldest entry evicted")
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
}
