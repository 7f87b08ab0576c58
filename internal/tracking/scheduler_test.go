package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubRunner struct {
	mu    sync.Mutex
	runs  int
	batch BatchResult
	err   error
}

func (s *stubRunner) SyncAllUnsynced(_ context.Context) (BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	return s.batch, s.err
}

func (s *stubRunner) runCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func TestScheduler_DrivesRunner(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{batch: BatchResult{Synced: 1}}
	scheduler := NewScheduler(runner, Config{
		SyncInterval:       5 * time.Millisecond,
		RateLimitPerMinute: 1000,
	}, func(string, ...any) {}, nil)

	scheduler.Start()
	defer scheduler.Stop()

	waitFor(t, time.Second, func() bool { return runner.runCount() >= 2 })
}

func TestScheduler_SwallowsRunErrors(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var logged []string
	runner := &stubRunner{err: errors.New("store down")}
	scheduler := NewScheduler(runner, Config{
		SyncInterval:       5 * time.Millisecond,
		RateLimitPerMinute: 1000,
	}, func(format string, args ...any) {
		mu.Lock()
		logged = append(logged, format)
		mu.Unlock()
	}, nil)

	scheduler.Start()
	defer scheduler.Stop()

	// The loop keeps ticking past failures.
	waitFor(t, time.Second, func() bool { return runner.runCount() >= 2 })

	mu.Lock()
	defer mu.Unlock()
	if len(logged) == 0 {
		t.Fatalf("expected failed runs to be logged")
	}
}

func TestScheduler_StartAndStopAreIdempotent(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	scheduler := NewScheduler(runner, Config{SyncInterval: time.Hour}, func(string, ...any) {}, nil)

	scheduler.Start()
	scheduler.Start()
	scheduler.Stop()
	scheduler.Stop()

	// Restart after stop works.
	scheduler.Start()
	scheduler.Stop()
}

func TestWindowLimiter_AllowsUpToLimit(t *testing.T) {
	t.Parallel()

	limiter := newWindowLimiter(3, time.Minute, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return base }
	limiter.sleep = func(context.Context, time.Duration) error {
		t.Fatalf("should not sleep within the limit")
		return nil
	}

	for i := 0; i < 3; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
}

func TestWindowLimiter_SleepsToWindowReset(t *testing.T) {
	t.Parallel()

	limiter := newWindowLimiter(1, time.Minute, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	limiter.now = func() time.Time { return current }

	var slept []time.Duration
	limiter.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		current = current.Add(d)
		return nil
	}

	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	current = base.Add(40 * time.Second)
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("second wait: %v", err)
	}

	if len(slept) != 1 {
		t.Fatalf("expected one sleep, got %d", len(slept))
	}
	if slept[0] != 20*time.Second {
		t.Fatalf("expected sleep until window reset (20s), got %v", slept[0])
	}
}

func TestWindowLimiter_ReportsWaits(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	limiter := newWindowLimiter(1, time.Minute, func(d time.Duration) {
		waits = append(waits, d)
	})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	limiter.now = func() time.Time { return current }
	limiter.sleep = func(_ context.Context, d time.Duration) error {
		current = current.Add(d)
		return nil
	}

	limiter.Wait(context.Background())
	limiter.Wait(context.Background())

	if len(waits) != 1 || waits[0] != time.Minute {
		t.Fatalf("unexpected wait reports: %v", waits)
	}
}

func TestWindowLimiter_ContextCancel(t *testing.T) {
	t.Parallel()

	limiter := newWindowLimiter(1, time.Minute, nil)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return base }
	limiter.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWindowLimiter_UnlimitedWhenZero(t *testing.T) {
	t.Parallel()

	limiter := newWindowLimiter(0, 0, nil)
	for i := 0; i < 100; i++ {
		if err := limiter.Wait(context.Background()); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
}
