package tracking

import (
	"context"
	"log"
	"sync"
	"time"

	"shopbridge/internal/reliability"
)

// Runner is the work a Scheduler drives. Sync satisfies it.
type Runner interface {
	SyncAllUnsynced(ctx context.Context) (BatchResult, error)
}

// Scheduler periodically drives a Runner. Scheduling lives here, outside the
// sync service, so the business logic stays timer-free and testable. Run
// errors are logged and swallowed: the loop never stops itself on error.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	limiter  *windowLimiter
	logf     func(format string, args ...any)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler constructs a Scheduler using the config's SyncInterval and
// RateLimitPerMinute. The onWait hook, when set, receives time spent blocked
// on the rate limiter.
func NewScheduler(runner Runner, cfg Config, logf func(format string, args ...any), onWait func(time.Duration)) *Scheduler {
	cfg = cfg.withDefaults()
	if logf == nil {
		logf = log.Printf
	}
	return &Scheduler{
		runner:   runner,
		interval: cfg.SyncInterval,
		limiter:  newWindowLimiter(cfg.RateLimitPerMinute, time.Minute, onWait),
		logf:     logf,
	}
}

// Start launches the poll loop. Starting a running scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

// Stop halts the poll loop and waits for it to exit. Stopping a stopped
// scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

func (s *Scheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Scheduler) runOnce() {
	ctx := context.Background()
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	batch, err := s.runner.SyncAllUnsynced(ctx)
	if err != nil {
		s.logf("tracking scheduler: sync run failed: %v", err)
		return
	}
	if batch.Synced > 0 || batch.Failed > 0 {
		s.logf("tracking scheduler: synced=%d skipped=%d not_ready=%d failed=%d",
			batch.Synced, batch.Skipped, batch.NotReady, batch.Failed)
	}
}

// windowLimiter is a fixed-window limiter: at most limit calls per window,
// sleeping until the window resets when exhausted. Coarser than a token
// bucket, and only guarding the scheduler's self-triggered runs.
type windowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
	onWait func(time.Duration)

	windowStart time.Time
	count       int
}

func newWindowLimiter(limit int, window time.Duration, onWait func(time.Duration)) *windowLimiter {
	return &windowLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  reliability.SleepWithContext,
		onWait: onWait,
	}
}

func (l *windowLimiter) Wait(ctx context.Context) error {
	if l == nil || l.limit <= 0 || l.window <= 0 {
		if ctx == nil {
			return nil
		}
		return ctx.Err()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.mu.Lock()
		now := l.now()
		if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
			l.windowStart = now
			l.count = 0
		}
		if l.count < l.limit {
			l.count++
			l.mu.Unlock()
			return nil
		}
		wait := l.window - now.Sub(l.windowStart)
		l.mu.Unlock()

		if l.onWait != nil {
			l.onWait(wait)
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}
