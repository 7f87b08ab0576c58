package observability

import (
	"sync"
	"time"
)

// OpSnapshot is the exported view of one operation's counters.
type OpSnapshot struct {
	Count         int64   `json:"count"`
	Errors        int64   `json:"errors"`
	InFlight      int64   `json:"in_flight"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	LastLatencyMs float64 `json:"last_latency_ms"`
}

// Snapshot is a point-in-time view of all recorded operations.
type Snapshot struct {
	UptimeSec       int64                 `json:"uptime_sec"`
	TotalCalls      int64                 `json:"total_calls"`
	TotalErrors     int64                 `json:"total_errors"`
	InFlight        int64                 `json:"in_flight"`
	RateLimitWaits  int64                 `json:"rate_limit_waits"`
	RateLimitWaitMs int64                 `json:"rate_limit_wait_ms"`
	Operations      map[string]OpSnapshot `json:"operations"`
}

type opStats struct {
	count        int64
	errors       int64
	inFlight     int64
	totalLatency time.Duration
	maxLatency   time.Duration
	lastLatency  time.Duration
}

// Metrics records per-operation call counts and latencies for the connector's
// pipeline stages and remote calls.
type Metrics struct {
	mu             sync.Mutex
	start          time.Time
	ops            map[string]*opStats
	rateLimitWaits int64
	rateLimitWait  time.Duration
}

// CallSpan measures one in-flight call.
type CallSpan struct {
	metrics *Metrics
	op      string
	start   time.Time
}

// NewMetrics constructs an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		start: time.Now(),
		ops:   make(map[string]*opStats),
	}
}

// Start opens a span for the named operation. Safe on a nil receiver.
func (m *Metrics) Start(op string) *CallSpan {
	if m == nil {
		return &CallSpan{}
	}
	m.mu.Lock()
	stats := m.ensureOp(op)
	stats.inFlight++
	m.mu.Unlock()
	return &CallSpan{
		metrics: m,
		op:      op,
		start:   time.Now(),
	}
}

// End closes the span, recording whether the call failed.
func (s *CallSpan) End(err error) {
	if s == nil || s.metrics == nil {
		return
	}
	dur := time.Since(s.start)
	s.metrics.finish(s.op, dur, err != nil)
}

// AddRateLimitWait accounts time spent blocked on a rate limiter.
func (m *Metrics) AddRateLimitWait(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.mu.Lock()
	m.rateLimitWaits++
	m.rateLimitWait += d
	m.mu.Unlock()
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		UptimeSec:       int64(time.Since(m.start).Seconds()),
		Operations:      make(map[string]OpSnapshot),
		RateLimitWaits:  m.rateLimitWaits,
		RateLimitWaitMs: int64(m.rateLimitWait / time.Millisecond),
	}

	for op, stats := range m.ops {
		avg := 0.0
		if stats.count > 0 {
			avg = float64(stats.totalLatency.Milliseconds()) / float64(stats.count)
		}
		snap.Operations[op] = OpSnapshot{
			Count:         stats.count,
			Errors:        stats.errors,
			InFlight:      stats.inFlight,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  float64(stats.maxLatency.Milliseconds()),
			LastLatencyMs: float64(stats.lastLatency.Milliseconds()),
		}
		snap.TotalCalls += stats.count
		snap.TotalErrors += stats.errors
		snap.InFlight += stats.inFlight
	}

	return snap
}

func (m *Metrics) ensureOp(op string) *opStats {
	stats, ok := m.ops[op]
	if !ok {
		stats = &opStats{}
		m.ops[op] = stats
	}
	return stats
}

func (m *Metrics) finish(op string, dur time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.mu.Lock()
	stats := m.ensureOp(op)
	stats.inFlight--
	stats.count++
	if failed {
		stats.errors++
	}
	stats.totalLatency += dur
	if dur > stats.maxLatency {
		stats.maxLatency = dur
	}
	stats.lastLatency = dur
	m.mu.Unlock()
}
