package databases

import (
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"ragcore/internal/rag/domain"
)

// Thresholds configures when Monitor raises a PerformanceAlert (spec §4.4.3 /
// §4.8), grounded on config.VectorStoreConfig's SlowOpMs/MemHighMb/
// QueueHighN/ErrRateHigh knobs.
type Thresholds struct {
	SlowOpMs    int64
	MemHighMb   int64
	QueueHighN  int
	ErrRateHigh float64
}

// maxRollingSamples bounds both the per-op duration histogram and the memory
// snapshot history (spec §4.4.4: "rolling window ≤ 100 samples").
const maxRollingSamples = 100

// opStats accumulates per-operation-name counters plus a rolling duration
// history percentiles are computed from (spec §4.4.4: "p50/p90/p95/p99").
type opStats struct {
	count      int64
	errors     int64
	durationMs []float64
}

// OperationMetrics is one op's rolling timing/error summary (spec §4.4.4).
type OperationMetrics struct {
	Count  int64
	Errors int64
	P50Ms  float64
	P90Ms  float64
	P95Ms  float64
	P99Ms  float64
}

// Monitor tracks per-operation timing, error rates, and periodic memory
// snapshots for C4, translating the original service's
// _track_operation/_handle_operation_error/_create_performance_alert trio
// into a small push-based collector the health monitor (C8) can read from.
type Monitor struct {
	thresholds Thresholds

	mu    sync.Mutex
	stats map[string]*opStats

	memMu      sync.Mutex
	memSamples []int64

	alertsMu sync.Mutex
	alerts   []domain.PerformanceAlert

	callbacksMu sync.Mutex
	callbacks   []func(domain.PerformanceAlert)

	cleanupMu      sync.Mutex
	cleanupTrigger func()
}

func NewMonitor(t Thresholds) *Monitor {
	return &Monitor{thresholds: t, stats: make(map[string]*opStats)}
}

// SetCleanupTrigger registers the callback SampleMemory invokes once per
// memory-high alert (spec §4.4.4: "a cleanup op is auto-enqueued when memory
// exceeds threshold"). Typically wired to the op queue's Enqueue.
func (m *Monitor) SetCleanupTrigger(fn func()) {
	m.cleanupMu.Lock()
	defer m.cleanupMu.Unlock()
	m.cleanupTrigger = fn
}

// AddAlertCallback registers a subscriber notified synchronously, in
// registration order, whenever a new alert is recorded; a panicking
// subscriber is recovered and does not stop the others.
func (m *Monitor) AddAlertCallback(cb func(domain.PerformanceAlert)) {
	m.callbacksMu.Lock()
	defer m.callbacksMu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

func (m *Monitor) RecordDuration(op string, d time.Duration) {
	m.mu.Lock()
	s, ok := m.stats[op]
	if !ok {
		s = &opStats{}
		m.stats[op] = s
	}
	s.count++
	s.durationMs = append(s.durationMs, float64(d.Milliseconds()))
	if len(s.durationMs) > maxRollingSamples {
		s.durationMs = s.durationMs[len(s.durationMs)-maxRollingSamples:]
	}
	m.mu.Unlock()

	if m.thresholds.SlowOpMs > 0 && d.Milliseconds() > m.thresholds.SlowOpMs {
		m.RecordAlert(domain.PerformanceAlert{
			Type:      "slow_operation",
			Message:   op + " exceeded the slow-operation threshold",
			Severity:  domain.SeverityMedium,
			Timestamp: time.Now(),
			Metrics:   map[string]any{"operation": op, "durationMs": d.Milliseconds()},
		})
	}
}

func (m *Monitor) RecordError(op string, err error) {
	m.mu.Lock()
	s, ok := m.stats[op]
	if !ok {
		s = &opStats{}
		m.stats[op] = s
	}
	s.errors++
	rate := 0.0
	if s.count > 0 {
		rate = float64(s.errors) / float64(s.count)
	}
	m.mu.Unlock()

	if m.thresholds.ErrRateHigh > 0 && rate > m.thresholds.ErrRateHigh {
		m.RecordAlert(domain.PerformanceAlert{
			Type:      "error_rate",
			Message:   op + " error rate exceeded threshold",
			Severity:  domain.SeverityHigh,
			Timestamp: time.Now(),
			Metrics:   map[string]any{"operation": op, "rate": rate, "lastError": err.Error()},
		})
	}
}

// CheckQueueDepth raises a queue-depth alert when n exceeds QueueHighN; the
// factory's store monitor calls this periodically with the op queue's depth.
func (m *Monitor) CheckQueueDepth(n int) {
	if m.thresholds.QueueHighN > 0 && n > m.thresholds.QueueHighN {
		m.RecordAlert(domain.PerformanceAlert{
			Type:      "queue_depth",
			Message:   "operation queue depth exceeded threshold",
			Severity:  domain.SeverityMedium,
			Timestamp: time.Now(),
			Metrics:   map[string]any{"depth": n},
		})
	}
}

// SampleMemory reads current heap usage, appends it to the rolling history,
// and raises a memory alert (triggering the registered cleanup callback, if
// any) when over MemHighMb. Intended to be called from a periodic ticker
// (spec §4.8, every 30s).
func (m *Monitor) SampleMemory() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	mb := int64(ms.HeapAlloc / (1024 * 1024))

	m.memMu.Lock()
	m.memSamples = append(m.memSamples, mb)
	if len(m.memSamples) > maxRollingSamples {
		m.memSamples = m.memSamples[len(m.memSamples)-maxRollingSamples:]
	}
	m.memMu.Unlock()

	if m.thresholds.MemHighMb > 0 && mb > m.thresholds.MemHighMb {
		m.RecordAlert(domain.PerformanceAlert{
			Type:      "memory_high",
			Message:   "heap usage exceeded threshold",
			Severity:  domain.SeverityHigh,
			Timestamp: time.Now(),
			Metrics:   map[string]any{"heapMb": mb},
		})

		m.cleanupMu.Lock()
		trigger := m.cleanupTrigger
		m.cleanupMu.Unlock()
		if trigger != nil {
			trigger()
		}
	}
}

// MemorySamples returns a snapshot of the rolling heap-usage history in MB.
func (m *Monitor) MemorySamples() []int64 {
	m.memMu.Lock()
	defer m.memMu.Unlock()
	out := make([]int64, len(m.memSamples))
	copy(out, m.memSamples)
	return out
}

// OperationStats returns a per-operation snapshot of count, error total, and
// timing percentiles computed over the rolling duration history (spec
// §4.4.4).
func (m *Monitor) OperationStats() map[string]OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]OperationMetrics, len(m.stats))
	for op, s := range m.stats {
		sorted := make([]float64, len(s.durationMs))
		copy(sorted, s.durationMs)
		sort.Float64s(sorted)
		out[op] = OperationMetrics{
			Count:  s.count,
			Errors: s.errors,
			P50Ms:  percentile(sorted, 0.50),
			P90Ms:  percentile(sorted, 0.90),
			P95Ms:  percentile(sorted, 0.95),
			P99Ms:  percentile(sorted, 0.99),
		}
	}
	return out
}

// percentile returns the p-th percentile (p in [0,1]) of an already-sorted
// slice via nearest-rank.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// RecordAlert appends to the ring buffer (capped at domain.MaxRetainedAlerts)
// and fans out to subscribers; a panicking subscriber never disrupts the
// monitor or other subscribers.
func (m *Monitor) RecordAlert(a domain.PerformanceAlert) {
	m.alertsMu.Lock()
	m.alerts = append(m.alerts, a)
	if len(m.alerts) > domain.MaxRetainedAlerts {
		m.alerts = m.alerts[len(m.alerts)-domain.MaxRetainedAlerts:]
	}
	m.alertsMu.Unlock()

	m.callbacksMu.Lock()
	cbs := make([]func(domain.PerformanceAlert), len(m.callbacks))
	copy(cbs, m.callbacks)
	m.callbacksMu.Unlock()

	for _, cb := range cbs {
		func() {
			defer func() { _ = recover() }()
			cb(a)
		}()
	}
}

// Alerts returns a snapshot of the retained alerts, most-recent last.
func (m *Monitor) Alerts() []domain.PerformanceAlert {
	m.alertsMu.Lock()
	defer m.alertsMu.Unlock()
	out := make([]domain.PerformanceAlert, len(m.alerts))
	copy(out, m.alerts)
	return out
}
