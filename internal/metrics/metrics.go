// Package metrics collects counters for patch applications.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/asynkron/strictpatch/pkg/patch"
)

// Metrics records the outcome of patch applications.
type Metrics interface {
	// RecordApply records one application with its duration, output size and result.
	RecordApply(duration time.Duration, bytes int64, success bool)
	// RecordFailure counts a failure by error code.
	RecordFailure(code patch.ErrorCode)
	// GetSnapshot returns the current metrics snapshot.
	GetSnapshot() Snapshot
	// Reset clears all metrics.
	Reset()
}

// Snapshot is a point-in-time view of collected metrics.
type Snapshot struct {
	Applies      ApplyMetrics
	Failures     map[patch.ErrorCode]int64
	BytesWritten int64
	LastApply    time.Time
}

// ApplyMetrics tracks application counts and timings.
type ApplyMetrics struct {
	Total     int64
	Success   int64
	Failed    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// MeanTime is the average duration across all recorded applications.
func (a ApplyMetrics) MeanTime() time.Duration {
	if a.Total == 0 {
		return 0
	}
	return a.TotalTime / time.Duration(a.Total)
}

// NoOpMetrics discards all metrics.
type NoOpMetrics struct{}

func (n *NoOpMetrics) RecordApply(_ time.Duration, _ int64, _ bool) {}
func (n *NoOpMetrics) RecordFailure(_ patch.ErrorCode)              {}
func (n *NoOpMetrics) GetSnapshot() Snapshot                        { return Snapshot{} }
func (n *NoOpMetrics) Reset()                                       {}

// InMemoryMetrics is a thread-safe in-memory collector.
type InMemoryMetrics struct {
	mu        sync.RWMutex
	applies   ApplyMetrics
	failures  map[patch.ErrorCode]int64
	lastApply time.Time

	bytesWritten atomic.Int64
	minTime      atomic.Int64 // nanoseconds
	maxTime      atomic.Int64 // nanoseconds
}

// NewInMemoryMetrics creates an empty collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	m := &InMemoryMetrics{failures: make(map[patch.ErrorCode]int64)}
	m.minTime.Store(int64(time.Hour))
	return m
}

func (m *InMemoryMetrics) RecordApply(duration time.Duration, bytes int64, success bool) {
	m.mu.Lock()
	m.applies.Total++
	if success {
		m.applies.Success++
	} else {
		m.applies.Failed++
	}
	m.applies.TotalTime += duration
	m.lastApply = time.Now()
	m.mu.Unlock()

	if success {
		m.bytesWritten.Add(bytes)
	}

	nanos := int64(duration)
	for {
		old := m.minTime.Load()
		if nanos >= old || m.minTime.CompareAndSwap(old, nanos) {
			break
		}
	}
	for {
		old := m.maxTime.Load()
		if nanos <= old || m.maxTime.CompareAndSwap(old, nanos) {
			break
		}
	}
}

func (m *InMemoryMetrics) RecordFailure(code patch.ErrorCode) {
	if code == "" {
		code = "UNKNOWN"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[code]++
}

func (m *InMemoryMetrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := Snapshot{
		Applies:      m.applies,
		Failures:     make(map[patch.ErrorCode]int64, len(m.failures)),
		BytesWritten: m.bytesWritten.Load(),
		LastApply:    m.lastApply,
	}
	for k, v := range m.failures {
		snapshot.Failures[k] = v
	}
	if snapshot.Applies.Total > 0 {
		snapshot.Applies.MinTime = time.Duration(m.minTime.Load())
		snapshot.Applies.MaxTime = time.Duration(m.maxTime.Load())
	}
	return snapshot
}

func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applies = ApplyMetrics{}
	m.failures = make(map[patch.ErrorCode]int64)
	m.lastApply = time.Time{}
	m.bytesWritten.Store(0)
	m.minTime.Store(int64(time.Hour))
	m.maxTime.Store(0)
}
