// Package monitor keeps the in-process counters served at /stats.
package monitor

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Counter is a thread-safe counter metric
type Counter struct {
	value atomic.Int64
}

// Inc increments the counter by 1
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Get returns the current counter value
func (c *Counter) Get() int64 {
	return c.value.Load()
}

// Gauge is a thread-safe integer gauge that can go up and down
type Gauge struct {
	value atomic.Int64
}

// Get returns the current gauge value
func (g *Gauge) Get() int64 {
	return g.value.Load()
}

// Inc increments the gauge by 1
func (g *Gauge) Inc() {
	g.value.Add(1)
}

// Dec decrements the gauge by 1
func (g *Gauge) Dec() {
	g.value.Add(-1)
}

const noMin = int64(^uint64(0) >> 1)

// Timer is a thread-safe timer for measuring request durations
type Timer struct {
	count     atomic.Int64
	totalTime atomic.Int64
	minTime   atomic.Int64
	maxTime   atomic.Int64
}

// NewTimer creates a new timer metric
func NewTimer() *Timer {
	t := &Timer{}
	t.minTime.Store(noMin)
	return t
}

// Record records a duration measurement
func (t *Timer) Record(duration time.Duration) {
	nanos := duration.Nanoseconds()

	t.count.Add(1)
	t.totalTime.Add(nanos)

	for {
		current := t.minTime.Load()
		if nanos >= current || t.minTime.CompareAndSwap(current, nanos) {
			break
		}
	}
	for {
		current := t.maxTime.Load()
		if nanos <= current || t.maxTime.CompareAndSwap(current, nanos) {
			break
		}
	}
}

// Since records the time elapsed since start.
func (t *Timer) Since(start time.Time) {
	t.Record(time.Since(start))
}

// MinTime returns the minimum recorded time
func (t *Timer) MinTime() time.Duration {
	minTime := t.minTime.Load()
	if minTime == noMin {
		return 0
	}
	return time.Duration(minTime)
}

// MaxTime returns the maximum recorded time
func (t *Timer) MaxTime() time.Duration {
	return time.Duration(t.maxTime.Load())
}

// AvgTime returns the average time of all measurements
func (t *Timer) AvgTime() time.Duration {
	count := t.count.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(t.totalTime.Load() / count)
}

// ServerMetrics groups everything the viewer server counts.
type ServerMetrics struct {
	RawRequests *Counter
	NotModified *Counter
	RawErrors   *Counter
	RawLatency  *Timer

	Clients     *Gauge
	Broadcasts  *Counter
	Dropped     *Counter
	FileChanges *Counter

	started time.Time
}

// NewServerMetrics creates a zeroed set of server metrics.
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		RawRequests: &Counter{},
		NotModified: &Counter{},
		RawErrors:   &Counter{},
		RawLatency:  NewTimer(),
		Clients:     &Gauge{},
		Broadcasts:  &Counter{},
		Dropped:     &Counter{},
		FileChanges: &Counter{},
		started:     time.Now(),
	}
}

// RawStats covers the /raw endpoint.
type RawStats struct {
	Requests     int64 `json:"requests"`
	NotModified  int64 `json:"not_modified"`
	Errors       int64 `json:"errors"`
	MinLatencyNs int64 `json:"min_latency_ns"`
	AvgLatencyNs int64 `json:"avg_latency_ns"`
	MaxLatencyNs int64 `json:"max_latency_ns"`
}

// EventStats covers the /events stream and the file watcher feeding it.
type EventStats struct {
	Clients     int64 `json:"clients"`
	Broadcasts  int64 `json:"broadcasts"`
	Dropped     int64 `json:"dropped"`
	FileChanges int64 `json:"file_changes"`
}

// RuntimeStats holds a few Go runtime figures.
type RuntimeStats struct {
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	NumGC      uint32 `json:"num_gc"`
}

// Snapshot is a point-in-time copy of all server metrics
type Snapshot struct {
	Timestamp time.Time    `json:"timestamp"`
	Path      string       `json:"path"`
	UptimeNs  int64        `json:"uptime_ns"`
	Raw       RawStats     `json:"raw"`
	Events    EventStats   `json:"events"`
	Runtime   RuntimeStats `json:"runtime"`
}

// Uptime returns the uptime as a duration.
func (s Snapshot) Uptime() time.Duration {
	return time.Duration(s.UptimeNs)
}

// Snapshot collects the current values.
func (m *ServerMetrics) Snapshot() Snapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := time.Now()
	return Snapshot{
		Timestamp: now,
		UptimeNs:  now.Sub(m.started).Nanoseconds(),
		Raw: RawStats{
			Requests:     m.RawRequests.Get(),
			NotModified:  m.NotModified.Get(),
			Errors:       m.RawErrors.Get(),
			MinLatencyNs: m.RawLatency.MinTime().Nanoseconds(),
			AvgLatencyNs: m.RawLatency.AvgTime().Nanoseconds(),
			MaxLatencyNs: m.RawLatency.MaxTime().Nanoseconds(),
		},
		Events: EventStats{
			Clients:     m.Clients.Get(),
			Broadcasts:  m.Broadcasts.Get(),
			Dropped:     m.Dropped.Get(),
			FileChanges: m.FileChanges.Get(),
		},
		Runtime: RuntimeStats{
			Goroutines: runtime.NumGoroutine(),
			HeapAlloc:  mem.HeapAlloc,
			NumGC:      mem.NumGC,
		},
	}
}
