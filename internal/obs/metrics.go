// Package obs collects lightweight replay statistics with atomic counters.
package obs

import (
	"sync/atomic"
	"time"

	"main/internal/schema"
)

const (
	maxEventType  = int(schema.EventReject)
	maxLiquidity  = int(schema.LiquidityTaker)
	maxRejectKind = int(schema.RejectAlreadyTerminal)

	latencyBuckets = 64
)

// Metrics aggregates per-run replay counters and step latency.
type Metrics struct {
	records      uint64
	eventCounts  [maxEventType + 1]uint64
	fillCounts   [maxLiquidity + 1]uint64
	rejectCounts [maxRejectKind + 1]uint64

	stepLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds with a log2
// histogram for percentile estimates.
type LatencyStats struct {
	count   uint64
	sum     uint64
	min     uint64
	max     uint64
	buckets [latencyBuckets]uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
	P50   time.Duration
	P99   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Records      uint64
	EventCounts  map[schema.EventType]uint64
	FillCounts   map[schema.Liquidity]uint64
	RejectCounts map[schema.RejectReason]uint64
	StepLatency  LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveRecord counts one replayed record and its step duration.
func (m *Metrics) ObserveRecord(d time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.records, 1)
	m.stepLatency.Observe(d)
}

// ObserveEvent counts one lifecycle event by type.
func (m *Metrics) ObserveEvent(t schema.EventType) {
	if m == nil {
		return
	}
	idx := int(t)
	if idx >= 0 && idx < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[idx], 1)
	}
}

// ObserveFill counts one fill by liquidity class.
func (m *Metrics) ObserveFill(l schema.Liquidity) {
	if m == nil {
		return
	}
	idx := int(l)
	if idx >= 0 && idx < len(m.fillCounts) {
		atomic.AddUint64(&m.fillCounts[idx], 1)
	}
}

// ObserveReject counts one rejection by reason.
func (m *Metrics) ObserveReject(r schema.RejectReason) {
	if m == nil {
		return
	}
	idx := int(r)
	if idx >= 0 && idx < len(m.rejectCounts) {
		atomic.AddUint64(&m.rejectCounts[idx], 1)
	}
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	eventCounts := make(map[schema.EventType]uint64)
	for i := range m.eventCounts {
		if v := atomic.LoadUint64(&m.eventCounts[i]); v > 0 {
			eventCounts[schema.EventType(i)] = v
		}
	}
	fillCounts := make(map[schema.Liquidity]uint64)
	for i := range m.fillCounts {
		if v := atomic.LoadUint64(&m.fillCounts[i]); v > 0 {
			fillCounts[schema.Liquidity(i)] = v
		}
	}
	rejectCounts := make(map[schema.RejectReason]uint64)
	for i := range m.rejectCounts {
		if v := atomic.LoadUint64(&m.rejectCounts[i]); v > 0 {
			rejectCounts[schema.RejectReason(i)] = v
		}
	}
	return Snapshot{
		Records:      atomic.LoadUint64(&m.records),
		EventCounts:  eventCounts,
		FillCounts:   fillCounts,
		RejectCounts: rejectCounts,
		StepLatency:  m.stepLatency.Snapshot(),
	}
}

func bucketFor(nanos uint64) int {
	b := 0
	for nanos > 1 && b < latencyBuckets-1 {
		nanos >>= 1
		b++
	}
	return b
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)
	atomic.AddUint64(&l.buckets[bucketFor(nanos)], 1)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// percentile returns the upper bound of the histogram bucket containing the
// p-quantile sample. Resolution is one power of two.
func (l *LatencyStats) percentile(p float64, count uint64) time.Duration {
	if count == 0 {
		return 0
	}
	target := uint64(p * float64(count))
	if target == 0 {
		target = 1
	}
	var seen uint64
	for i := 0; i < latencyBuckets; i++ {
		seen += atomic.LoadUint64(&l.buckets[i])
		if seen >= target {
			return time.Duration(uint64(1)<<uint(i+1) - 1)
		}
	}
	return time.Duration(atomic.LoadUint64(&l.max))
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
		P50:   l.percentile(0.50, count),
		P99:   l.percentile(0.99, count),
	}
}
