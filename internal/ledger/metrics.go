package ledger

import (
	"sync/atomic"
	"time"

	"github.com/slyt3/Quorum/internal/assert"
)

const maxLatencyBuckets = 7

var latencyBucketUpperNs = [maxLatencyBuckets]uint64{
	1 * uint64(time.Millisecond),
	5 * uint64(time.Millisecond),
	10 * uint64(time.Millisecond),
	25 * uint64(time.Millisecond),
	50 * uint64(time.Millisecond),
	100 * uint64(time.Millisecond),
	^uint64(0),
}

// LatencySnapshot captures commit latency of submissions with histogram buckets.
// BoundsNs defines upper bounds in nanoseconds, Counts tracks submissions per bucket.
type LatencySnapshot struct {
	BoundsNs [maxLatencyBuckets]uint64
	Counts   [maxLatencyBuckets]uint64
	SumNs    uint64
	Count    uint64
}

// Stats is a point-in-time copy of the engine counters.
type Stats struct {
	FirstVotes  uint64
	Amendments  uint64
	Settlements uint64
	Deposits    uint64
	Conflicts   uint64
	Failures    uint64
}

type metrics struct {
	firstVotes     atomic.Uint64
	amendments     atomic.Uint64
	settlements    atomic.Uint64
	deposits       atomic.Uint64
	conflicts      atomic.Uint64
	failures       atomic.Uint64
	latencySumNs   atomic.Uint64
	latencyCount   atomic.Uint64
	latencyBuckets [maxLatencyBuckets]atomic.Uint64
}

func (m *metrics) observe(d time.Duration) {
	ns := uint64(d.Nanoseconds())
	m.latencySumNs.Add(ns)
	m.latencyCount.Add(1)
	for i := 0; i < maxLatencyBuckets; i++ {
		if ns <= latencyBucketUpperNs[i] {
			m.latencyBuckets[i].Add(1)
			return
		}
	}
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	if err := assert.NotNil(e, "engine"); err != nil {
		return Stats{}
	}
	return Stats{
		FirstVotes:  e.metrics.firstVotes.Load(),
		Amendments:  e.metrics.amendments.Load(),
		Settlements: e.metrics.settlements.Load(),
		Deposits:    e.metrics.deposits.Load(),
		Conflicts:   e.metrics.conflicts.Load(),
		Failures:    e.metrics.failures.Load(),
	}
}

// LatencyMetrics returns a snapshot of latency histogram data.
func (e *Engine) LatencyMetrics() LatencySnapshot {
	if err := assert.NotNil(e, "engine"); err != nil {
		return LatencySnapshot{}
	}

	var snap LatencySnapshot
	for i := 0; i < maxLatencyBuckets; i++ {
		snap.BoundsNs[i] = latencyBucketUpperNs[i]
		snap.Counts[i] = e.metrics.latencyBuckets[i].Load()
	}
	snap.SumNs = e.metrics.latencySumNs.Load()
	snap.Count = e.metrics.latencyCount.Load()
	return snap
}
