// Package observability provides operation statistics tracking for catalog
// calls and admin tooling.
package observability

import (
	"sort"
	"sync"
	"time"
)

// OpStats tracks per-operation call counts and latency.
type OpStats struct {
	mu     sync.RWMutex
	ops    map[string]*OperationStats
	window time.Duration
}

// OperationStats holds aggregate statistics for one operation.
type OperationStats struct {
	Operation string
	Calls     int64
	Failures  int64
	Total     time.Duration
	Max       time.Duration
	LastSeen  time.Time
}

// Mean returns the mean latency over all recorded calls.
func (s OperationStats) Mean() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Calls)
}

// NewOpStats creates an operation statistics tracker.
// window: time duration for pruning idle operations.
func NewOpStats(window time.Duration) *OpStats {
	return &OpStats{
		ops:    make(map[string]*OperationStats),
		window: window,
	}
}

// Record records one call of an operation. This method is O(1) and
// thread-safe.
func (o *OpStats) Record(operation string, elapsed time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	stats, exists := o.ops[operation]
	if !exists {
		stats = &OperationStats{Operation: operation}
		o.ops[operation] = stats
	}

	stats.Calls++
	if err != nil {
		stats.Failures++
	}
	stats.Total += elapsed
	if elapsed > stats.Max {
		stats.Max = elapsed
	}
	stats.LastSeen = time.Now()
}

// Snapshot returns a copy of all operation stats sorted by call count
// (descending).
func (o *OpStats) Snapshot() []OperationStats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	stats := make([]OperationStats, 0, len(o.ops))
	for _, s := range o.ops {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Calls > stats[j].Calls
	})
	return stats
}

// Prune removes operations not seen within the window. Call periodically.
func (o *OpStats) Prune() {
	o.mu.Lock()
	defer o.mu.Unlock()

	threshold := time.Now().Add(-o.window)
	for op, stats := range o.ops {
		if stats.LastSeen.Before(threshold) {
			delete(o.ops, op)
		}
	}
}
