package twitchirc

import "sync/atomic"

// chatMetricsState tracks basic counters for the IRC read loop.
type chatMetricsState struct {
	seen    atomic.Int64
	dropped atomic.Int64
}

var chatMetrics chatMetricsState

func (m *chatMetricsState) incSeen() int64 {
	if m == nil {
		return 0
	}
	return m.seen.Add(1)
}

func (m *chatMetricsState) incDropped(reason string) int64 {
	if m == nil {
		return 0
	}
	_ = reason // reserved for future per-reason counters
	return m.dropped.Add(1)
}
