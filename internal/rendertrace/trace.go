package rendertrace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
)

// Stage represents a pipeline stage used for tracking message rendering.
type Stage string

const (
	StageReceived  Stage = "received"
	StageBadges    Stage = "badges_resolved"
	StageTokenized Stage = "tokenized"
	StageResolved  Stage = "emotes_resolved"
	StageColoured  Stage = "colour_normalized"
	StageBroadcast Stage = "broadcast"

	StageDegradedPrefix = "degraded_"
)

// StageDegraded creates a Stage for a degraded rendering step with the given reason.
func StageDegraded(reason string) Stage {
	return Stage(fmt.Sprintf("%s%s", StageDegradedPrefix, reason))
}

// MessageTrace captures trace metadata for a message throughout the render pipeline.
type MessageTrace struct {
	Channel string
	User    string
	Snippet string
	TraceID string

	mu       sync.Mutex
	counters map[Stage]int64
}

// NewTrace constructs a trace from chat metadata and seeds the received counter.
func NewTrace(channel, user, snippet string) *MessageTrace {
	trace := &MessageTrace{
		Channel:  channel,
		User:     user,
		Snippet:  snippet,
		TraceID:  computeTraceID(channel, user, snippet),
		counters: make(map[Stage]int64),
	}

	trace.counters[StageReceived] = 1
	return trace
}

// IncCounter increments the counter for the provided stage and returns the updated value.
func (t *MessageTrace) IncCounter(stage Stage) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters[stage]++
	return t.counters[stage]
}

// LogTrace logs the trace metadata and counters using structured logging.
func (t *MessageTrace) LogTrace(logger *slog.Logger, msg string) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info(msg,
		"trace_id", t.TraceID,
		"channel", t.Channel,
		"user", t.User,
		"snippet", t.Snippet,
		"counters", t.snapshotCounters(),
	)
}

func (t *MessageTrace) snapshotCounters() map[Stage]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	copy := make(map[Stage]int64, len(t.counters))
	for stage, count := range t.counters {
		copy[stage] = count
	}

	return copy
}

func computeTraceID(channel, user, snippet string) string {
	digest := sha256.Sum256([]byte(channel + "\x1f" + user + "\x1f" + snippet))
	return hex.EncodeToString(digest[:])
}
