package main

import (
	"crypto/md5"
	"fmt"
	"sync"
	"time"
)

// healthLogDefaultCapacity bounds the in-memory ring buffer when the
// daemon's dbcheck configuration does not override it.
const healthLogDefaultCapacity = 1000

// HealthSeverity mirrors the severity field on a health-log entry.
type HealthSeverity string

const (
	SeverityInfo  HealthSeverity = "info"
	SeverityError HealthSeverity = "error"
)

// HealthBatchEntry is a successful dbCheckBatch health-log entry.
type HealthBatchEntry struct {
	Namespace      string
	MinKey         Key
	MaxKey         Key
	Count          int64
	Bytes          int64
	ExpectedDigest [md5.Size]byte
	ActualDigest   [md5.Size]byte
	Success        bool
	Timestamp      int64
}

// HealthEntry is one append-only health-log row: either a successful batch
// entry or an error entry carrying a failure reason.
type HealthEntry struct {
	Operation string
	Severity  HealthSeverity
	Namespace string
	Batch     *HealthBatchEntry
	Reason    string
	Timestamp time.Time
}

// HealthLog is mddb's node-local, append-only audit sink: no coordination,
// no failure surface, bounded to a fixed capacity ring so a long-running
// audit cannot grow memory without bound. The teacher has no equivalent
// sink; this is new infrastructure built the way the teacher builds its
// other bounded in-memory structures (DocumentCache, LockFreeCache): a
// mutex-guarded slice with an eviction policy, see cache.go/lockfree_cache.go.
type HealthLog struct {
	mu       sync.Mutex
	entries  []HealthEntry
	capacity int
}

// NewHealthLog creates a health log with the given ring capacity (the
// default is used if capacity <= 0).
func NewHealthLog(capacity int) *HealthLog {
	if capacity <= 0 {
		capacity = healthLogDefaultCapacity
	}
	return &HealthLog{capacity: capacity}
}

// LogBatch appends a successful dbCheckBatch entry.
func (h *HealthLog) LogBatch(b HealthBatchEntry) {
	h.append(HealthEntry{
		Operation: "dbCheckBatch",
		Severity:  SeverityInfo,
		Namespace: b.Namespace,
		Batch:     &b,
		Timestamp: time.Now(),
	})
}

// LogBatchError appends an error entry for a failed batch, aborting only
// the current collection.
func (h *HealthLog) LogBatchError(namespace string, at Key, err error) {
	h.append(HealthEntry{
		Operation: "dbCheckBatch",
		Severity:  SeverityError,
		Namespace: namespace,
		Reason:    fmt.Sprintf("batch failed at %s: %v", at, err),
		Timestamp: time.Now(),
	})
}

// LogMetadataFailure appends an error entry for a collection that could not
// be described (e.g. it disappeared mid-run).
func (h *HealthLog) LogMetadataFailure(namespace string, err error) {
	h.append(HealthEntry{
		Operation: "dbCheckCollection",
		Severity:  SeverityError,
		Namespace: namespace,
		Reason:    fmt.Sprintf("metadata publish failed: %v", err),
		Timestamp: time.Now(),
	})
}

// LogTerminal appends an entry marking the whole run as stopped
// (stepdown/interruption).
func (h *HealthLog) LogTerminal(namespace string, reason string) {
	h.append(HealthEntry{
		Operation: "dbCheckStop",
		Severity:  SeverityError,
		Namespace: namespace,
		Reason:    reason,
		Timestamp: time.Now(),
	})
}

func (h *HealthLog) append(e HealthEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	if len(h.entries) > h.capacity {
		h.entries = h.entries[len(h.entries)-h.capacity:]
	}
}

// Snapshot returns a copy of every entry currently held, oldest first.
func (h *HealthLog) Snapshot() []HealthEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]HealthEntry, len(h.entries))
	copy(out, h.entries)
	return out
}
