package main

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrPrimarySteppedDown and ErrInterrupted are the two terminal errors a
// LogBridge append can return; both stop the entire run, not just the
// current collection (spec.md §7).
var (
	ErrPrimarySteppedDown = errors.New("dbcheck: primary stepped down")
	ErrInterrupted        = errors.New("dbcheck: interrupted")
)

// LeadershipOracle answers whether the current node may still accept
// writes for a namespace. A real replica set backs this with its consensus
// state; SingleWriterOracle is the single-process default.
type LeadershipOracle interface {
	CanAcceptWritesFor(namespace string) bool
}

// SingleWriterOracle is the default oracle for a standalone mddbd daemon:
// writable until explicitly stepped down.
type SingleWriterOracle struct {
	mu       sync.RWMutex
	writable bool
}

// NewSingleWriterOracle returns an oracle that accepts writes everywhere
// until Stepdown is called.
func NewSingleWriterOracle() *SingleWriterOracle {
	return &SingleWriterOracle{writable: true}
}

// CanAcceptWritesFor implements LeadershipOracle.
func (o *SingleWriterOracle) CanAcceptWritesFor(string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.writable
}

// Stepdown permanently revokes write eligibility, simulating loss of the
// primary/leader role.
func (o *SingleWriterOracle) Stepdown() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writable = false
}

// CollectionRecord is the metadata record C4 publishes once per audited
// collection, matching spec.md §6's Collection log record schema.
type CollectionRecord struct {
	Namespace string
	UUID      string
	Prev      string
	Next      string
}

// BatchRecord is the per-batch record C4 publishes, matching spec.md §6's
// Batch log record schema ({ type: "Batch", nss, md5, minKey, maxKey }).
type BatchRecord struct {
	Namespace string
	MinKey    Key
	MaxKey    Key
	Digest    [md5.Size]byte
}

// LogBridge publishes Collection/Batch records to mddb's replicated write
// log (the daemon's WAL) under a lock discipline proven mutually exclusive
// with leadership transfer, and under cooperative interruption checks.
//
// The teacher's WAL (wal.go) is a single-writer append-only byte log with
// its own internal mutex; LogBridge generalizes it into a typed append that
// also enforces the stepdown/interrupt contract and hands back a
// replication timestamp.
type LogBridge struct {
	wal    *WAL
	oracle LeadershipOracle

	// intentLock stands in for the intent-exclusive lock spec.md §4.5
	// requires to be mutually exclusive with leadership transfer. In this
	// single-process daemon, the oracle's own mutex already serializes
	// writability checks against Stepdown, so intentLock only needs to
	// serialize concurrent LogBridge callers against each other — but
	// since dbcheck batches are never run concurrently (§5), in practice
	// it is uncontended.
	intentLock sync.Mutex

	onTerminal func()
}

// NewLogBridge wires a LogBridge against wal and oracle. onTerminal, if
// non-nil, is invoked whenever an append discovers the run must stop
// (interrupt or stepdown) — the executor uses it to set its own terminal
// flag.
func NewLogBridge(wal *WAL, oracle LeadershipOracle, onTerminal func()) *LogBridge {
	return &LogBridge{wal: wal, oracle: oracle, onTerminal: onTerminal}
}

// AppendCollection publishes a Collection metadata record.
func (lb *LogBridge) AppendCollection(ctx context.Context, rec CollectionRecord) (int64, error) {
	return lb.append(ctx, rec.Namespace, encodeCollectionRecord(rec))
}

// AppendBatch publishes a Batch record.
func (lb *LogBridge) AppendBatch(ctx context.Context, rec BatchRecord) (int64, error) {
	return lb.append(ctx, rec.Namespace, encodeBatchRecord(rec))
}

// append performs the pre-check / append sequence from spec.md §4.5: take
// the intent-exclusive lock, check interruption, check writability, then
// append with a single WAL.Write call. A failed write is returned to the
// caller wrapped; it is not retried.
func (lb *LogBridge) append(ctx context.Context, namespace string, payload []byte) (int64, error) {
	lb.intentLock.Lock()
	defer lb.intentLock.Unlock()

	if err := ctx.Err(); err != nil {
		lb.triggerTerminal()
		return 0, ErrInterrupted
	}
	if !lb.oracle.CanAcceptWritesFor(namespace) {
		lb.triggerTerminal()
		return 0, ErrPrimarySteppedDown
	}

	now := time.Now().UnixNano()
	entry := &WALEntry{Type: EntryTypeCommit, Timestamp: now, Data: payload}
	if err := lb.wal.Write(entry); err != nil {
		return 0, fmt.Errorf("dbcheck: log append: %w", err)
	}
	return now, nil
}

func (lb *LogBridge) triggerTerminal() {
	if lb.onTerminal != nil {
		lb.onTerminal()
	}
}

// encodeCollectionRecord canonicalizes a Collection record into the WAL's
// byte payload: type tag, then length-prefixed fields.
func encodeCollectionRecord(rec CollectionRecord) []byte {
	var buf []byte
	buf = append(buf, 'C')
	buf = appendLenPrefixed(buf, []byte(rec.Namespace))
	buf = appendLenPrefixed(buf, []byte(rec.UUID))
	buf = appendLenPrefixed(buf, []byte(rec.Prev))
	buf = appendLenPrefixed(buf, []byte(rec.Next))
	return buf
}

// encodeBatchRecord canonicalizes a Batch record into the WAL's byte
// payload.
func encodeBatchRecord(rec BatchRecord) []byte {
	var buf []byte
	buf = append(buf, 'B')
	buf = appendLenPrefixed(buf, []byte(rec.Namespace))
	buf = appendLenPrefixed(buf, rec.MinKey.Encode())
	buf = appendLenPrefixed(buf, rec.MaxKey.Encode())
	buf = append(buf, rec.Digest[:]...)
	return buf
}

func appendLenPrefixed(buf, field []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(field)))
	return append(buf, field...)
}
