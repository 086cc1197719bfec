package main

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// dbCheckCatalogBucket tracks the stable UUID dbcheck assigns to each
// collection the first time it is written to, mirroring the catalog UUID
// ordering a replicated storage engine would expose natively.
var dbCheckCatalogBucket = []byte("__dbcheck_catalog")

const (
	// kBatchDocs and kBatchBytes bound every single batch regardless of the
	// caller-supplied maxCount/maxSize, matching spec.md §4.4 step 5a.
	kBatchDocs  = 5000
	kBatchBytes = 20_000_000
)

// collectionState is the per-collection state machine from spec.md §4.4:
// Start -> Metadata Published -> (Batch Published)* -> Done | Aborted.
type collectionState int

const (
	stateStart collectionState = iota
	stateMetadataPublished
	stateDone
	stateAborted
)

// abortReason names why a collection's audit ended early.
type abortReason string

const (
	abortNone     abortReason = ""
	abortStepdown abortReason = "stepdown"
	abortMissing  abortReason = "missing"
	abortError    abortReason = "error"
)

// Executor drives one dbcheck Run to completion on a dedicated goroutine,
// fire-and-forget from the command handler's perspective. Batches and
// collections are processed strictly in sequence; the executor owns its Run
// exclusively once launched.
type Executor struct {
	server *Server
	bridge *LogBridge
	health *HealthLog
	oracle LeadershipOracle

	ctx    context.Context
	cancel context.CancelFunc

	done atomic.Bool // single terminal flag, set by the log bridge, read by the loop
}

// NewExecutor wires an Executor against the daemon's storage, write log and
// leadership oracle. The returned Executor owns its own operation context,
// independent of any client connection; client disconnect is never a
// cancellation source.
func NewExecutor(server *Server, bridge *LogBridge, health *HealthLog, oracle LeadershipOracle) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{server: server, bridge: bridge, health: health, oracle: oracle, ctx: ctx, cancel: cancel}
}

// Launch submits run to a dedicated background goroutine and returns
// immediately; this is the fire-and-forget boundary the command handler
// relies on to answer { ok: true } before the audit has produced anything.
func (ex *Executor) Launch(run Run) {
	go ex.runAll(run)
}

// Interrupt cancels the executor's own operation context, one of the two
// cooperative cancellation sources checked at every log-bridge call.
func (ex *Executor) Interrupt() {
	ex.cancel()
}

// runAll processes every collection in run, strictly sequentially; never in
// parallel, since each collection's batch chain depends on the previous
// batch's lastKey.
func (ex *Executor) runAll(run Run) {
	for _, info := range run.Collections {
		if ex.done.Load() {
			return
		}
		if reason := ex.runCollection(info); reason == abortStepdown {
			// Leadership/interruption errors are terminal for the whole
			// run; no further collections are attempted.
			return
		}
	}
}

// runCollection executes the full per-collection procedure in spec.md
// §4.4 and returns the reason the collection's state machine reached a
// terminal state.
func (ex *Executor) runCollection(info CollectionInfo) abortReason {
	state := stateStart

	var uuidStr, prevUUID, nextUUID string
	err := ex.server.DB.Update(func(tx *bolt.Tx) error {
		if !collectionExists(tx, info.Namespace) {
			return errDbCheckNamespaceGone
		}
		var err error
		uuidStr, prevUUID, nextUUID, err = resolveCatalogNeighbors(tx, info.Namespace)
		return err
	})
	if err != nil {
		ex.health.LogMetadataFailure(info.Namespace, err)
		log.Printf("dbcheck: collection %s gone before metadata publish: %v", info.Namespace, err)
		return abortMissing
	}

	if _, err := ex.bridge.AppendCollection(ex.ctx, CollectionRecord{
		Namespace: info.Namespace,
		UUID:      uuidStr,
		Prev:      prevUUID,
		Next:      nextUUID,
	}); err != nil {
		ex.health.LogMetadataFailure(info.Namespace, err)
		return ex.terminalReason(err)
	}
	state = stateMetadataPublished

	start := info.StartKey
	var totalDocs, totalBytes int64

	hasher, err := NewHasher(ex.server.DB, info.Namespace)
	if err != nil {
		ex.health.LogBatchError(info.Namespace, start, err)
		return abortError
	}
	defer hasher.Close()

	firstBatch := true
	for state != stateDone {
		if ex.done.Load() || !ex.oracle.CanAcceptWritesFor(info.Namespace) {
			ex.done.Store(true)
			state = stateAborted
			ex.health.LogTerminal(info.Namespace, string(abortStepdown))
			return abortStepdown
		}

		docCap := minInt64(kBatchDocs, info.MaxDocs-totalDocs)
		byteCap := minInt64(kBatchBytes, info.MaxBytes-totalBytes)

		stats, err := hasher.Next(start, info.EndKey, firstBatch, docCap, byteCap)
		firstBatch = false
		if err != nil {
			ex.health.LogBatchError(info.Namespace, start, err)
			state = stateAborted
			return abortError
		}
		batchMaxKey := stats.LastKey
		if stats.NDocs == 0 {
			// Nothing left between start and endKey: the collection (or
			// the requested range within it) is exhausted. Still publish
			// this as the terminal batch, reporting endKey (MaxKey for a
			// full run) as its maxKey, so the [minKey,maxKey] coverage
			// chain always closes even though no real key ever compares
			// GreaterOrEqual to the MaxKey sentinel.
			batchMaxKey = info.EndKey
		}

		ts, err := ex.bridge.AppendBatch(ex.ctx, BatchRecord{
			Namespace: info.Namespace,
			MinKey:    start,
			MaxKey:    batchMaxKey,
			Digest:    stats.Digest,
		})
		if err != nil {
			ex.health.LogBatchError(info.Namespace, start, err)
			state = stateAborted
			return ex.terminalReason(err)
		}
		stats.LogTimestamp = ts

		ex.health.LogBatch(HealthBatchEntry{
			Namespace:      info.Namespace,
			MinKey:         start,
			MaxKey:         batchMaxKey,
			Count:          stats.NDocs,
			Bytes:          stats.NBytes,
			ExpectedDigest: stats.Digest,
			ActualDigest:   stats.Digest,
			Success:        true,
			Timestamp:      ts,
		})

		if stats.NDocs == 0 {
			state = stateDone
			break
		}

		start = stats.LastKey
		totalDocs += stats.NDocs
		totalBytes += stats.NBytes

		if start.GreaterOrEqual(info.EndKey) || totalDocs >= info.MaxDocs || totalBytes >= info.MaxBytes {
			state = stateDone
			break
		}
	}

	log.Printf("dbcheck: collection %s done (docs=%d bytes=%d)", info.Namespace, totalDocs, totalBytes)
	return abortNone
}

// terminalReason maps a log-bridge error to the run-level abort reason,
// setting the shared terminal flag for anything that is terminal for the
// whole run rather than just the current collection.
func (ex *Executor) terminalReason(err error) abortReason {
	if err == ErrPrimarySteppedDown || err == ErrInterrupted {
		ex.done.Store(true)
		return abortStepdown
	}
	return abortError
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// resolveCatalogNeighbors assigns (if absent) a stable UUID to collection
// and returns it alongside the UUIDs of its immediate catalog-order
// neighbors, used by secondaries to detect membership drift.
func resolveCatalogNeighbors(tx *bolt.Tx, collection string) (self, prev, next string, err error) {
	self, err = ensureCatalogEntryTx(tx, collection)
	if err != nil {
		return "", "", "", err
	}

	entries, err := catalogEntriesSortedByUUID(tx)
	if err != nil {
		return "", "", "", err
	}
	for i, e := range entries {
		if e.UUID != self {
			continue
		}
		if i > 0 {
			prev = entries[i-1].UUID
		}
		if i < len(entries)-1 {
			next = entries[i+1].UUID
		}
		break
	}
	return self, prev, next, nil
}

// ensureCatalogEntryTx assigns a stable UUID to collection within tx if it
// does not already have one, creating the catalog bucket on first use.
// Called both from the document-write path (so a collection "exists" for
// dbcheck the moment it is first written to, even if every document is
// later deleted) and from the executor's own metadata step.
func ensureCatalogEntryTx(tx *bolt.Tx, collection string) (string, error) {
	cat, err := tx.CreateBucketIfNotExists(dbCheckCatalogBucket)
	if err != nil {
		return "", err
	}
	if existing := cat.Get([]byte(collection)); existing != nil {
		return string(existing), nil
	}
	id := uuid.New().String()
	if err := cat.Put([]byte(collection), []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}

// ensureCatalogEntry is the standalone, own-transaction form of
// ensureCatalogEntryTx, used by tests and by callers outside an existing
// bbolt transaction.
func ensureCatalogEntry(db *bolt.DB, collection string) error {
	return db.Update(func(tx *bolt.Tx) error {
		_, err := ensureCatalogEntryTx(tx, collection)
		return err
	})
}
