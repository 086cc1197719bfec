package main

import (
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

// newTestExecutor wires an Executor against a throwaway db/WAL/health log
// pair, sharing the oracle so the test can flip writability mid-run the way
// a secondary would observe a real stepdown.
func newTestExecutor(t *testing.T, db *bolt.DB, oracle LeadershipOracle) (*Executor, *HealthLog) {
	t.Helper()
	wal := openDbCheckTestWAL(t)
	health := NewHealthLog(100)
	var ex *Executor
	bridge := NewLogBridge(wal, oracle, func() { ex.Interrupt() })
	server := &Server{DB: db, BucketNames: BucketNames{Docs: []byte("docs")}}
	ex = NewExecutor(server, bridge, health, oracle)
	return ex, health
}

func runAndWait(ex *Executor, run Run) {
	done := make(chan struct{})
	go func() {
		ex.runAll(run)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
}

func TestExecutorFullRunPublishesEveryBatch(t *testing.T) {
	db := openDbCheckTestDB(t)
	seedDbCheckDocs(t, db, "widgets", 25, 16)
	if err := ensureCatalogEntry(db, "widgets"); err != nil {
		t.Fatalf("ensureCatalogEntry: %v", err)
	}

	oracle := NewSingleWriterOracle()
	ex, health := newTestExecutor(t, db, oracle)

	run := Run{Collections: []CollectionInfo{{
		Namespace: "widgets",
		StartKey:  MinKey(),
		EndKey:    MaxKey(),
		MaxDocs:   1000,
		MaxBytes:  1_000_000,
	}}}
	runAndWait(ex, run)

	batches := collectBatches(health)

	var totalDocs int64
	for _, b := range batches {
		totalDocs += b.Count
	}
	if totalDocs != 25 {
		t.Fatalf("expected the health log to account for all 25 docs across batches, got %d", totalDocs)
	}
	assertFullCoverageChain(t, batches)
}

// TestExecutorEmptyCollectionPublishesTerminalBatch verifies the boundary
// case where a registered collection has no documents at all: exactly one
// Batch health entry must still be published, spanning MinKey to MaxKey
// with zero count and bytes, so a consumer sees the range as audited rather
// than silently skipped.
func TestExecutorEmptyCollectionPublishesTerminalBatch(t *testing.T) {
	db := openDbCheckTestDB(t)
	if err := ensureCatalogEntry(db, "empties"); err != nil {
		t.Fatalf("ensureCatalogEntry: %v", err)
	}

	oracle := NewSingleWriterOracle()
	ex, health := newTestExecutor(t, db, oracle)

	run := Run{Collections: []CollectionInfo{{
		Namespace: "empties",
		StartKey:  MinKey(),
		EndKey:    MaxKey(),
		MaxDocs:   1000,
		MaxBytes:  1_000_000,
	}}}
	runAndWait(ex, run)

	batches := collectBatches(health)
	if len(batches) != 1 {
		t.Fatalf("expected exactly one Batch entry for an empty collection, got %d", len(batches))
	}
	b := batches[0]
	if !b.MinKey.IsMin() {
		t.Fatalf("expected the lone batch's minKey to be MinKey, got %s", b.MinKey)
	}
	if !b.MaxKey.IsMax() {
		t.Fatalf("expected the lone batch's maxKey to be MaxKey, got %s", b.MaxKey)
	}
	if b.Count != 0 || b.Bytes != 0 {
		t.Fatalf("expected count=0 bytes=0 for an empty collection, got count=%d bytes=%d", b.Count, b.Bytes)
	}
}

// collectBatches extracts every successful Batch entry from a health log
// snapshot, in publication order.
func collectBatches(health *HealthLog) []HealthBatchEntry {
	var out []HealthBatchEntry
	for _, e := range health.Snapshot() {
		if e.Batch != nil {
			out = append(out, *e.Batch)
		}
	}
	return out
}

// assertFullCoverageChain checks the spec's full-coverage property for a
// successful full-range run: exactly one batch starts at MinKey, exactly
// one ends at MaxKey, and every adjacent pair chains minKey(i+1) ==
// maxKey(i) with no gap or overlap.
func assertFullCoverageChain(t *testing.T, batches []HealthBatchEntry) {
	t.Helper()
	if len(batches) == 0 {
		t.Fatalf("expected at least one batch entry")
	}

	minCount, maxCount := 0, 0
	for _, b := range batches {
		if b.MinKey.IsMin() {
			minCount++
		}
		if b.MaxKey.IsMax() {
			maxCount++
		}
	}
	if minCount != 1 {
		t.Fatalf("expected exactly one batch with minKey = MinKey, got %d", minCount)
	}
	if maxCount != 1 {
		t.Fatalf("expected exactly one batch with maxKey = MaxKey, got %d", maxCount)
	}

	for i := 1; i < len(batches); i++ {
		if !batches[i].MinKey.Equal(batches[i-1].MaxKey) {
			t.Fatalf("coverage gap between batch %d (maxKey=%s) and batch %d (minKey=%s)",
				i-1, batches[i-1].MaxKey, i, batches[i].MinKey)
		}
	}
}

func TestExecutorStopsOnStepdownMidRun(t *testing.T) {
	db := openDbCheckTestDB(t)
	seedDbCheckDocs(t, db, "widgets", 25, 16)
	seedDbCheckDocs(t, db, "gadgets", 10, 16)
	for _, coll := range []string{"widgets", "gadgets"} {
		if err := ensureCatalogEntry(db, coll); err != nil {
			t.Fatalf("ensureCatalogEntry(%s): %v", coll, err)
		}
	}

	oracle := newFakeOracle()
	ex, health := newTestExecutor(t, db, oracle)

	// Mark gadgets unwritable up front, so the executor observes the
	// stepdown as soon as it reaches the second collection.
	run := Run{Collections: []CollectionInfo{
		{Namespace: "widgets", StartKey: MinKey(), EndKey: MaxKey(), MaxDocs: 1000, MaxBytes: 1_000_000},
		{Namespace: "gadgets", StartKey: MinKey(), EndKey: MaxKey(), MaxDocs: 1000, MaxBytes: 1_000_000},
	}}
	oracle.set("gadgets", false)
	runAndWait(ex, run)

	sawGadgetsBatch := false
	for _, e := range health.Snapshot() {
		if e.Namespace == "gadgets" && e.Batch != nil {
			sawGadgetsBatch = true
		}
	}
	if sawGadgetsBatch {
		t.Fatalf("gadgets must not have been audited once it lost write eligibility")
	}
	if !ex.done.Load() {
		t.Fatalf("expected the executor's terminal flag to be set after a stepdown")
	}
}

func TestExecutorAbortsWhenCollectionDisappears(t *testing.T) {
	db := openDbCheckTestDB(t)
	// Deliberately do not register "ghosts" in the catalog.
	oracle := NewSingleWriterOracle()
	ex, health := newTestExecutor(t, db, oracle)

	run := Run{Collections: []CollectionInfo{
		{Namespace: "ghosts", StartKey: MinKey(), EndKey: MaxKey(), MaxDocs: 1000, MaxBytes: 1_000_000},
	}}
	runAndWait(ex, run)

	sawMetadataFailure := false
	for _, e := range health.Snapshot() {
		if e.Operation == "dbCheckCollection" && e.Severity == SeverityError {
			sawMetadataFailure = true
		}
	}
	if !sawMetadataFailure {
		t.Fatalf("expected a metadata-publish failure entry for a vanished collection")
	}
}
