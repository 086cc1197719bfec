package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"
)

func openDbCheckTestDB(t *testing.T) *bolt.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dbcheck_test.db")
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte("docs"))
		return err
	}); err != nil {
		t.Fatalf("create docs bucket: %v", err)
	}
	return db
}

// seedDbCheckDocs writes n documents of size bytes each into collection,
// keyed in sorted order, returning their full bbolt keys in order.
func seedDbCheckDocs(t *testing.T, db *bolt.DB, collection string, n, size int) [][]byte {
	t.Helper()
	var keys [][]byte
	err := db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("docs"))
		for i := 0; i < n; i++ {
			k := kDoc(collection, fmt.Sprintf("%05d", i))
			v := bytes.Repeat([]byte("x"), size)
			if err := b.Put(k, v); err != nil {
				return err
			}
			keys = append(keys, k)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed docs: %v", err)
	}
	return keys
}

func TestHasherSingleBatchCoversWholeCollection(t *testing.T) {
	db := openDbCheckTestDB(t)
	seedDbCheckDocs(t, db, "widgets", 10, 16)

	h, err := NewHasher(db, "widgets")
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	defer h.Close()

	stats, err := h.Next(MinKey(), MaxKey(), true, 1000, 1_000_000)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if stats.NDocs != 10 {
		t.Fatalf("expected 10 docs, got %d", stats.NDocs)
	}
	if stats.NBytes != 160 {
		t.Fatalf("expected 160 bytes, got %d", stats.NBytes)
	}
	if !stats.LastKey.Equal(RealKey(kDoc("widgets", "00009"))) {
		t.Fatalf("expected lastKey to be the final doc, got %s", stats.LastKey)
	}
}

func TestHasherRespectsMaxDocsCap(t *testing.T) {
	db := openDbCheckTestDB(t)
	seedDbCheckDocs(t, db, "widgets", 10, 16)

	h, err := NewHasher(db, "widgets")
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	defer h.Close()

	stats, err := h.Next(MinKey(), MaxKey(), true, 3, 1_000_000)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if stats.NDocs != 3 {
		t.Fatalf("expected batch capped at 3 docs, got %d", stats.NDocs)
	}
}

func TestHasherAlwaysConsumesTheDocumentThatExceedsTheByteCap(t *testing.T) {
	db := openDbCheckTestDB(t)
	// A single document far larger than the byte cap must still be fully
	// consumed by the batch that reaches it.
	seedDbCheckDocs(t, db, "widgets", 1, 1000)

	h, err := NewHasher(db, "widgets")
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	defer h.Close()

	stats, err := h.Next(MinKey(), MaxKey(), true, 1000, 10)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if stats.NDocs != 1 || stats.NBytes != 1000 {
		t.Fatalf("expected the oversized doc to be fully consumed, got docs=%d bytes=%d", stats.NDocs, stats.NBytes)
	}
}

func TestHasherContinuationExcludesPriorLastKey(t *testing.T) {
	db := openDbCheckTestDB(t)
	seedDbCheckDocs(t, db, "widgets", 6, 16)

	h, err := NewHasher(db, "widgets")
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	defer h.Close()

	first, err := h.Next(MinKey(), MaxKey(), true, 3, 1_000_000)
	if err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if first.NDocs != 3 {
		t.Fatalf("expected first batch of 3, got %d", first.NDocs)
	}

	second, err := h.Next(first.LastKey, MaxKey(), false, 1000, 1_000_000)
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}
	if second.NDocs != 3 {
		t.Fatalf("expected second batch to cover the remaining 3 docs, got %d", second.NDocs)
	}
	if second.LastKey.Equal(first.LastKey) {
		t.Fatalf("second batch must not re-include the first batch's lastKey")
	}
}

func TestHasherEmptyCollectionProducesZeroBatch(t *testing.T) {
	db := openDbCheckTestDB(t)
	// No docs seeded for "ghosts".

	h, err := NewHasher(db, "ghosts")
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	defer h.Close()

	stats, err := h.Next(MinKey(), MaxKey(), true, 1000, 1_000_000)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if stats.NDocs != 0 || stats.NBytes != 0 {
		t.Fatalf("expected zero-batch for empty collection, got docs=%d bytes=%d", stats.NDocs, stats.NBytes)
	}
	if !stats.LastKey.IsMin() {
		t.Fatalf("expected lastKey to remain MinKey when nothing was consumed, got %s", stats.LastKey)
	}
}

func TestHasherStopsAtEndKey(t *testing.T) {
	db := openDbCheckTestDB(t)
	keys := seedDbCheckDocs(t, db, "widgets", 10, 16)

	h, err := NewHasher(db, "widgets")
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	defer h.Close()

	endKey := RealKey(keys[4])
	stats, err := h.Next(MinKey(), endKey, true, 1000, 1_000_000)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if stats.NDocs != 5 {
		t.Fatalf("expected 5 docs up to and including endKey, got %d", stats.NDocs)
	}
}

func TestHasherClosedAfterClose(t *testing.T) {
	db := openDbCheckTestDB(t)
	seedDbCheckDocs(t, db, "widgets", 1, 16)

	h, err := NewHasher(db, "widgets")
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close must be a no-op, got %v", err)
	}
	if _, err := h.Next(MinKey(), MaxKey(), true, 10, 10); err != errDbCheckSnapshotClosed {
		t.Fatalf("expected errDbCheckSnapshotClosed after Close, got %v", err)
	}
}
