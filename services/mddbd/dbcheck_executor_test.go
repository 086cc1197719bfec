package main

import (
	"testing"

	bolt "go.etcd.io/bbolt"
)

func TestEnsureCatalogEntryIsIdempotent(t *testing.T) {
	db := openDbCheckTestDB(t)

	if err := ensureCatalogEntry(db, "widgets"); err != nil {
		t.Fatalf("ensureCatalogEntry: %v", err)
	}

	var first, second string
	_ = db.View(func(tx *bolt.Tx) error {
		cat := tx.Bucket(dbCheckCatalogBucket)
		first = string(cat.Get([]byte("widgets")))
		return nil
	})

	if err := ensureCatalogEntry(db, "widgets"); err != nil {
		t.Fatalf("ensureCatalogEntry (again): %v", err)
	}
	_ = db.View(func(tx *bolt.Tx) error {
		cat := tx.Bucket(dbCheckCatalogBucket)
		second = string(cat.Get([]byte("widgets")))
		return nil
	})

	if first == "" || first != second {
		t.Fatalf("expected a stable UUID across repeated calls, got %q then %q", first, second)
	}
}

func TestResolveCatalogNeighbors(t *testing.T) {
	db := openDbCheckTestDB(t)
	for _, coll := range []string{"alpha", "bravo", "charlie"} {
		if err := ensureCatalogEntry(db, coll); err != nil {
			t.Fatalf("ensureCatalogEntry(%s): %v", coll, err)
		}
	}

	var entries []catalogEntry
	_ = db.View(func(tx *bolt.Tx) error {
		var err error
		entries, err = catalogEntriesSortedByUUID(tx)
		return err
	})
	if len(entries) != 3 {
		t.Fatalf("expected 3 catalog entries, got %d", len(entries))
	}

	middle := entries[1].Namespace
	err := db.Update(func(tx *bolt.Tx) error {
		self, prev, next, err := resolveCatalogNeighbors(tx, middle)
		if err != nil {
			return err
		}
		if self != entries[1].UUID {
			t.Fatalf("self UUID mismatch: got %s want %s", self, entries[1].UUID)
		}
		if prev != entries[0].UUID {
			t.Fatalf("prev UUID mismatch: got %s want %s", prev, entries[0].UUID)
		}
		if next != entries[2].UUID {
			t.Fatalf("next UUID mismatch: got %s want %s", next, entries[2].UUID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("resolveCatalogNeighbors: %v", err)
	}
}

func TestResolveCatalogNeighborsAtEdges(t *testing.T) {
	db := openDbCheckTestDB(t)
	for _, coll := range []string{"alpha", "bravo"} {
		if err := ensureCatalogEntry(db, coll); err != nil {
			t.Fatalf("ensureCatalogEntry(%s): %v", coll, err)
		}
	}

	var entries []catalogEntry
	_ = db.View(func(tx *bolt.Tx) error {
		var err error
		entries, err = catalogEntriesSortedByUUID(tx)
		return err
	})

	err := db.Update(func(tx *bolt.Tx) error {
		_, prev, next, err := resolveCatalogNeighbors(tx, entries[0].Namespace)
		if err != nil {
			return err
		}
		if prev != "" {
			t.Fatalf("first entry must have no prev neighbor, got %q", prev)
		}
		if next != entries[1].UUID {
			t.Fatalf("first entry's next must be the second entry, got %q", next)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("resolveCatalogNeighbors: %v", err)
	}
}

func TestMinInt64(t *testing.T) {
	if got := minInt64(3, 5); got != 3 {
		t.Fatalf("minInt64(3, 5) = %d, want 3", got)
	}
	if got := minInt64(5, 3); got != 3 {
		t.Fatalf("minInt64(5, 3) = %d, want 3", got)
	}
}

// ensureCatalogEntryTx, the step handleAdd, the gRPC Add and the batch
// commit each run inside their write transaction, must register the
// collection in the dbcheck catalog, so an audit can find it without a
// prior explicit dbcheck run.
func TestEnsureCatalogEntryTxRegistersCollection(t *testing.T) {
	db := openDbCheckTestDB(t)

	err := db.Update(func(tx *bolt.Tx) error {
		_, err := ensureCatalogEntryTx(tx, "widgets")
		return err
	})
	if err != nil {
		t.Fatalf("ensureCatalogEntryTx: %v", err)
	}

	err = db.View(func(tx *bolt.Tx) error {
		if !collectionExists(tx, "widgets") {
			t.Fatalf("expected widgets to exist in the catalog after a write")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
