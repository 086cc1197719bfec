package main

import (
	"errors"
	"testing"

	bolt "go.etcd.io/bbolt"
)

func TestNamespaceEligibleRejectsLocalDatabase(t *testing.T) {
	if namespaceEligible(localUnreplicatedDBName, "widgets") {
		t.Fatalf("local database collections must never be eligible")
	}
}

func TestNamespaceEligibleSystemPrefix(t *testing.T) {
	if namespaceEligible("app", "system.profile") {
		t.Fatalf("non-whitelisted system.* collection must be ineligible")
	}
	if !namespaceEligible("app", "system.users") {
		t.Fatalf("whitelisted system.users must be eligible")
	}
	if !namespaceEligible("app", "widgets") {
		t.Fatalf("ordinary collection must be eligible")
	}
}

func TestPlanSingleRejectsUnknownCollection(t *testing.T) {
	db := openDbCheckTestDB(t)

	err := db.View(func(tx *bolt.Tx) error {
		_, err := PlanSingle(tx, "app", SingleCollectionRequest{Collection: "ghosts"})
		return err
	})
	if !errors.Is(err, ErrNamespaceNotFound) {
		t.Fatalf("expected ErrNamespaceNotFound, got %v", err)
	}
}

func TestPlanSingleRejectsIneligibleNamespace(t *testing.T) {
	db := openDbCheckTestDB(t)
	if err := ensureCatalogEntry(db, "widgets"); err != nil {
		t.Fatalf("ensureCatalogEntry: %v", err)
	}

	err := db.View(func(tx *bolt.Tx) error {
		_, err := PlanSingle(tx, localUnreplicatedDBName, SingleCollectionRequest{Collection: "widgets"})
		return err
	})
	if !errors.Is(err, ErrInvalidNamespace) {
		t.Fatalf("expected ErrInvalidNamespace, got %v", err)
	}
}

func TestPlanSingleDefaultsToFullRange(t *testing.T) {
	db := openDbCheckTestDB(t)
	if err := ensureCatalogEntry(db, "widgets"); err != nil {
		t.Fatalf("ensureCatalogEntry: %v", err)
	}

	var run Run
	err := db.View(func(tx *bolt.Tx) error {
		var err error
		run, err = PlanSingle(tx, "app", SingleCollectionRequest{Collection: "widgets"})
		return err
	})
	if err != nil {
		t.Fatalf("PlanSingle: %v", err)
	}
	if len(run.Collections) != 1 {
		t.Fatalf("expected exactly one collection, got %d", len(run.Collections))
	}
	info := run.Collections[0]
	if !info.StartKey.IsMin() || !info.EndKey.IsMax() {
		t.Fatalf("expected full-range defaults, got start=%s end=%s", info.StartKey, info.EndKey)
	}
}

func TestPlanSingleRejectsInvertedKeyRange(t *testing.T) {
	db := openDbCheckTestDB(t)
	if err := ensureCatalogEntry(db, "widgets"); err != nil {
		t.Fatalf("ensureCatalogEntry: %v", err)
	}

	lo := RealKey(kDoc("widgets", "00009"))
	hi := RealKey(kDoc("widgets", "00001"))
	err := db.View(func(tx *bolt.Tx) error {
		_, err := PlanSingle(tx, "app", SingleCollectionRequest{Collection: "widgets", MinKey: &lo, MaxKey: &hi})
		return err
	})
	if !errors.Is(err, ErrInvalidNamespace) {
		t.Fatalf("expected ErrInvalidNamespace for startKey > endKey, got %v", err)
	}
}

func TestPlanAllOrdersByCatalogUUID(t *testing.T) {
	db := openDbCheckTestDB(t)
	for _, coll := range []string{"charlie", "alpha", "bravo"} {
		if err := ensureCatalogEntry(db, coll); err != nil {
			t.Fatalf("ensureCatalogEntry(%s): %v", coll, err)
		}
	}

	var run Run
	err := db.View(func(tx *bolt.Tx) error {
		var err error
		run, err = PlanAll(tx, "app")
		return err
	})
	if err != nil {
		t.Fatalf("PlanAll: %v", err)
	}
	if len(run.Collections) != 3 {
		t.Fatalf("expected 3 collections, got %d", len(run.Collections))
	}

	entries, err := func() ([]catalogEntry, error) {
		var entries []catalogEntry
		err := db.View(func(tx *bolt.Tx) error {
			var err error
			entries, err = catalogEntriesSortedByUUID(tx)
			return err
		})
		return entries, err
	}()
	if err != nil {
		t.Fatalf("catalogEntriesSortedByUUID: %v", err)
	}
	for i, e := range entries {
		if run.Collections[i].Namespace != e.Namespace {
			t.Fatalf("PlanAll order diverged from catalog UUID order at index %d: got %s, want %s",
				i, run.Collections[i].Namespace, e.Namespace)
		}
	}
}

func TestPlanAllRejectsLocalDatabase(t *testing.T) {
	db := openDbCheckTestDB(t)
	err := db.View(func(tx *bolt.Tx) error {
		_, err := PlanAll(tx, localUnreplicatedDBName)
		return err
	})
	if !errors.Is(err, ErrInvalidNamespace) {
		t.Fatalf("expected ErrInvalidNamespace, got %v", err)
	}
}
