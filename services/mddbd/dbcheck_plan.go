package main

import (
	"fmt"
	"math"
	"sort"
	"strings"

	bolt "go.etcd.io/bbolt"
)

// systemNamespaceWhitelist lists the collections that remain eligible for
// dbcheck even though they fall under the reserved system prefix.
var systemNamespaceWhitelist = map[string]bool{
	"backup_users": true,
	"js":           true,
	"new_users":    true,
	"roles":        true,
	"users":        true,
	"version":      true,
	"views":        true,
}

const (
	systemCollectionPrefix  = "system."
	localUnreplicatedDBName = "local"
)

// CollectionInfo is one collection's worth of audit job, produced by the
// planner and consumed by the executor. Immutable once planned.
type CollectionInfo struct {
	Namespace string
	StartKey  Key
	EndKey    Key
	MaxDocs   int64
	MaxBytes  int64

	// RateLimitPerSecond is parsed from maxCountPerSecond and stored but
	// never read by the executor; see the accept-and-ignore decision
	// recorded in DESIGN.md.
	RateLimitPerSecond int64
}

// Run is the ordered, finite sequence of CollectionInfo a single dbcheck
// invocation produces. Processed strictly in sequence.
type Run struct {
	Collections []CollectionInfo
}

// SingleCollectionRequest is the parsed form of the single-collection
// command surface ({ dbCheck: "<coll>", ... }).
type SingleCollectionRequest struct {
	Collection        string
	MinKey            *Key
	MaxKey            *Key
	MaxCount          *int64
	MaxSize           *int64
	MaxCountPerSecond *int64
}

// ErrInvalidNamespace and ErrNamespaceNotFound are planning errors, reported
// synchronously to the client per spec.md §7.
var (
	ErrInvalidNamespace  = fmt.Errorf("dbcheck: invalid namespace")
	ErrNamespaceNotFound = fmt.Errorf("dbcheck: namespace not found")
	ErrDatabaseNotFound  = fmt.Errorf("dbcheck: database not found")
)

// namespaceEligible reports whether a collection name may be audited: it
// must not live in the unreplicated local database, and if it carries the
// reserved system prefix it must be on the whitelist.
func namespaceEligible(dbName, collection string) bool {
	if dbName == localUnreplicatedDBName {
		return false
	}
	if !strings.HasPrefix(collection, systemCollectionPrefix) {
		return true
	}
	short := strings.TrimPrefix(collection, systemCollectionPrefix)
	return systemNamespaceWhitelist[short]
}

// collectionExists reports whether the dbcheck catalog bucket holds an
// entry for collection, i.e. the collection has been registered by a write
// or by ensureCatalogEntry. An empty-but-created collection therefore
// counts as existing: existence is decided by the catalog entry, not by
// document count.
func collectionExists(tx *bolt.Tx, collection string) bool {
	cat := tx.Bucket(dbCheckCatalogBucket)
	if cat == nil {
		return false
	}
	return cat.Get([]byte(collection)) != nil
}

// PlanSingle builds a one-element Run for the named collection, applying
// the user-supplied key/count/byte bounds (defaulting to the full range and
// the largest representable caps).
func PlanSingle(tx *bolt.Tx, dbName string, req SingleCollectionRequest) (Run, error) {
	if !namespaceEligible(dbName, req.Collection) {
		return Run{}, ErrInvalidNamespace
	}
	if !collectionExists(tx, req.Collection) {
		return Run{}, ErrNamespaceNotFound
	}

	info := CollectionInfo{
		Namespace: req.Collection,
		StartKey:  MinKey(),
		EndKey:    MaxKey(),
		MaxDocs:   math.MaxInt64,
		MaxBytes:  math.MaxInt64,
	}
	if req.MinKey != nil {
		info.StartKey = *req.MinKey
	}
	if req.MaxKey != nil {
		info.EndKey = *req.MaxKey
	}
	if req.MaxCount != nil {
		info.MaxDocs = *req.MaxCount
	}
	if req.MaxSize != nil {
		info.MaxBytes = *req.MaxSize
	}
	if req.MaxCountPerSecond != nil {
		info.RateLimitPerSecond = *req.MaxCountPerSecond
	}
	if info.EndKey.Less(info.StartKey) {
		return Run{}, fmt.Errorf("%w: startKey > endKey", ErrInvalidNamespace)
	}

	return Run{Collections: []CollectionInfo{info}}, nil
}

// PlanAll enumerates every eligible collection in the catalog and returns a
// Run with full-range entries for each, in catalog UUID order.
func PlanAll(tx *bolt.Tx, dbName string) (Run, error) {
	if dbName == localUnreplicatedDBName {
		return Run{}, ErrInvalidNamespace
	}

	entries, err := catalogEntriesSortedByUUID(tx)
	if err != nil {
		return Run{}, err
	}

	run := Run{}
	for _, e := range entries {
		if !namespaceEligible(dbName, e.Namespace) {
			continue
		}
		run.Collections = append(run.Collections, CollectionInfo{
			Namespace: e.Namespace,
			StartKey:  MinKey(),
			EndKey:    MaxKey(),
			MaxDocs:   math.MaxInt64,
			MaxBytes:  math.MaxInt64,
		})
	}
	return run, nil
}

// catalogEntry is a single collection's catalog row: its name and the UUID
// assigned when the collection was first observed by dbcheck's catalog
// bucket.
type catalogEntry struct {
	Namespace string
	UUID      string
}

func catalogEntriesSortedByUUID(tx *bolt.Tx) ([]catalogEntry, error) {
	cat := tx.Bucket(dbCheckCatalogBucket)
	if cat == nil {
		return nil, nil
	}
	var entries []catalogEntry
	err := cat.ForEach(func(k, v []byte) error {
		entries = append(entries, catalogEntry{Namespace: string(k), UUID: string(v)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UUID < entries[j].UUID })
	return entries, nil
}
