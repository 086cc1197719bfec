package main

import (
	"bytes"
	"crypto/md5"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var (
	errDbCheckShortKey       = errors.New("dbcheck: short key buffer")
	errDbCheckBadKeyKind     = errors.New("dbcheck: unrecognized key kind")
	errDbCheckSnapshotClosed = errors.New("dbcheck: snapshot unavailable")
	errDbCheckNamespaceGone  = errors.New("dbcheck: namespace not found")
	errDbCheckInterrupted    = errors.New("dbcheck: interrupted")
)

// BatchStats is the result of one Hasher.Next call: the digest and bookkeeping
// for a single key-ordered prefix of a collection.
type BatchStats struct {
	NDocs        int64
	NBytes       int64
	LastKey      Key
	Digest       [md5.Size]byte
	LogTimestamp int64
}

// Hasher iterates a single collection's docs in key order on a fixed bbolt
// read-only transaction, producing successive BatchStats. One Hasher is
// constructed per collection and reused across every batch of that
// collection so every batch observes the same read snapshot.
type Hasher struct {
	db     *bolt.DB
	coll   string
	tx     *bolt.Tx
	closed bool
}

// NewHasher opens a read-only bbolt transaction to serve as the snapshot for
// every batch hashed against the given collection. The snapshot is released
// by Close.
func NewHasher(db *bolt.DB, collection string) (*Hasher, error) {
	tx, err := db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errDbCheckSnapshotClosed, err)
	}
	return &Hasher{db: db, coll: collection, tx: tx}, nil
}

// Close releases the read snapshot. Safe to call more than once.
func (h *Hasher) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.tx.Rollback()
}

// Next hashes forward from firstKey, stopping at the first of: maxDocs
// documents consumed, cumulative bytes >= maxBytes, next document's key >
// endKey, or end of collection. firstKeyInclusive controls whether a
// document whose key equals firstKey is itself included — true only for the
// very first batch of a collection, whose firstKey is the run's StartKey
// (MinKey for a full-range run).
func (h *Hasher) Next(firstKey, endKey Key, firstKeyInclusive bool, maxDocs, maxBytes int64) (BatchStats, error) {
	if h.closed {
		return BatchStats{}, errDbCheckSnapshotClosed
	}

	bDocs := h.tx.Bucket([]byte("docs"))
	if bDocs == nil {
		return BatchStats{}, errDbCheckNamespaceGone
	}

	stats := BatchStats{LastKey: firstKey}
	digest := md5.New()

	prefix := []byte("doc|" + h.coll + "|")
	c := bDocs.Cursor()

	var k, v []byte
	if firstKey.IsMin() {
		k, v = c.Seek(prefix)
	} else {
		k, v = seekAfter(c, firstKey.Bytes(), firstKeyInclusive)
	}

	for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		docKey := RealKey(k)
		if !endKey.IsMax() && docKey.Compare(endKey) > 0 {
			break
		}

		canon, err := canonicalizeDoc(v)
		if err != nil {
			return BatchStats{}, fmt.Errorf("dbcheck: canonicalize %s: %w", docKey, err)
		}

		// Every document reached here is consumed, even if it alone
		// exceeds maxBytes: the cap is only checked after consuming.
		digest.Write(canon)
		stats.NDocs++
		stats.NBytes += int64(len(canon))
		stats.LastKey = docKey

		if stats.NDocs >= maxDocs || stats.NBytes >= maxBytes {
			break
		}
	}

	copy(stats.Digest[:], digest.Sum(nil))
	return stats, nil
}

// seekAfter positions the cursor at the first key at-or-after after (after
// is already a full raw bbolt key, e.g. a prior batch's lastKey), skipping
// past it unless inclusive.
func seekAfter(c *bolt.Cursor, after []byte, inclusive bool) ([]byte, []byte) {
	k, v := c.Seek(after)
	if k == nil {
		return nil, nil
	}
	if !inclusive && bytes.Equal(k, after) {
		return c.Next()
	}
	return k, v
}

// canonicalizeDoc produces the byte sequence a document contributes to its
// batch digest: the on-disk value with any compression framing stripped so
// the digest reflects logical document content, not storage encoding.
func canonicalizeDoc(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	return decompressDoc(raw)
}
