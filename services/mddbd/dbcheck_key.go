package main

import "bytes"

// keyKind tags a Key as a real value or one of the two domain sentinels.
type keyKind byte

const (
	keyKindMin  keyKind = 0
	keyKindReal keyKind = 1
	keyKindMax  keyKind = 2
)

// Key is a totally ordered value from a collection's key domain, augmented
// with MinKey/MaxKey sentinels that bound every real key. The raw bytes are
// exactly what bbolt stores in the docs bucket (doc|<collection>|<id>).
type Key struct {
	kind keyKind
	raw  []byte
}

// MinKey sorts below every real key in every collection.
func MinKey() Key { return Key{kind: keyKindMin} }

// MaxKey sorts above every real key in every collection.
func MaxKey() Key { return Key{kind: keyKindMax} }

// RealKey wraps a concrete document key observed in the docs bucket.
func RealKey(raw []byte) Key {
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return Key{kind: keyKindReal, raw: cp}
}

// IsMin reports whether k is the MinKey sentinel.
func (k Key) IsMin() bool { return k.kind == keyKindMin }

// IsMax reports whether k is the MaxKey sentinel.
func (k Key) IsMax() bool { return k.kind == keyKindMax }

// Bytes returns the raw key bytes. Only meaningful for real keys; returns
// nil for either sentinel.
func (k Key) Bytes() []byte { return k.raw }

// Compare returns -1, 0 or 1 as k is less than, equal to, or greater than
// other. MinKey < every real key < MaxKey; MinKey < MaxKey.
func (k Key) Compare(other Key) int {
	if k.kind != other.kind {
		return int(k.kind) - int(other.kind)
	}
	if k.kind != keyKindReal {
		return 0
	}
	return bytes.Compare(k.raw, other.raw)
}

// Less reports whether k sorts strictly before other.
func (k Key) Less(other Key) bool { return k.Compare(other) < 0 }

// GreaterOrEqual reports whether k sorts at or after other.
func (k Key) GreaterOrEqual(other Key) bool { return k.Compare(other) >= 0 }

// Equal reports whether k and other compare equal.
func (k Key) Equal(other Key) bool { return k.Compare(other) == 0 }

// Encode produces a round-trippable wire form: a one-byte kind tag followed
// by the raw bytes for real keys. Sentinels encode to a single byte so they
// can never collide with a real key's encoding.
func (k Key) Encode() []byte {
	if k.kind != keyKindReal {
		return []byte{byte(k.kind)}
	}
	buf := make([]byte, 1+len(k.raw))
	buf[0] = byte(keyKindReal)
	copy(buf[1:], k.raw)
	return buf
}

// DecodeKey parses the wire form produced by Encode.
func DecodeKey(buf []byte) (Key, error) {
	if len(buf) == 0 {
		return Key{}, errDbCheckShortKey
	}
	switch keyKind(buf[0]) {
	case keyKindMin:
		return MinKey(), nil
	case keyKindMax:
		return MaxKey(), nil
	case keyKindReal:
		return RealKey(buf[1:]), nil
	default:
		return Key{}, errDbCheckBadKeyKind
	}
}

// String renders a key for health-log / log output.
func (k Key) String() string {
	switch k.kind {
	case keyKindMin:
		return "MinKey"
	case keyKindMax:
		return "MaxKey"
	default:
		return string(k.raw)
	}
}
