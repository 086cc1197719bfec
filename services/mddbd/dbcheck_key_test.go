package main

import "testing"

func TestKeySentinelOrdering(t *testing.T) {
	min, max := MinKey(), MaxKey()
	real := RealKey([]byte("doc|widgets|007"))

	if !min.Less(real) {
		t.Fatalf("MinKey must sort before any real key")
	}
	if !real.Less(max) {
		t.Fatalf("any real key must sort before MaxKey")
	}
	if !min.Less(max) {
		t.Fatalf("MinKey must sort before MaxKey")
	}
	if !min.Equal(MinKey()) || !max.Equal(MaxKey()) {
		t.Fatalf("sentinels must compare equal to themselves")
	}
}

func TestKeyRealOrdering(t *testing.T) {
	a := RealKey([]byte("doc|widgets|001"))
	b := RealKey([]byte("doc|widgets|002"))

	if !a.Less(b) {
		t.Fatalf("expected %s < %s", a, b)
	}
	if a.GreaterOrEqual(b) {
		t.Fatalf("%s must not be >= %s", a, b)
	}
	if !b.GreaterOrEqual(a) {
		t.Fatalf("%s must be >= %s", b, a)
	}
}

func TestKeyRealIsDefensivelyCopied(t *testing.T) {
	raw := []byte("doc|widgets|001")
	k := RealKey(raw)
	raw[0] = 'X'
	if k.Bytes()[0] == 'X' {
		t.Fatalf("RealKey must copy its input, mutation leaked through")
	}
}

func TestKeyEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Key{MinKey(), MaxKey(), RealKey([]byte("doc|widgets|007"))}
	for _, k := range cases {
		decoded, err := DecodeKey(k.Encode())
		if err != nil {
			t.Fatalf("decode %s: %v", k, err)
		}
		if !decoded.Equal(k) {
			t.Fatalf("round-trip mismatch: got %s, want %s", decoded, k)
		}
	}
}

func TestDecodeKeyRejectsEmptyAndBadKind(t *testing.T) {
	if _, err := DecodeKey(nil); err != errDbCheckShortKey {
		t.Fatalf("expected errDbCheckShortKey, got %v", err)
	}
	if _, err := DecodeKey([]byte{99}); err != errDbCheckBadKeyKind {
		t.Fatalf("expected errDbCheckBadKeyKind, got %v", err)
	}
}

func TestSentinelEncodingNeverCollidesWithRealKeys(t *testing.T) {
	min := MinKey().Encode()
	max := MaxKey().Encode()
	if len(min) != 1 || len(max) != 1 {
		t.Fatalf("sentinel encodings must be exactly one byte")
	}
	real := RealKey([]byte{}).Encode()
	if len(real) != 1+0 || real[0] == min[0] || real[0] == max[0] {
		t.Fatalf("real key tag must differ from both sentinel tags")
	}
}
