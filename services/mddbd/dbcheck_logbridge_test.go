package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openDbCheckTestWAL(t *testing.T) *WAL {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dbcheck_test.db")
	wal, err := NewWAL(path, SyncNever)
	if err != nil {
		t.Fatalf("NewWAL: %v", err)
	}
	t.Cleanup(func() { _ = wal.Close() })
	return wal
}

func TestSingleWriterOracleStepdown(t *testing.T) {
	o := NewSingleWriterOracle()
	if !o.CanAcceptWritesFor("widgets") {
		t.Fatalf("oracle must accept writes before Stepdown")
	}
	o.Stepdown()
	if o.CanAcceptWritesFor("widgets") {
		t.Fatalf("oracle must reject writes after Stepdown")
	}
}

func TestLogBridgeAppendSucceeds(t *testing.T) {
	wal := openDbCheckTestWAL(t)
	oracle := NewSingleWriterOracle()
	lb := NewLogBridge(wal, oracle, nil)

	ts, err := lb.AppendCollection(context.Background(), CollectionRecord{Namespace: "widgets", UUID: "u1"})
	if err != nil {
		t.Fatalf("AppendCollection: %v", err)
	}
	if ts == 0 {
		t.Fatalf("expected a non-zero replication timestamp")
	}
}

func TestLogBridgeRejectsAfterStepdown(t *testing.T) {
	wal := openDbCheckTestWAL(t)
	oracle := NewSingleWriterOracle()
	var triggered bool
	lb := NewLogBridge(wal, oracle, func() { triggered = true })

	oracle.Stepdown()
	_, err := lb.AppendBatch(context.Background(), BatchRecord{Namespace: "widgets"})
	if !errors.Is(err, ErrPrimarySteppedDown) {
		t.Fatalf("expected ErrPrimarySteppedDown, got %v", err)
	}
	if !triggered {
		t.Fatalf("expected onTerminal to fire on stepdown")
	}
}

func TestLogBridgeRejectsOnCancelledContext(t *testing.T) {
	wal := openDbCheckTestWAL(t)
	oracle := NewSingleWriterOracle()
	lb := NewLogBridge(wal, oracle, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := lb.AppendBatch(ctx, BatchRecord{Namespace: "widgets"})
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
}

// fakeOracle lets tests drive per-namespace writability independent of the
// single-process SingleWriterOracle, standing in for a multi-node
// leadership view.
type fakeOracle struct {
	writable map[string]bool
}

func newFakeOracle() *fakeOracle { return &fakeOracle{writable: make(map[string]bool)} }

func (f *fakeOracle) CanAcceptWritesFor(namespace string) bool {
	w, ok := f.writable[namespace]
	return !ok || w
}

func (f *fakeOracle) set(namespace string, writable bool) { f.writable[namespace] = writable }

func TestLogBridgeWithPerNamespaceOracle(t *testing.T) {
	wal := openDbCheckTestWAL(t)
	oracle := newFakeOracle()
	oracle.set("widgets", false)
	lb := NewLogBridge(wal, oracle, nil)

	if _, err := lb.AppendCollection(context.Background(), CollectionRecord{Namespace: "gadgets"}); err != nil {
		t.Fatalf("expected gadgets to remain writable, got %v", err)
	}
	if _, err := lb.AppendCollection(context.Background(), CollectionRecord{Namespace: "widgets"}); !errors.Is(err, ErrPrimarySteppedDown) {
		t.Fatalf("expected widgets to be rejected, got %v", err)
	}
}
