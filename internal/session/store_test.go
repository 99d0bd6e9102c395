package session

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStoreAppendList(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "history.db"), filepath.Join(dir, "history.lock"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	records := []Record{
		{CommandID: "use", Timestamp: base, Success: true},
		{CommandID: "swap", Protocol: "uniswap-v4", Timestamp: base.Add(time.Minute), Success: false, Err: "quote unavailable"},
		{CommandID: "help", Timestamp: base.Add(2 * time.Minute), Success: true},
	}
	for _, rec := range records {
		if err := store.Append("session-a", rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := store.Append("session-b", Record{CommandID: "exit", Timestamp: base.Add(3 * time.Minute), Success: true}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := store.List("session-a", 10, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].CommandID != "help" {
		t.Fatalf("expected newest record first, got %s", got[0].CommandID)
	}

	failed, err := store.List("session-a", 10, true)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(failed) != 1 || failed[0].CommandID != "swap" || failed[0].Err == "" {
		t.Fatalf("unexpected failed records: %+v", failed)
	}

	all, err := store.List("", 10, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected records across sessions, got %d", len(all))
	}
}

func TestStoreAppendRequiresCommandID(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "history.db"), filepath.Join(dir, "history.lock"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Append("session-a", Record{Timestamp: time.Now()}); err == nil {
		t.Fatal("expected error for empty command id")
	}
}

func TestStoreListLimit(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "history.db"), filepath.Join(dir, "history.lock"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	base := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := Record{CommandID: "help", Timestamp: base.Add(time.Duration(i) * time.Second), Success: true}
		if err := store.Append("session-a", rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	got, err := store.List("session-a", 2, false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(got))
	}
}
