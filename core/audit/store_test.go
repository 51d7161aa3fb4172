package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func sampleRecords(base time.Time) []Record {
	return []Record{
		{
			Timestamp: base,
			RequestID: "r1",
			Kind:      KindTiering,
			Scores:    []ScoreLine{{AdvisorID: "a1", Total: 4.6, Tier: 1, Channel: "whatsapp"}},
		},
		{
			Timestamp: base.Add(30 * time.Minute),
			RequestID: "r1",
			Kind:      KindEvaluation,
			Outcome:   "EVALUATED",
		},
		{
			Timestamp: base.Add(time.Hour),
			RequestID: "r2",
			Kind:      KindTiering,
		},
	}
}

func runStoreTests(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, rec := range sampleRecords(base) {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := store.Query(ctx, Query{RequestID: "r1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records for r1 got %d", len(got))
	}

	got, err = store.Query(ctx, Query{Kind: KindTiering})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 tiering records got %d", len(got))
	}
	if got[0].Scores[0].AdvisorID != "a1" {
		t.Fatalf("score line lost in round trip: %#v", got[0])
	}

	got, err = store.Query(ctx, Query{Start: base.Add(45 * time.Minute)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].RequestID != "r2" {
		t.Fatalf("time filter failed: %#v", got)
	}
}

func TestJSONLStore(t *testing.T) {
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "audit.jsonl"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	runStoreTests(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	runStoreTests(t, store)
}
