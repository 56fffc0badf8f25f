package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	entries := []Entry{
		{Query: "who is ada lovelace", Outcome: "done", Steps: 1, DurationMS: 850, CreatedAt: time.Unix(1000, 0)},
		{Query: "what is the analytical engine", Outcome: "exhausted", ErrorKind: "exhausted", Steps: 5, DurationMS: 12000, CreatedAt: time.Unix(2000, 0)},
		{Query: "broken run", Outcome: "failed", ErrorKind: "llm_provider", Steps: 0, DurationMS: 30, CreatedAt: time.Unix(3000, 0)},
	}
	for _, e := range entries {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}

	// Newest first.
	if got[0].Query != "broken run" {
		t.Errorf("expected newest entry first, got %q", got[0].Query)
	}
	if got[0].ErrorKind != "llm_provider" {
		t.Errorf("unexpected error kind %q", got[0].ErrorKind)
	}
	if got[2].Query != "who is ada lovelace" {
		t.Errorf("expected oldest entry last, got %q", got[2].Query)
	}
	if got[2].Steps != 1 || got[2].DurationMS != 850 {
		t.Errorf("entry fields not round-tripped: %+v", got[2])
	}
}

func TestRecent_Limit(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e := Entry{Query: "q", Outcome: "done", CreatedAt: time.Unix(int64(i*100), 0)}
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 entries, got %d", len(got))
	}
}

func TestRecent_Empty(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	got, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no entries, got %d", len(got))
	}
}

func TestRecord_DefaultsCreatedAt(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	before := time.Now().Add(-time.Second)
	if err := s.Record(ctx, Entry{Query: "q", Outcome: "done"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if got[0].CreatedAt.Before(before) {
		t.Errorf("expected CreatedAt to default to now, got %v", got[0].CreatedAt)
	}
}

func TestRecord_RejectsUnknownOutcome(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	if err := s.Record(context.Background(), Entry{Query: "q", Outcome: "banana"}); err == nil {
		t.Error("expected CHECK constraint violation for unknown outcome")
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.Record(ctx, Entry{Query: "persisted", Outcome: "done"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].Query != "persisted" {
		t.Errorf("entry not persisted across reopen: %v", got)
	}
}
