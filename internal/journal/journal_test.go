package journal

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// createTestJournal creates an in-memory journal for testing
func createTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to create test journal: %v", err)
	}

	t.Cleanup(func() {
		_ = j.Close()
	})

	return j
}

func TestOpen(t *testing.T) {
	t.Run("in-memory database", func(t *testing.T) {
		j, err := Open(":memory:")
		if err != nil {
			t.Fatalf("failed to open in-memory journal: %v", err)
		}
		defer func() { _ = j.Close() }()

		if j.db == nil {
			t.Error("journal database is nil")
		}
	})

	t.Run("file-based database survives reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "journal.db")
		ctx := context.Background()

		j, err := Open(path)
		if err != nil {
			t.Fatalf("failed to open journal: %v", err)
		}
		if _, err := j.Add(ctx, Entry{Session: "s1", Kind: "play_mode", Value: "playing"}); err != nil {
			t.Fatalf("failed to add entry: %v", err)
		}
		if err := j.Close(); err != nil {
			t.Fatalf("failed to close journal: %v", err)
		}

		j, err = Open(path)
		if err != nil {
			t.Fatalf("failed to reopen journal: %v", err)
		}
		defer func() { _ = j.Close() }()

		count, err := j.Count(ctx, "")
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 entry after reopen, got %d", count)
		}
	})
}

func TestJournalAdd(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	id, err := j.Add(ctx, Entry{
		Session: "s1",
		Kind:    "current_frame",
		Frame:   42,
		Value:   "42",
	})
	if err != nil {
		t.Fatalf("failed to add entry: %v", err)
	}
	if id <= 0 {
		t.Errorf("expected positive id, got %d", id)
	}

	entries, err := j.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("failed to get entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Session != "s1" || e.Kind != "current_frame" || e.Frame != 42 || e.Value != "42" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if time.Since(e.CreatedAt) > time.Minute {
		t.Errorf("CreatedAt not defaulted to now: %v", e.CreatedAt)
	}
}

func TestJournalRecent(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	for i := int64(0); i < 5; i++ {
		if _, err := j.Add(ctx, Entry{Session: "s1", Kind: "current_frame", Frame: i}); err != nil {
			t.Fatalf("failed to add entry %d: %v", i, err)
		}
	}

	entries, err := j.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("failed to get recent entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []int64{4, 3, 2} {
		if entries[i].Frame != want {
			t.Errorf("entry %d: expected frame %d, got %d", i, want, entries[i].Frame)
		}
	}
}

func TestJournalForSession(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	err := j.AddBatch(ctx, []Entry{
		{Session: "a", Kind: "play_mode", Value: "playing"},
		{Session: "b", Kind: "play_mode", Value: "paused"},
		{Session: "a", Kind: "speed", Value: "2"},
	})
	if err != nil {
		t.Fatalf("failed to add batch: %v", err)
	}

	entries, err := j.ForSession(ctx, "a", 0)
	if err != nil {
		t.Fatalf("failed to get session entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Kind != "play_mode" || entries[1].Kind != "speed" {
		t.Errorf("entries out of order: %+v", entries)
	}
}

func TestJournalAddBatchEmpty(t *testing.T) {
	j := createTestJournal(t)

	if err := j.AddBatch(context.Background(), nil); err != nil {
		t.Fatalf("AddBatch(nil): %v", err)
	}
}

func TestJournalCount(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	kinds := []string{"frame_dropped", "frame_dropped", "speed", "play_mode"}
	for _, kind := range kinds {
		if _, err := j.Add(ctx, Entry{Session: "s1", Kind: kind}); err != nil {
			t.Fatalf("failed to add %s: %v", kind, err)
		}
	}

	tests := []struct {
		kind string
		want int
	}{
		{"", 4},
		{"frame_dropped", 2},
		{"speed", 1},
		{"bounds", 0},
	}

	for _, tt := range tests {
		count, err := j.Count(ctx, tt.kind)
		if err != nil {
			t.Fatalf("Count(%q): %v", tt.kind, err)
		}
		if count != tt.want {
			t.Errorf("Count(%q) = %d, want %d", tt.kind, count, tt.want)
		}
	}
}

func TestJournalCleanup(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	old := time.Now().Add(-10 * 24 * time.Hour)
	if _, err := j.Add(ctx, Entry{Session: "s1", Kind: "speed", CreatedAt: old}); err != nil {
		t.Fatalf("failed to add old entry: %v", err)
	}
	if _, err := j.Add(ctx, Entry{Session: "s1", Kind: "speed"}); err != nil {
		t.Fatalf("failed to add new entry: %v", err)
	}

	deleted, err := j.Cleanup(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("failed to cleanup: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted entry, got %d", deleted)
	}

	count, err := j.Count(ctx, "")
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 remaining entry, got %d", count)
	}
}

func TestJournalConcurrentAdd(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := j.Add(ctx, Entry{Session: "s1", Kind: "current_frame", Frame: int64(i)}); err != nil {
				t.Errorf("concurrent add %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	count, err := j.Count(ctx, "current_frame")
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 10 {
		t.Errorf("expected 10 entries, got %d", count)
	}
}
