package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"assistant_server/core/domain"
)

func TestSnapshotStoreWriteThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.bin")

	store, err := NewFileSnapshotStore(path)
	if err != nil {
		t.Fatalf("NewFileSnapshotStore() error = %v", err)
	}

	msg := &domain.Message{
		ID:       "m1",
		Subject:  "Hello",
		Sender:   "a@b.example",
		Category: domain.CategoryImportant,
	}
	if err := store.Put("m1", msg); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// A second store over the same file simulates a restart: the snapshot
	// must come back from disk alone.
	reopened, err := NewFileSnapshotStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	got, ok := reopened.Get("m1")
	if !ok {
		t.Fatal("snapshot lost across reopen")
	}
	if got.Subject != "Hello" || got.Category != domain.CategoryImportant {
		t.Errorf("reloaded snapshot = %+v", got)
	}
}

func TestSnapshotStoreDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.bin")
	store, err := NewFileSnapshotStore(path)
	if err != nil {
		t.Fatalf("NewFileSnapshotStore() error = %v", err)
	}

	if err := store.Put("m1", &domain.Message{ID: "m1"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Delete("m1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := store.Get("m1"); ok {
		t.Error("entry still present after delete")
	}

	// Deletion must also be durable.
	reopened, err := NewFileSnapshotStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if reopened.Len() != 0 {
		t.Errorf("reopened store has %d entries, want 0", reopened.Len())
	}

	// Deleting a missing key is a no-op.
	if err := store.Delete("nope"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestSnapshotStoreReloadSeesExternalWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.bin")

	writer, err := NewFileSnapshotStore(path)
	if err != nil {
		t.Fatalf("writer error = %v", err)
	}
	reader, err := NewFileSnapshotStore(path)
	if err != nil {
		t.Fatalf("reader error = %v", err)
	}

	if err := writer.Put("m1", &domain.Message{ID: "m1", Subject: "late arrival"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// The reader's in-memory view predates the write; Reload picks it up.
	if _, ok := reader.Get("m1"); ok {
		t.Fatal("reader saw the write without reloading")
	}
	if err := reader.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if _, ok := reader.Get("m1"); !ok {
		t.Error("reader missing the entry after Reload")
	}
}

func TestSnapshotStoreMissingFileIsFreshStart(t *testing.T) {
	store, err := NewFileSnapshotStore(filepath.Join(t.TempDir(), "never-written.bin"))
	if err != nil {
		t.Fatalf("NewFileSnapshotStore() error = %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("fresh store has %d entries", store.Len())
	}
}

func TestDraftStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.bin")
	store, err := NewFileDraftStore(path)
	if err != nil {
		t.Fatalf("NewFileDraftStore() error = %v", err)
	}

	if err := store.Put("m1", "Thank you for your email."); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	reopened, err := NewFileDraftStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	draft, ok := reopened.Get("m1")
	if !ok || draft != "Thank you for your email." {
		t.Errorf("reloaded draft = (%q, %v)", draft, ok)
	}
}

// =============================================================================
// History Store
// =============================================================================

func TestHistoryStore(t *testing.T) {
	store, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewHistoryStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	entries := []*domain.ProcessedMail{
		{MessageID: "m1", Subject: "s1", Category: domain.CategoryImportant, Method: domain.MethodRuleBased, Priority: domain.PriorityHigh, Notified: true, ReceivedAt: base, ProcessedAt: base.Add(time.Second)},
		{MessageID: "m2", Subject: "s2", Category: domain.CategoryPromotions, Method: domain.MethodRuleBased, Priority: domain.PriorityLow, Notified: false, ReceivedAt: base, ProcessedAt: base.Add(2 * time.Second)},
		{MessageID: "m3", Subject: "s3", Category: domain.CategoryImportant, Method: domain.MethodLLM, Priority: domain.PriorityMedium, Notified: true, ReceivedAt: base, ProcessedAt: base.Add(3 * time.Second)},
	}
	for _, e := range entries {
		if err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record(%s) error = %v", e.MessageID, err)
		}
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent() returned %d rows, want 2", len(recent))
	}
	if recent[0].MessageID != "m3" {
		t.Errorf("newest entry = %s, want m3", recent[0].MessageID)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 3 || stats.Notified != 2 {
		t.Errorf("stats total=%d notified=%d, want 3/2", stats.Total, stats.Notified)
	}
	if stats.ByCategory[string(domain.CategoryImportant)] != 2 {
		t.Errorf("Important count = %d, want 2", stats.ByCategory[string(domain.CategoryImportant)])
	}
	if stats.ByMethod[string(domain.MethodLLM)] != 1 {
		t.Errorf("llm count = %d, want 1", stats.ByMethod[string(domain.MethodLLM)])
	}
}

func TestHistoryStoreDefaultsProcessedAt(t *testing.T) {
	store, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewHistoryStore() error = %v", err)
	}
	defer store.Close()

	entry := &domain.ProcessedMail{MessageID: "m1"}
	if err := store.Record(context.Background(), entry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if entry.ProcessedAt.IsZero() {
		t.Error("ProcessedAt not defaulted")
	}
}
