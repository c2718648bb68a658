package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/figmark/figmark/internal/document"
	"github.com/figmark/figmark/internal/reconcile"
)

func TestNewJob(t *testing.T) {
	data := []byte("# Title\n\nBody.")
	opts := Options{DryRun: true}
	job := NewJob("doc.md", data, opts)

	if job.ID == "" {
		t.Error("expected non-empty job ID")
	}
	if job.Status != StatusQueued {
		t.Errorf("expected status %q, got %q", StatusQueued, job.Status)
	}
	if string(job.FileData()) != string(data) {
		t.Errorf("expected file data %q, got %q", data, job.FileData())
	}
	if !job.RunOptions().DryRun {
		t.Error("expected options to round-trip")
	}

	other := NewJob("doc.md", data, opts)
	if other.ID == job.ID {
		t.Error("expected distinct IDs for distinct jobs")
	}
}

func TestJob_StateTransitions(t *testing.T) {
	job := NewJob("doc.md", nil, Options{})

	before := job.UpdatedAt
	time.Sleep(time.Millisecond)
	job.SetStatus(StatusRunning, "illustrating")

	if job.Status != StatusRunning {
		t.Errorf("expected status %q, got %q", StatusRunning, job.Status)
	}
	if job.Phase != "illustrating" {
		t.Errorf("expected phase %q, got %q", "illustrating", job.Phase)
	}
	if !job.UpdatedAt.After(before) {
		t.Error("expected UpdatedAt to advance after SetStatus")
	}
}

func TestJob_CompleteDerivesStatus(t *testing.T) {
	job := NewJob("doc.md", nil, Options{})
	job.Complete(&Result{Title: "Guide"})
	if job.Status != StatusCompleted {
		t.Errorf("expected status %q, got %q", StatusCompleted, job.Status)
	}
	if job.Title != "Guide" {
		t.Errorf("expected title from result, got %q", job.Title)
	}

	partial := NewJob("doc.md", nil, Options{})
	partial.Complete(&Result{Partial: true})
	if partial.Status != StatusPartial {
		t.Errorf("expected status %q, got %q", StatusPartial, partial.Status)
	}
}

func TestJob_Fail(t *testing.T) {
	job := NewJob("doc.md", nil, Options{})
	job.Fail(errors.New("unsupported file type"))
	if job.Status != StatusFailed {
		t.Errorf("expected status %q, got %q", StatusFailed, job.Status)
	}
	snap := job.Snapshot()
	if snap.Error != "unsupported file type" {
		t.Errorf("expected error in snapshot, got %q", snap.Error)
	}
}

func TestJob_SnapshotCarriesResult(t *testing.T) {
	job := NewJob("doc.md", nil, Options{})
	job.Complete(&Result{
		Title:  "Guide",
		Output: "# Guide\n",
		Slots: []SlotReport{
			{Index: 0, Kind: document.KindCover, Disposition: reconcile.Missing},
		},
	})

	snap := job.Snapshot()
	if snap.Output != "# Guide\n" {
		t.Errorf("expected output in snapshot, got %q", snap.Output)
	}
	if len(snap.Slots) != 1 {
		t.Fatalf("expected 1 slot report, got %d", len(snap.Slots))
	}
}

func TestJobStore_PutGet(t *testing.T) {
	store := NewJobStore(time.Hour)
	job := NewJob("doc.md", nil, Options{})
	store.Put(job)

	got := store.Get(job.ID)
	if got == nil {
		t.Fatal("expected to get job back")
	}
	if got.ID != job.ID {
		t.Errorf("expected ID %q, got %q", job.ID, got.ID)
	}
}

func TestJobStore_GetMissing(t *testing.T) {
	store := NewJobStore(time.Hour)
	if store.Get("nonexistent") != nil {
		t.Error("expected nil for missing job")
	}
}

func TestJobStore_TTLCleanup(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)

	expired := NewJob("old.md", nil, Options{})
	store.Put(expired)

	// Wait for the TTL to pass.
	time.Sleep(100 * time.Millisecond)

	fresh := NewJob("new.md", nil, Options{})
	store.Put(fresh)

	store.Cleanup()

	if store.Get(expired.ID) != nil {
		t.Error("expected expired job to be cleaned up")
	}
	if store.Get(fresh.ID) == nil {
		t.Error("expected fresh job to survive cleanup")
	}
}

func TestJobStore_CleanupEmpty(t *testing.T) {
	store := NewJobStore(time.Hour)
	// Should not panic on empty store.
	store.Cleanup()
}
