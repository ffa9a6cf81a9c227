package job

import (
	"context"
	"errors"
	"testing"

	"github.com/scriptoplay/engine/internal/generation"
)

func newTestJob() *Job {
	return New(generation.KindVideo, "a slow pan over rooftops", generation.JobHandle{
		JobID:           "req-42",
		ProviderModelID: "model",
	})
}

func TestNew(t *testing.T) {
	j := newTestJob()

	if j.ID == "" {
		t.Error("expected non-empty ID")
	}
	if j.Status != generation.StatusQueued {
		t.Errorf("expected initial status QUEUED, got %v", j.Status)
	}
	if j.Handle.JobID != "req-42" {
		t.Errorf("expected handle to be kept, got %+v", j.Handle)
	}
	if j.CreatedAt.IsZero() || j.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
	if !j.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be zero for a new job")
	}
}

func TestTransitionTo_ValidPaths(t *testing.T) {
	tests := []struct {
		name string
		path []generation.Status
	}{
		{"queued to in progress to completed", []generation.Status{generation.StatusInProgress, generation.StatusCompleted}},
		{"queued to in progress to failed", []generation.Status{generation.StatusInProgress, generation.StatusFailed}},
		{"queued straight to completed", []generation.Status{generation.StatusCompleted}},
		{"queued straight to failed", []generation.Status{generation.StatusFailed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := newTestJob()
			for _, status := range tt.path {
				if err := j.TransitionTo(status); err != nil {
					t.Fatalf("transition to %v failed: %v", status, err)
				}
			}
			if got := j.GetStatus(); got != tt.path[len(tt.path)-1] {
				t.Errorf("expected final status %v, got %v", tt.path[len(tt.path)-1], got)
			}
		})
	}
}

func TestTransitionTo_InvalidPaths(t *testing.T) {
	j := newTestJob()
	if err := j.TransitionTo(generation.StatusCompleted); err != nil {
		t.Fatalf("setup transition failed: %v", err)
	}

	for _, status := range []generation.Status{
		generation.StatusQueued,
		generation.StatusInProgress,
		generation.StatusFailed,
	} {
		if err := j.TransitionTo(status); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition for %v after COMPLETED, got %v", status, err)
		}
	}
}

func TestTransitionTo_SetsCompletedAt(t *testing.T) {
	j := newTestJob()
	if err := j.TransitionTo(generation.StatusFailed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set on terminal transition")
	}
	if !j.IsTerminal() {
		t.Error("expected IsTerminal() true")
	}
}

func TestApplyResult_SameStatusIsNoOp(t *testing.T) {
	j := newTestJob()

	err := j.ApplyResult(generation.Result{Status: generation.StatusQueued})
	if err != nil {
		t.Errorf("re-observing the current status must be a no-op, got %v", err)
	}
	if j.GetStatus() != generation.StatusQueued {
		t.Errorf("status changed unexpectedly: %v", j.GetStatus())
	}
}

func TestApplyResult_Completed(t *testing.T) {
	j := newTestJob()

	err := j.ApplyResult(generation.Result{
		Status:      generation.StatusCompleted,
		ArtifactURL: "https://cdn.example.com/out.mp4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.ArtifactURL != "https://cdn.example.com/out.mp4" {
		t.Errorf("expected artifact URL to be recorded, got %q", j.ArtifactURL)
	}
}

func TestApplyResult_Failed(t *testing.T) {
	j := newTestJob()

	err := j.ApplyResult(generation.Result{
		Status:    generation.StatusFailed,
		ErrorKind: generation.ErrorArtifactExtraction,
		Error:     "no artifact URL found",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.ErrorKind != generation.ErrorArtifactExtraction {
		t.Errorf("expected error kind to be recorded, got %v", j.ErrorKind)
	}
	if j.Error != "no artifact URL found" {
		t.Errorf("expected error message to be recorded, got %q", j.Error)
	}
}

func TestClone_Independent(t *testing.T) {
	j := newTestJob()
	clone := j.Clone()

	if clone.ID != j.ID || clone.Status != j.Status || clone.Handle != j.Handle {
		t.Error("expected clone to copy all fields")
	}

	clone.Status = generation.StatusFailed
	if j.GetStatus() == generation.StatusFailed {
		t.Error("mutating the clone must not affect the original")
	}
}

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	j := newTestJob()

	if err := repo.Save(ctx, j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := repo.FindByID(ctx, j.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != j.ID {
		t.Errorf("expected job %s, got %s", j.ID, found.ID)
	}

	byHandle, err := repo.FindByHandle(ctx, "req-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byHandle.ID != j.ID {
		t.Errorf("expected job %s via handle, got %s", j.ID, byHandle.ID)
	}
}

func TestMemoryRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if _, err := repo.FindByHandle(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestMemoryRepository_ReturnsClones(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	j := newTestJob()

	if err := repo.Save(ctx, j); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, _ := repo.FindByID(ctx, j.ID)
	found.Status = generation.StatusFailed

	again, _ := repo.FindByID(ctx, j.ID)
	if again.Status != generation.StatusQueued {
		t.Error("mutating a returned job must not affect the stored copy")
	}
}

func TestMemoryRepository_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	j1 := newTestJob()
	j2 := New(generation.KindVideo, "another", generation.JobHandle{JobID: "req-43"})
	_ = repo.Save(ctx, j1)
	_ = repo.Save(ctx, j2)

	jobs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(jobs))
	}

	if err := repo.Delete(ctx, j1.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.FindByID(ctx, j1.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected job to be gone, got %v", err)
	}
}
