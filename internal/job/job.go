// Package job provides the tracked-job aggregate for generation work
// submitted through the orchestration facade. It records provider job
// handles and their observed lifecycle so the application layer can list
// and inspect in-flight generations, plus repository interfaces for
// persistence.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scriptoplay/engine/internal/generation"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[generation.Status][]generation.Status{
	generation.StatusQueued:     {generation.StatusInProgress, generation.StatusCompleted, generation.StatusFailed},
	generation.StatusInProgress: {generation.StatusCompleted, generation.StatusFailed},
	generation.StatusCompleted:  {},
	generation.StatusFailed:     {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to generation.Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job tracks one generation submitted through the facade. The provider
// owns the real lifecycle; this aggregate mirrors what polling has
// observed.
type Job struct {
	mu sync.RWMutex

	// ID is the local identifier for this tracked job.
	ID string
	// Kind is the artifact kind being generated.
	Kind generation.Kind
	// Prompt is the prompt the job was submitted with.
	Prompt string
	// Handle references the provider-side job.
	Handle generation.JobHandle
	// Status is the last observed lifecycle state.
	Status generation.Status
	// ArtifactURL is the extracted artifact URL once completed.
	ArtifactURL string
	// ErrorKind classifies the failure, when failed.
	ErrorKind generation.ErrorKind
	// Error contains the failure message, when failed.
	Error string
	// CreatedAt is when the job was submitted.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// CompletedAt is when a terminal state was observed.
	CompletedAt time.Time
}

// New creates a tracked job for a submitted provider job, starting QUEUED.
func New(kind generation.Kind, prompt string, handle generation.JobHandle) *Job {
	now := time.Now()
	return &Job{
		ID:        "gen-" + uuid.NewString(),
		Kind:      kind,
		Prompt:    prompt,
		Handle:    handle,
		Status:    generation.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status generation.Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()
	if status.IsTerminal() {
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// ApplyResult folds a poll result into the tracked job. Observing the
// same non-terminal status twice is a no-op, not an invalid transition.
func (j *Job) ApplyResult(res generation.Result) error {
	j.mu.RLock()
	current := j.Status
	j.mu.RUnlock()

	if res.Status == current {
		return nil
	}
	if err := j.TransitionTo(res.Status); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if res.Status == generation.StatusCompleted {
		j.ArtifactURL = res.ArtifactURL
	}
	if res.Status == generation.StatusFailed {
		j.ErrorKind = res.ErrorKind
		j.Error = res.Error
	}
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() generation.Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status.IsTerminal()
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		Kind:        j.Kind,
		Prompt:      j.Prompt,
		Handle:      j.Handle,
		Status:      j.Status,
		ArtifactURL: j.ArtifactURL,
		ErrorKind:   j.ErrorKind,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		CompletedAt: j.CompletedAt,
	}
}
