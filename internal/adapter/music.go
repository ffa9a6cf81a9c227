package adapter

import (
	"context"
	"fmt"

	"github.com/scriptoplay/engine/internal/extract"
	"github.com/scriptoplay/engine/internal/falqueue"
	"github.com/scriptoplay/engine/internal/generation"
)

// DefaultMusicModel is used when the request carries no model hint.
const DefaultMusicModel = "cassetteai/music-generator"

// musicStrategies is the probe order for completed music payloads.
var musicStrategies = []extract.Strategy{
	extract.Path("audio", "url"),
	extract.Path("audio_file", "url"),
	extract.Path("data", "audio", "url"),
	extract.Path("url"),
}

// MusicAdapter adapts the queue client to job-based music generation.
// The provider has no synchronous endpoint for this model family, so the
// facade drives a bounded submit-then-poll loop on top of this adapter.
type MusicAdapter struct {
	client       falqueue.Client
	defaultModel string
}

// NewMusicAdapter creates a new music adapter. If defaultModel is empty,
// DefaultMusicModel is used.
func NewMusicAdapter(client falqueue.Client, defaultModel string) *MusicAdapter {
	if defaultModel == "" {
		defaultModel = DefaultMusicModel
	}
	return &MusicAdapter{client: client, defaultModel: defaultModel}
}

// Submit enqueues a music generation job and returns its handle.
func (a *MusicAdapter) Submit(ctx context.Context, req generation.Request) (generation.JobHandle, error) {
	modelID := req.ModelHint
	if modelID == "" {
		modelID = a.defaultModel
	}

	input := map[string]any{
		"prompt": req.Prompt,
	}
	if dur, ok := req.Constraint("duration"); ok {
		input["duration"] = dur
	}

	requestID, err := a.client.Submit(ctx, modelID, input, "")
	if err != nil {
		return generation.JobHandle{}, classifyClientError(err, fmt.Errorf("music adapter submit %s: %w", modelID, err))
	}

	return generation.JobHandle{JobID: requestID, ProviderModelID: modelID}, nil
}

// PollStatus checks a submitted music job. On completion the audio URL is
// extracted from the status payload or the explicit result document; a
// completed job with no extractable URL is reported FAILED, never
// COMPLETED with an empty URL.
func (a *MusicAdapter) PollStatus(ctx context.Context, handle generation.JobHandle) (generation.Result, error) {
	status, err := a.client.Status(ctx, handle.ProviderModelID, handle.JobID)
	if err != nil {
		return generation.Result{}, classifyClientError(err, fmt.Errorf("music adapter poll %s: %w", handle.JobID, err))
	}

	base := generation.Result{
		JobID:           handle.JobID,
		ProviderModelID: handle.ProviderModelID,
	}

	switch status.Status {
	case falqueue.StatusInQueue:
		base.Status = generation.StatusQueued
		return base, nil
	case falqueue.StatusInProgress:
		base.Status = generation.StatusInProgress
		return base, nil
	case falqueue.StatusFailed, falqueue.StatusError:
		base.Status = generation.StatusFailed
		base.ErrorKind = generation.ErrorGenerationFailed
		base.Error = status.Error
		return base, nil
	}

	if url := extract.FirstURL(status.Payload, musicStrategies); url != "" {
		base.Status = generation.StatusCompleted
		base.ArtifactURL = url
		return base, nil
	}

	if payload, err := a.client.Result(ctx, handle.ProviderModelID, handle.JobID); err == nil {
		if url := extract.FirstURL(payload, musicStrategies); url != "" {
			base.Status = generation.StatusCompleted
			base.ArtifactURL = url
			return base, nil
		}
	}

	base.Status = generation.StatusFailed
	base.ErrorKind = generation.ErrorArtifactExtraction
	base.Error = fmt.Sprintf("music job %s reported completed but no audio URL was found", handle.JobID)
	return base, nil
}

// Compile-time check that MusicAdapter implements VideoGenerator's shape
// for submit/poll composition.
var _ VideoGenerator = (*MusicAdapter)(nil)
