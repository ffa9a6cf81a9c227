// Package adapter translates generation requests into provider-specific
// payloads and parses provider-specific response shapes back into domain
// results. Each artifact kind gets its own adapter; all of them hide
// per-provider field naming behind the shared generation types.
package adapter

import (
	"context"

	"github.com/scriptoplay/engine/internal/generation"
)

// ImageOutput is the outcome of a synchronous image generation attempt.
type ImageOutput struct {
	// URL points at the generated image. Empty means the provider
	// responded but no artifact URL matched any known shape; callers
	// treat that as an empty result eligible for fallback.
	URL string
	// ModelID is the model that served the request.
	ModelID string
	// Raw is the decoded provider payload, kept for diagnostics.
	Raw map[string]any
}

// ImageGenerator generates a still image synchronously.
type ImageGenerator interface {
	Generate(ctx context.Context, req generation.Request) (ImageOutput, error)
}

// VideoGenerator submits asynchronous video jobs and polls their status.
type VideoGenerator interface {
	// Submit enqueues a video generation job. It never blocks waiting for
	// completion.
	Submit(ctx context.Context, req generation.Request) (generation.JobHandle, error)

	// PollStatus checks a submitted job. It returns non-terminal statuses
	// as normal results, never as errors.
	PollStatus(ctx context.Context, handle generation.JobHandle) (generation.Result, error)
}

// AudioGenerator produces audio bytes for speech or music requests.
type AudioGenerator interface {
	Generate(ctx context.Context, req generation.Request) ([]byte, error)
}
