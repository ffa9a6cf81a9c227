package adapter

import (
	"context"
	"fmt"
	"strconv"

	"github.com/scriptoplay/engine/internal/extract"
	"github.com/scriptoplay/engine/internal/falqueue"
	"github.com/scriptoplay/engine/internal/generation"
)

// DefaultVideoModel is used when the request carries no model hint.
const DefaultVideoModel = "fal-ai/kling-video/v2/master/image-to-video"

// VideoAdapter adapts the queue client to asynchronous video generation:
// submit returns a handle immediately, completion is observed by polling.
// Submission never holds a connection open for the duration of generation.
type VideoAdapter struct {
	client       falqueue.Client
	defaultModel string
	webhookURL   string
}

// NewVideoAdapter creates a new video adapter. If defaultModel is empty,
// DefaultVideoModel is used.
func NewVideoAdapter(client falqueue.Client, defaultModel string) *VideoAdapter {
	if defaultModel == "" {
		defaultModel = DefaultVideoModel
	}
	return &VideoAdapter{client: client, defaultModel: defaultModel}
}

// WithWebhook sets an optional webhook URL passed through on submission.
// Polling remains the contract; the webhook is informational only.
func (a *VideoAdapter) WithWebhook(url string) *VideoAdapter {
	a.webhookURL = url
	return a
}

// Submit enqueues a video generation job and returns its handle.
func (a *VideoAdapter) Submit(ctx context.Context, req generation.Request) (generation.JobHandle, error) {
	modelID := req.ModelHint
	if modelID == "" {
		modelID = a.defaultModel
	}

	input := buildVideoInput(req)

	requestID, err := a.client.Submit(ctx, modelID, input, a.webhookURL)
	if err != nil {
		return generation.JobHandle{}, classifyClientError(err, fmt.Errorf("video adapter submit %s: %w", modelID, err))
	}

	return generation.JobHandle{JobID: requestID, ProviderModelID: modelID}, nil
}

// buildVideoInput is a pure transform from a generation request to the
// provider payload. Duration is clamped to the provider's supported set.
func buildVideoInput(req generation.Request) map[string]any {
	input := map[string]any{
		"prompt": req.Prompt,
	}

	if imageURL, ok := req.Reference("image_url"); ok {
		input["image_url"] = imageURL
	}
	if endURL, ok := req.Reference("image_end_url"); ok {
		input["tail_image_url"] = endURL
	}
	if audioURL, ok := req.Reference("audio_url"); ok {
		input["audio_url"] = audioURL
	}
	if ratio, ok := req.Constraint("aspect_ratio"); ok {
		input["aspect_ratio"] = ratio
	}
	if raw, ok := req.Constraint("duration"); ok {
		input["duration"] = ClampDuration(raw)
	}

	return input
}

// ClampDuration rounds a requested duration to the provider's supported
// set {5, 10}: anything above 5 seconds rounds up to 10, everything else
// rounds to 5. Unparseable values fall back to 5.
func ClampDuration(raw string) string {
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 5 {
		return "5"
	}
	return "10"
}

// PollStatus checks a submitted job and extracts the artifact URL once the
// provider reports completion.
//
// Extraction runs in three stages: (a) scan the raw status payload, (b)
// fetch the secondary response document when the payload references one,
// (c) issue one explicit result call. If all three fail the job is
// reported FAILED with an extraction error, never COMPLETED with an empty
// URL. Providers have been observed reporting completion with zero-length
// output; this guards downstream stages against that.
func (a *VideoAdapter) PollStatus(ctx context.Context, handle generation.JobHandle) (generation.Result, error) {
	status, err := a.client.Status(ctx, handle.ProviderModelID, handle.JobID)
	if err != nil {
		return generation.Result{}, classifyClientError(err, fmt.Errorf("video adapter poll %s: %w", handle.JobID, err))
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

	// An error field on a nominally completed payload still means failure.
	if status.Error != "" {
		base.Status = generation.StatusFailed
		base.ErrorKind = generation.ErrorGenerationFailed
		base.Error = status.Error
		return base, nil
	}

	if url := a.extractCompletedURL(ctx, handle, status); url != "" {
		base.Status = generation.StatusCompleted
		base.ArtifactURL = url
		return base, nil
	}

	base.Status = generation.StatusFailed
	base.ErrorKind = generation.ErrorArtifactExtraction
	base.Error = fmt.Sprintf("job %s reported completed but no artifact URL was found", handle.JobID)
	return base, nil
}

// extractCompletedURL runs the three extraction stages in priority order.
func (a *VideoAdapter) extractCompletedURL(ctx context.Context, handle generation.JobHandle, status falqueue.StatusResult) string {
	if url := extract.VideoURL(status.Payload); url != "" {
		return url
	}

	if status.ResponseURL != "" {
		if payload, err := a.client.FetchResponse(ctx, status.ResponseURL); err == nil {
			if url := extract.VideoURL(payload); url != "" {
				return url
			}
		}
	}

	if payload, err := a.client.Result(ctx, handle.ProviderModelID, handle.JobID); err == nil {
		if url := extract.VideoURL(payload); url != "" {
			return url
		}
	}

	return ""
}

// Compile-time check that VideoAdapter implements VideoGenerator.
var _ VideoGenerator = (*VideoAdapter)(nil)
