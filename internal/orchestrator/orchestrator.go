// Package orchestrator is the unified entry point for generation work.
// It composes the provider adapters, fallback policy, job tracking and
// the bounded music poll loop behind four operations: GenerateImage,
// GenerateVideo, CheckStatus and GenerateAudio.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/scriptoplay/engine/internal/adapter"
	"github.com/scriptoplay/engine/internal/fetch"
	"github.com/scriptoplay/engine/internal/generation"
	"github.com/scriptoplay/engine/internal/job"
)

// Default music poll policy: one status check every interval, up to the
// attempt budget (4s * 75 = 5 minutes).
const (
	DefaultMusicPollInterval = 4 * time.Second
	DefaultMusicPollAttempts = 75
)

// ImageParams are the caller-facing inputs for image generation.
type ImageParams struct {
	Prompt      string
	Model       string
	AspectRatio string
	StyleRef    string
	CharRef     string
}

// VideoParams are the caller-facing inputs for video generation.
type VideoParams struct {
	Prompt      string
	Model       string
	ImageURL    string
	ImageEndURL string
	AudioURL    string
	Duration    int
	AspectRatio string
}

// AudioParams are the caller-facing inputs for audio generation. Text and
// Voice drive speech synthesis; a music model with a Prompt drives the
// job-based music path.
type AudioParams struct {
	Prompt string
	Text   string
	Voice  string
	Model  string
	Speed  float64
}

// Orchestrator is the facade the application layer calls. All provider
// heterogeneity (sync vs queued, fallback chains, polling shims) stays
// behind it.
type Orchestrator struct {
	images adapter.ImageGenerator
	videos adapter.VideoGenerator
	speech adapter.AudioGenerator
	music  adapter.VideoGenerator

	fetcher *fetch.Fetcher
	repo    job.Repository
	logger  *slog.Logger

	musicPollInterval time.Duration
	musicPollAttempts int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMusicPollPolicy overrides the music poll interval and attempt budget.
func WithMusicPollPolicy(interval time.Duration, attempts int) Option {
	return func(o *Orchestrator) {
		if interval > 0 {
			o.musicPollInterval = interval
		}
		if attempts > 0 {
			o.musicPollAttempts = attempts
		}
	}
}

// New creates an Orchestrator from its collaborators.
func New(images adapter.ImageGenerator, videos adapter.VideoGenerator, speech adapter.AudioGenerator, music adapter.VideoGenerator, fetcher *fetch.Fetcher, repo job.Repository, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		images:            images,
		videos:            videos,
		speech:            speech,
		music:             music,
		fetcher:           fetcher,
		repo:              repo,
		logger:            logger,
		musicPollInterval: DefaultMusicPollInterval,
		musicPollAttempts: DefaultMusicPollAttempts,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateImage generates a keyframe image and returns its URL. The call
// is synchronous from the caller's perspective; fallback between models
// happens inside the image generator.
func (o *Orchestrator) GenerateImage(ctx context.Context, params ImageParams) (string, error) {
	req := generation.Request{
		Kind:            generation.KindImage,
		Prompt:          params.Prompt,
		ModelHint:       params.Model,
		ReferenceInputs: map[string]string{},
		Constraints:     map[string]string{},
	}
	if params.AspectRatio != "" {
		req.Constraints["aspect_ratio"] = params.AspectRatio
	}
	if params.StyleRef != "" {
		req.ReferenceInputs["style_ref"] = params.StyleRef
	}
	if params.CharRef != "" {
		req.ReferenceInputs["char_ref"] = params.CharRef
	}

	out, err := o.images.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", generation.Errorf(generation.ErrorArtifactExtraction,
			"image model %s completed with no image URL", out.ModelID)
	}

	o.logger.Info("image generated",
		slog.String("model", out.ModelID),
		slog.String("url", out.URL),
	)
	return out.URL, nil
}

// GenerateVideo submits an asynchronous video generation job and returns
// its handle without waiting for completion. Completion is observed via
// CheckStatus; the core imposes no poll deadline, bounding the wait is
// the caller's policy.
func (o *Orchestrator) GenerateVideo(ctx context.Context, params VideoParams) (generation.JobHandle, error) {
	req := generation.Request{
		Kind:            generation.KindVideo,
		Prompt:          params.Prompt,
		ModelHint:       params.Model,
		ReferenceInputs: map[string]string{},
		Constraints:     map[string]string{},
	}
	if params.ImageURL != "" {
		req.ReferenceInputs["image_url"] = params.ImageURL
	}
	if params.ImageEndURL != "" {
		req.ReferenceInputs["image_end_url"] = params.ImageEndURL
	}
	if params.AudioURL != "" {
		req.ReferenceInputs["audio_url"] = params.AudioURL
	}
	if params.AspectRatio != "" {
		req.Constraints["aspect_ratio"] = params.AspectRatio
	}
	if params.Duration > 0 {
		req.Constraints["duration"] = strconv.Itoa(params.Duration)
	}

	handle, err := o.videos.Submit(ctx, req)
	if err != nil {
		return generation.JobHandle{}, err
	}

	tracked := job.New(generation.KindVideo, params.Prompt, handle)
	if err := o.repo.Save(ctx, tracked); err != nil {
		o.logger.Warn("failed to track submitted job",
			slog.String("job_id", handle.JobID),
			slog.String("error", err.Error()),
		)
	}

	o.logger.Info("video job submitted",
		slog.String("job_id", handle.JobID),
		slog.String("model", handle.ProviderModelID),
	)
	return handle, nil
}

// CheckStatus polls a submitted video job. Non-terminal statuses are
// normal results, not errors. When the model ID is absent from the handle
// the tracked-job record fills it in.
func (o *Orchestrator) CheckStatus(ctx context.Context, handle generation.JobHandle) (generation.Result, error) {
	if handle.ProviderModelID == "" {
		if tracked, err := o.repo.FindByHandle(ctx, handle.JobID); err == nil {
			handle.ProviderModelID = tracked.Handle.ProviderModelID
		}
	}

	result, err := o.videos.PollStatus(ctx, handle)
	if err != nil {
		return generation.Result{}, err
	}

	o.recordResult(ctx, handle, result)
	return result, nil
}

// recordResult folds a poll result into the tracked job, best-effort.
func (o *Orchestrator) recordResult(ctx context.Context, handle generation.JobHandle, result generation.Result) {
	tracked, err := o.repo.FindByHandle(ctx, handle.JobID)
	if err != nil {
		return
	}
	if err := tracked.ApplyResult(result); err != nil {
		return
	}
	if err := o.repo.Save(ctx, tracked); err != nil {
		o.logger.Warn("failed to update tracked job",
			slog.String("job_id", handle.JobID),
			slog.String("error", err.Error()),
		)
	}
}

// GenerateAudio produces audio bytes. Speech synthesis is a single
// synchronous call; music models are job-based underneath, so the facade
// runs a bounded submit-then-poll loop and downloads the finished track,
// keeping the caller's contract a single awaited binary result.
func (o *Orchestrator) GenerateAudio(ctx context.Context, params AudioParams) ([]byte, error) {
	if isMusicModel(params.Model) {
		return o.generateMusic(ctx, params)
	}

	req := generation.Request{
		Kind:            generation.KindAudio,
		Prompt:          speechText(params),
		ModelHint:       params.Model,
		ReferenceInputs: map[string]string{},
		Constraints:     map[string]string{},
	}
	if params.Voice != "" {
		req.ReferenceInputs["voice"] = params.Voice
	}
	if params.Speed != 0 {
		req.Constraints["speed"] = strconv.FormatFloat(params.Speed, 'f', -1, 64)
	}

	return o.speech.Generate(ctx, req)
}

// generateMusic drives the job-based music provider to completion.
func (o *Orchestrator) generateMusic(ctx context.Context, params AudioParams) ([]byte, error) {
	req := generation.Request{
		Kind:      generation.KindMusic,
		Prompt:    speechText(params),
		ModelHint: params.Model,
	}

	handle, err := o.music.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	o.logger.Info("music job submitted",
		slog.String("job_id", handle.JobID),
		slog.String("model", handle.ProviderModelID),
	)

	for attempt := 0; attempt < o.musicPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("music generation cancelled: %w", ctx.Err())
		case <-time.After(o.musicPollInterval):
		}

		result, err := o.music.PollStatus(ctx, handle)
		if err != nil {
			return nil, err
		}

		switch result.Status {
		case generation.StatusCompleted:
			audio, err := o.fetcher.Bytes(ctx, result.ArtifactURL)
			if err != nil {
				return nil, generation.WrapError(generation.ErrorGenerationFailed,
					fmt.Errorf("download music artifact: %w", err))
			}
			return audio, nil
		case generation.StatusFailed:
			kind := result.ErrorKind
			if kind == "" {
				kind = generation.ErrorGenerationFailed
			}
			return nil, generation.Errorf(kind, "music job %s failed: %s", handle.JobID, result.Error)
		}
	}

	return nil, generation.Errorf(generation.ErrorTimeout,
		"music job %s did not finish within %d poll attempts", handle.JobID, o.musicPollAttempts)
}

// speechText picks the synthesis text, accepting either param name.
func speechText(params AudioParams) string {
	if params.Text != "" {
		return params.Text
	}
	return params.Prompt
}

// isMusicModel reports whether the model hint targets the music family.
func isMusicModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "music")
}
