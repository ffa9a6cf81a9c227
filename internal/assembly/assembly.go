// Package assembly combines generated scene clips, dialogue tracks and
// background music into one finished video. It drives the ffmpeg-backed
// media processor, working storage and the artifact store.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/scriptoplay/engine/internal/fetch"
	"github.com/scriptoplay/engine/internal/generation"
	"github.com/scriptoplay/engine/internal/media"
	"github.com/scriptoplay/engine/internal/storage"
)

// Static errors for assembly operations.
var (
	// ErrNoScenes is returned when the plan contains no scene with a
	// video clip.
	ErrNoScenes = errors.New("assembly: plan contains no scenes with video")
	// ErrVideoURLRequired is returned when a mux call has no source video.
	ErrVideoURLRequired = errors.New("assembly: video URL is required")
	// ErrOutputMissing is returned when the expected output artifact does
	// not exist in working storage after processing.
	ErrOutputMissing = errors.New("assembly: expected output artifact missing")
)

// Scene is one ordered entry of an assembly plan. It is read-only input
// supplied by the upstream pipeline and never mutated here.
type Scene struct {
	// ID identifies the scene for logging and progress reporting.
	ID string `json:"id"`
	// VideoURL points at the scene's rendered clip. Scenes without a
	// clip are skipped.
	VideoURL string `json:"video_url,omitempty"`
	// DialogueAudioURL points at the scene's voice track. Scenes without
	// dialogue get a silent placeholder so timeline alignment holds.
	DialogueAudioURL string `json:"dialogue_audio_url,omitempty"`
}

// Plan describes one assembly invocation. It is transient: built per call
// and discarded once the final artifact exists.
type Plan struct {
	// Scenes are concatenated strictly in slice order; narrative order
	// matters and no reordering is permitted.
	Scenes []Scene
	// BackgroundMusicURL optionally supplies a music track ducked under
	// dialogue.
	BackgroundMusicURL string
}

// ProgressFunc reports assembly progress to the caller. stage is a short
// human-readable label, percent is 0-100.
type ProgressFunc func(stage string, percent int)

// Engine assembles scene clips into finished videos.
//
// The underlying media engine works against shared scratch space, so an
// Engine runs at most one assembly at a time; concurrent calls serialize
// on an internal mutex. Use independent Engine instances for parallel
// assemblies.
type Engine struct {
	mu sync.Mutex

	processor media.Processor
	fetcher   *fetch.Fetcher
	store     storage.Storage
	logger    *slog.Logger

	duckOpts    media.DuckOptions
	musicVolume float64
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDuckOptions overrides the sidechain ducking parameters.
func WithDuckOptions(opts media.DuckOptions) EngineOption {
	return func(e *Engine) {
		e.duckOpts = opts
	}
}

// WithMusicVolume overrides the background attenuation used by the
// single-clip mux path (0..1).
func WithMusicVolume(v float64) EngineOption {
	return func(e *Engine) {
		e.musicVolume = v
	}
}

// NewEngine creates an assembly engine.
func NewEngine(processor media.Processor, fetcher *fetch.Fetcher, store storage.Storage, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		processor:   processor,
		fetcher:     fetcher,
		store:       store,
		logger:      logger,
		duckOpts:    media.DefaultDuckOptions(),
		musicVolume: 0.25,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AssembleVideo concatenates the plan's scene clips in order, ducks the
// background music under dialogue when supplied, and uploads the finished
// H.264/AAC video. It returns the artifact's public URL.
//
// Any fetch or processing failure aborts the whole invocation; there is
// no partial multi-scene output. The error carries
// generation.ErrorAssemblyFailed.
func (e *Engine) AssembleVideo(ctx context.Context, projectID string, plan Plan, onProgress ProgressFunc) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	url, err := e.assemble(ctx, projectID, plan, onProgress)
	if err != nil {
		return "", generation.WrapError(generation.ErrorAssemblyFailed, err)
	}
	return url, nil
}

func (e *Engine) assemble(ctx context.Context, projectID string, plan Plan, onProgress ProgressFunc) (string, error) {
	report := func(stage string, percent int) {
		if onProgress != nil {
			onProgress(stage, percent)
		}
	}

	workDir, err := os.MkdirTemp("", "assembly-*")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	report("fetching scenes", 0)

	segments, err := e.prepareScenes(ctx, workDir, plan.Scenes, report)
	if err != nil {
		return "", err
	}
	if len(segments) == 0 {
		return "", ErrNoScenes
	}

	report("concatenating", 60)

	concatPath := filepath.Join(workDir, "timeline.mp4")
	if err := e.processor.Concat(ctx, segments, concatPath); err != nil {
		return "", fmt.Errorf("concat scenes: %w", err)
	}

	finalPath := concatPath
	if plan.BackgroundMusicURL != "" {
		report("mixing music", 75)

		musicPath := filepath.Join(workDir, "bgm"+mediaExt(plan.BackgroundMusicURL, ".mp3"))
		if err := e.fetcher.ToFile(ctx, plan.BackgroundMusicURL, musicPath); err != nil {
			return "", fmt.Errorf("fetch background music: %w", err)
		}

		timelineDur, err := e.processor.ProbeDuration(ctx, concatPath)
		if err != nil {
			return "", fmt.Errorf("probe timeline duration: %w", err)
		}

		finalPath = filepath.Join(workDir, "final.mp4")
		if err := e.processor.DuckMix(ctx, concatPath, musicPath, finalPath, timelineDur, e.duckOpts); err != nil {
			return "", fmt.Errorf("duck mix: %w", err)
		}
	}

	if err := verifyOutput(finalPath); err != nil {
		return "", err
	}

	report("uploading", 90)

	url, err := e.uploadArtifact(ctx, projectID, finalPath)
	if err != nil {
		return "", err
	}

	report("done", 100)

	e.logger.Info("assembly finished",
		slog.String("project_id", projectID),
		slog.Int("scenes", len(segments)),
		slog.Bool("music", plan.BackgroundMusicURL != ""),
		slog.String("url", url),
	)

	return url, nil
}

// prepareScenes fetches each scene's clip, pairs it with its dialogue
// track or a silent placeholder, and returns the per-scene segment paths
// in scene order.
func (e *Engine) prepareScenes(ctx context.Context, workDir string, scenes []Scene, report ProgressFunc) ([]string, error) {
	var segments []string

	withVideo := 0
	for _, s := range scenes {
		if s.VideoURL != "" {
			withVideo++
		}
	}

	for i, scene := range scenes {
		if scene.VideoURL == "" {
			e.logger.Warn("scene has no video clip, skipping",
				slog.String("scene_id", scene.ID),
			)
			continue
		}

		clipPath := filepath.Join(workDir, fmt.Sprintf("clip_%03d%s", i, mediaExt(scene.VideoURL, ".mp4")))
		if err := e.fetcher.ToFile(ctx, scene.VideoURL, clipPath); err != nil {
			return nil, fmt.Errorf("fetch clip for scene %s: %w", scene.ID, err)
		}

		clipDur, err := e.processor.ProbeDuration(ctx, clipPath)
		if err != nil {
			return nil, fmt.Errorf("probe clip for scene %s: %w", scene.ID, err)
		}

		audioPath := filepath.Join(workDir, fmt.Sprintf("audio_%03d.m4a", i))
		if scene.DialogueAudioURL != "" {
			rawPath := filepath.Join(workDir, fmt.Sprintf("dialogue_%03d%s", i, mediaExt(scene.DialogueAudioURL, ".mp3")))
			if err := e.fetcher.ToFile(ctx, scene.DialogueAudioURL, rawPath); err != nil {
				return nil, fmt.Errorf("fetch dialogue for scene %s: %w", scene.ID, err)
			}
			if err := e.processor.NormalizeAudio(ctx, rawPath, audioPath); err != nil {
				return nil, fmt.Errorf("normalize dialogue for scene %s: %w", scene.ID, err)
			}
		} else {
			if err := e.processor.SilentTrack(ctx, audioPath, clipDur); err != nil {
				return nil, fmt.Errorf("silent placeholder for scene %s: %w", scene.ID, err)
			}
		}

		segPath := filepath.Join(workDir, fmt.Sprintf("segment_%03d.mp4", i))
		if err := e.processor.MuxScene(ctx, clipPath, audioPath, segPath, clipDur); err != nil {
			return nil, fmt.Errorf("mux scene %s: %w", scene.ID, err)
		}

		segments = append(segments, segPath)
		if withVideo > 0 {
			report("fetching scenes", len(segments)*60/withVideo)
		}
	}

	return segments, nil
}

// MuxSingleClip overlays voice and/or music onto one pre-rendered clip and
// returns the uploaded artifact URL.
//
// This path degrades instead of failing: with no audio inputs the original
// URL is returned untouched, and on any internal failure the original URL
// is returned as well. A silent video is an acceptable degraded result; a
// crash is not.
func (e *Engine) MuxSingleClip(ctx context.Context, projectID, videoURL, voiceURL, musicURL string) (string, error) {
	if videoURL == "" {
		return "", ErrVideoURLRequired
	}
	if voiceURL == "" && musicURL == "" {
		return videoURL, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	url, err := e.muxSingleClip(ctx, projectID, videoURL, voiceURL, musicURL)
	if err != nil {
		e.logger.Warn("single-clip mux failed, returning original video",
			slog.String("project_id", projectID),
			slog.String("video_url", videoURL),
			slog.String("error", err.Error()),
		)
		return videoURL, nil
	}
	return url, nil
}

func (e *Engine) muxSingleClip(ctx context.Context, projectID, videoURL, voiceURL, musicURL string) (string, error) {
	workDir, err := os.MkdirTemp("", "mux-*")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	videoPath := filepath.Join(workDir, "clip"+mediaExt(videoURL, ".mp4"))
	if err := e.fetcher.ToFile(ctx, videoURL, videoPath); err != nil {
		return "", fmt.Errorf("fetch video: %w", err)
	}

	// Probe before the heavy mux: the output is capped to the clip's
	// native duration rather than padding audio to open-ended lengths.
	duration, err := e.processor.ProbeDuration(ctx, videoPath)
	if err != nil {
		return "", fmt.Errorf("probe video: %w", err)
	}

	spec := media.MuxClipSpec{
		VideoPath:   videoPath,
		OutputPath:  filepath.Join(workDir, "muxed.mp4"),
		Duration:    duration,
		MusicVolume: e.musicVolume,
	}

	if voiceURL != "" {
		rawVoice := filepath.Join(workDir, "voice"+mediaExt(voiceURL, ".mp3"))
		if err := e.fetcher.ToFile(ctx, voiceURL, rawVoice); err != nil {
			return "", fmt.Errorf("fetch voice: %w", err)
		}
		normVoice := filepath.Join(workDir, "voice_norm.m4a")
		if err := e.processor.NormalizeAudio(ctx, rawVoice, normVoice); err != nil {
			return "", fmt.Errorf("normalize voice: %w", err)
		}
		spec.VoicePath = normVoice
	}

	if musicURL != "" {
		rawMusic := filepath.Join(workDir, "music"+mediaExt(musicURL, ".mp3"))
		if err := e.fetcher.ToFile(ctx, musicURL, rawMusic); err != nil {
			return "", fmt.Errorf("fetch music: %w", err)
		}
		normMusic := filepath.Join(workDir, "music_norm.m4a")
		if err := e.processor.NormalizeAudio(ctx, rawMusic, normMusic); err != nil {
			return "", fmt.Errorf("normalize music: %w", err)
		}
		spec.MusicPath = normMusic
	}

	if err := e.processor.MuxClip(ctx, spec); err != nil {
		return "", fmt.Errorf("mux clip: %w", err)
	}

	if err := verifyOutput(spec.OutputPath); err != nil {
		return "", err
	}

	return e.uploadArtifact(ctx, projectID, spec.OutputPath)
}

// uploadArtifact pushes the finished file to the artifact store and
// returns its public URL. Ownership transfers to the caller's persistence
// layer immediately; the engine keeps nothing.
func (e *Engine) uploadArtifact(ctx context.Context, projectID, path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is constructed internally
	if err != nil {
		return "", fmt.Errorf("open output: %w", err)
	}
	defer func() { _ = f.Close() }()

	key := fmt.Sprintf("projects/%s/videos/%s.mp4", projectID, uuid.NewString())
	url, err := e.store.UploadArtifact(ctx, key, f)
	if err != nil {
		return "", fmt.Errorf("upload artifact: %w", err)
	}
	return url, nil
}

// verifyOutput confirms the expected artifact actually exists and is
// non-empty before any URL is handed out.
func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrOutputMissing, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrOutputMissing, path)
	}
	return nil
}

// mediaExt returns the URL's file extension, or fallback when the URL has
// none (query strings stripped).
func mediaExt(url, fallback string) string {
	path := url
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if ext := filepath.Ext(path); ext != "" && len(ext) <= 5 {
		return ext
	}
	return fallback
}
