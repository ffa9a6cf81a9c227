// Package bootstrap provides dependency initialization for the generation engine.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/scriptoplay/engine/internal/adapter"
	"github.com/scriptoplay/engine/internal/assembly"
	"github.com/scriptoplay/engine/internal/config"
	"github.com/scriptoplay/engine/internal/fallback"
	"github.com/scriptoplay/engine/internal/falqueue"
	"github.com/scriptoplay/engine/internal/fetch"
	"github.com/scriptoplay/engine/internal/job"
	"github.com/scriptoplay/engine/internal/media"
	"github.com/scriptoplay/engine/internal/orchestrator"
	"github.com/scriptoplay/engine/internal/speech"
	"github.com/scriptoplay/engine/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Orchestrator *orchestrator.Orchestrator
	Assembler    *assembly.Engine
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize provider clients
	queueClient, err := falqueue.NewClient(falqueue.WithAPIKey(cfg.FALAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create queue client: %w", err)
	}
	speechClient, err := speech.NewClient(speech.WithAPIKey(cfg.ElevenLabsAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}

	// Initialize adapters. Image generation carries a one-hop fallback
	// chain; video, music and speech are single-model.
	primaryImages := adapter.NewImageAdapter(queueClient, cfg.ImageModel)
	fallbackImages := adapter.NewImageAdapter(queueClient, cfg.ImageFallbackModel)
	images := fallback.NewImageRunner(primaryImages, fallbackImages, logger)

	videos := adapter.NewVideoAdapter(queueClient, cfg.VideoModel)
	if cfg.VideoWebhookURL != "" {
		videos = videos.WithWebhook(cfg.VideoWebhookURL)
	}
	music := adapter.NewMusicAdapter(queueClient, cfg.MusicModel)
	voices := adapter.NewSpeechAdapter(speechClient, cfg.DefaultVoice)

	// Initialize shared infrastructure
	fetcher := fetch.NewFetcher(nil)
	repo := job.NewMemoryRepository()

	// Initialize the orchestration facade
	orch := orchestrator.New(
		images,
		videos,
		voices,
		music,
		fetcher,
		repo,
		logger,
		orchestrator.WithMusicPollPolicy(cfg.MusicPollInterval, cfg.MusicPollAttempts),
	)

	// Initialize the assembly engine
	processor := media.NewFFmpegProcessor("", "")
	assembler := assembly.NewEngine(
		processor,
		fetcher,
		store,
		logger,
		assembly.WithDuckOptions(cfg.DuckOptions()),
		assembly.WithMusicVolume(cfg.MuxMusicVolume),
	)

	return &Dependencies{
		Orchestrator: orch,
		Assembler:    assembler,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
