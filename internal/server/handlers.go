package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/scriptoplay/engine/internal/assembly"
	"github.com/scriptoplay/engine/internal/generation"
	"github.com/scriptoplay/engine/internal/orchestrator"
)

// Generator is the orchestration facade the handlers call for generation work.
type Generator interface {
	GenerateImage(ctx context.Context, params orchestrator.ImageParams) (string, error)
	GenerateVideo(ctx context.Context, params orchestrator.VideoParams) (generation.JobHandle, error)
	CheckStatus(ctx context.Context, handle generation.JobHandle) (generation.Result, error)
	GenerateAudio(ctx context.Context, params orchestrator.AudioParams) ([]byte, error)
}

// Assembler combines generated clips into finished videos.
type Assembler interface {
	AssembleVideo(ctx context.Context, projectID string, plan assembly.Plan, onProgress assembly.ProgressFunc) (string, error)
	MuxSingleClip(ctx context.Context, projectID, videoURL, voiceURL, musicURL string) (string, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	generator Generator
	assembler Assembler
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(generator Generator, assembler Assembler, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		generator: generator,
		assembler: assembler,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// GenerateImage handles POST /generate/image requests. The call blocks
// until the image is ready or the fallback chain is exhausted.
func (h *Handlers) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req GenerateImageRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	url, err := h.generator.GenerateImage(r.Context(), orchestrator.ImageParams{
		Prompt:      req.Prompt,
		Model:       req.Model,
		AspectRatio: req.AspectRatio,
		StyleRef:    req.StyleRef,
		CharRef:     req.CharRef,
	})
	if err != nil {
		h.writeGenerationError(w, "image generation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateImageResponse{URL: url})
}

// GenerateVideo handles POST /generate/video requests. The job is
// submitted and its handle returned immediately; completion is observed
// through GET /jobs/{id}.
func (h *Handlers) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req GenerateVideoRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	handle, err := h.generator.GenerateVideo(r.Context(), orchestrator.VideoParams{
		Prompt:      req.Prompt,
		Model:       req.Model,
		ImageURL:    req.ImageURL,
		ImageEndURL: req.ImageEndURL,
		AudioURL:    req.AudioURL,
		Duration:    req.Duration,
		AspectRatio: req.AspectRatio,
	})
	if err != nil {
		h.writeGenerationError(w, "video submission failed", err)
		return
	}

	writeJSON(w, http.StatusAccepted, GenerateVideoResponse{
		JobID:  handle.JobID,
		Model:  handle.ProviderModelID,
		Status: string(generation.StatusQueued),
	})
}

// GetJobStatus handles GET /jobs/{id} requests. Non-terminal statuses are
// reported as 200 responses; only transport and provider errors fail.
func (h *Handlers) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	handle := generation.JobHandle{
		JobID:           jobID,
		ProviderModelID: r.URL.Query().Get("model"),
	}

	result, err := h.generator.CheckStatus(r.Context(), handle)
	if err != nil {
		h.writeGenerationError(w, "status check failed", err)
		return
	}

	writeJSON(w, http.StatusOK, JobStatusResponse{
		JobID:     jobID,
		Status:    string(result.Status),
		URL:       result.ArtifactURL,
		Error:     result.Error,
		ErrorKind: string(result.ErrorKind),
	})
}

// GenerateAudio handles POST /generate/audio requests. The response body
// is the raw audio bytes, for both speech and music models.
func (h *Handlers) GenerateAudio(w http.ResponseWriter, r *http.Request) {
	var req GenerateAudioRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Text == "" && req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "text or prompt is required", "VALIDATION_ERROR")
		return
	}

	audio, err := h.generator.GenerateAudio(r.Context(), orchestrator.AudioParams{
		Prompt: req.Prompt,
		Text:   req.Text,
		Voice:  req.Voice,
		Model:  req.Model,
		Speed:  req.Speed,
	})
	if err != nil {
		h.writeGenerationError(w, "audio generation failed", err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		h.logger.Error("failed to write audio response",
			slog.String("error", err.Error()),
		)
	}
}

// Assemble handles POST /assemble requests, producing the final video from
// ordered scene clips and optional background music.
func (h *Handlers) Assemble(w http.ResponseWriter, r *http.Request) {
	var req AssembleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	plan := assembly.Plan{
		Scenes:             req.Scenes,
		BackgroundMusicURL: req.BackgroundMusicURL,
	}

	url, err := h.assembler.AssembleVideo(r.Context(), req.ProjectID, plan, func(stage string, percent int) {
		h.logger.Info("assembly progress",
			slog.String("project_id", req.ProjectID),
			slog.String("stage", stage),
			slog.Int("percent", percent),
		)
	})
	if err != nil {
		h.writeGenerationError(w, "assembly failed", err)
		return
	}

	writeJSON(w, http.StatusOK, AssembleResponse{URL: url})
}

// Mux handles POST /mux requests, overlaying voice and/or music onto a
// single pre-rendered clip.
func (h *Handlers) Mux(w http.ResponseWriter, r *http.Request) {
	var req MuxRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	url, err := h.assembler.MuxSingleClip(r.Context(), req.ProjectID, req.VideoURL, req.VoiceURL, req.MusicURL)
	if err != nil {
		h.writeGenerationError(w, "mux failed", err)
		return
	}

	writeJSON(w, http.StatusOK, MuxResponse{URL: url})
}

// decodeAndValidate decodes the JSON body into dst and validates it,
// writing the error response itself on failure.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// writeGenerationError maps a classified generation error to an HTTP
// response.
func (h *Handlers) writeGenerationError(w http.ResponseWriter, msg string, err error) {
	kind := generation.KindOf(err)

	h.logger.Error(msg,
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	)

	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"
	switch kind {
	case generation.ErrorCreditExhausted:
		status = http.StatusPaymentRequired
		code = string(kind)
	case generation.ErrorGenerationFailed, generation.ErrorArtifactExtraction:
		status = http.StatusBadGateway
		code = string(kind)
	case generation.ErrorTimeout:
		status = http.StatusGatewayTimeout
		code = string(kind)
	case generation.ErrorAssemblyFailed:
		status = http.StatusInternalServerError
		code = string(kind)
	}

	writeError(w, status, err.Error(), code)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
