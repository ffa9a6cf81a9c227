// Package server provides the HTTP server for the generation engine.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import "github.com/scriptoplay/engine/internal/assembly"

// GenerateImageRequest is the HTTP request body for keyframe image generation.
type GenerateImageRequest struct {
	// Prompt is the text description of the image.
	Prompt string `json:"prompt" validate:"required"`
	// Model optionally overrides the configured image model.
	Model string `json:"model,omitempty"`
	// AspectRatio is the requested frame shape, e.g. "16:9".
	AspectRatio string `json:"aspect_ratio,omitempty"`
	// StyleRef is an optional style reference image URL.
	StyleRef string `json:"style_ref,omitempty" validate:"omitempty,url"`
	// CharRef is an optional character reference image URL.
	CharRef string `json:"char_ref,omitempty" validate:"omitempty,url"`
}

// GenerateImageResponse is the HTTP response for a generated image.
type GenerateImageResponse struct {
	// URL is the provider-hosted image artifact URL.
	URL string `json:"url"`
}

// GenerateVideoRequest is the HTTP request body for submitting a video job.
type GenerateVideoRequest struct {
	// Prompt is the text description of the motion.
	Prompt string `json:"prompt" validate:"required"`
	// Model optionally overrides the configured video model.
	Model string `json:"model,omitempty"`
	// ImageURL is the keyframe the clip animates from.
	ImageURL string `json:"image_url,omitempty" validate:"omitempty,url"`
	// ImageEndURL is an optional closing keyframe.
	ImageEndURL string `json:"image_end_url,omitempty" validate:"omitempty,url"`
	// AudioURL is an optional driving audio track.
	AudioURL string `json:"audio_url,omitempty" validate:"omitempty,url"`
	// Duration is the requested clip length in seconds.
	Duration int `json:"duration,omitempty" validate:"omitempty,min=1,max=60"`
	// AspectRatio is the requested frame shape, e.g. "16:9".
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// GenerateVideoResponse is the HTTP response after submitting a video job.
type GenerateVideoResponse struct {
	// JobID is the provider-side job identifier to poll with.
	JobID string `json:"job_id"`
	// Model is the provider model the job was submitted to.
	Model string `json:"model"`
	// Status is the initial job status.
	Status string `json:"status"`
}

// JobStatusResponse is the HTTP response for polling a video job.
type JobStatusResponse struct {
	// JobID is the provider-side job identifier.
	JobID string `json:"job_id"`
	// Status is the last observed lifecycle state.
	Status string `json:"status"`
	// URL is the artifact URL once the job completes.
	URL string `json:"url,omitempty"`
	// Error contains the failure message if the job failed.
	Error string `json:"error,omitempty"`
	// ErrorKind classifies the failure for programmatic handling.
	ErrorKind string `json:"error_kind,omitempty"`
}

// GenerateAudioRequest is the HTTP request body for audio generation.
// Speech synthesis takes text and a voice; music models take a prompt.
type GenerateAudioRequest struct {
	// Text is the dialogue text to synthesize.
	Text string `json:"text,omitempty"`
	// Prompt describes the music to generate (music models).
	Prompt string `json:"prompt,omitempty"`
	// Voice is the synthesis voice identifier.
	Voice string `json:"voice,omitempty"`
	// Model optionally overrides the configured audio model.
	Model string `json:"model,omitempty"`
	// Speed adjusts the speaking rate.
	Speed float64 `json:"speed,omitempty" validate:"omitempty,min=0.25,max=4"`
}

// AssembleRequest is the HTTP request body for multi-scene assembly.
type AssembleRequest struct {
	// ProjectID namespaces the uploaded artifact.
	ProjectID string `json:"project_id" validate:"required"`
	// Scenes are concatenated strictly in the order given.
	Scenes []assembly.Scene `json:"scenes" validate:"required,min=1,dive"`
	// BackgroundMusicURL optionally supplies a music track ducked under dialogue.
	BackgroundMusicURL string `json:"background_music_url,omitempty" validate:"omitempty,url"`
}

// AssembleResponse is the HTTP response for a finished assembly.
type AssembleResponse struct {
	// URL is the uploaded final video artifact URL.
	URL string `json:"url"`
}

// MuxRequest is the HTTP request body for single-clip audio muxing.
type MuxRequest struct {
	// ProjectID namespaces the uploaded artifact.
	ProjectID string `json:"project_id" validate:"required"`
	// VideoURL is the pre-rendered clip to overlay audio onto.
	VideoURL string `json:"video_url" validate:"required,url"`
	// VoiceURL is an optional dialogue track.
	VoiceURL string `json:"voice_url,omitempty" validate:"omitempty,url"`
	// MusicURL is an optional background music track.
	MusicURL string `json:"music_url,omitempty" validate:"omitempty,url"`
}

// MuxResponse is the HTTP response for a mux call. URL may be the original
// video URL when no overlay was possible.
type MuxResponse struct {
	// URL is the resulting video artifact URL.
	URL string `json:"url"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
