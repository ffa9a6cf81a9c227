// Package generation defines the shared domain types for the generation
// orchestration layer: requests, results, job handles and the error
// taxonomy that all provider adapters and the facade speak.
package generation

// Kind identifies the type of artifact a request produces.
type Kind string

const (
	// KindImage requests a still image (keyframe) generation.
	KindImage Kind = "image"
	// KindVideo requests a video clip generation.
	KindVideo Kind = "video"
	// KindAudio requests speech synthesis.
	KindAudio Kind = "audio"
	// KindMusic requests background music generation.
	KindMusic Kind = "music"
)

// IsValid returns true if the kind is one of the known artifact kinds.
func (k Kind) IsValid() bool {
	return k == KindImage || k == KindVideo || k == KindAudio || k == KindMusic
}

// Request describes one generation call. It is immutable once issued:
// adapters read it but never modify it.
type Request struct {
	// Kind is the artifact type being requested.
	Kind Kind
	// Prompt is the text prompt sent to the provider.
	Prompt string
	// ModelHint optionally selects a specific provider model. Empty means
	// the adapter's default model.
	ModelHint string
	// ReferenceInputs maps reference names (e.g. "image_url", "style_ref")
	// to URLs or literal values. Absent entries are omitted from provider
	// payloads rather than sent as null.
	ReferenceInputs map[string]string
	// Constraints maps constraint names (e.g. "aspect_ratio", "duration")
	// to values. Adapters translate these to provider-specific fields.
	Constraints map[string]string
}

// Reference returns the named reference input and whether it was set.
func (r Request) Reference(name string) (string, bool) {
	v, ok := r.ReferenceInputs[name]
	return v, ok && v != ""
}

// Constraint returns the named constraint and whether it was set.
func (r Request) Constraint(name string) (string, bool) {
	v, ok := r.Constraints[name]
	return v, ok && v != ""
}

// Status represents the lifecycle state of a generation.
type Status string

const (
	// StatusQueued indicates the job is waiting for an available worker.
	StatusQueued Status = "QUEUED"
	// StatusInProgress indicates the job is being processed.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusCompleted indicates the job finished with an artifact.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates the job failed or produced no artifact.
	StatusFailed Status = "FAILED"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Result is the outcome of a generation or a poll. A Result never reports
// StatusCompleted without a non-empty ArtifactURL; pollers that cannot
// extract a URL from a "completed" provider payload report StatusFailed
// with ErrorArtifactExtraction instead.
type Result struct {
	// Status is the current lifecycle state.
	Status Status
	// ArtifactURL points at the generated artifact. Set only when Status
	// is StatusCompleted.
	ArtifactURL string
	// JobID is the provider-side job identifier, when asynchronous.
	JobID string
	// ProviderModelID is the model that produced (or is producing) the
	// artifact.
	ProviderModelID string
	// ErrorKind classifies the failure. Set only when Status is StatusFailed.
	ErrorKind ErrorKind
	// Error is the provider's failure message, when available.
	Error string
}

// JobHandle is an opaque reference to an asynchronous provider job.
// It has no local lifecycle: the caller polls until terminal or abandons it.
type JobHandle struct {
	// JobID is the provider-assigned request identifier.
	JobID string `json:"job_id"`
	// ProviderModelID is the model the job was submitted to. Polling needs
	// it because queue status endpoints are scoped per model.
	ProviderModelID string `json:"provider_model_id"`
}
