package adapter

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/scriptoplay/engine/internal/generation"
	"github.com/scriptoplay/engine/internal/speech"
)

// SpeechAdapter adapts the synchronous text-to-speech client to audio
// generation requests.
type SpeechAdapter struct {
	client       speech.Client
	defaultVoice string
}

// NewSpeechAdapter creates a new speech adapter. defaultVoice is used when
// the request carries no voice reference.
func NewSpeechAdapter(client speech.Client, defaultVoice string) *SpeechAdapter {
	return &SpeechAdapter{client: client, defaultVoice: defaultVoice}
}

// Generate synthesizes the request's prompt text and returns audio bytes.
func (a *SpeechAdapter) Generate(ctx context.Context, req generation.Request) ([]byte, error) {
	voice, ok := req.Reference("voice")
	if !ok {
		voice = a.defaultVoice
	}

	opts := speech.SynthesizeOptions{ModelID: req.ModelHint}
	if raw, ok := req.Constraint("speed"); ok {
		if speed, err := strconv.ParseFloat(raw, 64); err == nil {
			opts.Speed = speed
		}
	}

	audio, err := a.client.Synthesize(ctx, req.Prompt, voice, opts)
	if err != nil {
		var he *speech.HTTPError
		if errors.As(err, &he) {
			kind := generation.ClassifyFailure(he.StatusCode, he.Body)
			return nil, generation.WrapError(kind, fmt.Errorf("speech adapter: %w", err))
		}
		return nil, generation.WrapError(generation.ErrorGenerationFailed, fmt.Errorf("speech adapter: %w", err))
	}

	return audio, nil
}

// Compile-time check that SpeechAdapter implements AudioGenerator.
var _ AudioGenerator = (*SpeechAdapter)(nil)
