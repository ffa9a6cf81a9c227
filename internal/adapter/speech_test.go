package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scriptoplay/engine/internal/generation"
	"github.com/scriptoplay/engine/internal/speech"
)

// mockSpeechClient is a testify mock for speech.Client.
type mockSpeechClient struct {
	mock.Mock
}

func (m *mockSpeechClient) Synthesize(ctx context.Context, text, voiceID string, opts speech.SynthesizeOptions) ([]byte, error) {
	args := m.Called(ctx, text, voiceID, opts)
	audio, _ := args.Get(0).([]byte)
	return audio, args.Error(1)
}

func TestSpeechAdapter_Generate(t *testing.T) {
	ctx := context.Background()
	client := &mockSpeechClient{}
	adapter := NewSpeechAdapter(client, "default-voice")

	client.On("Synthesize", ctx, "Hello there", "custom-voice", mock.MatchedBy(func(o speech.SynthesizeOptions) bool {
		return o.Speed == 1.1
	})).Return([]byte("audio-bytes"), nil)

	audio, err := adapter.Generate(ctx, generation.Request{
		Kind:            generation.KindAudio,
		Prompt:          "Hello there",
		ReferenceInputs: map[string]string{"voice": "custom-voice"},
		Constraints:     map[string]string{"speed": "1.1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("audio-bytes"), audio)
	client.AssertExpectations(t)
}

func TestSpeechAdapter_DefaultVoice(t *testing.T) {
	ctx := context.Background()
	client := &mockSpeechClient{}
	adapter := NewSpeechAdapter(client, "default-voice")

	client.On("Synthesize", ctx, "text", "default-voice", mock.Anything).
		Return([]byte("audio"), nil)

	_, err := adapter.Generate(ctx, generation.Request{Prompt: "text"})
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestSpeechAdapter_QuotaClassification(t *testing.T) {
	ctx := context.Background()
	client := &mockSpeechClient{}
	adapter := NewSpeechAdapter(client, "default-voice")

	client.On("Synthesize", ctx, "text", "default-voice", mock.Anything).
		Return(nil, &speech.HTTPError{StatusCode: 402, Body: "quota exceeded"})

	_, err := adapter.Generate(ctx, generation.Request{Prompt: "text"})
	require.Error(t, err)
	assert.Equal(t, generation.ErrorCreditExhausted, generation.KindOf(err))
	client.AssertExpectations(t)
}
