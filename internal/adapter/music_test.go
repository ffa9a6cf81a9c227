package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scriptoplay/engine/internal/falqueue"
	"github.com/scriptoplay/engine/internal/generation"
)

func TestMusicAdapter_Submit(t *testing.T) {
	ctx := context.Background()
	client := &mockQueueClient{}
	adapter := NewMusicAdapter(client, "")

	client.On("Submit", ctx, DefaultMusicModel, mock.MatchedBy(func(input map[string]any) bool {
		return input["prompt"] == "calm piano" && input["duration"] == "30"
	}), "").Return("req-7", nil)

	handle, err := adapter.Submit(ctx, generation.Request{
		Kind:        generation.KindMusic,
		Prompt:      "calm piano",
		Constraints: map[string]string{"duration": "30"},
	})
	require.NoError(t, err)
	assert.Equal(t, "req-7", handle.JobID)
	assert.Equal(t, DefaultMusicModel, handle.ProviderModelID)
	client.AssertExpectations(t)
}

func TestMusicAdapter_PollStatus_AudioShapes(t *testing.T) {
	ctx := context.Background()
	handle := generation.JobHandle{JobID: "req-7", ProviderModelID: DefaultMusicModel}

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"audio object", map[string]any{"audio": map[string]any{"url": "https://cdn.example.com/track.mp3"}}},
		{"audio_file object", map[string]any{"audio_file": map[string]any{"url": "https://cdn.example.com/track.mp3"}}},
		{"data wrapped", map[string]any{"data": map[string]any{"audio": map[string]any{"url": "https://cdn.example.com/track.mp3"}}}},
		{"bare url", map[string]any{"url": "https://cdn.example.com/track.mp3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockQueueClient{}
			adapter := NewMusicAdapter(client, "")

			client.On("Status", ctx, DefaultMusicModel, "req-7").Return(falqueue.StatusResult{
				Status:  falqueue.StatusCompleted,
				Payload: tt.payload,
			}, nil)

			result, err := adapter.PollStatus(ctx, handle)
			require.NoError(t, err)
			assert.Equal(t, generation.StatusCompleted, result.Status)
			assert.Equal(t, "https://cdn.example.com/track.mp3", result.ArtifactURL)
			client.AssertExpectations(t)
		})
	}
}

func TestMusicAdapter_PollStatus_FallsBackToResult(t *testing.T) {
	ctx := context.Background()
	client := &mockQueueClient{}
	adapter := NewMusicAdapter(client, "")
	handle := generation.JobHandle{JobID: "req-7", ProviderModelID: DefaultMusicModel}

	client.On("Status", ctx, DefaultMusicModel, "req-7").Return(falqueue.StatusResult{
		Status:  falqueue.StatusCompleted,
		Payload: map[string]any{"status": "COMPLETED"},
	}, nil)
	client.On("Result", ctx, DefaultMusicModel, "req-7").
		Return(map[string]any{"audio": map[string]any{"url": "https://cdn.example.com/track.mp3"}}, nil)

	result, err := adapter.PollStatus(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusCompleted, result.Status)
	assert.Equal(t, "https://cdn.example.com/track.mp3", result.ArtifactURL)
	client.AssertExpectations(t)
}

func TestMusicAdapter_PollStatus_CompletedWithoutURLIsFailed(t *testing.T) {
	ctx := context.Background()
	client := &mockQueueClient{}
	adapter := NewMusicAdapter(client, "")
	handle := generation.JobHandle{JobID: "req-7", ProviderModelID: DefaultMusicModel}

	client.On("Status", ctx, DefaultMusicModel, "req-7").Return(falqueue.StatusResult{
		Status:  falqueue.StatusCompleted,
		Payload: map[string]any{"status": "COMPLETED"},
	}, nil)
	client.On("Result", ctx, DefaultMusicModel, "req-7").
		Return(nil, errors.New("not available"))

	result, err := adapter.PollStatus(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusFailed, result.Status)
	assert.Equal(t, generation.ErrorArtifactExtraction, result.ErrorKind)
	client.AssertExpectations(t)
}

func TestMusicAdapter_PollStatus_NonTerminal(t *testing.T) {
	ctx := context.Background()
	client := &mockQueueClient{}
	adapter := NewMusicAdapter(client, "")
	handle := generation.JobHandle{JobID: "req-7", ProviderModelID: DefaultMusicModel}

	client.On("Status", ctx, DefaultMusicModel, "req-7").Return(falqueue.StatusResult{
		Status: falqueue.StatusInQueue,
	}, nil)

	result, err := adapter.PollStatus(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, generation.StatusQueued, result.Status)
	client.AssertExpectations(t)
}
