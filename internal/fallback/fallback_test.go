package fallback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scriptoplay/engine/internal/adapter"
	"github.com/scriptoplay/engine/internal/generation"
)

// mockImageGenerator is a testify mock for adapter.ImageGenerator.
type mockImageGenerator struct {
	mock.Mock
}

func (m *mockImageGenerator) Generate(ctx context.Context, req generation.Request) (adapter.ImageOutput, error) {
	args := m.Called(ctx, req)
	out, _ := args.Get(0).(adapter.ImageOutput)
	return out, args.Error(1)
}

func TestImageRunner_PrimarySucceeds(t *testing.T) {
	ctx := context.Background()
	primary := &mockImageGenerator{}
	fb := &mockImageGenerator{}
	runner := NewImageRunner(primary, fb, nil)

	primary.On("Generate", ctx, mock.Anything).Return(adapter.ImageOutput{
		URL:     "https://cdn.example.com/primary.png",
		ModelID: "model-a",
	}, nil)

	out, err := runner.Generate(ctx, generation.Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/primary.png", out.URL)
	primary.AssertExpectations(t)
	fb.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestImageRunner_PrimaryCreditExhaustedFallbackSucceeds(t *testing.T) {
	ctx := context.Background()
	primary := &mockImageGenerator{}
	fb := &mockImageGenerator{}
	runner := NewImageRunner(primary, fb, nil)

	primary.On("Generate", ctx, mock.Anything).Return(
		adapter.ImageOutput{ModelID: "model-a"},
		generation.NewError(generation.ErrorCreditExhausted, "quota exceeded"),
	)
	fb.On("Generate", ctx, mock.MatchedBy(func(req generation.Request) bool {
		// The fallback must use its own default model, not the primary's hint.
		return req.ModelHint == ""
	})).Return(adapter.ImageOutput{
		URL:     "https://cdn.example.com/fallback.png",
		ModelID: "model-b",
	}, nil)

	out, err := runner.Generate(ctx, generation.Request{Prompt: "p", ModelHint: "model-a"})
	require.NoError(t, err, "a successful fallback masks the primary failure")
	assert.Equal(t, "https://cdn.example.com/fallback.png", out.URL)
	assert.Equal(t, "model-b", out.ModelID)
	primary.AssertExpectations(t)
	fb.AssertExpectations(t)
}

func TestImageRunner_EmptyPrimaryResultTriggersFallback(t *testing.T) {
	ctx := context.Background()
	primary := &mockImageGenerator{}
	fb := &mockImageGenerator{}
	runner := NewImageRunner(primary, fb, nil)

	primary.On("Generate", ctx, mock.Anything).Return(adapter.ImageOutput{
		ModelID: "model-a",
		Raw:     map[string]any{"seed": 1},
	}, nil)
	fb.On("Generate", ctx, mock.Anything).Return(adapter.ImageOutput{
		URL:     "https://cdn.example.com/fallback.png",
		ModelID: "model-b",
	}, nil)

	out, err := runner.Generate(ctx, generation.Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/fallback.png", out.URL)
	primary.AssertExpectations(t)
	fb.AssertExpectations(t)
}

func TestImageRunner_BothFail_AggregatedError(t *testing.T) {
	ctx := context.Background()
	primary := &mockImageGenerator{}
	fb := &mockImageGenerator{}
	runner := NewImageRunner(primary, fb, nil)

	primary.On("Generate", ctx, mock.Anything).Return(
		adapter.ImageOutput{ModelID: "model-a"},
		generation.NewError(generation.ErrorGenerationFailed, "model overloaded"),
	)
	fb.On("Generate", ctx, mock.Anything).Return(
		adapter.ImageOutput{ModelID: "model-b", Raw: map[string]any{"detail": "nsfw filter"}},
		generation.NewError(generation.ErrorGenerationFailed, "content rejected"),
	)

	_, err := runner.Generate(ctx, generation.Request{Prompt: "p"})
	require.Error(t, err)

	// Both attempts' diagnostics survive in one aggregated error.
	assert.Contains(t, err.Error(), "model overloaded")
	assert.Contains(t, err.Error(), "content rejected")
	assert.Contains(t, err.Error(), "model-a")
	assert.Contains(t, err.Error(), "model-b")
	assert.Contains(t, err.Error(), "nsfw filter", "raw response snippet kept for debugging")
	primary.AssertExpectations(t)
	fb.AssertExpectations(t)
}

func TestImageRunner_BothFail_CreditKindPreserved(t *testing.T) {
	ctx := context.Background()
	primary := &mockImageGenerator{}
	fb := &mockImageGenerator{}
	runner := NewImageRunner(primary, fb, nil)

	primary.On("Generate", ctx, mock.Anything).Return(
		adapter.ImageOutput{ModelID: "model-a"},
		generation.NewError(generation.ErrorCreditExhausted, "quota exceeded"),
	)
	fb.On("Generate", ctx, mock.Anything).Return(
		adapter.ImageOutput{ModelID: "model-b"},
		generation.NewError(generation.ErrorGenerationFailed, "overloaded"),
	)

	_, err := runner.Generate(ctx, generation.Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, generation.ErrorCreditExhausted, generation.KindOf(err),
		"quota classification survives aggregation so billing prompts still fire")
}

func TestImageRunner_BothEmpty(t *testing.T) {
	ctx := context.Background()
	primary := &mockImageGenerator{}
	fb := &mockImageGenerator{}
	runner := NewImageRunner(primary, fb, nil)

	primary.On("Generate", ctx, mock.Anything).Return(adapter.ImageOutput{ModelID: "model-a"}, nil)
	fb.On("Generate", ctx, mock.Anything).Return(adapter.ImageOutput{ModelID: "model-b"}, nil)

	_, err := runner.Generate(ctx, generation.Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, generation.ErrorGenerationFailed, generation.KindOf(err))
	assert.Contains(t, err.Error(), "no image URL")
}

func TestRawSnippet_Truncation(t *testing.T) {
	long := map[string]any{"data": string(make([]byte, 2*maxSnippetLen))}
	s := rawSnippet(long)
	assert.LessOrEqual(t, len(s), maxSnippetLen+3)
	assert.Contains(t, s, "...")
}

func TestRawSnippet_PrefersFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "", rawSnippet(nil, nil))

	s := rawSnippet(nil, map[string]any{"k": "v"})
	assert.Contains(t, s, "v")
}
