package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scriptoplay/engine/internal/assembly"
	"github.com/scriptoplay/engine/internal/generation"
	"github.com/scriptoplay/engine/internal/orchestrator"
)

// mockGenerator mocks the Generator facade.
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateImage(ctx context.Context, params orchestrator.ImageParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *mockGenerator) GenerateVideo(ctx context.Context, params orchestrator.VideoParams) (generation.JobHandle, error) {
	args := m.Called(ctx, params)
	handle, _ := args.Get(0).(generation.JobHandle)
	return handle, args.Error(1)
}

func (m *mockGenerator) CheckStatus(ctx context.Context, handle generation.JobHandle) (generation.Result, error) {
	args := m.Called(ctx, handle)
	result, _ := args.Get(0).(generation.Result)
	return result, args.Error(1)
}

func (m *mockGenerator) GenerateAudio(ctx context.Context, params orchestrator.AudioParams) ([]byte, error) {
	args := m.Called(ctx, params)
	audio, _ := args.Get(0).([]byte)
	return audio, args.Error(1)
}

// mockAssembler mocks the Assembler facade.
type mockAssembler struct {
	mock.Mock
}

func (m *mockAssembler) AssembleVideo(ctx context.Context, projectID string, plan assembly.Plan, onProgress assembly.ProgressFunc) (string, error) {
	args := m.Called(ctx, projectID, plan)
	return args.String(0), args.Error(1)
}

func (m *mockAssembler) MuxSingleClip(ctx context.Context, projectID, videoURL, voiceURL, musicURL string) (string, error) {
	args := m.Called(ctx, projectID, videoURL, voiceURL, musicURL)
	return args.String(0), args.Error(1)
}

func newTestRouter(gen *mockGenerator, asm *mockAssembler) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandlers(gen, asm, logger)
	return NewRouter(h, logger, DefaultConfig())
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&mockGenerator{}, &mockAssembler{})

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestGenerateImage(t *testing.T) {
	gen := &mockGenerator{}
	router := newTestRouter(gen, &mockAssembler{})

	gen.On("GenerateImage", mock.Anything, orchestrator.ImageParams{
		Prompt:      "a quiet street",
		AspectRatio: "16:9",
	}).Return("https://cdn.example.com/street.png", nil)

	rec := doJSON(t, router, http.MethodPost, "/generate/image", GenerateImageRequest{
		Prompt:      "a quiet street",
		AspectRatio: "16:9",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp GenerateImageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://cdn.example.com/street.png", resp.URL)
	gen.AssertExpectations(t)
}

func TestGenerateImage_ValidationError(t *testing.T) {
	router := newTestRouter(&mockGenerator{}, &mockAssembler{})

	rec := doJSON(t, router, http.MethodPost, "/generate/image", GenerateImageRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestGenerateImage_InvalidJSON(t *testing.T) {
	router := newTestRouter(&mockGenerator{}, &mockAssembler{})

	req := httptest.NewRequest(http.MethodPost, "/generate/image", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_JSON", resp.Code)
}

func TestGenerateImage_ErrorKindMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			"credit exhausted maps to 402",
			generation.NewError(generation.ErrorCreditExhausted, "quota exceeded"),
			http.StatusPaymentRequired,
			"CREDIT_EXHAUSTED",
		},
		{
			"generation failure maps to 502",
			generation.NewError(generation.ErrorGenerationFailed, "model overloaded"),
			http.StatusBadGateway,
			"GENERATION_FAILED",
		},
		{
			"extraction failure maps to 502",
			generation.NewError(generation.ErrorArtifactExtraction, "no URL found"),
			http.StatusBadGateway,
			"ARTIFACT_EXTRACTION_FAILED",
		},
		{
			"timeout maps to 504",
			generation.NewError(generation.ErrorTimeout, "poll budget exceeded"),
			http.StatusGatewayTimeout,
			"TIMEOUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{}
			router := newTestRouter(gen, &mockAssembler{})

			gen.On("GenerateImage", mock.Anything, mock.Anything).Return("", tt.err)

			rec := doJSON(t, router, http.MethodPost, "/generate/image", GenerateImageRequest{Prompt: "p"})
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestGenerateVideo(t *testing.T) {
	gen := &mockGenerator{}
	router := newTestRouter(gen, &mockAssembler{})

	gen.On("GenerateVideo", mock.Anything, orchestrator.VideoParams{
		Prompt:   "slow pan",
		ImageURL: "https://cdn.example.com/key.png",
		Duration: 7,
	}).Return(generation.JobHandle{JobID: "req-42", ProviderModelID: "model"}, nil)

	rec := doJSON(t, router, http.MethodPost, "/generate/video", GenerateVideoRequest{
		Prompt:   "slow pan",
		ImageURL: "https://cdn.example.com/key.png",
		Duration: 7,
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp GenerateVideoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-42", resp.JobID)
	assert.Equal(t, "model", resp.Model)
	assert.Equal(t, string(generation.StatusQueued), resp.Status)
	gen.AssertExpectations(t)
}

func TestGetJobStatus(t *testing.T) {
	gen := &mockGenerator{}
	router := newTestRouter(gen, &mockAssembler{})

	gen.On("CheckStatus", mock.Anything, generation.JobHandle{JobID: "req-42", ProviderModelID: "model"}).
		Return(generation.Result{
			Status:      generation.StatusCompleted,
			ArtifactURL: "https://cdn.example.com/out.mp4",
		}, nil)

	rec := doJSON(t, router, http.MethodGet, "/jobs/req-42?model=model", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp JobStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-42", resp.JobID)
	assert.Equal(t, string(generation.StatusCompleted), resp.Status)
	assert.Equal(t, "https://cdn.example.com/out.mp4", resp.URL)
	gen.AssertExpectations(t)
}

func TestGetJobStatus_FailedJob(t *testing.T) {
	gen := &mockGenerator{}
	router := newTestRouter(gen, &mockAssembler{})

	gen.On("CheckStatus", mock.Anything, mock.Anything).Return(generation.Result{
		Status:    generation.StatusFailed,
		ErrorKind: generation.ErrorArtifactExtraction,
		Error:     "no artifact URL found",
	}, nil)

	rec := doJSON(t, router, http.MethodGet, "/jobs/req-42", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "a failed job is still a successful status check")

	var resp JobStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(generation.StatusFailed), resp.Status)
	assert.Equal(t, string(generation.ErrorArtifactExtraction), resp.ErrorKind)
}

func TestGenerateAudio_ReturnsBinary(t *testing.T) {
	gen := &mockGenerator{}
	router := newTestRouter(gen, &mockAssembler{})

	gen.On("GenerateAudio", mock.Anything, orchestrator.AudioParams{
		Text:  "Hello there",
		Voice: "narrator",
	}).Return([]byte("mp3-bytes"), nil)

	rec := doJSON(t, router, http.MethodPost, "/generate/audio", GenerateAudioRequest{
		Text:  "Hello there",
		Voice: "narrator",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "mp3-bytes", rec.Body.String())
	gen.AssertExpectations(t)
}

func TestGenerateAudio_RequiresTextOrPrompt(t *testing.T) {
	router := newTestRouter(&mockGenerator{}, &mockAssembler{})

	rec := doJSON(t, router, http.MethodPost, "/generate/audio", GenerateAudioRequest{Voice: "narrator"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssemble(t *testing.T) {
	asm := &mockAssembler{}
	router := newTestRouter(&mockGenerator{}, asm)

	asm.On("AssembleVideo", mock.Anything, "proj-1", mock.MatchedBy(func(plan assembly.Plan) bool {
		return len(plan.Scenes) == 2 && plan.BackgroundMusicURL == "https://cdn.example.com/bgm.mp3"
	})).Return("https://artifacts.example.com/final.mp4", nil)

	rec := doJSON(t, router, http.MethodPost, "/assemble", AssembleRequest{
		ProjectID: "proj-1",
		Scenes: []assembly.Scene{
			{ID: "s1", VideoURL: "https://cdn.example.com/c1.mp4"},
			{ID: "s2", VideoURL: "https://cdn.example.com/c2.mp4"},
		},
		BackgroundMusicURL: "https://cdn.example.com/bgm.mp3",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp AssembleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://artifacts.example.com/final.mp4", resp.URL)
	asm.AssertExpectations(t)
}

func TestAssemble_FailureMapsToAssemblyCode(t *testing.T) {
	asm := &mockAssembler{}
	router := newTestRouter(&mockGenerator{}, asm)

	asm.On("AssembleVideo", mock.Anything, "proj-1", mock.Anything).
		Return("", generation.NewError(generation.ErrorAssemblyFailed, "concat failed"))

	rec := doJSON(t, router, http.MethodPost, "/assemble", AssembleRequest{
		ProjectID: "proj-1",
		Scenes:    []assembly.Scene{{ID: "s1", VideoURL: "https://cdn.example.com/c1.mp4"}},
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ASSEMBLY_FAILED", resp.Code)
}

func TestMux(t *testing.T) {
	asm := &mockAssembler{}
	router := newTestRouter(&mockGenerator{}, asm)

	asm.On("MuxSingleClip", mock.Anything, "proj-1",
		"https://cdn.example.com/clip.mp4", "https://cdn.example.com/voice.mp3", "").
		Return("https://artifacts.example.com/muxed.mp4", nil)

	rec := doJSON(t, router, http.MethodPost, "/mux", MuxRequest{
		ProjectID: "proj-1",
		VideoURL:  "https://cdn.example.com/clip.mp4",
		VoiceURL:  "https://cdn.example.com/voice.mp3",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp MuxResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "https://artifacts.example.com/muxed.mp4", resp.URL)
	asm.AssertExpectations(t)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(&mockGenerator{}, &mockAssembler{})

	rec := doJSON(t, router, http.MethodGet, "/generate/image", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
