// Package fallback wraps a primary generation attempt with exactly one
// secondary attempt. It classifies failures, keeps the diagnostics from
// both attempts, and surfaces a single aggregated error when neither
// produced an artifact.
package fallback

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scriptoplay/engine/internal/adapter"
	"github.com/scriptoplay/engine/internal/generation"
)

// maxSnippetLen bounds the raw-response excerpt carried in aggregated
// errors for debuggability.
const maxSnippetLen = 300

// ImageRunner runs image generation against a primary adapter and falls
// back to a secondary adapter when the primary fails or returns an empty
// result. It implements adapter.ImageGenerator so the facade composes it
// transparently.
type ImageRunner struct {
	primary  adapter.ImageGenerator
	fallback adapter.ImageGenerator
	logger   *slog.Logger
}

// NewImageRunner creates a runner with a primary and one fallback adapter.
func NewImageRunner(primary, fb adapter.ImageGenerator, logger *slog.Logger) *ImageRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageRunner{primary: primary, fallback: fb, logger: logger}
}

// Generate tries the primary adapter first. A successful call with a
// non-empty URL returns immediately without touching the fallback. Any
// failure or empty result triggers exactly one fallback attempt with the
// model hint cleared so the fallback adapter uses its own default model.
func (r *ImageRunner) Generate(ctx context.Context, req generation.Request) (adapter.ImageOutput, error) {
	out, primaryErr := r.primary.Generate(ctx, req)
	if primaryErr == nil && out.URL != "" {
		return out, nil
	}

	primaryKind := generation.ErrorGenerationFailed
	var primaryDiag string
	switch {
	case primaryErr != nil:
		primaryKind = generation.KindOf(primaryErr)
		primaryDiag = fmt.Sprintf("primary %s: %v", out.ModelID, primaryErr)
	default:
		primaryDiag = fmt.Sprintf("primary %s: completed with no image URL", out.ModelID)
	}

	r.logger.Warn("primary image generation failed, trying fallback",
		slog.String("model", out.ModelID),
		slog.String("error_kind", string(primaryKind)),
		slog.String("diagnostic", primaryDiag),
	)

	fbReq := req
	fbReq.ModelHint = ""
	fbOut, fbErr := r.fallback.Generate(ctx, fbReq)
	if fbErr == nil && fbOut.URL != "" {
		r.logger.Info("fallback image generation succeeded",
			slog.String("model", fbOut.ModelID),
		)
		return fbOut, nil
	}

	var fbDiag string
	if fbErr != nil {
		fbDiag = fmt.Sprintf("fallback %s: %v", fbOut.ModelID, fbErr)
	} else {
		fbDiag = fmt.Sprintf("fallback %s: completed with no image URL", fbOut.ModelID)
	}

	// Keep the credit classification when the primary hit a quota wall so
	// the application layer can still prompt for billing action.
	kind := generation.ErrorGenerationFailed
	if primaryKind == generation.ErrorCreditExhausted {
		kind = generation.ErrorCreditExhausted
	}

	snippet := rawSnippet(fbOut.Raw, out.Raw)
	msg := fmt.Sprintf("%s; %s", primaryDiag, fbDiag)
	if snippet != "" {
		msg = fmt.Sprintf("%s; last response: %s", msg, snippet)
	}

	return adapter.ImageOutput{}, generation.NewError(kind, msg)
}

// rawSnippet returns a truncated rendering of the most recent raw provider
// payload, preferring the fallback's response over the primary's.
func rawSnippet(payloads ...map[string]any) string {
	for _, p := range payloads {
		if len(p) == 0 {
			continue
		}
		s := fmt.Sprintf("%v", p)
		if len(s) > maxSnippetLen {
			s = s[:maxSnippetLen] + "..."
		}
		return s
	}
	return ""
}

// Compile-time check that ImageRunner implements ImageGenerator.
var _ adapter.ImageGenerator = (*ImageRunner)(nil)
