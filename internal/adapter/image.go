package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/scriptoplay/engine/internal/extract"
	"github.com/scriptoplay/engine/internal/falqueue"
	"github.com/scriptoplay/engine/internal/generation"
)

// DefaultImageModel is used when the request carries no model hint.
const DefaultImageModel = "fal-ai/flux/dev"

// aspectRatioEnum maps the wizard's "W:H" aspect ratio values to the image
// provider's own enum.
var aspectRatioEnum = map[string]string{
	"16:9": "landscape_16_9",
	"9:16": "portrait_16_9",
	"4:3":  "landscape_4_3",
	"3:4":  "portrait_4_3",
	"1:1":  "square_hd",
}

// ImageAdapter adapts the queue client's synchronous run endpoint to image
// generation requests.
type ImageAdapter struct {
	client       falqueue.Client
	defaultModel string
}

// NewImageAdapter creates a new image adapter. If defaultModel is empty,
// DefaultImageModel is used.
func NewImageAdapter(client falqueue.Client, defaultModel string) *ImageAdapter {
	if defaultModel == "" {
		defaultModel = DefaultImageModel
	}
	return &ImageAdapter{client: client, defaultModel: defaultModel}
}

// Generate runs a synchronous image generation and extracts the artifact
// URL. An empty URL with a nil error means the provider answered but no
// known response shape matched; retries and fallback are the policy
// layer's job, not this adapter's.
func (a *ImageAdapter) Generate(ctx context.Context, req generation.Request) (ImageOutput, error) {
	modelID := req.ModelHint
	if modelID == "" {
		modelID = a.defaultModel
	}

	input := buildImageInput(req)

	payload, err := a.client.Run(ctx, modelID, input)
	if err != nil {
		return ImageOutput{ModelID: modelID}, classifyClientError(err, fmt.Errorf("image adapter run %s: %w", modelID, err))
	}

	return ImageOutput{
		URL:     extract.FirstURL(payload, extract.ImageStrategies),
		ModelID: modelID,
		Raw:     payload,
	}, nil
}

// buildImageInput is a pure transform from a generation request to the
// provider payload. Optional reference fields are omitted when absent
// rather than sent as null.
func buildImageInput(req generation.Request) map[string]any {
	input := map[string]any{
		"prompt":     req.Prompt,
		"num_images": 1,
	}

	if ratio, ok := req.Constraint("aspect_ratio"); ok {
		if enum, known := aspectRatioEnum[ratio]; known {
			input["image_size"] = enum
		} else {
			input["image_size"] = ratio
		}
	}
	if styleRef, ok := req.Reference("style_ref"); ok {
		input["image_url"] = styleRef
	}
	if charRef, ok := req.Reference("char_ref"); ok {
		input["reference_image_url"] = charRef
	}

	return input
}

// classifyClientError tags provider HTTP failures with an ErrorKind so the
// policy layer can distinguish exhausted credits from generic failures.
// wrapped is the contextual error to carry when no classification applies.
func classifyClientError(err error, wrapped error) error {
	var he *falqueue.HTTPError
	if errors.As(err, &he) {
		kind := generation.ClassifyFailure(he.StatusCode, he.Body)
		return generation.WrapError(kind, wrapped)
	}
	return generation.WrapError(generation.ErrorGenerationFailed, wrapped)
}

// Compile-time check that ImageAdapter implements ImageGenerator.
var _ ImageGenerator = (*ImageAdapter)(nil)
