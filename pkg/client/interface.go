package client

import (
	"context"

	"github.com/menta2k/wallpaper-planner/pkg/types"
)

// ImageOptions carries fixed output settings for image generation. These are
// configuration choices, not computed values.
type ImageOptions struct {
	AspectRatio string // e.g. "16:9"
	Resolution  string // e.g. "1080p"
}

// VisionBackend is the minimal contract the estimation and visualization
// clients need from a model-serving backend. Implementations return *Error
// with the appropriate Kind for every failure.
type VisionBackend interface {
	// GenerateStructured sends a text instruction plus inline images and
	// returns the model's raw text response, expected to contain JSON.
	GenerateStructured(ctx context.Context, model, prompt string, images []types.InlineImage) (string, error)

	// GenerateImage sends a text instruction plus inline images and returns
	// the first inline image found in the response.
	GenerateImage(ctx context.Context, model, prompt string, images []types.InlineImage, opts ImageOptions) (*types.InlineImage, error)
}
