package visualization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/menta2k/wallpaper-planner/pkg/client"
	"github.com/menta2k/wallpaper-planner/pkg/types"
)

const (
	// DefaultAspectRatio is the fixed output aspect ratio for previews.
	DefaultAspectRatio = "16:9"
	// DefaultResolution is the standard resolution tier for previews.
	DefaultResolution = "1080p"
)

const promptTemplate = `You are a photorealistic interior visualization renderer. The first image
is a room photo, the second image is the wallpaper master design.

Apply the wallpaper design to exactly these wall regions, given as four [x,y]
corners each, in percent of image width/height:
%s

The wallpaper pattern must flow continuously across each region with correct
perspective, occlusion by foreground objects, and the lighting of the original
photo. Leave everything outside the regions untouched.

Return a single rendered image of the full room.`

// Client shapes render requests for an external synthesis service and
// extracts the resulting preview image.
type Client struct {
	backend client.VisionBackend
	model   string
	opts    client.ImageOptions
}

// NewClient creates a visualization client with the fixed widescreen output
// settings.
func NewClient(backend client.VisionBackend, model string) *Client {
	return NewClientWithOptions(backend, model, client.ImageOptions{
		AspectRatio: DefaultAspectRatio,
		Resolution:  DefaultResolution,
	})
}

// NewClientWithOptions creates a visualization client with custom output
// settings.
func NewClientWithOptions(backend client.VisionBackend, model string, opts client.ImageOptions) *Client {
	return &Client{backend: backend, model: model, opts: opts}
}

// Render asks the synthesis service to apply the wallpaper to the measured
// regions from the estimation result. The region corner points come from the
// result, not from the raw boxes, so the rendering targets exactly the
// measured regions.
func (c *Client) Render(ctx context.Context, room, wallpaper types.InlineImage, result *types.EstimationResult) (*types.InlineImage, error) {
	if result == nil || len(result.Regions) == 0 {
		return nil, client.NewError(client.KindService, "visualization.Render", errors.New("estimation result has no regions"))
	}

	points := make([][4][2]float64, len(result.Regions))
	for i, r := range result.Regions {
		points[i] = r.Points
	}
	regionJSON, err := json.Marshal(points)
	if err != nil {
		return nil, client.NewError(client.KindService, "visualization.Render", fmt.Errorf("failed to encode regions: %w", err))
	}

	prompt := fmt.Sprintf(promptTemplate, string(regionJSON))
	img, err := c.backend.GenerateImage(ctx, c.model, prompt, []types.InlineImage{room, wallpaper}, c.opts)
	if err != nil {
		return nil, err
	}
	if img == nil || len(img.Data) == 0 {
		return nil, client.NewError(client.KindSynthesis, "visualization.Render", errors.New("no image payload in response"))
	}
	return img, nil
}
