package visualization

import (
	"context"
	"strings"
	"testing"

	"github.com/menta2k/wallpaper-planner/pkg/client"
	"github.com/menta2k/wallpaper-planner/pkg/types"
)

type fakeBackend struct {
	lastPrompt string
	lastImages []types.InlineImage
	lastOpts   client.ImageOptions
	image      *types.InlineImage
	err        error
}

func (f *fakeBackend) GenerateStructured(ctx context.Context, model, prompt string, images []types.InlineImage) (string, error) {
	return "", nil
}

func (f *fakeBackend) GenerateImage(ctx context.Context, model, prompt string, images []types.InlineImage, opts client.ImageOptions) (*types.InlineImage, error) {
	f.lastPrompt = prompt
	f.lastImages = images
	f.lastOpts = opts
	return f.image, f.err
}

func testResult() *types.EstimationResult {
	return &types.EstimationResult{
		Regions: []types.RegionGeometry{
			{
				Points:  [4][2]float64{{10, 10}, {60, 10}, {60, 40}, {10, 40}},
				WidthCm: 320, HeightCm: 190, AreaSqM: 6.08,
			},
		},
		TotalRollsEstimated: 5,
	}
}

func TestRenderReturnsImage(t *testing.T) {
	preview := &types.InlineImage{Data: []byte("png-bytes"), MediaType: "image/png"}
	backend := &fakeBackend{image: preview}
	c := NewClient(backend, "render-model")

	room := types.InlineImage{Data: []byte("room"), MediaType: "image/jpeg"}
	wallpaper := types.InlineImage{Data: []byte("wp"), MediaType: "image/png"}

	img, err := c.Render(context.Background(), room, wallpaper, testResult())
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if img.MediaType != "image/png" {
		t.Errorf("Expected image/png, got %s", img.MediaType)
	}

	// The request targets the measured region corners, with the fixed output shape.
	if !strings.Contains(backend.lastPrompt, "[[[10,10],[60,10],[60,40],[10,40]]]") {
		t.Errorf("Prompt missing region corner points: %s", backend.lastPrompt)
	}
	if backend.lastOpts.AspectRatio != DefaultAspectRatio {
		t.Errorf("Expected aspect ratio %s, got %s", DefaultAspectRatio, backend.lastOpts.AspectRatio)
	}
	if backend.lastOpts.Resolution != DefaultResolution {
		t.Errorf("Expected resolution %s, got %s", DefaultResolution, backend.lastOpts.Resolution)
	}
	if len(backend.lastImages) != 2 {
		t.Errorf("Expected 2 images in the request, got %d", len(backend.lastImages))
	}
}

func TestRenderFailsWithoutImage(t *testing.T) {
	backend := &fakeBackend{image: &types.InlineImage{}}
	c := NewClient(backend, "render-model")

	_, err := c.Render(context.Background(), types.InlineImage{}, types.InlineImage{}, testResult())
	if err == nil {
		t.Fatal("Expected an error for an empty image payload")
	}
	if !client.IsKind(err, client.KindSynthesis) {
		t.Errorf("Expected a synthesis error, got %v", err)
	}
}

func TestRenderPropagatesBackendError(t *testing.T) {
	backend := &fakeBackend{err: client.NewError(client.KindAuth, "backend", nil)}
	c := NewClient(backend, "render-model")

	_, err := c.Render(context.Background(), types.InlineImage{}, types.InlineImage{}, testResult())
	if !client.IsAuth(err) {
		t.Errorf("Expected the auth error to propagate, got %v", err)
	}
}

func TestRenderRejectsEmptyResult(t *testing.T) {
	backend := &fakeBackend{}
	c := NewClient(backend, "render-model")

	_, err := c.Render(context.Background(), types.InlineImage{}, types.InlineImage{}, &types.EstimationResult{})
	if err == nil {
		t.Fatal("Expected an error for a result with no regions")
	}
	if !client.IsKind(err, client.KindService) {
		t.Errorf("Expected a service error, got %v", err)
	}
}
