package session

import (
	"context"
	"errors"
	"testing"

	"github.com/menta2k/wallpaper-planner/pkg/client"
	"github.com/menta2k/wallpaper-planner/pkg/types"
)

type fakeAnalysis struct {
	calls  int
	result *types.EstimationResult
	err    error
}

func (f *fakeAnalysis) Estimate(ctx context.Context, room, wallpaper types.InlineImage, cal types.Calibration, boxes []types.Box) (*types.EstimationResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeSynthesis struct {
	calls      int
	lastResult *types.EstimationResult
	image      *types.InlineImage
	err        error
}

func (f *fakeSynthesis) Render(ctx context.Context, room, wallpaper types.InlineImage, result *types.EstimationResult) (*types.InlineImage, error) {
	f.calls++
	f.lastResult = result
	return f.image, f.err
}

func cannedResult() *types.EstimationResult {
	return &types.EstimationResult{
		Calibration: types.Calibration{ReferenceType: types.ReferenceDoorFrame, RealWorldCm: 210},
		Wallpaper:   types.WallpaperSpec{RollWidthCm: 70},
		Regions: []types.RegionGeometry{
			{Points: [4][2]float64{{10, 10}, {60, 10}, {60, 40}, {10, 40}}, WidthCm: 320, HeightCm: 190, AreaSqM: 6.08},
		},
		TotalRollsEstimated: 5,
	}
}

// blockingAnalysis holds Estimate until released, so tests can observe the
// controller while a request is in flight.
type blockingAnalysis struct {
	started chan struct{}
	release chan struct{}
	result  *types.EstimationResult
}

func newBlockingAnalysis(result *types.EstimationResult) *blockingAnalysis {
	return &blockingAnalysis{
		started: make(chan struct{}),
		release: make(chan struct{}),
		result:  result,
	}
}

func (f *blockingAnalysis) Estimate(ctx context.Context, room, wallpaper types.InlineImage, cal types.Calibration, boxes []types.Box) (*types.EstimationResult, error) {
	close(f.started)
	<-f.release
	return f.result, nil
}

func readyController(analysis AnalysisService, synthesis SynthesisService) *Controller {
	c := NewController(analysis, synthesis, nil)
	c.SetRoomImage(types.InlineImage{Data: []byte("room"), MediaType: "image/jpeg"})
	c.SetWallpaperImage(types.InlineImage{Data: []byte("wp"), MediaType: "image/png"})
	c.Editor().BeginBox(types.Point{X: 10, Y: 10})
	c.Editor().UpdateBox(types.Point{X: 60, Y: 40})
	c.Editor().CommitBox()
	return c
}

func TestSynthesizeSuccess(t *testing.T) {
	analysis := &fakeAnalysis{result: cannedResult()}
	synthesis := &fakeSynthesis{image: &types.InlineImage{Data: []byte("png"), MediaType: "image/png"}}
	c := readyController(analysis, synthesis)

	var phases []Phase
	c.AddListener(func(prev, next Phase) { phases = append(phases, next) })

	if err := c.Synthesize(context.Background()); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if c.Phase() != PhaseDone {
		t.Errorf("Expected Done, got %s", c.Phase())
	}
	if c.Preview() == nil {
		t.Error("Expected a preview image")
	}
	if c.Result() == nil || c.Result().TotalRollsEstimated < 1 {
		t.Error("Expected a result with at least one roll")
	}
	if synthesis.lastResult != analysis.result {
		t.Error("Render must receive the estimation result")
	}

	expected := []Phase{PhaseAnalyzing, PhaseGenerating, PhaseDone}
	if len(phases) != len(expected) {
		t.Fatalf("Expected %d transitions, got %v", len(expected), phases)
	}
	for i, p := range expected {
		if phases[i] != p {
			t.Errorf("Transition %d: expected %s, got %s", i, p, phases[i])
		}
	}
}

func TestSynthesizeRejectedWhileInFlight(t *testing.T) {
	analysis := newBlockingAnalysis(cannedResult())
	synthesis := &fakeSynthesis{image: &types.InlineImage{Data: []byte("png"), MediaType: "image/png"}}
	c := readyController(analysis, synthesis)

	done := make(chan error, 1)
	go func() { done <- c.Synthesize(context.Background()) }()
	<-analysis.started

	if c.Phase() != PhaseAnalyzing {
		t.Fatalf("Expected the first request to be Analyzing, got %s", c.Phase())
	}

	err := c.Synthesize(context.Background())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected a ValidationError for an overlapping request, got %v", err)
	}
	if c.Phase() != PhaseAnalyzing {
		t.Errorf("A rejected overlap must not disturb the in-flight phase, got %s", c.Phase())
	}

	close(analysis.release)
	if err := <-done; err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	if c.Phase() != PhaseDone {
		t.Errorf("Expected the first request to complete to Done, got %s", c.Phase())
	}
	if synthesis.calls != 1 {
		t.Errorf("Expected exactly one render, got %d", synthesis.calls)
	}
}

func TestSynthesizeWithoutBoxes(t *testing.T) {
	analysis := &fakeAnalysis{result: cannedResult()}
	synthesis := &fakeSynthesis{}
	c := NewController(analysis, synthesis, nil)
	c.SetRoomImage(types.InlineImage{Data: []byte("room"), MediaType: "image/jpeg"})
	c.SetWallpaperImage(types.InlineImage{Data: []byte("wp"), MediaType: "image/png"})

	err := c.Synthesize(context.Background())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected a ValidationError, got %v", err)
	}
	if c.Phase() != PhaseIdle {
		t.Errorf("Expected to stay Idle, got %s", c.Phase())
	}
	if analysis.calls != 0 || synthesis.calls != 0 {
		t.Error("No external call may be made when the gate fails")
	}
}

func TestSynthesizeWithoutImages(t *testing.T) {
	c := NewController(&fakeAnalysis{}, &fakeSynthesis{}, nil)

	err := c.Synthesize(context.Background())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected a ValidationError, got %v", err)
	}
}

func TestAnalysisFailure(t *testing.T) {
	analysis := &fakeAnalysis{err: client.NewError(client.KindService, "estimation.Estimate", errors.New("boom"))}
	synthesis := &fakeSynthesis{}
	c := readyController(analysis, synthesis)

	if err := c.Synthesize(context.Background()); err == nil {
		t.Fatal("Expected an error")
	}
	if c.Phase() != PhaseError {
		t.Errorf("Expected Error phase, got %s", c.Phase())
	}
	if synthesis.calls != 0 {
		t.Error("Render must not run after a failed estimate")
	}
	if c.Err() == nil {
		t.Error("Expected the error slot to be set")
	}
}

func TestGenerationFailure(t *testing.T) {
	analysis := &fakeAnalysis{result: cannedResult()}
	synthesis := &fakeSynthesis{err: client.NewError(client.KindSynthesis, "visualization.Render", nil)}
	c := readyController(analysis, synthesis)

	if err := c.Synthesize(context.Background()); err == nil {
		t.Fatal("Expected an error")
	}
	if c.Phase() != PhaseError {
		t.Errorf("Expected Error phase, got %s", c.Phase())
	}
}

func TestAuthFailureReturnsToIdle(t *testing.T) {
	analysis := &fakeAnalysis{err: client.NewError(client.KindAuth, "backend", errors.New("401"))}
	c := readyController(analysis, &fakeSynthesis{})

	if err := c.Synthesize(context.Background()); err == nil {
		t.Fatal("Expected an error")
	}
	if c.Phase() != PhaseIdle {
		t.Errorf("Auth failure must return to Idle, got %s", c.Phase())
	}
	if !c.AuthRequired() {
		t.Error("Expected AuthRequired to be set")
	}
}

func TestNewAttemptClearsPriorError(t *testing.T) {
	analysis := &fakeAnalysis{err: client.NewError(client.KindService, "estimation.Estimate", nil)}
	synthesis := &fakeSynthesis{image: &types.InlineImage{Data: []byte("png"), MediaType: "image/png"}}
	c := readyController(analysis, synthesis)

	_ = c.Synthesize(context.Background())
	if c.Err() == nil {
		t.Fatal("Expected an error after the first attempt")
	}

	analysis.err = nil
	analysis.result = cannedResult()
	if err := c.Synthesize(context.Background()); err != nil {
		t.Fatalf("Second attempt failed: %v", err)
	}
	if c.Err() != nil {
		t.Errorf("Expected the error slot to be cleared, got %v", c.Err())
	}
	if c.Phase() != PhaseDone {
		t.Errorf("Expected Done, got %s", c.Phase())
	}
}

func TestDismiss(t *testing.T) {
	analysis := &fakeAnalysis{err: client.NewError(client.KindService, "estimation.Estimate", nil)}
	c := readyController(analysis, &fakeSynthesis{})

	_ = c.Synthesize(context.Background())
	c.Dismiss()

	if c.Phase() != PhaseIdle {
		t.Errorf("Expected Idle after dismiss, got %s", c.Phase())
	}
	if c.Err() != nil {
		t.Error("Expected the error slot to be cleared")
	}
}

func TestReset(t *testing.T) {
	analysis := &fakeAnalysis{result: cannedResult()}
	synthesis := &fakeSynthesis{image: &types.InlineImage{Data: []byte("png"), MediaType: "image/png"}}
	c := readyController(analysis, synthesis)
	_ = c.Calibration().SetCustomHeight(195)

	if err := c.Synthesize(context.Background()); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	c.Reset()

	if c.Phase() != PhaseIdle {
		t.Errorf("Expected Idle after reset, got %s", c.Phase())
	}
	if c.Result() != nil || c.Preview() != nil || c.Err() != nil {
		t.Error("Expected result, preview and error to be cleared")
	}
	if c.Editor().Count() != 0 {
		t.Error("Expected boxes to be cleared")
	}
	if c.Calibration().ResolvedHeightCm() != 210 {
		t.Errorf("Expected calibration back at defaults, got %f", c.Calibration().ResolvedHeightCm())
	}

	// Synthesize after reset fails the gate again: back to the initial state.
	err := c.Synthesize(context.Background())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected a ValidationError after reset, got %v", err)
	}
}

func TestNewRoomImageClearsDerivedState(t *testing.T) {
	analysis := &fakeAnalysis{result: cannedResult()}
	synthesis := &fakeSynthesis{image: &types.InlineImage{Data: []byte("png"), MediaType: "image/png"}}
	c := readyController(analysis, synthesis)

	if err := c.Synthesize(context.Background()); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	c.SetRoomImage(types.InlineImage{Data: []byte("other"), MediaType: "image/jpeg"})

	if c.Editor().Count() != 0 {
		t.Error("New room photo must clear the boxes")
	}
	if c.Result() != nil || c.Preview() != nil || c.Err() != nil {
		t.Error("New room photo must clear result, preview and error")
	}
	if c.Phase() != PhaseIdle {
		t.Errorf("Expected Idle, got %s", c.Phase())
	}
}
