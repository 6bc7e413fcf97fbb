package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/menta2k/wallpaper-planner/pkg/calibration"
	"github.com/menta2k/wallpaper-planner/pkg/client"
	"github.com/menta2k/wallpaper-planner/pkg/geometry"
	"github.com/menta2k/wallpaper-planner/pkg/types"
)

// Phase enumerates the finite states of one synthesis cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAnalyzing
	PhaseGenerating
	PhaseDone
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAnalyzing:
		return "analyzing"
	case PhaseGenerating:
		return "generating"
	case PhaseDone:
		return "done"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// AnalysisService measures the marked regions and estimates the panel count.
type AnalysisService interface {
	Estimate(ctx context.Context, room, wallpaper types.InlineImage, cal types.Calibration, boxes []types.Box) (*types.EstimationResult, error)
}

// SynthesisService renders the wallpaper onto the measured regions.
type SynthesisService interface {
	Render(ctx context.Context, room, wallpaper types.InlineImage, result *types.EstimationResult) (*types.InlineImage, error)
}

// ValidationError is a local precondition failure. It never reaches an
// external service and is surfaced directly as a user-facing message.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// PhaseListener is called on each phase transition. Listeners run on the
// transitioning goroutine and must not call back into the controller.
type PhaseListener func(prev, next Phase)

// Controller owns the single session's mutable state and orchestrates the
// estimate-then-render sequence. The two service calls are strictly
// sequential; a new Synthesize is only accepted once the previous one has
// reached Done or Error, or after a reset.
type Controller struct {
	mu        sync.Mutex
	logger    *slog.Logger
	analysis  AnalysisService
	synthesis SynthesisService

	phase        Phase
	room         *types.InlineImage
	wallpaper    *types.InlineImage
	editor       *geometry.Editor
	calibration  *calibration.Selector
	result       *types.EstimationResult
	preview      *types.InlineImage
	err          error
	authRequired bool
	listeners    []PhaseListener
}

// NewController creates an idle controller. logger may be nil.
func NewController(analysis AnalysisService, synthesis SynthesisService, logger *slog.Logger) *Controller {
	return &Controller{
		logger:      logger,
		analysis:    analysis,
		synthesis:   synthesis,
		phase:       PhaseIdle,
		editor:      geometry.NewEditor(),
		calibration: calibration.NewSelector(),
	}
}

// Editor returns the box sub-state. The editor must not be used while a
// synthesis request is in flight; a UI is expected to disable drawing outside
// the idle phases.
func (c *Controller) Editor() *geometry.Editor { return c.editor }

// Calibration returns the calibration selector.
func (c *Controller) Calibration() *calibration.Selector { return c.calibration }

// SetRoomImage replaces the room photo. Boxes, result, preview and error are
// derived from that specific photo, so they are cleared as well.
func (c *Controller) SetRoomImage(img types.InlineImage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = &img
	c.editor.ClearAll()
	c.result = nil
	c.preview = nil
	c.err = nil
	c.authRequired = false
	c.setPhase(PhaseIdle)
}

// SetWallpaperImage replaces the wallpaper design image.
func (c *Controller) SetWallpaperImage(img types.InlineImage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallpaper = &img
}

// RoomImage returns the current room photo, if any.
func (c *Controller) RoomImage() *types.InlineImage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// WallpaperImage returns the current wallpaper design image, if any.
func (c *Controller) WallpaperImage() *types.InlineImage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wallpaper
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Result returns the latest estimation result, if any.
func (c *Controller) Result() *types.EstimationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Preview returns the latest rendered preview image, if any.
func (c *Controller) Preview() *types.InlineImage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.preview
}

// Err returns the error slot. At most one error is held at a time.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// AuthRequired reports whether the last failure was a credential problem, so
// the surrounding application can prompt re-authentication.
func (c *Controller) AuthRequired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authRequired
}

// AddListener registers a phase transition listener.
func (c *Controller) AddListener(l PhaseListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Synthesize runs the full estimate-then-render sequence. It validates the
// preconditions, transitions Idle -> Analyzing -> Generating -> Done, and on
// any service failure lands in Error (or back in Idle for credential
// failures). The returned error is also stored in the session's error slot.
func (c *Controller) Synthesize(ctx context.Context) error {
	c.mu.Lock()
	switch c.phase {
	case PhaseIdle, PhaseDone, PhaseError:
	default:
		c.mu.Unlock()
		return &ValidationError{Msg: "a synthesis request is already in progress"}
	}

	// Starting a new attempt clears the prior error.
	c.err = nil
	c.authRequired = false
	c.setPhase(PhaseIdle)

	if verr := c.validateLocked(); verr != nil {
		c.err = verr
		c.mu.Unlock()
		return verr
	}

	room := *c.room
	wallpaper := *c.wallpaper
	cal := c.calibration.Calibration()
	boxes := c.editor.Boxes()
	c.setPhase(PhaseAnalyzing)
	c.mu.Unlock()

	result, err := c.analysis.Estimate(ctx, room, wallpaper, cal, boxes)
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	c.result = result
	c.setPhase(PhaseGenerating)
	c.mu.Unlock()

	preview, err := c.synthesis.Render(ctx, room, wallpaper, result)
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	c.preview = preview
	c.setPhase(PhaseDone)
	c.mu.Unlock()
	return nil
}

// Dismiss acknowledges a displayed error, returning to Idle.
func (c *Controller) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseError {
		c.err = nil
		c.setPhase(PhaseIdle)
	}
}

// Reset restores the initial empty session state from any phase.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = nil
	c.wallpaper = nil
	c.editor.ClearAll()
	c.calibration = calibration.NewSelector()
	c.result = nil
	c.preview = nil
	c.err = nil
	c.authRequired = false
	c.setPhase(PhaseIdle)
}

func (c *Controller) validateLocked() error {
	if c.room == nil {
		return &ValidationError{Msg: "upload a room photo first"}
	}
	if c.wallpaper == nil {
		return &ValidationError{Msg: "upload a wallpaper design first"}
	}
	if c.editor.Count() == 0 {
		return &ValidationError{Msg: "mark at least one wall region"}
	}
	return nil
}

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	if client.IsAuth(err) {
		// Credential failures return to Idle automatically so the caller can
		// prompt for re-authentication instead of showing a generic error.
		c.authRequired = true
		c.setPhase(PhaseError)
		c.setPhase(PhaseIdle)
	} else {
		c.setPhase(PhaseError)
	}
	return err
}

func (c *Controller) setPhase(next Phase) {
	prev := c.phase
	if prev == next {
		return
	}
	c.phase = next
	if c.logger != nil {
		c.logger.Debug("session phase transition", "from", prev.String(), "to", next.String())
	}
	for _, l := range c.listeners {
		l(prev, next)
	}
}
