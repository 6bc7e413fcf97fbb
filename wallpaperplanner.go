// Package wallpaperplanner estimates wallpaper panel counts for marked wall
// regions on a room photo and produces AI-rendered previews.
//
// The user marks rectangular wall regions on the photo in normalized (0-100)
// percent coordinates, picks a real-world calibration reference (an A4 sheet
// or a door frame of known height), and triggers a synthesis run. An external
// analysis service measures the regions and counts the fixed-width 70 cm
// panels needed; an external synthesis service then renders the wallpaper
// onto exactly those regions.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		wallpaperplanner "github.com/menta2k/wallpaper-planner"
//		"github.com/menta2k/wallpaper-planner/pkg/openaicompat"
//	)
//
//	func main() {
//		backend, err := openaicompat.NewClient("http://localhost:8080", "")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		planner := wallpaperplanner.New(backend, "my-vision-model", "my-render-model", nil)
//
//		if err := planner.LoadRoomImage("room.jpg"); err != nil {
//			log.Fatal(err)
//		}
//		if err := planner.LoadWallpaperImage("wallpaper.png"); err != nil {
//			log.Fatal(err)
//		}
//
//		planner.MarkRegion(10, 10, 60, 40)
//		if err := planner.UseDoorFrame(210); err != nil {
//			log.Fatal(err)
//		}
//
//		result, err := planner.Synthesize(context.Background())
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		log.Printf("need %d rolls", result.TotalRolls)
//	}
//
// The package consists of these components:
//
// 1. Geometry editor (pkg/geometry): normalized-coordinate box drawing and editing
// 2. Calibration selector (pkg/calibration): reference object and real-world size
// 3. Estimation client (pkg/estimation): request shaping and response parsing
// 4. Visualization client (pkg/visualization): preview rendering
// 5. Session controller (pkg/session): state machine orchestrating one session
// 6. Backends (pkg/ollama, pkg/openaicompat): interchangeable model servers
package wallpaperplanner

import (
	"context"
	"log/slog"

	"github.com/menta2k/wallpaper-planner/pkg/calibration"
	"github.com/menta2k/wallpaper-planner/pkg/client"
	"github.com/menta2k/wallpaper-planner/pkg/estimation"
	"github.com/menta2k/wallpaper-planner/pkg/geometry"
	"github.com/menta2k/wallpaper-planner/pkg/processing"
	"github.com/menta2k/wallpaper-planner/pkg/session"
	"github.com/menta2k/wallpaper-planner/pkg/types"
	"github.com/menta2k/wallpaper-planner/pkg/visualization"
)

// Version of the wallpaper planner library
const Version = "1.0.0"

// Default preparation settings for images sent to the services.
const (
	DefaultSendMaxDim  = 1536
	DefaultSendQuality = 85
)

// Result is the outcome of one successful synthesis run.
type Result struct {
	TotalRolls int                    `json:"total_rolls"`
	Regions    []types.RegionGeometry `json:"regions"`
	Preview    types.InlineImage      `json:"preview"`
}

// Planner provides a high-level interface over the session controller.
type Planner struct {
	controller *session.Controller
	processor  *processing.Processor
}

// New creates a Planner on a single vision backend serving both the analysis
// and synthesis models. logger may be nil.
func New(backend client.VisionBackend, analysisModel, synthesisModel string, logger *slog.Logger) *Planner {
	return NewWithServices(
		estimation.NewClient(backend, analysisModel),
		visualization.NewClient(backend, synthesisModel),
		logger,
	)
}

// NewWithServices creates a Planner on explicit service implementations,
// which also allows substituting deterministic test doubles.
func NewWithServices(analysis session.AnalysisService, synthesis session.SynthesisService, logger *slog.Logger) *Planner {
	return &Planner{
		controller: session.NewController(analysis, synthesis, logger),
		processor:  processing.NewProcessor(),
	}
}

// LoadRoomImage loads the room photo from a file path or URL, downscaled and
// re-encoded for the services. Any previously marked regions and results are
// cleared.
func (p *Planner) LoadRoomImage(source string) error {
	img, err := p.loadPrepared(source)
	if err != nil {
		return err
	}
	p.controller.SetRoomImage(img)
	return nil
}

// LoadWallpaperImage loads the wallpaper master design from a file path or URL.
func (p *Planner) LoadWallpaperImage(source string) error {
	img, err := p.loadPrepared(source)
	if err != nil {
		return err
	}
	p.controller.SetWallpaperImage(img)
	return nil
}

func (p *Planner) loadPrepared(source string) (types.InlineImage, error) {
	img, err := p.processor.LoadInlineImageSmart(source)
	if err != nil {
		return types.InlineImage{}, err
	}
	return p.processor.PrepareForModel(img, DefaultSendMaxDim, DefaultSendQuality)
}

// MarkRegion draws and commits one region box between two opposite corners in
// percent coordinates. Reports whether the box was large enough to commit.
func (p *Planner) MarkRegion(x0, y0, x1, y1 float64) bool {
	editor := p.controller.Editor()
	editor.BeginBox(types.Point{X: x0, Y: y0})
	editor.UpdateBox(types.Point{X: x1, Y: y1})
	return editor.CommitBox()
}

// UndoRegion removes the most recently marked region.
func (p *Planner) UndoRegion() {
	p.controller.Editor().UndoLast()
}

// ClearRegions removes all marked regions.
func (p *Planner) ClearRegions() {
	p.controller.Editor().ClearAll()
}

// UseA4Reference calibrates against a sheet of A4 paper (29.7 cm long edge).
func (p *Planner) UseA4Reference() {
	p.controller.Calibration().SetReference(types.ReferenceA4Paper)
}

// UseDoorFrame calibrates against a door frame of the given height in
// centimeters.
func (p *Planner) UseDoorFrame(heightCm float64) error {
	cal := p.controller.Calibration()
	cal.SetReference(types.ReferenceDoorFrame)
	return cal.SetCustomHeight(heightCm)
}

// Synthesize runs the full estimate-then-render sequence and returns the
// panel count plus the rendered preview.
func (p *Planner) Synthesize(ctx context.Context) (*Result, error) {
	if err := p.controller.Synthesize(ctx); err != nil {
		return nil, err
	}
	res := p.controller.Result()
	preview := p.controller.Preview()
	return &Result{
		TotalRolls: res.TotalRollsEstimated,
		Regions:    res.Regions,
		Preview:    *preview,
	}, nil
}

// RegionOverlay renders the marked regions over the room photo for inspection,
// returned as an inline PNG so it can be displayed via DataURI.
func (p *Planner) RegionOverlay() (types.InlineImage, error) {
	room := p.controller.RoomImage()
	if room == nil {
		return types.InlineImage{}, &session.ValidationError{Msg: "upload a room photo first"}
	}
	img, err := p.processor.RegionOverlay(*room, p.controller.Editor().Boxes())
	if err != nil {
		return types.InlineImage{}, err
	}
	return p.processor.EncodePNG(img)
}

// Reset restores the initial empty session state.
func (p *Planner) Reset() {
	p.controller.Reset()
}

// Session exposes the underlying session controller for phase listeners and
// direct editor access.
func (p *Planner) Session() *session.Controller {
	return p.controller
}

// Editor exposes the geometry editor for pointer-driven drawing.
func (p *Planner) Editor() *geometry.Editor {
	return p.controller.Editor()
}

// Calibration exposes the calibration selector.
func (p *Planner) Calibration() *calibration.Selector {
	return p.controller.Calibration()
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
