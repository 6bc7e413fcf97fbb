package estimation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/menta2k/wallpaper-planner/pkg/client"
	"github.com/menta2k/wallpaper-planner/pkg/types"
)

// RollWidthCm is the fixed width of one wallpaper panel. It is a design rule
// communicated to the analysis service so its strip math matches billing:
// strips per region = ceil(region width / 70), partial strips count as one.
const RollWidthCm = 70

const promptTemplate = `You are a wall measurement assistant. The first image is a room photo,
the second image is the wallpaper master design.

The photo contains a %s with a known real-world size of %.1f cm (its longest visible edge).
Use it to derive the scale of the scene.

The user marked these wall regions. Coordinates are percentages of image
width/height in [0,100], each region listed as four [x,y] corners ordered
top-left, top-right, bottom-right, bottom-left:
%s

For each region, estimate its real-world width and height in centimeters and
its area in square meters, correcting for perspective.

Wallpaper panels are vertical strips exactly %.0f cm wide. For each region the
number of strips is ceil(region_width_cm / %.0f); a partial final strip counts
as one full strip. total_rolls_estimated is the sum over all regions.

Return JSON only, all fields required, regions in the given order:
{
  "calibration": {"reference_type": "%s", "real_world_cm": %.1f},
  "wallpaper": {"master_width_cm": 0.0, "master_height_cm": 0.0, "roll_width_cm": %.0f, "roll_length_cm": 0.0},
  "regions": [{"points": [[0,0],[0,0],[0,0],[0,0]], "width_cm": 0.0, "height_cm": 0.0, "area_sq_m": 0.0}],
  "total_rolls_estimated": 0
}
No markdown, no code fences, no comments, no trailing commas.`

// Client shapes estimation requests for an external analysis service and
// parses its structured responses. The visual measurement itself is entirely
// delegated to the service.
type Client struct {
	backend     client.VisionBackend
	model       string
	rollWidthCm float64
}

// NewClient creates an estimation client with the fixed 70 cm roll width.
func NewClient(backend client.VisionBackend, model string) *Client {
	return &Client{backend: backend, model: model, rollWidthCm: RollWidthCm}
}

// Estimate sends the room photo, wallpaper design, calibration and committed
// boxes to the analysis service and returns the parsed result. The caller is
// responsible for the preconditions: both images present and boxes non-empty.
func (c *Client) Estimate(ctx context.Context, room, wallpaper types.InlineImage, cal types.Calibration, boxes []types.Box) (*types.EstimationResult, error) {
	prompt, err := buildPrompt(cal, CornerPoints(boxes), c.rollWidthCm)
	if err != nil {
		return nil, client.NewError(client.KindService, "estimation.Estimate", err)
	}

	raw, err := c.backend.GenerateStructured(ctx, c.model, prompt, []types.InlineImage{room, wallpaper})
	if err != nil {
		return nil, err
	}

	return parseEstimation(raw)
}

// CornerPoints converts each box into its four corner points in the fixed
// order top-left, top-right, bottom-right, bottom-left.
func CornerPoints(boxes []types.Box) [][4]types.Point {
	out := make([][4]types.Point, len(boxes))
	for i, b := range boxes {
		out[i] = b.Corners()
	}
	return out
}

// StripsForWidth returns the number of fixed-width strips covering a region of
// the given horizontal width. Used to sanity-check service responses in tests.
func StripsForWidth(widthCm, rollWidthCm float64) int {
	if widthCm <= 0 || rollWidthCm <= 0 {
		return 0
	}
	return int(math.Ceil(widthCm / rollWidthCm))
}

func buildPrompt(cal types.Calibration, corners [][4]types.Point, rollWidthCm float64) (string, error) {
	regions := make([][][2]float64, len(corners))
	for i, c := range corners {
		regions[i] = [][2]float64{
			{c[0].X, c[0].Y},
			{c[1].X, c[1].Y},
			{c[2].X, c[2].Y},
			{c[3].X, c[3].Y},
		}
	}
	regionJSON, err := json.Marshal(regions)
	if err != nil {
		return "", fmt.Errorf("failed to encode regions: %w", err)
	}

	referenceName := "door frame"
	if cal.ReferenceType == types.ReferenceA4Paper {
		referenceName = "sheet of A4 paper"
	}

	return fmt.Sprintf(promptTemplate,
		referenceName, cal.RealWorldCm,
		string(regionJSON),
		rollWidthCm, rollWidthCm,
		cal.ReferenceType, cal.RealWorldCm, rollWidthCm,
	), nil
}

// estimationPayload mirrors the response contract with pointer fields so that
// omitted required fields are detectable after unmarshaling.
type estimationPayload struct {
	Calibration *struct {
		ReferenceType *string  `json:"reference_type"`
		RealWorldCm   *float64 `json:"real_world_cm"`
	} `json:"calibration"`
	Wallpaper *struct {
		MasterWidthCm  *float64 `json:"master_width_cm"`
		MasterHeightCm *float64 `json:"master_height_cm"`
		RollWidthCm    *float64 `json:"roll_width_cm"`
		RollLengthCm   *float64 `json:"roll_length_cm"`
	} `json:"wallpaper"`
	Regions []struct {
		Points   [][2]float64 `json:"points"`
		WidthCm  *float64     `json:"width_cm"`
		HeightCm *float64     `json:"height_cm"`
		AreaSqM  *float64     `json:"area_sq_m"`
	} `json:"regions"`
	TotalRollsEstimated *int `json:"total_rolls_estimated"`
}

func parseEstimation(raw string) (*types.EstimationResult, error) {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return nil, client.NewError(client.KindParse, "estimation.Estimate", errors.New("no JSON object in response"))
	}

	var payload estimationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, client.NewError(client.KindParse, "estimation.Estimate", fmt.Errorf("malformed response: %w", err))
	}

	if err := validatePayload(&payload); err != nil {
		return nil, client.NewError(client.KindParse, "estimation.Estimate", err)
	}

	result := &types.EstimationResult{
		Calibration: types.Calibration{
			ReferenceType: types.ReferenceType(*payload.Calibration.ReferenceType),
			RealWorldCm:   *payload.Calibration.RealWorldCm,
		},
		Wallpaper: types.WallpaperSpec{
			MasterWidthCm:  *payload.Wallpaper.MasterWidthCm,
			MasterHeightCm: *payload.Wallpaper.MasterHeightCm,
			RollWidthCm:    *payload.Wallpaper.RollWidthCm,
			RollLengthCm:   *payload.Wallpaper.RollLengthCm,
		},
		TotalRollsEstimated: *payload.TotalRollsEstimated,
	}
	for _, r := range payload.Regions {
		var points [4][2]float64
		copy(points[:], r.Points)
		result.Regions = append(result.Regions, types.RegionGeometry{
			Points:   points,
			WidthCm:  *r.WidthCm,
			HeightCm: *r.HeightCm,
			AreaSqM:  *r.AreaSqM,
		})
	}
	return result, nil
}

func validatePayload(p *estimationPayload) error {
	if p.Calibration == nil || p.Calibration.ReferenceType == nil || p.Calibration.RealWorldCm == nil {
		return errors.New("response missing calibration")
	}
	if p.Wallpaper == nil || p.Wallpaper.MasterWidthCm == nil || p.Wallpaper.MasterHeightCm == nil ||
		p.Wallpaper.RollWidthCm == nil || p.Wallpaper.RollLengthCm == nil {
		return errors.New("response missing wallpaper spec")
	}
	if len(p.Regions) == 0 {
		return errors.New("response missing regions")
	}
	for i, r := range p.Regions {
		if len(r.Points) != 4 {
			return fmt.Errorf("region %d: expected 4 corner points, got %d", i, len(r.Points))
		}
		if r.WidthCm == nil || r.HeightCm == nil || r.AreaSqM == nil {
			return fmt.Errorf("region %d: missing measurements", i)
		}
	}
	if p.TotalRollsEstimated == nil {
		return errors.New("response missing total_rolls_estimated")
	}
	return nil
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from a
// model response before unmarshaling.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	reBlock := regexp.MustCompile(`(?s)/\*.*?\*/`)
	raw = reBlock.ReplaceAllString(raw, "")
	reLine := regexp.MustCompile(`(?m)^\s*//.*$`)
	raw = reLine.ReplaceAllString(raw, "")
	reTrailing := regexp.MustCompile(`,(\s*[}\]])`)
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
