package types

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"
)

// ReferenceType identifies the real-world object used to derive the
// pixels-per-centimeter scale from the room photo.
type ReferenceType string

const (
	ReferenceA4Paper   ReferenceType = "A4_PAPER"
	ReferenceDoorFrame ReferenceType = "DOOR_FRAME"
)

// Point is a position in percent of the rendered image size, each axis in [0,100].
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is a rectangle given by two opposite corners in draw order. Start and End
// are not ordered; min/max must be derived on read.
type Box struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Width returns the absolute horizontal extent of the box.
func (b Box) Width() float64 { return math.Abs(b.End.X - b.Start.X) }

// Height returns the absolute vertical extent of the box.
func (b Box) Height() float64 { return math.Abs(b.End.Y - b.Start.Y) }

// Corners returns the four corner points ordered top-left, top-right,
// bottom-right, bottom-left in normalized space.
func (b Box) Corners() [4]Point {
	minX := math.Min(b.Start.X, b.End.X)
	maxX := math.Max(b.Start.X, b.End.X)
	minY := math.Min(b.Start.Y, b.End.Y)
	maxY := math.Max(b.Start.Y, b.End.Y)
	return [4]Point{
		{X: minX, Y: minY},
		{X: maxX, Y: minY},
		{X: maxX, Y: maxY},
		{X: minX, Y: maxY},
	}
}

// Calibration is the chosen reference object plus the resolved real-world size
// in centimeters used for scale derivation.
type Calibration struct {
	ReferenceType ReferenceType `json:"reference_type"`
	RealWorldCm   float64       `json:"real_world_cm"`
}

// WallpaperSpec describes the master asset dimensions and the fixed roll
// geometry. Roll width is fixed at 70 cm per design rule; roll length is
// informational.
type WallpaperSpec struct {
	MasterWidthCm  float64 `json:"master_width_cm"`
	MasterHeightCm float64 `json:"master_height_cm"`
	RollWidthCm    float64 `json:"roll_width_cm"`
	RollLengthCm   float64 `json:"roll_length_cm"`
}

// RegionGeometry is one measured wall region as reported by the analysis
// service: four corner points in 0-100 normalized coordinates plus the
// service-computed real-world dimensions.
type RegionGeometry struct {
	Points   [4][2]float64 `json:"points"`
	WidthCm  float64       `json:"width_cm"`
	HeightCm float64       `json:"height_cm"`
	AreaSqM  float64       `json:"area_sq_m"`
}

// EstimationResult is the parsed analysis response. Regions preserve the order
// the boxes were drawn in. TotalRollsEstimated counts unique 70 cm-wide panels
// across all regions.
type EstimationResult struct {
	Calibration         Calibration      `json:"calibration"`
	Wallpaper           WallpaperSpec    `json:"wallpaper"`
	Regions             []RegionGeometry `json:"regions"`
	TotalRollsEstimated int              `json:"total_rolls_estimated"`
}

// InlineImage is a binary image payload with its declared media type.
type InlineImage struct {
	Data      []byte `json:"data"`
	MediaType string `json:"media_type"`
}

// DataURI renders the image as a displayable data URI.
func (i InlineImage) DataURI() string {
	return "data:" + i.MediaType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// ParseDataURI decodes a base64 data URI into an InlineImage.
func ParseDataURI(uri string) (InlineImage, error) {
	if !strings.HasPrefix(uri, "data:") {
		return InlineImage{}, fmt.Errorf("not a data URI")
	}
	rest := uri[len("data:"):]
	sep := strings.Index(rest, ";base64,")
	if sep < 0 {
		return InlineImage{}, fmt.Errorf("data URI is not base64 encoded")
	}
	mediaType := rest[:sep]
	data, err := base64.StdEncoding.DecodeString(rest[sep+len(";base64,"):])
	if err != nil {
		return InlineImage{}, fmt.Errorf("failed to decode data URI payload: %w", err)
	}
	return InlineImage{Data: data, MediaType: mediaType}, nil
}
