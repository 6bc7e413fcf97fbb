package calibration

import (
	"fmt"

	"github.com/menta2k/wallpaper-planner/pkg/types"
)

const (
	// A4LongEdgeCm is the long edge of an A4 sheet, the fixed size used when
	// the A4 reference is selected.
	A4LongEdgeCm = 29.7

	// DefaultDoorHeightCm is the initial user-editable door frame height.
	DefaultDoorHeightCm = 210

	// DefaultMaxHeightCm bounds user-entered reference heights.
	DefaultMaxHeightCm = 500
)

// Selector holds the chosen reference object type and the numeric height used
// for scale derivation. Switching to A4 forces the resolved height to the fixed
// sheet size; switching back to door frame restores the last custom value.
type Selector struct {
	reference    types.ReferenceType
	doorHeightCm float64
	maxHeightCm  float64
}

// NewSelector creates a selector defaulting to a 210 cm door frame.
func NewSelector() *Selector {
	return NewSelectorWithMaxHeight(DefaultMaxHeightCm)
}

// NewSelectorWithMaxHeight creates a selector with a custom upper bound for
// user-entered heights.
func NewSelectorWithMaxHeight(maxCm float64) *Selector {
	return &Selector{
		reference:    types.ReferenceDoorFrame,
		doorHeightCm: DefaultDoorHeightCm,
		maxHeightCm:  maxCm,
	}
}

// SetReference switches the reference object type. The stored custom door
// height is kept so it can be restored when switching back.
func (s *Selector) SetReference(t types.ReferenceType) {
	s.reference = t
}

// Reference returns the current reference object type.
func (s *Selector) Reference() types.ReferenceType {
	return s.reference
}

// SetCustomHeight sets the door frame height in centimeters. The value must be
// positive and at most the configured maximum.
func (s *Selector) SetCustomHeight(cm float64) error {
	if cm <= 0 || cm > s.maxHeightCm {
		return fmt.Errorf("reference height %.1f cm out of range (0, %.0f]", cm, s.maxHeightCm)
	}
	s.doorHeightCm = cm
	return nil
}

// ResolvedHeightCm returns the real-world size in centimeters to send to the
// analysis service: the fixed A4 long edge in A4 mode, otherwise the current
// custom door height.
func (s *Selector) ResolvedHeightCm() float64 {
	if s.reference == types.ReferenceA4Paper {
		return A4LongEdgeCm
	}
	return s.doorHeightCm
}

// Calibration returns the reference type plus resolved height as a Calibration.
func (s *Selector) Calibration() types.Calibration {
	return types.Calibration{
		ReferenceType: s.reference,
		RealWorldCm:   s.ResolvedHeightCm(),
	}
}
