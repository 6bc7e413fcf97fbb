package geometry

import (
	"github.com/menta2k/wallpaper-planner/pkg/types"
)

// MinBoxSize is the minimum committed box width and height on the 0-100 scale.
// Boxes at or below this size are treated as accidental clicks and discarded.
const MinBoxSize = 0.5

// Rect is the rendered image's bounding rectangle in screen pixels, as reported
// by the display surface.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// MapToNormalized converts a raw pointer or touch position over the rendered
// image into a Point in percent coordinates. Each axis is clamped independently
// to [0,100], so positions outside the image bounds never yield out-of-range
// points. Touch input uses the first touch point; the caller passes its raw
// position, the mapping itself is input-source agnostic.
func MapToNormalized(rawX, rawY float64, r Rect) types.Point {
	if r.Width <= 0 || r.Height <= 0 {
		return types.Point{}
	}
	return types.Point{
		X: clamp((rawX-r.Left)/r.Width*100, 0, 100),
		Y: clamp((rawY-r.Top)/r.Height*100, 0, 100),
	}
}

// Editor manages the mutable collection of region boxes for one session:
// an append-only committed list in draw order plus at most one in-progress box.
type Editor struct {
	boxes   []types.Box
	current *types.Box
}

// NewEditor creates an empty editor.
func NewEditor() *Editor {
	return &Editor{}
}

// BeginBox enters drawing state with start and end at the given point.
func (e *Editor) BeginBox(p types.Point) {
	e.current = &types.Box{Start: p, End: p}
}

// UpdateBox moves the end corner of the in-progress box. No-op when not drawing.
func (e *Editor) UpdateBox(p types.Point) {
	if e.current != nil {
		e.current.End = p
	}
}

// CommitBox appends the in-progress box to the committed list when both its
// width and height exceed MinBoxSize. In all cases it exits drawing state and
// discards the in-progress box. Reports whether a box was committed.
func (e *Editor) CommitBox() bool {
	if e.current == nil {
		return false
	}
	box := *e.current
	e.current = nil
	if box.Width() <= MinBoxSize || box.Height() <= MinBoxSize {
		return false
	}
	e.boxes = append(e.boxes, box)
	return true
}

// UndoLast removes the most recently committed box. No-op when none exist.
func (e *Editor) UndoLast() {
	if n := len(e.boxes); n > 0 {
		e.boxes = e.boxes[:n-1]
	}
}

// ClearAll empties the committed list and cancels any in-progress drawing.
func (e *Editor) ClearAll() {
	e.boxes = nil
	e.current = nil
}

// Drawing reports whether a box is currently being drawn.
func (e *Editor) Drawing() bool {
	return e.current != nil
}

// Current returns the in-progress box, if any.
func (e *Editor) Current() (types.Box, bool) {
	if e.current == nil {
		return types.Box{}, false
	}
	return *e.current, true
}

// Boxes returns a copy of the committed boxes in draw order.
func (e *Editor) Boxes() []types.Box {
	out := make([]types.Box, len(e.boxes))
	copy(out, e.boxes)
	return out
}

// Count returns the number of committed boxes.
func (e *Editor) Count() int {
	return len(e.boxes)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
