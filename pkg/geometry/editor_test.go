package geometry

import (
	"testing"

	"github.com/menta2k/wallpaper-planner/pkg/types"
)

func TestMapToNormalizedInsideBounds(t *testing.T) {
	rect := Rect{Left: 100, Top: 50, Width: 800, Height: 600}

	p := MapToNormalized(500, 350, rect)
	if p.X != 50 {
		t.Errorf("Expected x=50, got %f", p.X)
	}
	if p.Y != 50 {
		t.Errorf("Expected y=50, got %f", p.Y)
	}

	// Every position strictly inside the bounds must map into [0,100].
	positions := [][2]float64{
		{101, 51},
		{899, 649},
		{100.5, 649.5},
		{700, 100},
	}
	for _, pos := range positions {
		p := MapToNormalized(pos[0], pos[1], rect)
		if p.X < 0 || p.X > 100 || p.Y < 0 || p.Y > 100 {
			t.Errorf("Position (%f,%f) mapped out of range: (%f,%f)", pos[0], pos[1], p.X, p.Y)
		}
	}
}

func TestMapToNormalizedClampsOutside(t *testing.T) {
	rect := Rect{Left: 100, Top: 50, Width: 800, Height: 600}

	p := MapToNormalized(0, 0, rect)
	if p.X != 0 || p.Y != 0 {
		t.Errorf("Expected clamp to (0,0), got (%f,%f)", p.X, p.Y)
	}

	p = MapToNormalized(2000, 2000, rect)
	if p.X != 100 || p.Y != 100 {
		t.Errorf("Expected clamp to (100,100), got (%f,%f)", p.X, p.Y)
	}

	// Mixed: left of the image but vertically inside.
	p = MapToNormalized(10, 350, rect)
	if p.X != 0 {
		t.Errorf("Expected x clamped to 0, got %f", p.X)
	}
	if p.Y != 50 {
		t.Errorf("Expected y=50, got %f", p.Y)
	}
}

func TestMapToNormalizedDegenerateRect(t *testing.T) {
	p := MapToNormalized(10, 10, Rect{})
	if p.X != 0 || p.Y != 0 {
		t.Errorf("Expected zero point for degenerate rect, got (%f,%f)", p.X, p.Y)
	}
}

func TestCommitBox(t *testing.T) {
	editor := NewEditor()

	editor.BeginBox(types.Point{X: 10, Y: 10})
	editor.UpdateBox(types.Point{X: 60, Y: 40})
	if !editor.Drawing() {
		t.Error("Expected editor to be in drawing state")
	}

	if !editor.CommitBox() {
		t.Error("Expected box to be committed")
	}
	if editor.Drawing() {
		t.Error("Expected drawing state to end after commit")
	}
	if editor.Count() != 1 {
		t.Errorf("Expected 1 committed box, got %d", editor.Count())
	}
}

func TestCommitBoxRejectsZeroSize(t *testing.T) {
	editor := NewEditor()

	// Click and release at the same point: never appends.
	editor.BeginBox(types.Point{X: 25, Y: 25})
	if editor.CommitBox() {
		t.Error("Zero-size box should not be committed")
	}
	if editor.Count() != 0 {
		t.Errorf("Expected 0 committed boxes, got %d", editor.Count())
	}

	// Exactly at the threshold on one axis is still rejected.
	editor.BeginBox(types.Point{X: 10, Y: 10})
	editor.UpdateBox(types.Point{X: 10.5, Y: 40})
	if editor.CommitBox() {
		t.Error("Box at threshold width should not be committed")
	}

	// Just over the threshold on both axes commits.
	editor.BeginBox(types.Point{X: 10, Y: 10})
	editor.UpdateBox(types.Point{X: 10.6, Y: 10.6})
	if !editor.CommitBox() {
		t.Error("Box exceeding threshold on both axes should be committed")
	}
}

func TestCommitBoxWithoutDrawing(t *testing.T) {
	editor := NewEditor()
	if editor.CommitBox() {
		t.Error("CommitBox without drawing should report false")
	}
}

func TestUpdateBoxWithoutDrawing(t *testing.T) {
	editor := NewEditor()
	editor.UpdateBox(types.Point{X: 50, Y: 50})
	if editor.Drawing() {
		t.Error("UpdateBox must not enter drawing state")
	}
}

func TestUndoLast(t *testing.T) {
	editor := NewEditor()

	// No-op on an empty list.
	editor.UndoLast()
	if editor.Count() != 0 {
		t.Errorf("Expected empty list after undo on empty editor, got %d", editor.Count())
	}

	drawBox(editor, 10, 10, 30, 30)
	drawBox(editor, 40, 40, 60, 60)
	if editor.Count() != 2 {
		t.Fatalf("Expected 2 boxes, got %d", editor.Count())
	}

	editor.UndoLast()
	if editor.Count() != 1 {
		t.Errorf("Expected 1 box after undo, got %d", editor.Count())
	}

	// The remaining box is the first one drawn.
	boxes := editor.Boxes()
	if boxes[0].Start.X != 10 {
		t.Errorf("Expected first drawn box to remain, got start x=%f", boxes[0].Start.X)
	}
}

func TestClearAll(t *testing.T) {
	editor := NewEditor()
	drawBox(editor, 10, 10, 30, 30)
	editor.BeginBox(types.Point{X: 50, Y: 50})

	editor.ClearAll()
	if editor.Count() != 0 {
		t.Errorf("Expected 0 boxes after clear, got %d", editor.Count())
	}
	if editor.Drawing() {
		t.Error("Expected drawing to be cancelled after clear")
	}
}

func TestBoxesReturnsCopy(t *testing.T) {
	editor := NewEditor()
	drawBox(editor, 10, 10, 30, 30)

	boxes := editor.Boxes()
	boxes[0].Start.X = 99

	if editor.Boxes()[0].Start.X != 10 {
		t.Error("Mutating the returned slice must not affect editor state")
	}
}

func TestDrawOrderPreserved(t *testing.T) {
	editor := NewEditor()
	drawBox(editor, 40, 40, 60, 60)
	drawBox(editor, 10, 10, 30, 30)

	boxes := editor.Boxes()
	if boxes[0].Start.X != 40 || boxes[1].Start.X != 10 {
		t.Error("Committed boxes must preserve draw order")
	}
}

func drawBox(e *Editor, x0, y0, x1, y1 float64) {
	e.BeginBox(types.Point{X: x0, Y: y0})
	e.UpdateBox(types.Point{X: x1, Y: y1})
	e.CommitBox()
}
