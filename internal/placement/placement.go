// Package placement turns pointer drags into overlay positions that stay
// inside the preview viewport.
package placement

import (
	"math"

	"reelforge/internal/overlay"
)

// Point is a pointer position in viewport coordinates.
type Point struct {
	X float64
	Y float64
}

// Viewport is the preview area overlays are authored against.
type Viewport struct {
	Width  float64
	Height float64
}

// Layout is the overlay store a Dragger reads boxes from and writes positions to.
type Layout interface {
	Bounds(id string) (overlay.Rect, bool)
	MoveTo(id string, x, y float64)
}

// Listener is attached when a drag starts and detached when it ends, mirroring
// window-level pointer handlers that only exist while dragging.
type Listener interface {
	Attach()
	Detach()
}

// State is the drag state machine position.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Dragger is a two-state machine {Idle, Dragging(id, offset)}.
type Dragger struct {
	layout   Layout
	viewport Viewport
	listener Listener

	state  State
	id     string
	offset Point
}

// NewDragger builds an idle dragger. listener may be nil.
func NewDragger(layout Layout, viewport Viewport, listener Listener) *Dragger {
	return &Dragger{layout: layout, viewport: viewport, listener: listener}
}

// State reports the current machine state.
func (d *Dragger) State() State {
	return d.state
}

// Target returns the overlay being dragged.
func (d *Dragger) Target() (string, bool) {
	if d.state != Dragging {
		return "", false
	}
	return d.id, true
}

// BeginDrag records the pointer offset from the overlay's top-left corner.
// Unknown ids leave the dragger untouched. Starting a new drag while one is
// active ends the previous drag first.
func (d *Dragger) BeginDrag(id string, p Point) {
	box, ok := d.layout.Bounds(id)
	if !ok {
		return
	}
	if d.state == Dragging {
		d.EndDrag()
	}
	d.id = id
	d.offset = Point{X: p.X - box.X, Y: p.Y - box.Y}
	d.state = Dragging
	if d.listener != nil {
		d.listener.Attach()
	}
}

// Move repositions the dragged overlay so its top-left follows the pointer,
// clamped inside the viewport. It is a no-op while idle or when the overlay
// has been removed mid-drag.
func (d *Dragger) Move(p Point) {
	if d.state != Dragging {
		return
	}
	box, ok := d.layout.Bounds(d.id)
	if !ok {
		return
	}
	box.X = p.X - d.offset.X
	box.Y = p.Y - d.offset.Y
	clamped := Clamp(box, d.viewport)
	d.layout.MoveTo(d.id, clamped.X, clamped.Y)
}

// EndDrag returns to Idle. Calling it while idle does nothing.
func (d *Dragger) EndDrag() {
	if d.state != Dragging {
		return
	}
	d.state = Idle
	d.id = ""
	d.offset = Point{}
	if d.listener != nil {
		d.listener.Detach()
	}
}

// Clamp keeps box fully inside the viewport: 0 <= x <= vw-w and
// 0 <= y <= vh-h. A box larger than the viewport on an axis is pinned to 0.
func Clamp(box overlay.Rect, vp Viewport) overlay.Rect {
	box.X = clampAxis(box.X, vp.Width-box.Width)
	box.Y = clampAxis(box.Y, vp.Height-box.Height)
	return box
}

func clampAxis(v, limit float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v > limit {
		v = limit
	}
	if v < 0 {
		v = 0
	}
	return v
}
