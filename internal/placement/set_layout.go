package placement

import "reelforge/internal/overlay"

type setLayout struct {
	set *overlay.Set
}

// SetLayout adapts an overlay.Set to the Layout a Dragger drives.
func SetLayout(set *overlay.Set) Layout {
	return setLayout{set: set}
}

func (l setLayout) Bounds(id string) (overlay.Rect, bool) {
	o, ok := l.set.Get(id)
	if !ok {
		return overlay.Rect{}, false
	}
	return o.Bounds(), true
}

func (l setLayout) MoveTo(id string, x, y float64) {
	if o, ok := l.set.Get(id); ok {
		o.X = x
		o.Y = y
	}
}
