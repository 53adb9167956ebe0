package overlay

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Set holds the overlays of one editing session in insertion order.
type Set struct {
	items []*Overlay
	nextZ int
}

// NewSet returns an empty overlay set.
func NewSet() *Set {
	return &Set{}
}

// Restore rebuilds a set from persisted overlays. nextZ is raised above every
// stored zIndex so new overlays always stack on top.
func Restore(overlays []Overlay, nextZ int) *Set {
	s := &Set{nextZ: nextZ}
	for _, o := range overlays {
		clone := o.Clone()
		if clone.ID == "" {
			clone.ID = uuid.NewString()
		}
		if clone.ZIndex >= s.nextZ {
			s.nextZ = clone.ZIndex + 1
		}
		s.items = append(s.items, &clone)
	}
	return s
}

// AddText appends a text overlay with the default style.
func (s *Set) AddText(content string, box Rect, start, end float64) *Overlay {
	style := DefaultTextStyle(content)
	return s.add(Overlay{
		Kind:      KindText,
		X:         box.X,
		Y:         box.Y,
		Width:     box.Width,
		Height:    box.Height,
		Opacity:   1,
		StartTime: start,
		EndTime:   end,
		Text:      &style,
	})
}

// AddImage appends an image overlay.
func (s *Set) AddImage(src ImageSource, box Rect, start, end float64) *Overlay {
	return s.add(Overlay{
		Kind:      KindImage,
		X:         box.X,
		Y:         box.Y,
		Width:     box.Width,
		Height:    box.Height,
		Opacity:   1,
		StartTime: start,
		EndTime:   end,
		Image:     &src,
	})
}

func (s *Set) add(o Overlay) *Overlay {
	o.ID = uuid.NewString()
	o.ZIndex = s.nextZ
	s.nextZ++
	stored := o.Clone()
	s.items = append(s.items, &stored)
	return &stored
}

// Get returns the live overlay with the given id.
func (s *Set) Get(id string) (*Overlay, bool) {
	id = strings.TrimSpace(id)
	for _, o := range s.items {
		if o.ID == id {
			return o, true
		}
	}
	return nil, false
}

// Update applies fn to the overlay with the given id.
func (s *Set) Update(id string, fn func(*Overlay)) error {
	o, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("overlay %q not found", id)
	}
	fn(o)
	return nil
}

// Remove deletes the overlay with the given id and reports whether it existed.
func (s *Set) Remove(id string) bool {
	id = strings.TrimSpace(id)
	for i, o := range s.items {
		if o.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Clear discards every overlay, as when the editor closes. The zIndex counter
// keeps counting so stale ids never collide with new stacking values.
func (s *Set) Clear() {
	s.items = nil
}

// Len reports the number of overlays.
func (s *Set) Len() int {
	return len(s.items)
}

// NextZIndex reports the zIndex the next added overlay will receive.
func (s *Set) NextZIndex() int {
	return s.nextZ
}

// All returns copies of every overlay in insertion order.
func (s *Set) All() []Overlay {
	out := make([]Overlay, 0, len(s.items))
	for _, o := range s.items {
		out = append(out, o.Clone())
	}
	return out
}

// Active returns the overlays of the set visible at t, in draw order.
func (s *Set) Active(t float64) []Overlay {
	return Active(s.All(), t)
}

// Active filters overlays visible at t and orders them by ascending zIndex.
// Ties keep their input order, so later insertions draw on top.
func Active(overlays []Overlay, t float64) []Overlay {
	active := make([]Overlay, 0, len(overlays))
	for _, o := range overlays {
		if o.Visible(t) {
			active = append(active, o)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].ZIndex < active[j].ZIndex
	})
	return active
}
