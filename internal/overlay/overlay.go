package overlay

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalid marks overlays that violate geometry or timing invariants.
var ErrInvalid = errors.New("invalid overlay")

// Kind discriminates the overlay variants.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Rect is an axis-aligned box in viewport coordinates.
type Rect struct {
	X      float64 `toml:"x" json:"x"`
	Y      float64 `toml:"y" json:"y"`
	Width  float64 `toml:"width" json:"width"`
	Height float64 `toml:"height" json:"height"`
}

// TextStyle carries the text variant payload.
type TextStyle struct {
	Content       string  `toml:"content" json:"content"`
	FontSize      float64 `toml:"font_size" json:"font_size"`
	Bold          bool    `toml:"bold" json:"bold"`
	Color         string  `toml:"color" json:"color"`
	Background    string  `toml:"background" json:"background"`
	StrokeColor   string  `toml:"stroke_color" json:"stroke_color"`
	StrokeWidth   float64 `toml:"stroke_width" json:"stroke_width"`
	ShadowColor   string  `toml:"shadow_color" json:"shadow_color"`
	ShadowOffsetX float64 `toml:"shadow_offset_x" json:"shadow_offset_x"`
	ShadowOffsetY float64 `toml:"shadow_offset_y" json:"shadow_offset_y"`
}

// ImageSource carries the image variant payload.
type ImageSource struct {
	Path          string `toml:"path" json:"path"`
	NaturalWidth  int    `toml:"natural_width" json:"natural_width"`
	NaturalHeight int    `toml:"natural_height" json:"natural_height"`
}

// Overlay is a timed, positioned layer. Exactly one of Text or Image is set,
// matching Kind. Geometry is authored against the preview viewport; Rotation
// is in degrees clockwise about the box center.
type Overlay struct {
	ID        string       `toml:"id" json:"id"`
	Kind      Kind         `toml:"kind" json:"kind"`
	X         float64      `toml:"x" json:"x"`
	Y         float64      `toml:"y" json:"y"`
	Width     float64      `toml:"width" json:"width"`
	Height    float64      `toml:"height" json:"height"`
	Rotation  float64      `toml:"rotation" json:"rotation"`
	Opacity   float64      `toml:"opacity" json:"opacity"`
	ZIndex    int          `toml:"z_index" json:"z_index"`
	StartTime float64      `toml:"start_time" json:"start_time"`
	EndTime   float64      `toml:"end_time" json:"end_time"`
	Text      *TextStyle   `toml:"text,omitempty" json:"text,omitempty"`
	Image     *ImageSource `toml:"image,omitempty" json:"image,omitempty"`
}

// Bounds returns the overlay box.
func (o Overlay) Bounds() Rect {
	return Rect{X: o.X, Y: o.Y, Width: o.Width, Height: o.Height}
}

// Visible reports whether the overlay is drawn at playhead t. The window is
// half-open: an overlay ending at 5s is absent from the frame sampled at 5s.
func (o Overlay) Visible(t float64) bool {
	return o.StartTime <= t && t < o.EndTime
}

const labelMaxRunes = 32

// Label returns a short human description used in listings.
func (o Overlay) Label() string {
	switch o.Kind {
	case KindText:
		if o.Text == nil {
			return ""
		}
		content := strings.Join(strings.Fields(o.Text.Content), " ")
		if runes := []rune(content); len(runes) > labelMaxRunes {
			content = string(runes[:labelMaxRunes-3]) + "..."
		}
		return content
	case KindImage:
		if o.Image == nil {
			return ""
		}
		return o.Image.Path
	default:
		return ""
	}
}

// Clone returns a deep copy.
func (o Overlay) Clone() Overlay {
	if o.Text != nil {
		text := *o.Text
		o.Text = &text
	}
	if o.Image != nil {
		img := *o.Image
		o.Image = &img
	}
	return o
}

// Validate checks the overlay against a source duration in seconds. A
// non-positive duration skips the upper-bound check.
func (o Overlay) Validate(sourceDuration float64) error {
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalid)
	}
	for name, v := range map[string]float64{
		"x": o.X, "y": o.Y, "width": o.Width, "height": o.Height,
		"rotation": o.Rotation, "opacity": o.Opacity,
		"start_time": o.StartTime, "end_time": o.EndTime,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s %s is not finite", ErrInvalid, o.ID, name)
		}
	}
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: %s size %gx%g must be positive", ErrInvalid, o.ID, o.Width, o.Height)
	}
	if o.Opacity < 0 || o.Opacity > 1 {
		return fmt.Errorf("%w: %s opacity %g outside [0,1]", ErrInvalid, o.ID, o.Opacity)
	}
	if o.StartTime < 0 {
		return fmt.Errorf("%w: %s start_time %g is negative", ErrInvalid, o.ID, o.StartTime)
	}
	if o.StartTime > o.EndTime {
		return fmt.Errorf("%w: %s start_time %g after end_time %g", ErrInvalid, o.ID, o.StartTime, o.EndTime)
	}
	if sourceDuration > 0 && o.EndTime > sourceDuration {
		return fmt.Errorf("%w: %s end_time %g beyond source duration %g", ErrInvalid, o.ID, o.EndTime, sourceDuration)
	}

	switch o.Kind {
	case KindText:
		if o.Text == nil || o.Image != nil {
			return fmt.Errorf("%w: %s text overlay needs a text payload only", ErrInvalid, o.ID)
		}
		if o.Text.FontSize <= 0 {
			return fmt.Errorf("%w: %s font_size must be positive", ErrInvalid, o.ID)
		}
		for _, c := range []string{o.Text.Color, o.Text.Background, o.Text.StrokeColor, o.Text.ShadowColor} {
			if _, err := ParseColor(c); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInvalid, o.ID, err)
			}
		}
	case KindImage:
		if o.Image == nil || o.Text != nil {
			return fmt.Errorf("%w: %s image overlay needs an image payload only", ErrInvalid, o.ID)
		}
		if strings.TrimSpace(o.Image.Path) == "" {
			return fmt.Errorf("%w: %s image path is empty", ErrInvalid, o.ID)
		}
	default:
		return fmt.Errorf("%w: %s unknown kind %q", ErrInvalid, o.ID, o.Kind)
	}
	return nil
}

// DefaultTextStyle returns the style applied to newly added text overlays.
func DefaultTextStyle(content string) TextStyle {
	return TextStyle{
		Content:       content,
		FontSize:      32,
		Color:         "#ffffff",
		Background:    "transparent",
		StrokeColor:   "#000000",
		StrokeWidth:   2,
		ShadowColor:   "#00000099",
		ShadowOffsetX: 2,
		ShadowOffsetY: 2,
	}
}
