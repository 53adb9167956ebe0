package render

import (
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"reelforge/internal/overlay"
)

// compositor draws overlays onto a canvas, converting preview-space geometry
// into output pixels.
type compositor struct {
	scaleX float64
	scaleY float64
	images map[string]image.Image
	fonts  *fontCache
}

func newCompositor(opts Options, images map[string]image.Image) *compositor {
	sx, sy := 1.0, 1.0
	if opts.PreviewWidth > 0 && opts.PreviewHeight > 0 {
		sx = float64(opts.Width) / opts.PreviewWidth
		sy = float64(opts.Height) / opts.PreviewHeight
	}
	return &compositor{scaleX: sx, scaleY: sy, images: images, fonts: newFontCache()}
}

func (c *compositor) drawOverlays(canvas *image.RGBA, active []overlay.Overlay) error {
	for _, o := range active {
		if err := c.drawOverlay(canvas, o); err != nil {
			return fmt.Errorf("overlay %s: %w", o.ID, err)
		}
	}
	return nil
}

func (c *compositor) drawOverlay(canvas *image.RGBA, o overlay.Overlay) error {
	if o.Opacity <= 0 {
		return nil
	}
	x := o.X * c.scaleX
	y := o.Y * c.scaleY
	w := o.Width * c.scaleX
	h := o.Height * c.scaleY
	lw := max(1, int(math.Round(w)))
	lh := max(1, int(math.Round(h)))

	layer := image.NewRGBA(image.Rect(0, 0, lw, lh))
	switch o.Kind {
	case overlay.KindText:
		if o.Text == nil {
			return errors.New("missing text payload")
		}
		if err := c.drawText(layer, *o.Text); err != nil {
			return err
		}
	case overlay.KindImage:
		if o.Image == nil {
			return errors.New("missing image payload")
		}
		img, ok := c.images[o.Image.Path]
		if !ok {
			return fmt.Errorf("image %s was not preloaded", o.Image.Path)
		}
		drawImage(layer, img)
	default:
		return fmt.Errorf("unknown overlay kind %q", o.Kind)
	}

	if o.Opacity < 1 {
		applyOpacity(layer, o.Opacity)
	}

	angle := math.Mod(o.Rotation, 360)
	if angle == 0 {
		origin := image.Pt(int(math.Round(x)), int(math.Round(y)))
		draw.Draw(canvas, layer.Bounds().Add(origin), layer, image.Point{}, draw.Over)
		return nil
	}

	// Map layer pixels to canvas pixels: translate to the box center, rotate,
	// then translate to the overlay center on the canvas.
	theta := angle * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)
	hw, hh := float64(lw)/2, float64(lh)/2
	cx, cy := x+w/2, y+h/2
	s2d := f64.Aff3{
		cos, -sin, cx - cos*hw + sin*hh,
		sin, cos, cy - sin*hw - cos*hh,
	}
	draw.BiLinear.Transform(canvas, s2d, layer, layer.Bounds(), draw.Over, nil)
	return nil
}

func drawImage(layer *image.RGBA, img image.Image) {
	src := img.Bounds()
	dst := layer.Bounds()
	if src.Dx() == dst.Dx() && src.Dy() == dst.Dy() {
		draw.Draw(layer, dst, img, src.Min, draw.Src)
		return
	}
	draw.CatmullRom.Scale(layer, dst, img, src, draw.Src, nil)
}

// applyOpacity scales every premultiplied channel by alpha.
func applyOpacity(layer *image.RGBA, alpha float64) {
	for i := range layer.Pix {
		layer.Pix[i] = uint8(math.Round(float64(layer.Pix[i]) * alpha))
	}
}
