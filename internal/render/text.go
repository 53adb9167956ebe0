package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"reelforge/internal/overlay"
)

const strokeSteps = 16

var (
	parseFontsOnce sync.Once
	regularFont    *opentype.Font
	boldFont       *opentype.Font
	parseFontsErr  error
)

func parsedFonts() (*opentype.Font, *opentype.Font, error) {
	parseFontsOnce.Do(func() {
		regularFont, parseFontsErr = opentype.Parse(goregular.TTF)
		if parseFontsErr != nil {
			return
		}
		boldFont, parseFontsErr = opentype.Parse(gobold.TTF)
	})
	return regularFont, boldFont, parseFontsErr
}

type faceKey struct {
	bold bool
	size float64
}

// fontCache keeps one face per weight and pixel size for the lifetime of a job.
type fontCache struct {
	faces map[faceKey]font.Face
}

func newFontCache() *fontCache {
	return &fontCache{faces: make(map[faceKey]font.Face)}
}

func (fc *fontCache) face(bold bool, size float64) (font.Face, error) {
	size = math.Round(size*4) / 4
	key := faceKey{bold: bold, size: size}
	if face, ok := fc.faces[key]; ok {
		return face, nil
	}
	regular, heavy, err := parsedFonts()
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	f := regular
	if bold {
		f = heavy
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
	if err != nil {
		return nil, fmt.Errorf("load font face: %w", err)
	}
	fc.faces[key] = face
	return face, nil
}

// drawText fills the layer background, then draws the centered text in three
// passes sharing one anchor: shadow, stroke, fill.
func (c *compositor) drawText(layer *image.RGBA, style overlay.TextStyle) error {
	background, err := overlay.ParseColor(style.Background)
	if err != nil {
		return err
	}
	if background.A > 0 {
		draw.Draw(layer, layer.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	}

	content := strings.TrimRight(style.Content, "\n")
	if strings.TrimSpace(content) == "" {
		return nil
	}

	fill, err := overlay.ParseColor(style.Color)
	if err != nil {
		return err
	}
	stroke, err := overlay.ParseColor(style.StrokeColor)
	if err != nil {
		return err
	}
	shadow, err := overlay.ParseColor(style.ShadowColor)
	if err != nil {
		return err
	}

	face, err := c.fonts.face(style.Bold, style.FontSize*c.scaleY)
	if err != nil {
		return err
	}

	lines := strings.Split(content, "\n")
	anchors := lineAnchors(face, lines, layer.Bounds())

	if shadow.A > 0 && (style.ShadowOffsetX != 0 || style.ShadowOffsetY != 0) {
		dx := style.ShadowOffsetX * c.scaleX
		dy := style.ShadowOffsetY * c.scaleY
		drawLines(layer, face, lines, anchors, shadow, dx, dy)
	}
	if stroke.A > 0 && style.StrokeWidth > 0 {
		radius := style.StrokeWidth * c.scaleY
		for i := 0; i < strokeSteps; i++ {
			a := 2 * math.Pi * float64(i) / strokeSteps
			drawLines(layer, face, lines, anchors, stroke, radius*math.Cos(a), radius*math.Sin(a))
		}
	}
	drawLines(layer, face, lines, anchors, fill, 0, 0)
	return nil
}

// lineAnchors centers each line horizontally and the block vertically.
func lineAnchors(face font.Face, lines []string, bounds image.Rectangle) []fixed.Point26_6 {
	metrics := face.Metrics()
	lineHeight := metrics.Height
	if lineHeight <= 0 {
		lineHeight = metrics.Ascent + metrics.Descent
	}
	block := lineHeight.Mul(fixed.I(len(lines)))
	top := (fixed.I(bounds.Dy()) - block) / 2

	anchors := make([]fixed.Point26_6, len(lines))
	for i, line := range lines {
		width := font.MeasureString(face, line)
		anchors[i] = fixed.Point26_6{
			X: (fixed.I(bounds.Dx()) - width) / 2,
			Y: top + lineHeight.Mul(fixed.I(i)) + metrics.Ascent,
		}
	}
	return anchors
}

func drawLines(layer *image.RGBA, face font.Face, lines []string, anchors []fixed.Point26_6, c color.NRGBA, dx, dy float64) {
	offset := fixed.Point26_6{X: fixed.Int26_6(math.Round(dx * 64)), Y: fixed.Int26_6(math.Round(dy * 64))}
	drawer := font.Drawer{Dst: layer, Src: image.NewUniform(c), Face: face}
	for i, line := range lines {
		drawer.Dot = anchors[i].Add(offset)
		drawer.DrawString(line)
	}
}
