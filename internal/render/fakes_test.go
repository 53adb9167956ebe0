package render_test

import (
	"context"
	"errors"
	"image"
	"image/color"

	"reelforge/internal/render"
)

type fakeSource struct {
	frame  *image.RGBA
	seeks  []float64
	failAt int
	// failErr replaces the default seek error when set.
	failErr error
}

func newFakeSource(w, h int, c color.RGBA) *fakeSource {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return &fakeSource{frame: img, failAt: -1}
}

func (s *fakeSource) Seek(_ context.Context, t float64) (image.Image, error) {
	if s.failAt >= 0 && len(s.seeks) == s.failAt {
		if s.failErr != nil {
			return nil, s.failErr
		}
		return nil, errors.New("seek stalled")
	}
	s.seeks = append(s.seeks, t)
	return s.frame, nil
}

type fakeEncoder struct {
	starts int
	sink   *captureSink
	err    error
}

func (e *fakeEncoder) Start(_ context.Context, w, h, fps int) (render.Sink, error) {
	e.starts++
	if e.err != nil {
		return nil, e.err
	}
	if e.sink == nil {
		e.sink = &captureSink{}
	}
	e.sink.width, e.sink.height, e.sink.fps = w, h, fps
	return e.sink, nil
}

// captureSink records the color at each probe point for every written frame.
type captureSink struct {
	probes  []image.Point
	samples [][]color.RGBA
	frames  int

	width, height, fps int
	closed             bool
	aborted            bool
	writeErrAt         int
	closeErr           error
}

func (s *captureSink) WriteFrame(frame *image.RGBA) error {
	if s.writeErrAt > 0 && s.frames == s.writeErrAt {
		return errors.New("encoder pipe closed")
	}
	row := make([]color.RGBA, len(s.probes))
	for i, p := range s.probes {
		row[i] = frame.RGBAAt(p.X, p.Y)
	}
	s.samples = append(s.samples, row)
	s.frames++
	return nil
}

func (s *captureSink) Close() error {
	if s.closeErr != nil {
		return s.closeErr
	}
	s.closed = true
	return nil
}

func (s *captureSink) Abort() error {
	s.aborted = true
	return nil
}

func solidImage(w, h int, c color.RGBA) image.Image {
	return newFakeSource(w, h, c).frame
}

var (
	gray  = color.RGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xff}
	red   = color.RGBA{R: 0xff, A: 0xff}
	blue  = color.RGBA{B: 0xff, A: 0xff}
	black = color.RGBA{A: 0xff}
)
