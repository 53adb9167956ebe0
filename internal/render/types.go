package render

import (
	"context"
	"image"
	"log/slog"
)

// DefaultFPS is the fixed frame rate renders are sampled and encoded at.
const DefaultFPS = 30

// Source yields decoded frames of the source video.
type Source interface {
	// Seek returns the frame displayed at t seconds. The returned image is
	// only valid until the next Seek.
	Seek(ctx context.Context, t float64) (image.Image, error)
}

// Encoder starts a Sink bound to a fixed frame size and rate.
type Encoder interface {
	Start(ctx context.Context, width, height, fps int) (Sink, error)
}

// Sink consumes composited frames in playhead order.
type Sink interface {
	WriteFrame(frame *image.RGBA) error
	// Close finalizes the output container and exposes the file. When Close
	// fails the job calls Abort, so Abort must tolerate a prior Close.
	Close() error
	// Abort discards everything written so far.
	Abort() error
}

// ImageLoader decodes the pixels behind an image overlay.
type ImageLoader func(path string) (image.Image, error)

// Options configures a render job.
type Options struct {
	// Width and Height are the source's natural pixel dimensions; the output
	// uses the same size.
	Width  int
	Height int
	// Duration of the source in seconds.
	Duration float64
	FPS      int
	// PreviewWidth and PreviewHeight describe the viewport overlay geometry was
	// authored against. Zero means the overlays use source pixels.
	PreviewWidth  float64
	PreviewHeight float64
	Loader        ImageLoader
	Logger        *slog.Logger
}

// Progress reports the state of a job after a frame has been written.
type Progress struct {
	Frame    int
	Total    int
	Playhead float64
	Fraction float64
}
