package render_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"fmt"
	"io"
	"sync"
	"testing"

	"reelforge/internal/overlay"
	"reelforge/internal/render"
	"reelforge/internal/services"
)

func textOverlay(id string, box overlay.Rect, start, end float64, background string) overlay.Overlay {
	style := overlay.DefaultTextStyle("Hi")
	style.FontSize = 12
	style.Background = background
	return overlay.Overlay{
		ID: id, Kind: overlay.KindText,
		X: box.X, Y: box.Y, Width: box.Width, Height: box.Height,
		Opacity: 1, StartTime: start, EndTime: end, Text: &style,
	}
}

func imageOverlay(id, path string, box overlay.Rect, z int) overlay.Overlay {
	return overlay.Overlay{
		ID: id, Kind: overlay.KindImage,
		X: box.X, Y: box.Y, Width: box.Width, Height: box.Height,
		Opacity: 1, ZIndex: z, StartTime: 0, EndTime: 10,
		Image: &overlay.ImageSource{Path: path},
	}
}

func mapLoader(images map[string]image.Image) render.ImageLoader {
	return func(path string) (image.Image, error) {
		img, ok := images[path]
		if !ok {
			return nil, errors.New("image: unknown format")
		}
		return img, nil
	}
}

func TestFrameCount(t *testing.T) {
	cases := []struct {
		duration float64
		fps      int
		want     int
	}{
		{10, 30, 300},
		{1.01, 30, 31},
		{0.01, 30, 1},
		{2.5, 24, 60},
		{0, 30, 0},
		{5, 0, 0},
	}
	for _, tc := range cases {
		if got := render.FrameCount(tc.duration, tc.fps); got != tc.want {
			t.Fatalf("FrameCount(%v, %d) = %d, want %d", tc.duration, tc.fps, got, tc.want)
		}
	}
}

func TestRunWritesCeilFramesInPlayheadOrder(t *testing.T) {
	src := newFakeSource(16, 9, gray)
	enc := &fakeEncoder{}
	job, err := render.NewJob(context.Background(), src, enc, nil, render.Options{Width: 16, Height: 9, Duration: 1.01, FPS: 30})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}

	var last render.Progress
	if err := render.Run(context.Background(), job, func(p render.Progress) { last = p }); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if enc.sink.frames != 31 {
		t.Fatalf("expected 31 frames, got %d", enc.sink.frames)
	}
	if !enc.sink.closed || enc.sink.aborted {
		t.Fatalf("expected finalized output, closed=%v aborted=%v", enc.sink.closed, enc.sink.aborted)
	}
	if enc.sink.fps != 30 || enc.sink.width != 16 || enc.sink.height != 9 {
		t.Fatalf("encoder started with %dx%d@%d", enc.sink.width, enc.sink.height, enc.sink.fps)
	}
	for i := 1; i < len(src.seeks); i++ {
		if src.seeks[i] <= src.seeks[i-1] {
			t.Fatalf("seek %d went backwards: %v after %v", i, src.seeks[i], src.seeks[i-1])
		}
	}
	if last.Fraction != 1 || last.Frame != 31 || last.Total != 31 {
		t.Fatalf("unexpected final progress %#v", last)
	}
	if _, err := job.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after completion, got %v", err)
	}
}

func TestTextOverlayVisibleOnlyInsideWindow(t *testing.T) {
	const w, h = 200, 100
	src := newFakeSource(w, h, gray)
	corner := image.Pt(2, 2)
	enc := &fakeEncoder{sink: &captureSink{probes: []image.Point{corner}}}
	overlays := []overlay.Overlay{textOverlay("caption", overlay.Rect{X: 0, Y: 0, Width: 120, Height: 60}, 0, 5, "#ff0000")}

	job, err := render.NewJob(context.Background(), src, enc, overlays, render.Options{Width: w, Height: h, Duration: 10, FPS: 30})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if err := render.Run(context.Background(), job, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(enc.sink.samples) != 300 {
		t.Fatalf("expected 300 frames, got %d", len(enc.sink.samples))
	}
	for frame, row := range enc.sink.samples {
		playhead := float64(frame) / 30
		got := row[0]
		if playhead < 5 {
			if got != red {
				t.Fatalf("frame %d (%.3fs): expected overlay background, got %#v", frame, playhead, got)
			}
		} else if got != gray {
			t.Fatalf("frame %d (%.3fs): expected source pixel, got %#v", frame, playhead, got)
		}
	}
}

func TestHigherZIndexDrawsOnTop(t *testing.T) {
	const w, h = 40, 40
	box := overlay.Rect{X: 10, Y: 10, Width: 20, Height: 20}
	images := map[string]image.Image{
		"red.png":  solidImage(20, 20, red),
		"blue.png": solidImage(20, 20, blue),
	}
	// Declared out of stacking order to prove zIndex wins over slice order.
	overlays := []overlay.Overlay{
		imageOverlay("top", "blue.png", box, 1),
		imageOverlay("bottom", "red.png", box, 0),
	}
	enc := &fakeEncoder{sink: &captureSink{probes: []image.Point{{X: 20, Y: 20}, {X: 5, Y: 5}}}}

	job, err := render.NewJob(context.Background(), newFakeSource(w, h, gray), enc, overlays, render.Options{Width: w, Height: h, Duration: 1, FPS: 30, Loader: mapLoader(images)})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if err := render.Run(context.Background(), job, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for frame, row := range enc.sink.samples {
		if row[0] != blue {
			t.Fatalf("frame %d: expected zIndex 1 on top, got %#v", frame, row[0])
		}
		if row[1] != gray {
			t.Fatalf("frame %d: expected untouched source outside overlays, got %#v", frame, row[1])
		}
	}
}

func TestPreviewGeometryScalesToSourcePixels(t *testing.T) {
	images := map[string]image.Image{"red.png": solidImage(4, 4, red)}
	overlays := []overlay.Overlay{imageOverlay("logo", "red.png", overlay.Rect{X: 10, Y: 10, Width: 20, Height: 20}, 0)}
	probes := []image.Point{{X: 25, Y: 25}, {X: 15, Y: 15}, {X: 61, Y: 61}, {X: 58, Y: 58}}
	enc := &fakeEncoder{sink: &captureSink{probes: probes}}

	job, err := render.NewJob(context.Background(), newFakeSource(320, 180, gray), enc, overlays, render.Options{
		Width: 320, Height: 180, Duration: 0.1, FPS: 30,
		PreviewWidth: 160, PreviewHeight: 90,
		Loader: mapLoader(images),
	})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if _, err := job.Next(context.Background()); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	row := enc.sink.samples[0]
	if !nearlyRed(row[0]) || !nearlyRed(row[3]) {
		t.Fatalf("expected scaled overlay inside (20,20)-(60,60), got %#v %#v", row[0], row[3])
	}
	if row[1] != gray || row[2] != gray {
		t.Fatalf("expected source outside scaled box, got %#v %#v", row[1], row[2])
	}
}

func TestRotationAndOpacity(t *testing.T) {
	images := map[string]image.Image{"bar.png": solidImage(40, 10, red)}
	rotated := imageOverlay("bar", "bar.png", overlay.Rect{X: 30, Y: 45, Width: 40, Height: 10}, 0)
	rotated.Rotation = 90
	faded := imageOverlay("fade", "bar.png", overlay.Rect{X: 0, Y: 90, Width: 40, Height: 10}, 1)
	faded.Opacity = 0.5

	probes := []image.Point{{X: 50, Y: 35}, {X: 35, Y: 50}, {X: 20, Y: 95}}
	enc := &fakeEncoder{sink: &captureSink{probes: probes}}
	job, err := render.NewJob(context.Background(), newFakeSource(100, 100, black), enc, []overlay.Overlay{rotated, faded}, render.Options{
		Width: 100, Height: 100, Duration: 0.1, FPS: 30, Loader: mapLoader(images),
	})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if _, err := job.Next(context.Background()); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	row := enc.sink.samples[0]
	if row[0].R < 200 {
		t.Fatalf("expected rotated bar to cover (50,35), got %#v", row[0])
	}
	if row[1].R > 20 {
		t.Fatalf("expected rotated bar to leave (35,50) uncovered, got %#v", row[1])
	}
	if row[2].R < 120 || row[2].R > 135 {
		t.Fatalf("expected half-opacity red over black, got %#v", row[2])
	}
}

func TestImageDecodeFailurePreventsRender(t *testing.T) {
	enc := &fakeEncoder{}
	overlays := []overlay.Overlay{imageOverlay("broken", "broken.png", overlay.Rect{Width: 10, Height: 10}, 0)}

	job, err := render.NewJob(context.Background(), newFakeSource(16, 16, gray), enc, overlays, render.Options{
		Width: 16, Height: 16, Duration: 1, Loader: mapLoader(nil),
	})
	if err == nil {
		t.Fatal("expected preload failure")
	}
	if job != nil {
		t.Fatal("expected no job on preload failure")
	}
	if !errors.Is(err, services.ErrResourceLoad) {
		t.Fatalf("expected resource load marker, got %v", err)
	}
	if enc.starts != 0 {
		t.Fatalf("encoder must not start, got %d starts", enc.starts)
	}
}

func TestPreloadDecodesEachPathOnce(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}
	loader := func(path string) (image.Image, error) {
		mu.Lock()
		calls[path]++
		mu.Unlock()
		return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
	}

	var overlays []overlay.Overlay
	for i := 0; i < 12; i++ {
		path := fmt.Sprintf("logo-%d.png", i%6)
		overlays = append(overlays, imageOverlay(fmt.Sprintf("img-%d", i), path, overlay.Rect{Width: 4, Height: 4}, i))
	}

	enc := &fakeEncoder{}
	job, err := render.NewJob(context.Background(), newFakeSource(8, 8, gray), enc, overlays, render.Options{
		Width: 8, Height: 8, Duration: 0.1, Loader: loader,
	})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	job.Abort()
	if len(calls) != 6 {
		t.Fatalf("expected 6 distinct paths decoded, got %d", len(calls))
	}
	for path, n := range calls {
		if n != 1 {
			t.Fatalf("expected %s decoded once, got %d", path, n)
		}
	}
}

func TestPreloadHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	enc := &fakeEncoder{}
	overlays := []overlay.Overlay{imageOverlay("logo", "logo.png", overlay.Rect{Width: 4, Height: 4}, 0)}
	images := map[string]image.Image{"logo.png": image.NewRGBA(image.Rect(0, 0, 4, 4))}

	if _, err := render.NewJob(ctx, newFakeSource(8, 8, gray), enc, overlays, render.Options{
		Width: 8, Height: 8, Duration: 0.1, Loader: mapLoader(images),
	}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if enc.starts != 0 {
		t.Fatalf("encoder must not start, got %d starts", enc.starts)
	}
}

func TestFrameLoopErrorAbortsOutput(t *testing.T) {
	src := newFakeSource(16, 16, gray)
	src.failAt = 3
	enc := &fakeEncoder{}
	job, err := render.NewJob(context.Background(), src, enc, nil, render.Options{Width: 16, Height: 16, Duration: 1})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}

	err = render.Run(context.Background(), job, nil)
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected render failure, got %v", err)
	}
	if !enc.sink.aborted || enc.sink.closed {
		t.Fatalf("expected aborted output, closed=%v aborted=%v", enc.sink.closed, enc.sink.aborted)
	}
	if enc.sink.frames != 3 {
		t.Fatalf("expected 3 frames before failure, got %d", enc.sink.frames)
	}
	if _, again := job.Next(context.Background()); !errors.Is(again, services.ErrRender) {
		t.Fatalf("expected failure to be terminal, got %v", again)
	}
}

func TestSourceRunningDryFailsRender(t *testing.T) {
	src := newFakeSource(16, 16, gray)
	src.failAt = 3
	src.failErr = io.EOF
	enc := &fakeEncoder{}
	job, err := render.NewJob(context.Background(), src, enc, nil, render.Options{Width: 16, Height: 16, Duration: 1})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}

	err = render.Run(context.Background(), job, nil)
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected render failure when the source ends early, got %v", err)
	}
	if enc.sink.closed || !enc.sink.aborted {
		t.Fatalf("expected discarded output, closed=%v aborted=%v", enc.sink.closed, enc.sink.aborted)
	}
	if enc.sink.frames != 3 || job.Total() != 30 {
		t.Fatalf("expected 3 of 30 frames written, got %d of %d", enc.sink.frames, job.Total())
	}
}

func TestFinalizeFailureDiscardsOutput(t *testing.T) {
	enc := &fakeEncoder{sink: &captureSink{closeErr: errors.New("moov atom write failed")}}
	job, err := render.NewJob(context.Background(), newFakeSource(8, 8, gray), enc, nil, render.Options{Width: 8, Height: 8, Duration: 0.1})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}

	err = render.Run(context.Background(), job, nil)
	if !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected finalize failure, got %v", err)
	}
	if !enc.sink.aborted {
		t.Fatal("expected sink aborted after failed close")
	}
	if enc.sink.frames != job.Total() {
		t.Fatalf("expected all %d frames written before finalize, got %d", job.Total(), enc.sink.frames)
	}
	if _, again := job.Next(context.Background()); !errors.Is(again, services.ErrRender) {
		t.Fatalf("expected finalize failure to be terminal, got %v", again)
	}
}

func TestWriteFailureAndCancellationAbort(t *testing.T) {
	enc := &fakeEncoder{sink: &captureSink{writeErrAt: 2}}
	job, err := render.NewJob(context.Background(), newFakeSource(8, 8, gray), enc, nil, render.Options{Width: 8, Height: 8, Duration: 1})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if err := render.Run(context.Background(), job, nil); !errors.Is(err, services.ErrRender) || !enc.sink.aborted {
		t.Fatalf("expected aborted render on write failure, got %v", err)
	}

	enc = &fakeEncoder{}
	job, err = render.NewJob(context.Background(), newFakeSource(8, 8, gray), enc, nil, render.Options{Width: 8, Height: 8, Duration: 1})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = render.Run(ctx, job, nil)
	if !errors.Is(err, context.Canceled) || !enc.sink.aborted {
		t.Fatalf("expected cancelled render to abort, got %v", err)
	}
}

func TestNewJobValidatesOptions(t *testing.T) {
	src := newFakeSource(8, 8, gray)
	if _, err := render.NewJob(context.Background(), src, &fakeEncoder{}, nil, render.Options{Width: 0, Height: 8, Duration: 1}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for zero width, got %v", err)
	}
	if _, err := render.NewJob(context.Background(), src, &fakeEncoder{}, nil, render.Options{Width: 8, Height: 8}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for zero duration, got %v", err)
	}
	enc := &fakeEncoder{err: errors.New("ffmpeg missing")}
	if _, err := render.NewJob(context.Background(), src, enc, nil, render.Options{Width: 8, Height: 8, Duration: 1}); !errors.Is(err, services.ErrRender) {
		t.Fatalf("expected render error when encoder fails to start, got %v", err)
	}
}

func TestSourceFrameIsScaledToCanvas(t *testing.T) {
	src := newFakeSource(4, 4, color.RGBA{G: 0xff, A: 0xff})
	enc := &fakeEncoder{sink: &captureSink{probes: []image.Point{{X: 10, Y: 10}}}}
	job, err := render.NewJob(context.Background(), src, enc, nil, render.Options{Width: 20, Height: 20, Duration: 0.05})
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if _, err := job.Next(context.Background()); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got := enc.sink.samples[0][0]; got.G < 250 || got.A != 0xff {
		t.Fatalf("expected scaled source pixel, got %#v", got)
	}
}

func nearlyRed(c color.RGBA) bool {
	return c.R >= 250 && c.G <= 5 && c.B <= 5 && c.A == 0xff
}
