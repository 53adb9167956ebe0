package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"reelforge/internal/logging"
	"reelforge/internal/overlay"
	"reelforge/internal/services"
)

// FrameCount returns the number of frames sampled from a source of the given
// duration: ceil(duration*fps), with at least one frame.
func FrameCount(duration float64, fps int) int {
	if fps <= 0 || duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0
	}
	// Trim float noise so 10s at 30fps is 300 frames, not 301.
	n := int(math.Ceil(duration*float64(fps) - 1e-9))
	if n < 1 {
		n = 1
	}
	return n
}

// Job renders one output video. It is not safe for concurrent use.
type Job struct {
	source   Source
	sink     Sink
	overlays []overlay.Overlay
	comp     *compositor
	canvas   *image.RGBA
	logger   *slog.Logger

	fps      int
	duration float64
	total    int
	frame    int

	done bool
	err  error
}

// NewJob validates the options, pre-loads every image overlay and starts the
// encoder. Preload failures return an error marked services.ErrResourceLoad and
// the encoder is never started.
func NewJob(ctx context.Context, source Source, encoder Encoder, overlays []overlay.Overlay, opts Options) (*Job, error) {
	if source == nil || encoder == nil {
		return nil, services.Wrap(services.ErrConfiguration, "render", "init", "source and encoder are required", nil)
	}
	if opts.FPS == 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, services.Wrap(services.ErrValidation, "render", "init", fmt.Sprintf("invalid output size %dx%d", opts.Width, opts.Height), nil)
	}
	total := FrameCount(opts.Duration, opts.FPS)
	if total == 0 {
		return nil, services.Wrap(services.ErrValidation, "render", "init", fmt.Sprintf("invalid duration %g at %d fps", opts.Duration, opts.FPS), nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	images, err := preloadImages(ctx, overlays, opts.Loader)
	if err != nil {
		return nil, services.Wrap(services.ErrResourceLoad, "render", "preload", "failed to load overlay images", err)
	}
	logger.Debug("overlay images preloaded", logging.Int("images", len(images)))

	copied := make([]overlay.Overlay, 0, len(overlays))
	for _, o := range overlays {
		copied = append(copied, o.Clone())
	}

	comp := newCompositor(opts, images)

	sink, err := encoder.Start(ctx, opts.Width, opts.Height, opts.FPS)
	if err != nil {
		return nil, services.Wrap(services.ErrRender, "render", "start encoder", "", err)
	}

	return &Job{
		source:   source,
		sink:     sink,
		overlays: copied,
		comp:     comp,
		canvas:   image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
		logger:   logger,
		fps:      opts.FPS,
		duration: opts.Duration,
		total:    total,
	}, nil
}

// preloadWorkers bounds concurrent image decodes.
const preloadWorkers = 4

func preloadImages(ctx context.Context, overlays []overlay.Overlay, loader ImageLoader) (map[string]image.Image, error) {
	owners := make(map[string]string)
	var paths []string
	for _, o := range overlays {
		if o.Kind != overlay.KindImage {
			continue
		}
		if o.Image == nil {
			return nil, fmt.Errorf("overlay %s: missing image payload", o.ID)
		}
		if _, ok := owners[o.Image.Path]; ok {
			continue
		}
		owners[o.Image.Path] = o.ID
		paths = append(paths, o.Image.Path)
	}
	if len(paths) == 0 {
		return map[string]image.Image{}, nil
	}
	if loader == nil {
		return nil, errors.New("no image loader configured")
	}

	decoded := make([]image.Image, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(preloadWorkers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := loader(path)
			if err != nil {
				return fmt.Errorf("overlay %s (%s): %w", owners[path], path, err)
			}
			if img == nil || img.Bounds().Empty() {
				return fmt.Errorf("overlay %s (%s): empty image", owners[path], path)
			}
			decoded[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	images := make(map[string]image.Image, len(paths))
	for i, path := range paths {
		images[path] = decoded[i]
	}
	return images, nil
}

// Total is the number of frames the job writes.
func (j *Job) Total() int {
	return j.total
}

// Playhead reports the timestamp of the next frame to render.
func (j *Job) Playhead() float64 {
	return float64(j.frame) / float64(j.fps)
}

// Next renders and writes one frame. After the final frame has been written
// the sink is finalized; subsequent calls return io.EOF. Any error is
// terminal: the sink is aborted and the same error is returned from then on.
func (j *Job) Next(ctx context.Context) (Progress, error) {
	if j.err != nil {
		return Progress{}, j.err
	}
	if j.done {
		return Progress{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return Progress{}, j.fail("cancelled", err)
	}

	playhead := j.Playhead()
	frame, err := j.source.Seek(ctx, playhead)
	if err != nil {
		return Progress{}, j.fail(fmt.Sprintf("seek %.3fs", playhead), err)
	}
	if frame == nil {
		return Progress{}, j.fail(fmt.Sprintf("seek %.3fs", playhead), errors.New("source returned no frame"))
	}

	j.drawFrame(frame)
	if err := j.comp.drawOverlays(j.canvas, overlay.Active(j.overlays, playhead)); err != nil {
		return Progress{}, j.fail(fmt.Sprintf("composite %.3fs", playhead), err)
	}
	if err := j.sink.WriteFrame(j.canvas); err != nil {
		return Progress{}, j.fail(fmt.Sprintf("write frame %d", j.frame), err)
	}

	j.frame++
	progress := Progress{
		Frame:    j.frame,
		Total:    j.total,
		Playhead: playhead,
		Fraction: math.Min(1, playhead/j.duration),
	}
	if j.frame >= j.total {
		if err := j.sink.Close(); err != nil {
			return Progress{}, j.fail("finalize", err)
		}
		j.done = true
		progress.Fraction = 1
	}
	return progress, nil
}

// Abort abandons an unfinished job and discards the partial output.
func (j *Job) Abort() {
	if j.done || j.err != nil {
		return
	}
	j.err = services.Wrap(services.ErrRender, "render", "abort", "render abandoned", nil)
	if err := j.sink.Abort(); err != nil {
		j.logger.Warn("discard partial output failed", logging.Error(err))
	}
}

func (j *Job) fail(operation string, err error) error {
	j.err = services.Wrap(services.ErrRender, "render", operation, "", err)
	if abortErr := j.sink.Abort(); abortErr != nil {
		j.logger.Warn("discard partial output failed", logging.Error(abortErr))
	}
	return j.err
}

func (j *Job) drawFrame(frame image.Image) {
	bounds := j.canvas.Bounds()
	draw.Draw(j.canvas, bounds, image.Transparent, image.Point{}, draw.Src)
	src := frame.Bounds()
	if src.Dx() == bounds.Dx() && src.Dy() == bounds.Dy() {
		draw.Draw(j.canvas, bounds, frame, src.Min, draw.Src)
		return
	}
	draw.ApproxBiLinear.Scale(j.canvas, bounds, frame, src, draw.Src, nil)
}

// Run drives job to completion, reporting progress after every frame.
func Run(ctx context.Context, job *Job, onProgress func(Progress)) error {
	for {
		progress, err := job.Next(ctx)
		// Only the bare io.EOF from a finished job ends the loop; a wrapped
		// EOF is a source that ran dry and has already been aborted.
		if err == io.EOF && job.done {
			return nil
		}
		if err != nil {
			return err
		}
		if onProgress != nil {
			onProgress(progress)
		}
	}
}
