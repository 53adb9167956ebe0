package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Forward seeks further than this many seconds restart the decoder with -ss
// instead of decoding every intermediate frame.
const restartGapSeconds = 5

// SourceOptions configures a decoding Source.
type SourceOptions struct {
	Binary string
	Path   string
	Width  int
	Height int
	FPS    int
}

// Source decodes video frames through an ffmpeg rawvideo pipe. It is not safe
// for concurrent use.
type Source struct {
	opts SourceOptions

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer

	frame   *image.RGBA
	buf     *image.RGBA
	current int
	eof     bool
}

// OpenSource validates opts. The decoder is started lazily by the first Seek.
func OpenSource(opts SourceOptions) (*Source, error) {
	opts.Binary = strings.TrimSpace(opts.Binary)
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("ffmpeg source: empty path")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("ffmpeg source: invalid frame size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("ffmpeg source: invalid fps %d", opts.FPS)
	}
	rect := image.Rect(0, 0, opts.Width, opts.Height)
	return &Source{
		opts:    opts,
		buf:     image.NewRGBA(rect),
		current: -1,
	}, nil
}

// Seek returns the frame displayed at t seconds. The returned image is reused
// by the next call. Seeking past the end of the stream holds the last frame.
func (s *Source) Seek(ctx context.Context, t float64) (image.Image, error) {
	if t < 0 || math.IsNaN(t) {
		return nil, fmt.Errorf("ffmpeg source: invalid timestamp %v", t)
	}
	target := int(math.Floor(t*float64(s.opts.FPS) + 1e-9))

	if s.cmd != nil && s.frame != nil && target == s.current {
		return s.frame, nil
	}
	if s.cmd == nil || target < s.current || (!s.eof && target-s.current > restartGapSeconds*s.opts.FPS) {
		if err := s.start(ctx, target); err != nil {
			return nil, err
		}
	}

	for s.current < target && !s.eof {
		if err := s.readFrame(); err != nil {
			return nil, err
		}
	}
	if s.frame == nil {
		s.stop()
		return nil, fmt.Errorf("ffmpeg source: no frame decoded at %.3fs%s", t, s.stderrSuffix())
	}
	return s.frame, nil
}

// Close stops the decoder.
func (s *Source) Close() error {
	s.stop()
	return nil
}

func (s *Source) start(ctx context.Context, index int) error {
	s.stop()
	start := float64(index) / float64(s.opts.FPS)
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-ss", strconv.FormatFloat(start, 'f', 6, 64),
		"-i", s.opts.Path,
		"-an", "-sn",
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", s.opts.FPS, s.opts.Width, s.opts.Height),
		"-pix_fmt", "rgba",
		"-f", "rawvideo",
		"pipe:1",
	}
	cmd := commandContext(ctx, s.opts.Binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg source: stdout pipe: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg source: start decoder: %w", err)
	}
	s.cmd = cmd
	s.stdout = stdout
	s.stderr = stderr
	s.frame = nil
	s.current = index - 1
	s.eof = false
	return nil
}

func (s *Source) readFrame() error {
	if _, err := io.ReadFull(s.stdout, s.buf.Pix); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			s.eof = true
			return nil
		}
		return fmt.Errorf("ffmpeg source: read frame: %w", err)
	}
	if s.frame == nil {
		s.frame = image.NewRGBA(s.buf.Rect)
	}
	s.frame, s.buf = s.buf, s.frame
	s.current++
	return nil
}

func (s *Source) stop() {
	if s.cmd == nil {
		return
	}
	if s.stdout != nil {
		_ = s.stdout.Close()
	}
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	s.cmd = nil
	s.stdout = nil
}

func (s *Source) stderrSuffix() string {
	if s.stderr == nil {
		return ""
	}
	msg := strings.TrimSpace(s.stderr.String())
	if msg == "" {
		return ""
	}
	return ": " + msg
}
