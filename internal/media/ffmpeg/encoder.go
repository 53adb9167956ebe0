package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"reelforge/internal/render"
)

// EncoderOptions configures the output side of a render.
type EncoderOptions struct {
	Binary      string
	Output      string
	VideoCodec  string
	PixelFormat string
	// CRF is passed to the encoder when positive.
	CRF int
	// AudioFrom, when set, muxes the first audio stream of that file into the
	// output.
	AudioFrom string
}

// Encoder starts ffmpeg processes that consume raw RGBA frames.
type Encoder struct {
	opts EncoderOptions
}

// NewEncoder returns an Encoder with defaults applied.
func NewEncoder(opts EncoderOptions) *Encoder {
	opts.Binary = strings.TrimSpace(opts.Binary)
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	if strings.TrimSpace(opts.VideoCodec) == "" {
		opts.VideoCodec = "libx264"
	}
	if strings.TrimSpace(opts.PixelFormat) == "" {
		opts.PixelFormat = "yuv420p"
	}
	return &Encoder{opts: opts}
}

// Start launches ffmpeg for a width x height stream at fps.
func (e *Encoder) Start(ctx context.Context, width, height, fps int) (render.Sink, error) {
	output := strings.TrimSpace(e.opts.Output)
	if output == "" {
		return nil, errors.New("ffmpeg encoder: output path required")
	}
	if width <= 0 || height <= 0 || fps <= 0 {
		return nil, fmt.Errorf("ffmpeg encoder: invalid stream %dx%d@%d", width, height, fps)
	}
	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ffmpeg encoder: create output dir: %w", err)
	}
	temp := PartialPath(output)

	args := e.buildArgs(width, height, fps, temp)
	cmd := commandContext(ctx, e.opts.Binary, args...) //nolint:gosec
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg encoder: stdin pipe: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg encoder: start: %w", err)
	}
	return &sink{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		temp:   temp,
		output: output,
		width:  width,
		height: height,
	}, nil
}

func (e *Encoder) buildArgs(width, height, fps int, temp string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(fps),
		"-i", "pipe:0",
	}
	if e.opts.AudioFrom != "" {
		args = append(args, "-i", e.opts.AudioFrom, "-map", "0:v:0", "-map", "1:a:0?", "-c:a", "aac", "-shortest")
	} else {
		args = append(args, "-map", "0:v:0")
	}
	args = append(args, "-c:v", e.opts.VideoCodec, "-pix_fmt", e.opts.PixelFormat)
	if e.opts.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(e.opts.CRF))
	}
	muxer := MuxerFor(e.opts.Output)
	if muxer == "mp4" || muxer == "mov" {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, "-f", muxer, temp)
}

// PartialSuffix marks an encoder's temporary output next to its destination.
const PartialSuffix = ".partial"

// PartialPath returns the hidden temp file an encode of output writes to.
func PartialPath(output string) string {
	return filepath.Join(filepath.Dir(output), "."+filepath.Base(output)+PartialSuffix)
}

// MuxerFor maps an output file extension to an ffmpeg muxer name.
func MuxerFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mov":
		return "mov"
	case ".mkv":
		return "matroska"
	case ".webm":
		return "webm"
	case ".avi":
		return "avi"
	default:
		return "mp4"
	}
}

type sink struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	temp   string
	output string
	width  int
	height int
	done   bool
}

func (s *sink) WriteFrame(frame *image.RGBA) error {
	if s.done {
		return errors.New("ffmpeg encoder: write after close")
	}
	b := frame.Bounds()
	if b.Dx() != s.width || b.Dy() != s.height {
		return fmt.Errorf("ffmpeg encoder: frame %dx%d does not match stream %dx%d", b.Dx(), b.Dy(), s.width, s.height)
	}
	rowBytes := s.width * 4
	if frame.Stride == rowBytes && b.Min == (image.Point{}) {
		return s.write(frame.Pix[:rowBytes*s.height])
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		offset := frame.PixOffset(b.Min.X, y)
		if err := s.write(frame.Pix[offset : offset+rowBytes]); err != nil {
			return err
		}
	}
	return nil
}

func (s *sink) write(p []byte) error {
	if _, err := s.stdin.Write(p); err != nil {
		return fmt.Errorf("ffmpeg encoder: write frame: %w", err)
	}
	return nil
}

func (s *sink) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if err := s.stdin.Close(); err != nil {
		s.discard()
		return fmt.Errorf("ffmpeg encoder: close stdin: %w", err)
	}
	if err := s.cmd.Wait(); err != nil {
		_ = os.Remove(s.temp)
		return fmt.Errorf("ffmpeg encoder: %w%s", err, s.stderrSuffix())
	}
	if err := os.Rename(s.temp, s.output); err != nil {
		_ = os.Remove(s.temp)
		return fmt.Errorf("ffmpeg encoder: finalize output: %w", err)
	}
	return nil
}

func (s *sink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	_ = s.stdin.Close()
	s.discard()
	return nil
}

func (s *sink) discard() {
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	_ = os.Remove(s.temp)
}

func (s *sink) stderrSuffix() string {
	msg := strings.TrimSpace(s.stderr.String())
	if msg == "" {
		return ""
	}
	return ": " + msg
}
