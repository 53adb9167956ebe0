package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func setHelperCommand(t *testing.T, mode string, captured *[][]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append(*captured, append([]string(nil), args...))
		}
		helperArgs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], helperArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("FFMPEG_HELPER_MODE=%s", mode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

// TestHelperProcess stands in for ffmpeg. In decode mode it emits helperFrames
// 2x2 RGBA frames whose red channel carries the absolute frame index; in
// encode mode it copies stdin to the output path (the final argument).
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}

	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "decode":
		start, _ := strconv.ParseFloat(argValue(args, "-ss"), 64)
		first := int(start*10 + 0.5)
		for i := first; i < helperFrames; i++ {
			frame := bytes.Repeat([]byte{byte(i), 0, 0, 255}, 4)
			if _, err := os.Stdout.Write(frame); err != nil {
				os.Exit(1)
			}
		}
		os.Exit(0)
	case "decode-empty":
		fmt.Fprintln(os.Stderr, "Invalid data found when processing input")
		os.Exit(1)
	case "encode":
		out, err := os.Create(args[len(args)-1])
		if err != nil {
			os.Exit(2)
		}
		if _, err := io.Copy(out, os.Stdin); err != nil {
			os.Exit(3)
		}
		_ = out.Close()
		os.Exit(0)
	case "encode-fail":
		_, _ = io.Copy(io.Discard, os.Stdin)
		fmt.Fprintln(os.Stderr, "Unknown encoder 'libnope'")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

const helperFrames = 30

func argValue(args []string, flag string) string {
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func redAt(t *testing.T, img image.Image) uint8 {
	t.Helper()
	rgba, ok := img.(*image.RGBA)
	if !ok {
		t.Fatalf("expected *image.RGBA, got %T", img)
	}
	return rgba.Pix[0]
}

func TestSourceReadsForwardWithoutRestart(t *testing.T) {
	var captured [][]string
	setHelperCommand(t, "decode", &captured)

	src, err := OpenSource(SourceOptions{Path: "clip.mp4", Width: 2, Height: 2, FPS: 10})
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })

	for frame := 0; frame < 5; frame++ {
		img, err := src.Seek(context.Background(), float64(frame)/10)
		if err != nil {
			t.Fatalf("Seek frame %d failed: %v", frame, err)
		}
		if got := redAt(t, img); int(got) != frame {
			t.Fatalf("expected frame %d, got %d", frame, got)
		}
	}
	if len(captured) != 1 {
		t.Fatalf("expected a single decoder process, got %d", len(captured))
	}
	if vf := argValue(captured[0], "-vf"); vf != "fps=10,scale=2:2" {
		t.Fatalf("unexpected filter %q", vf)
	}
	if argValue(captured[0], "-pix_fmt") != "rgba" || argValue(captured[0], "-f") != "rawvideo" {
		t.Fatalf("expected rgba rawvideo output, got %v", captured[0])
	}
}

func TestSourceRestartsOnBackwardSeek(t *testing.T) {
	var captured [][]string
	setHelperCommand(t, "decode", &captured)

	src, err := OpenSource(SourceOptions{Path: "clip.mp4", Width: 2, Height: 2, FPS: 10})
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })

	if _, err := src.Seek(context.Background(), 1.2); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	img, err := src.Seek(context.Background(), 0.3)
	if err != nil {
		t.Fatalf("backward Seek failed: %v", err)
	}
	if got := redAt(t, img); got != 3 {
		t.Fatalf("expected frame 3 after restart, got %d", got)
	}
	if len(captured) != 2 {
		t.Fatalf("expected decoder restart, got %d processes", len(captured))
	}
	if ss := argValue(captured[1], "-ss"); ss != "0.300000" {
		t.Fatalf("expected restart at 0.3s, got %q", ss)
	}
}

func TestSourceHoldsLastFramePastEnd(t *testing.T) {
	setHelperCommand(t, "decode", nil)

	src, err := OpenSource(SourceOptions{Path: "clip.mp4", Width: 2, Height: 2, FPS: 10})
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })

	if _, err := src.Seek(context.Background(), 2.5); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	img, err := src.Seek(context.Background(), 3.5)
	if err != nil {
		t.Fatalf("Seek past end failed: %v", err)
	}
	if got := redAt(t, img); got != helperFrames-1 {
		t.Fatalf("expected last frame %d, got %d", helperFrames-1, got)
	}
}

func TestSourceReportsDecoderFailure(t *testing.T) {
	setHelperCommand(t, "decode-empty", nil)

	src, err := OpenSource(SourceOptions{Path: "broken.mp4", Width: 2, Height: 2, FPS: 10})
	if err != nil {
		t.Fatalf("OpenSource failed: %v", err)
	}
	_, err = src.Seek(context.Background(), 0)
	if err == nil {
		t.Fatal("expected seek failure")
	}
	if !strings.Contains(err.Error(), "Invalid data") {
		t.Fatalf("expected decoder stderr in error, got %v", err)
	}
}

func TestOpenSourceValidates(t *testing.T) {
	cases := []SourceOptions{
		{Path: "", Width: 2, Height: 2, FPS: 10},
		{Path: "a.mp4", Width: 0, Height: 2, FPS: 10},
		{Path: "a.mp4", Width: 2, Height: 2, FPS: 0},
	}
	for _, opts := range cases {
		if _, err := OpenSource(opts); err == nil {
			t.Fatalf("expected error for %+v", opts)
		}
	}
}

func TestEncoderFinalizesOnClose(t *testing.T) {
	var captured [][]string
	setHelperCommand(t, "encode", &captured)

	output := filepath.Join(t.TempDir(), "out", "final.mp4")
	enc := NewEncoder(EncoderOptions{Output: output, CRF: 20, AudioFrom: "source.mp4"})
	sink, err := enc.Start(context.Background(), 2, 2, 30)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	frame := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < 3; i++ {
		if err := sink.WriteFrame(frame); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatalf("output must not exist before close, stat err=%v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	info, err := os.Stat(output)
	if err != nil {
		t.Fatalf("expected output file: %v", err)
	}
	if info.Size() != 3*2*2*4 {
		t.Fatalf("expected %d bytes, got %d", 3*2*2*4, info.Size())
	}

	args := captured[0]
	if argValue(args, "-s") != "2x2" || argValue(args, "-r") != "30" {
		t.Fatalf("unexpected stream args %v", args)
	}
	if argValue(args, "-crf") != "20" || argValue(args, "-c:v") != "libx264" {
		t.Fatalf("expected codec settings, got %v", args)
	}
	if argValue(args, "-movflags") != "+faststart" {
		t.Fatalf("expected faststart for mp4, got %v", args)
	}
	if !strings.Contains(strings.Join(args, " "), "-map 1:a:0?") {
		t.Fatalf("expected optional audio map, got %v", args)
	}
}

func TestEncoderAbortDiscardsPartialOutput(t *testing.T) {
	setHelperCommand(t, "encode", nil)

	dir := t.TempDir()
	output := filepath.Join(dir, "final.mkv")
	sink, err := NewEncoder(EncoderOptions{Output: output}).Start(context.Background(), 2, 2, 30)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := sink.WriteFrame(image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	if err := sink.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files after abort, found %d", len(entries))
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close after Abort should be a no-op, got %v", err)
	}
}

func TestEncoderFailureSurfacesStderr(t *testing.T) {
	setHelperCommand(t, "encode-fail", nil)

	output := filepath.Join(t.TempDir(), "final.mp4")
	sink, err := NewEncoder(EncoderOptions{Output: output, VideoCodec: "libnope"}).Start(context.Background(), 2, 2, 30)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	err = sink.Close()
	if err == nil || !strings.Contains(err.Error(), "libnope") {
		t.Fatalf("expected encoder stderr in error, got %v", err)
	}
	if _, statErr := os.Stat(output); !os.IsNotExist(statErr) {
		t.Fatalf("expected no output after failure, stat err=%v", statErr)
	}
}

func TestWriteFrameRejectsWrongSize(t *testing.T) {
	setHelperCommand(t, "encode", nil)

	sink, err := NewEncoder(EncoderOptions{Output: filepath.Join(t.TempDir(), "x.mp4")}).Start(context.Background(), 2, 2, 30)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = sink.Abort() })
	if err := sink.WriteFrame(image.NewRGBA(image.Rect(0, 0, 3, 2))); err == nil {
		t.Fatal("expected size mismatch error")
	}
}

func TestMuxerFor(t *testing.T) {
	cases := map[string]string{
		"a.mp4":  "mp4",
		"a.MOV":  "mov",
		"a.mkv":  "matroska",
		"a.webm": "webm",
		"a":      "mp4",
	}
	for path, want := range cases {
		if got := MuxerFor(path); got != want {
			t.Fatalf("MuxerFor(%q) = %q, want %q", path, got, want)
		}
	}
}
