package main

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"reelforge/internal/busy"
	"reelforge/internal/render"
	"reelforge/internal/services"
)

func TestWavCommandWrapsStdin(t *testing.T) {
	target := filepath.Join(t.TempDir(), "speech.wav")
	pcm := strings.Repeat("\x01\x00", 24000)

	out, _, err := runCLIWithInput(t, []string{"wav", "-", target}, "", pcm)
	if err != nil {
		t.Fatalf("wav: %v", err)
	}
	requireContains(t, out, "24000 Hz, 1 ch, 16-bit")
	requireContains(t, out, "0:01.000")

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	if len(data) != 44+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", 44+len(pcm), len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(len(pcm)) {
		t.Fatalf("data chunk size %d, want %d", got, len(pcm))
	}
}

func TestWavCommandRejectsPartialFrames(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "odd.pcm")
	if err := os.WriteFile(input, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("write pcm: %v", err)
	}
	target := filepath.Join(dir, "odd.wav")
	if _, _, err := runCLI(t, []string{"wav", input, target}, ""); err == nil {
		t.Fatal("expected odd byte count to be rejected")
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("expected no output file, stat err=%v", err)
	}
}

func TestStatusReportsToolsAndRenders(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "status")
	requireContains(t, out, "== Tools ==")
	requireContains(t, out, "FFmpeg:")
	requireContains(t, out, "Active render:")
	requireContains(t, out, "[INFO] Idle")

	guard := busy.New(env.cfg.LockPath())
	if err := guard.Acquire(); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = guard.Release() })

	out = env.mustRun(t, "status", "--json")
	var report statusReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if !report.Rendering || report.RenderPID != os.Getpid() {
		t.Fatalf("expected active render owned by pid %d, got %+v", os.Getpid(), report)
	}
	if len(report.Tools) < 2 || !report.Tools[0].Available {
		t.Fatalf("expected stubbed ffmpeg to resolve, got %+v", report.Tools)
	}
}

func TestRenderStopsOnFailedPreflight(t *testing.T) {
	env := setupCLITestEnv(t)
	env.initProject(t)

	// The stub ffmpeg lists no encoders, so the configured codec is missing.
	_, _, err := runCLI(t, []string{"render", env.projectPath}, env.configPath)
	if err == nil {
		t.Fatal("expected preflight failure")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	requireContains(t, err.Error(), "Video encoder")

	out := env.mustRun(t, "jobs", "list")
	requireContains(t, out, "No renders recorded")
}

func TestRenderRecordsProbeFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	env.initProject(t)

	// The stub ffprobe prints nothing, which cannot describe a video.
	_, _, err := runCLI(t, []string{"render", "--skip-checks", "--project", env.projectPath}, env.configPath)
	if err == nil {
		t.Fatal("expected render to fail")
	}
	if !errors.Is(err, services.ErrResourceLoad) {
		t.Fatalf("expected resource load failure, got %v", err)
	}

	out := env.mustRun(t, "jobs", "list", "--status", "failed")
	requireContains(t, out, "Promo")
}

func TestFormatHelpers(t *testing.T) {
	cases := map[float64]string{
		0:      "0:00.000",
		1.5:    "0:01.500",
		65.25:  "1:05.250",
		-3:     "0:00.000",
		600.02: "10:00.020",
	}
	for in, want := range cases {
		if got := formatSeconds(in); got != want {
			t.Fatalf("formatSeconds(%v) = %q, want %q", in, got, want)
		}
	}
	if got := formatNumber(12.50); got != "12.5" {
		t.Fatalf("formatNumber = %q", got)
	}
	if got := formatDuration(1500 * time.Millisecond); got != "2s" {
		t.Fatalf("formatDuration = %q", got)
	}
	line := formatProgress(render.Progress{Frame: 15, Total: 30, Playhead: 0.5, Fraction: 0.5})
	requireContains(t, line, "50.0%")
	requireContains(t, line, "frame 15/30")
}
