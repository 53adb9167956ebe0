package deps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be reported, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("expected unconfigured command, got %#v", results[2])
	}
}

const encoderListing = `Encoders:
 V..... = Video
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D libsvtav1            SVT-AV1(Scalable Video Technology for AV1) encoder (codec av1)
 A....D aac                  AAC (Advanced Audio Coding)
`

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if os.Getenv("DEPS_HELPER_FAIL") == "1" {
		os.Exit(1)
	}
	fmt.Fprint(os.Stdout, encoderListing)
	os.Exit(0)
}

func stubFFmpeg(t *testing.T, fail bool) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess", "--")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		if fail {
			cmd.Env = append(cmd.Env, "DEPS_HELPER_FAIL=1")
		}
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestCheckEncoder(t *testing.T) {
	stubFFmpeg(t, false)

	cases := []struct {
		codec string
		want  bool
	}{
		{"libx264", true},
		{"libsvtav1", true},
		{"libx265", false},
		{"H.264", false},
		{"", false},
	}
	for _, tc := range cases {
		status := CheckEncoder(context.Background(), "ffmpeg", tc.codec)
		if status.Available != tc.want {
			t.Fatalf("CheckEncoder(%q) available=%v, want %v (detail %q)", tc.codec, status.Available, tc.want, status.Detail)
		}
		if !tc.want && status.Detail == "" {
			t.Fatalf("expected detail for %q", tc.codec)
		}
	}
}

func TestCheckEncoderReportsFailure(t *testing.T) {
	stubFFmpeg(t, true)

	status := CheckEncoder(context.Background(), "ffmpeg", "libx264")
	if status.Available {
		t.Fatal("expected unavailable encoder when ffmpeg fails")
	}
}
