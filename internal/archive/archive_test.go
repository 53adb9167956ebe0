package archive_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelforge/internal/archive"
	"reelforge/internal/services"
	"reelforge/internal/testsupport"
)

type fakeEncoder struct {
	inputs []string
	err    error
}

func (f *fakeEncoder) Encode(_ context.Context, inputPath, outputDir string) (string, error) {
	f.inputs = append(f.inputs, inputPath)
	if f.err != nil {
		return "", f.err
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	out := filepath.Join(outputDir, base+".mkv")
	if err := os.WriteFile(out, []byte("av1"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

func TestArchivePublishesEncodedCopy(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithArchive())
	rendered := filepath.Join(cfg.Paths.OutputDir, "promo.mp4")
	testsupport.WriteFile(t, rendered, 1024)

	enc := &fakeEncoder{}
	path, err := archive.New(cfg, enc, nil).Archive(context.Background(), rendered)
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if path != filepath.Join(cfg.Archive.OutputDir, "promo.mkv") {
		t.Fatalf("unexpected archive path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "av1" {
		t.Fatalf("expected archived content, got %q err=%v", data, err)
	}
	if len(enc.inputs) != 1 || enc.inputs[0] != rendered {
		t.Fatalf("expected encoder to receive render output, got %v", enc.inputs)
	}

	staging, err := os.ReadDir(filepath.Join(cfg.Paths.StateDir, "archive-staging"))
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(staging) != 0 {
		t.Fatalf("expected staging to be cleaned, found %d entries", len(staging))
	}
}

func TestArchiveEncodeFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithArchive())
	enc := &fakeEncoder{err: errors.New("svt-av1 crashed")}

	_, err := archive.New(cfg, enc, nil).Archive(context.Background(), "/renders/x.mp4")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestArchiveRequiresOutputDir(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithArchive())
	cfg.Archive.OutputDir = ""

	_, err := archive.New(cfg, &fakeEncoder{}, nil).Archive(context.Background(), "/renders/x.mp4")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
