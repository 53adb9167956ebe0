// Package archive re-encodes finished renders to AV1 for long-term storage.
//
// The encode runs through the drapto library into a staging directory under
// the state dir; the result is then copied with hash verification into the
// archive output directory, which is often a slower network mount.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	draptolib "github.com/five82/drapto"

	"reelforge/internal/config"
	"reelforge/internal/fileutil"
	"reelforge/internal/logging"
	"reelforge/internal/services"
)

// Encoder turns one input file into an encoded file inside outputDir and
// returns its path.
type Encoder interface {
	Encode(ctx context.Context, inputPath, outputDir string) (string, error)
}

// Drapto encodes with the drapto library in-process.
type Drapto struct{}

// Encode runs a responsive drapto encode of inputPath into outputDir.
func (Drapto) Encode(ctx context.Context, inputPath, outputDir string) (string, error) {
	if inputPath == "" {
		return "", errors.New("input path required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return "", errors.New("output directory required")
	}
	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", err
	}
	var rep draptolib.Reporter
	if _, err := encoder.EncodeWithReporter(ctx, inputPath, outputDir, rep); err != nil {
		return "", err
	}
	return filepath.Join(strings.TrimSpace(outputDir), stem(inputPath)+".mkv"), nil
}

// Archiver stages, encodes and publishes archive copies.
type Archiver struct {
	encoder    Encoder
	stagingDir string
	outputDir  string
	logger     *slog.Logger
}

// New builds an Archiver from config. encoder may be nil to use drapto.
func New(cfg *config.Config, encoder Encoder, logger *slog.Logger) *Archiver {
	if encoder == nil {
		encoder = Drapto{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Archiver{
		encoder:    encoder,
		stagingDir: cfg.ArchiveStagingDir(),
		outputDir:  cfg.Archive.OutputDir,
		logger:     logging.NewComponentLogger(logger, "archive"),
	}
}

// Archive encodes renderedPath and returns the published archive path.
func (a *Archiver) Archive(ctx context.Context, renderedPath string) (string, error) {
	if strings.TrimSpace(a.outputDir) == "" {
		return "", services.Wrap(services.ErrConfiguration, "archive", "validate", "archive.output_dir is not set", nil)
	}
	staging, err := os.MkdirTemp(ensureDir(a.stagingDir), "encode-")
	if err != nil {
		return "", fmt.Errorf("create archive staging dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			a.logger.Warn("remove archive staging dir failed", logging.String("path", staging), logging.Error(err))
		}
	}()

	started := time.Now()
	a.logger.Info("archive encode started", logging.String("input", renderedPath))
	encoded, err := a.encoder.Encode(ctx, renderedPath, staging)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "archive", "encode", "drapto encode failed", err)
	}

	target := filepath.Join(a.outputDir, filepath.Base(encoded))
	if err := fileutil.CopyFileVerified(encoded, target); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "archive", "publish", target, err)
	}
	a.logger.Info("archive encode complete",
		logging.String("output", target),
		logging.Duration("elapsed", time.Since(started)),
	)
	return target, nil
}

func ensureDir(dir string) string {
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

func stem(path string) string {
	base := filepath.Base(path)
	s := strings.TrimSuffix(base, filepath.Ext(base))
	if s == "" {
		return base
	}
	return s
}
