package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"reelforge/internal/archive"
	"reelforge/internal/busy"
	"reelforge/internal/config"
	"reelforge/internal/jobs"
	"reelforge/internal/logging"
	"reelforge/internal/media/ffmpeg"
	"reelforge/internal/media/ffprobe"
	"reelforge/internal/media/imageio"
	"reelforge/internal/overlay"
	"reelforge/internal/project"
	"reelforge/internal/render"
	"reelforge/internal/services"
	"reelforge/internal/staging"
)

// SourceCloser is a render.Source that owns a decoder process.
type SourceCloser interface {
	render.Source
	Close() error
}

// Prober describes a source video.
type Prober func(ctx context.Context, path string) (ffprobe.Descriptor, error)

// SourceOpener starts decoding a source video at the render size and rate.
type SourceOpener func(desc ffprobe.Descriptor, fps int) (SourceCloser, error)

// EncoderFactory builds the encoder writing outputPath.
type EncoderFactory func(outputPath string, desc ffprobe.Descriptor) render.Encoder

// Archiver produces an archive copy of a finished render.
type Archiver interface {
	Archive(ctx context.Context, renderedPath string) (string, error)
}

// Options overrides the collaborators used by Render. Zero values use ffprobe,
// ffmpeg, on-disk image decoding and the drapto archiver from config.
type Options struct {
	Probe      Prober
	OpenSource SourceOpener
	NewEncoder EncoderFactory
	LoadImage  render.ImageLoader
	Archiver   Archiver
	// OnProgress receives every frame's progress, for live terminal output.
	OnProgress func(render.Progress)
}

// Studio renders projects and records the outcome.
type Studio struct {
	cfg    *config.Config
	store  *jobs.Store
	guard  *busy.Guard
	logger *slog.Logger
	opts   Options
}

// New wires a Studio from config. store must be open.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger, opts Options) (*Studio, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("studio requires config and job store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Probe == nil {
		binary := cfg.FFprobeBinary()
		opts.Probe = func(ctx context.Context, path string) (ffprobe.Descriptor, error) {
			return ffprobe.Describe(ctx, binary, path)
		}
	}
	if opts.OpenSource == nil {
		binary := cfg.FFmpegBinary()
		opts.OpenSource = func(desc ffprobe.Descriptor, fps int) (SourceCloser, error) {
			return ffmpeg.OpenSource(ffmpeg.SourceOptions{
				Binary: binary,
				Path:   desc.Path,
				Width:  desc.Width,
				Height: desc.Height,
				FPS:    fps,
			})
		}
	}
	if opts.NewEncoder == nil {
		opts.NewEncoder = func(outputPath string, desc ffprobe.Descriptor) render.Encoder {
			encOpts := ffmpeg.EncoderOptions{
				Binary:      cfg.FFmpegBinary(),
				Output:      outputPath,
				VideoCodec:  cfg.Render.VideoCodec,
				PixelFormat: cfg.Render.PixelFormat,
				CRF:         cfg.Render.CRF,
			}
			if cfg.Render.KeepAudio && desc.HasAudio {
				encOpts.AudioFrom = desc.Path
			}
			return ffmpeg.NewEncoder(encOpts)
		}
	}
	if opts.LoadImage == nil {
		opts.LoadImage = imageio.Load
	}
	if opts.Archiver == nil && cfg.Archive.Enabled {
		opts.Archiver = archive.New(cfg, nil, logger)
	}
	return &Studio{
		cfg:    cfg,
		store:  store,
		guard:  busy.New(cfg.LockPath()),
		logger: logging.NewComponentLogger(logger, "studio"),
		opts:   opts,
	}, nil
}

// Render renders the project at projectPath into outputPath (or the default
// output location when empty) and returns the final job record. When a job
// record was created it is returned alongside any error.
func (s *Studio) Render(ctx context.Context, projectPath, outputPath string) (*jobs.Job, error) {
	if err := s.guard.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.guard.Release(); err != nil {
			s.logger.Warn("release render lock failed", logging.Error(err))
		}
	}()

	// Holding the lock means no other render is live, so anything still
	// marked in-flight belongs to a process that died.
	if n, err := s.store.ResetStuck(ctx); err != nil {
		s.logger.Warn("reset stuck render jobs failed", logging.Error(err))
	} else if n > 0 {
		s.logger.Info("marked interrupted renders as failed", logging.Int("count", int(n)))
	}
	staging.CleanPartials(ctx, s.cfg.Paths.OutputDir, 0, s.logger)
	staging.CleanStale(ctx, s.cfg.ArchiveStagingDir(), 0, s.logger)

	proj, err := project.Load(projectPath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(outputPath) == "" {
		outputPath = defaultOutputPath(s.cfg.Paths.OutputDir, projectPath)
	}
	if abs, err := filepath.Abs(outputPath); err == nil {
		outputPath = abs
	}
	if dir := filepath.Dir(outputPath); dir != filepath.Clean(s.cfg.Paths.OutputDir) {
		staging.CleanPartials(ctx, dir, 0, s.logger)
	}

	job, err := s.store.Create(ctx, jobs.NewJob{
		Title:       deriveTitle(projectPath),
		ProjectPath: projectPath,
		SourcePath:  proj.SourcePath(),
		OutputPath:  outputPath,
	})
	if err != nil {
		return nil, fmt.Errorf("record render job: %w", err)
	}

	ctx = services.WithProject(services.WithJobID(ctx, job.ID), projectPath)
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("render started",
		logging.String("title", job.Title),
		logging.String("source", job.SourcePath),
		logging.String("output", outputPath),
	)

	archivePath, err := s.run(ctx, logger, job, proj, outputPath)
	if err != nil {
		// The caller's context may already be cancelled; the failure still
		// needs to reach the history.
		if failErr := s.store.Fail(context.WithoutCancel(ctx), job.ID, err); failErr != nil {
			logger.Warn("record render failure failed", logging.Error(failErr))
		}
		logger.Error("render failed",
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
		return s.reload(job), err
	}

	if err := s.store.Complete(ctx, job.ID, archivePath); err != nil {
		return s.reload(job), fmt.Errorf("record render completion: %w", err)
	}
	return s.reload(job), nil
}

func (s *Studio) run(ctx context.Context, logger *slog.Logger, job *jobs.Job, proj *project.Project, outputPath string) (string, error) {
	desc, err := s.opts.Probe(services.WithStage(ctx, "probe"), proj.SourcePath())
	if err != nil {
		return "", services.Wrap(services.ErrResourceLoad, "studio", "probe", "cannot read source video", err)
	}
	if desc.Path == "" {
		desc.Path = proj.SourcePath()
	}
	if desc.Width <= 0 || desc.Height <= 0 || desc.Duration <= 0 {
		return "", services.Wrap(services.ErrResourceLoad, "studio", "probe", fmt.Sprintf("source has no decodable video (%dx%d, %.3fs)", desc.Width, desc.Height, desc.Duration), nil)
	}
	if err := proj.Validate(desc.Duration); err != nil {
		return "", err
	}

	fps := s.cfg.Render.FPS
	if fps <= 0 {
		fps = render.DefaultFPS
	}

	src, err := s.opts.OpenSource(desc, fps)
	if err != nil {
		return "", services.Wrap(services.ErrResourceLoad, "studio", "open source", "", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("close source decoder failed", logging.Error(err))
		}
	}()

	renderCtx := services.WithStage(ctx, "render")
	renderLogger := logging.WithContext(renderCtx, s.logger)
	overlays := resolveAssets(proj)
	renderJob, err := render.NewJob(renderCtx, src, s.opts.NewEncoder(outputPath, desc), overlays, render.Options{
		Width:         desc.Width,
		Height:        desc.Height,
		Duration:      desc.Duration,
		FPS:           fps,
		PreviewWidth:  proj.Preview.Width,
		PreviewHeight: proj.Preview.Height,
		Loader:        s.opts.LoadImage,
		Logger:        renderLogger,
	})
	if err != nil {
		return "", err
	}

	if err := s.store.MarkRendering(ctx, job.ID, renderJob.Total()); err != nil {
		renderJob.Abort()
		return "", fmt.Errorf("record render start: %w", err)
	}

	started := time.Now()
	sampler := logging.NewProgressSampler(5)
	err = render.Run(renderCtx, renderJob, func(p render.Progress) {
		if s.opts.OnProgress != nil {
			s.opts.OnProgress(p)
		}
		if !sampler.ShouldLog(p.Fraction) {
			return
		}
		renderLogger.Info("render progress",
			logging.Int("frame", p.Frame),
			logging.Int("total", p.Total),
			logging.Float64("percent", p.Fraction*100),
		)
		if err := s.store.UpdateProgress(ctx, job.ID, p.Frame, p.Fraction); err != nil {
			renderLogger.Warn("record render progress failed", logging.Error(err))
		}
	})
	if err != nil {
		return "", err
	}
	renderLogger.Info("render complete",
		logging.Int("frames", renderJob.Total()),
		logging.Duration("elapsed", time.Since(started)),
	)

	if s.opts.Archiver == nil {
		return "", nil
	}
	archiveCtx := services.WithStage(ctx, "archive")
	archived, err := s.opts.Archiver.Archive(archiveCtx, outputPath)
	if err != nil {
		// The render itself is intact; a missing archive copy is not a failed render.
		logging.WithContext(archiveCtx, s.logger).Warn("archive copy failed", logging.Error(err))
		return "", nil
	}
	return archived, nil
}

func (s *Studio) reload(job *jobs.Job) *jobs.Job {
	fresh, err := s.store.Get(context.Background(), job.ID)
	if err != nil {
		return job
	}
	return fresh
}

// resolveAssets returns overlays with image paths made relative to the project
// file rather than the working directory.
func resolveAssets(proj *project.Project) []overlay.Overlay {
	out := make([]overlay.Overlay, 0, len(proj.Overlays))
	for _, o := range proj.Overlays {
		o = o.Clone()
		if o.Image != nil {
			o.Image.Path = proj.ResolvePath(o.Image.Path)
		}
		out = append(out, o)
	}
	return out
}
