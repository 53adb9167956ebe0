package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelforge/internal/jobs"
	"reelforge/internal/preflight"
	"reelforge/internal/render"
	"reelforge/internal/services"
	"reelforge/internal/studio"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var projectFlag string
	var outputPath string
	var skipChecks bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "render [project]",
		Short: "Render a project's overlays into a new video",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				projectFlag = args[0]
			}
			projectPath, err := resolveProjectPath(projectFlag)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !skipChecks {
				if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
					return services.Wrap(services.ErrConfiguration, "render", "preflight", preflight.Summary(failed), nil)
				}
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			progress := newProgressLine(cmd.ErrOrStderr())
			return ctx.withStore(func(store *jobs.Store) error {
				st, err := studio.New(cfg, store, logger, studio.Options{OnProgress: progress.update})
				if err != nil {
					return err
				}
				job, err := st.Render(cmd.Context(), projectPath, strings.TrimSpace(outputPath))
				progress.finish()
				if err != nil {
					if job != nil {
						return fmt.Errorf("render %s failed: %w", shortID(job.ID), err)
					}
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				printRenderSummary(cmd.OutOrStdout(), job)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&projectFlag, "project", "p", "", "Project file (default $REELFORGE_PROJECT or ./"+defaultProjectFile+")")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output video path (default <output_dir>/<project>.mp4)")
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip tool and directory checks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the job record as JSON")
	return cmd
}

func printRenderSummary(out io.Writer, job *jobs.Job) {
	fmt.Fprintf(out, "Rendered %s\n", job.OutputPath)
	fmt.Fprintf(out, "  Job:     %s\n", job.ID)
	fmt.Fprintf(out, "  Frames:  %d\n", job.FramesTotal)
	fmt.Fprintf(out, "  Elapsed: %s\n", formatDuration(job.Elapsed(time.Now())))
	if job.ArchivePath != "" {
		fmt.Fprintf(out, "  Archive: %s\n", job.ArchivePath)
	}
}

// progressLine redraws a single status line on a terminal. On anything else
// it stays silent and the sampled log lines carry progress instead.
type progressLine struct {
	out      io.Writer
	enabled  bool
	lastDraw time.Time
	drawn    bool
}

func newProgressLine(out io.Writer) *progressLine {
	return &progressLine{out: out, enabled: isTerminal(out)}
}

func (p *progressLine) update(pr render.Progress) {
	if !p.enabled {
		return
	}
	now := time.Now()
	if pr.Frame < pr.Total && now.Sub(p.lastDraw) < 100*time.Millisecond {
		return
	}
	p.lastDraw = now
	p.drawn = true
	fmt.Fprintf(p.out, "\r%s", formatProgress(pr))
}

func (p *progressLine) finish() {
	if p.drawn {
		fmt.Fprintln(p.out)
	}
}

func formatProgress(pr render.Progress) string {
	const width = 30
	filled := int(pr.Fraction * width)
	filled = max(0, min(width, filled))
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	return fmt.Sprintf("  [%s] %5.1f%%  frame %d/%d  %s", bar, pr.Fraction*100, pr.Frame, pr.Total, formatSeconds(pr.Playhead))
}
