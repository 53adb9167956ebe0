package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelforge/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the render history",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))

	return jobsCmd
}

func parseStatuses(values []string) ([]jobs.Status, error) {
	statuses := make([]jobs.Status, 0, len(values))
	for _, raw := range values {
		status, ok := jobs.ParseStatus(raw)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List renders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *jobs.Store) error {
				list, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOutput {
					if list == nil {
						list = []*jobs.Job{}
					}
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No renders recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Status", "Progress", "Created", "Elapsed"},
					buildJobRows(list, time.Now()),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (pending, rendering, completed, failed)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func buildJobRows(list []*jobs.Job, now time.Time) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			shortID(job.ID),
			job.Title,
			string(job.Status),
			formatJobProgress(job),
			formatTimestamp(job.CreatedAt),
			formatDuration(job.Elapsed(now)),
		})
	}
	return rows
}

func formatJobProgress(job *jobs.Job) string {
	if job.FramesTotal == 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f%% (%d/%d)", job.Progress*100, job.FramesRendered, job.FramesTotal)
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one render by id or id prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *jobs.Store) error {
				job, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				printJob(cmd.OutOrStdout(), job, time.Now())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printJob(out io.Writer, job *jobs.Job, now time.Time) {
	line := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		fmt.Fprintf(out, "%-10s %s\n", label+":", value)
	}
	line("ID", job.ID)
	line("Title", job.Title)
	line("Status", string(job.Status))
	line("Project", job.ProjectPath)
	line("Source", job.SourcePath)
	line("Output", job.OutputPath)
	line("Archive", job.ArchivePath)
	line("Progress", formatJobProgress(job))
	line("Created", formatTimestamp(job.CreatedAt))
	if job.StartedAt != nil {
		line("Started", formatTimestamp(*job.StartedAt))
	}
	if job.FinishedAt != nil {
		line("Finished", formatTimestamp(*job.FinishedAt))
	}
	line("Elapsed", formatDuration(job.Elapsed(now)))
	if job.ErrorMessage != "" {
		line("Error", fmt.Sprintf("[%s] %s", job.ErrorKind, job.ErrorMessage))
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished renders from the history",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *jobs.Store) error {
				removed, err := store.Clear(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s render(s)\n", strconv.FormatInt(removed, 10))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Only clear these statuses (completed, failed)")
	return cmd
}
