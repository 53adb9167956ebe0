package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"reelforge/internal/busy"
	"reelforge/internal/deps"
	"reelforge/internal/jobs"
	"reelforge/internal/preflight"
)

type statusReport struct {
	Tools       []deps.Status      `json:"tools"`
	Directories []preflight.Result `json:"directories"`
	Rendering   bool               `json:"rendering"`
	RenderPID   int                `json:"render_pid,omitempty"`
	Jobs        map[string]int     `json:"jobs"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check tools, directories and render activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{
				Tools:       preflight.CheckSystemDeps(cmd.Context(), cfg),
				Directories: preflight.DirectoryChecks(cfg),
				Jobs:        map[string]int{},
			}
			held, pid, err := busy.Held(cfg.LockPath())
			if err != nil {
				return err
			}
			report.Rendering, report.RenderPID = held, pid

			err = ctx.withStore(func(store *jobs.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				for status, count := range stats {
					report.Jobs[string(status)] = count
				}
				return nil
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range statusLines(report, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func statusLines(report statusReport, colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Tools", colorize)...)
	lines = append(lines, dependencyLines(report.Tools, colorize)...)

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Directories", colorize)...)
	for _, result := range report.Directories {
		kind := statusOK
		if !result.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Renders", colorize)...)
	if report.Rendering {
		msg := "In progress"
		if report.RenderPID > 0 {
			msg = fmt.Sprintf("In progress (pid %d)", report.RenderPID)
		}
		lines = append(lines, renderStatusLine("Active render", statusWarn, msg, colorize))
	} else {
		lines = append(lines, renderStatusLine("Active render", statusInfo, "Idle", colorize))
	}
	for _, status := range jobs.AllStatuses() {
		count := report.Jobs[string(status)]
		lines = append(lines, renderStatusLine(titleCase(string(status)), jobStatusKind(status, count), fmt.Sprintf("%d", count), colorize))
	}
	return lines
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	missing := make([]string, 0)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func jobStatusKind(status jobs.Status, count int) statusKind {
	switch {
	case count == 0:
		return statusInfo
	case status == jobs.StatusFailed:
		return statusWarn
	case status == jobs.StatusCompleted:
		return statusOK
	default:
		return statusInfo
	}
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
