package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/config"
	"reelforge/internal/project"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	var projectFlag string

	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Create and inspect project files",
	}
	addProjectFlag(projectCmd, &projectFlag)

	projectCmd.AddCommand(newProjectInitCommand(ctx, &projectFlag))
	projectCmd.AddCommand(newProjectShowCommand(&projectFlag))

	return projectCmd
}

func newProjectInitCommand(ctx *commandContext, projectFlag *string) *cobra.Command {
	var previewWidth, previewHeight float64

	cmd := &cobra.Command{
		Use:   "init <source-video>",
		Short: "Create a project for a source video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveProjectPath(*projectFlag)
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve source path: %w", err)
			}
			// Sources next to the project are stored relative so the pair
			// can be moved together.
			if rel, relErr := filepath.Rel(filepath.Dir(path), source); relErr == nil && !strings.HasPrefix(rel, "..") {
				source = rel
			}

			cfg := ctx.configValue()
			if previewWidth <= 0 {
				previewWidth = float64(cfg.Render.PreviewWidth)
			}
			if previewHeight <= 0 {
				previewHeight = float64(cfg.Render.PreviewHeight)
			}

			proj, err := project.Init(path, source, project.Preview{Width: previewWidth, Height: previewHeight})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (source %s, preview %sx%s)\n",
				proj.Path(), proj.Source, formatNumber(proj.Preview.Width), formatNumber(proj.Preview.Height))
			return nil
		},
	}

	cmd.Flags().Float64Var(&previewWidth, "preview-width", 0, "Preview viewport width (default from config)")
	cmd.Flags().Float64Var(&previewHeight, "preview-height", 0, "Preview viewport height (default from config)")
	return cmd
}

func newProjectShowCommand(projectFlag *string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show project settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveProjectPath(*projectFlag)
			if err != nil {
				return err
			}
			proj, err := project.Load(path)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, proj)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project:   %s\n", proj.Path())
			fmt.Fprintf(out, "Source:    %s\n", proj.SourcePath())
			fmt.Fprintf(out, "Preview:   %sx%s\n", formatNumber(proj.Preview.Width), formatNumber(proj.Preview.Height))
			fmt.Fprintf(out, "Overlays:  %d\n", len(proj.Overlays))
			fmt.Fprintf(out, "Next z:    %d\n", proj.NextZIndex)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
