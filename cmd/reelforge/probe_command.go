package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/config"
	"reelforge/internal/media/ffprobe"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "probe <video>",
		Short: "Describe a source video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve video path: %w", err)
			}
			desc, err := ffprobe.Describe(cmd.Context(), ctx.configValue().FFprobeBinary(), path)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, desc)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Path:       %s\n", desc.Path)
			fmt.Fprintf(out, "Size:       %dx%d\n", desc.Width, desc.Height)
			fmt.Fprintf(out, "Duration:   %s (%ss)\n", formatSeconds(desc.Duration), formatNumber(desc.Duration))
			fmt.Fprintf(out, "Frame rate: %s fps\n", formatNumber(desc.FrameRate))
			fmt.Fprintf(out, "Audio:      %s\n", yesNo(desc.HasAudio))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
