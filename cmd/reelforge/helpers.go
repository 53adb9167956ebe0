package main

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelforge/internal/config"
	"reelforge/internal/overlay"
)

const defaultProjectFile = "reelforge.toml"

// addProjectFlag registers --project on a command group.
func addProjectFlag(cmd *cobra.Command, target *string) {
	cmd.PersistentFlags().StringVarP(target, "project", "p", "", "Project file (default $REELFORGE_PROJECT or ./"+defaultProjectFile+")")
}

// resolveProjectPath applies the --project flag, then REELFORGE_PROJECT, then
// the default file in the working directory.
func resolveProjectPath(flagValue string) (string, error) {
	path := strings.TrimSpace(flagValue)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("REELFORGE_PROJECT"))
	}
	if path == "" {
		path = defaultProjectFile
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("resolve project path: %w", err)
	}
	return expanded, nil
}

// resolveOverlay finds an overlay by full id or unique id prefix.
func resolveOverlay(set *overlay.Set, ref string) (*overlay.Overlay, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("overlay id is required")
	}
	if o, ok := set.Get(ref); ok {
		return o, nil
	}
	var match string
	for _, o := range set.All() {
		if strings.HasPrefix(o.ID, ref) {
			if match != "" {
				return nil, fmt.Errorf("overlay id prefix %q is ambiguous", ref)
			}
			match = o.ID
		}
	}
	if match == "" {
		return nil, fmt.Errorf("overlay %q not found", ref)
	}
	o, _ := set.Get(match)
	return o, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatSeconds renders a timestamp as m:ss.mmm.
func formatSeconds(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	d := time.Duration(math.Round(seconds * float64(time.Second)))
	minutes := int(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	return fmt.Sprintf("%d:%06.3f", minutes, d.Seconds())
}

func formatNumber(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}
