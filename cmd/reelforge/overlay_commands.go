package main

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelforge/internal/config"
	"reelforge/internal/media/imageio"
	"reelforge/internal/overlay"
	"reelforge/internal/placement"
	"reelforge/internal/project"
)

func newOverlayCommand(ctx *commandContext) *cobra.Command {
	var projectFlag string

	overlayCmd := &cobra.Command{
		Use:   "overlay",
		Short: "Add, edit and place overlays in a project",
	}
	addProjectFlag(overlayCmd, &projectFlag)

	overlayCmd.AddCommand(newOverlayAddTextCommand(&projectFlag))
	overlayCmd.AddCommand(newOverlayAddImageCommand(&projectFlag))
	overlayCmd.AddCommand(newOverlayListCommand(&projectFlag))
	overlayCmd.AddCommand(newOverlayRemoveCommand(&projectFlag))
	overlayCmd.AddCommand(newOverlayEditCommand(&projectFlag))
	overlayCmd.AddCommand(newOverlayDragCommand(ctx, &projectFlag))

	return overlayCmd
}

// editProject loads the project, lets fn mutate its overlay set and saves the
// result. Overlays are only checked structurally here; the source duration is
// enforced at render time.
func editProject(projectFlag string, fn func(*project.Project, *overlay.Set) error) (*project.Project, error) {
	path, err := resolveProjectPath(projectFlag)
	if err != nil {
		return nil, err
	}
	proj, err := project.Load(path)
	if err != nil {
		return nil, err
	}
	set := proj.Set()
	if err := fn(proj, set); err != nil {
		return nil, err
	}
	proj.Apply(set)
	if err := proj.Validate(0); err != nil {
		return nil, err
	}
	if err := proj.Save(); err != nil {
		return nil, err
	}
	return proj, nil
}

type timingFlags struct {
	start float64
	end   float64
}

func (f *timingFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.start, "start", 0, "Start time in seconds")
	cmd.Flags().Float64Var(&f.end, "end", 0, "End time in seconds (exclusive)")
	_ = cmd.MarkFlagRequired("end")
}

func (f *timingFlags) validate() error {
	if f.start < 0 || f.end <= f.start {
		return fmt.Errorf("invalid time window [%s, %s)", formatNumber(f.start), formatNumber(f.end))
	}
	return nil
}

type textStyleFlags struct {
	fontSize    float64
	bold        bool
	color       string
	background  string
	strokeColor string
	strokeWidth float64
	shadowColor string
}

func (f *textStyleFlags) register(cmd *cobra.Command) {
	defaults := overlay.DefaultTextStyle("")
	cmd.Flags().Float64Var(&f.fontSize, "font-size", defaults.FontSize, "Font size in preview pixels")
	cmd.Flags().BoolVar(&f.bold, "bold", false, "Use the bold face")
	cmd.Flags().StringVar(&f.color, "color", defaults.Color, "Fill color")
	cmd.Flags().StringVar(&f.background, "background", defaults.Background, "Background color")
	cmd.Flags().StringVar(&f.strokeColor, "stroke-color", defaults.StrokeColor, "Outline color")
	cmd.Flags().Float64Var(&f.strokeWidth, "stroke-width", defaults.StrokeWidth, "Outline width in preview pixels")
	cmd.Flags().StringVar(&f.shadowColor, "shadow-color", defaults.ShadowColor, "Drop shadow color")
}

// apply copies flags the user set onto style. Unset flags keep the existing
// value, so the same flags serve add-text and edit.
func (f *textStyleFlags) apply(cmd *cobra.Command, style *overlay.TextStyle) {
	changed := cmd.Flags().Changed
	if changed("font-size") {
		style.FontSize = f.fontSize
	}
	if changed("bold") {
		style.Bold = f.bold
	}
	if changed("color") {
		style.Color = f.color
	}
	if changed("background") {
		style.Background = f.background
	}
	if changed("stroke-color") {
		style.StrokeColor = f.strokeColor
	}
	if changed("stroke-width") {
		style.StrokeWidth = f.strokeWidth
	}
	if changed("shadow-color") {
		style.ShadowColor = f.shadowColor
	}
}

func newOverlayAddTextCommand(projectFlag *string) *cobra.Command {
	var box overlay.Rect
	var timing timingFlags
	var style textStyleFlags

	cmd := &cobra.Command{
		Use:   "add-text <text>",
		Short: "Add a text overlay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.TrimSpace(args[0])
			if content == "" {
				return errors.New("text content is empty")
			}
			if err := timing.validate(); err != nil {
				return err
			}
			var added overlay.Overlay
			_, err := editProject(*projectFlag, func(proj *project.Project, set *overlay.Set) error {
				o := set.AddText(content, placement.Clamp(box, proj.Viewport()), timing.start, timing.end)
				style.apply(cmd, o.Text)
				added = o.Clone()
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added text overlay %s (z %d)\n", added.ID, added.ZIndex)
			return nil
		},
	}

	cmd.Flags().Float64Var(&box.X, "x", 0, "Left edge in preview pixels")
	cmd.Flags().Float64Var(&box.Y, "y", 0, "Top edge in preview pixels")
	cmd.Flags().Float64Var(&box.Width, "width", 200, "Box width in preview pixels")
	cmd.Flags().Float64Var(&box.Height, "height", 50, "Box height in preview pixels")
	timing.register(cmd)
	style.register(cmd)
	return cmd
}

func newOverlayAddImageCommand(projectFlag *string) *cobra.Command {
	var box overlay.Rect
	var timing timingFlags

	cmd := &cobra.Command{
		Use:   "add-image <image>",
		Short: "Add an image overlay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := timing.validate(); err != nil {
				return err
			}
			imagePath, err := config.ExpandPath(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("resolve image path: %w", err)
			}
			width, height, format, err := imageio.Dimensions(imagePath)
			if err != nil {
				return err
			}

			var added overlay.Overlay
			_, err = editProject(*projectFlag, func(proj *project.Project, set *overlay.Set) error {
				stored := imagePath
				if rel, relErr := filepath.Rel(filepath.Dir(proj.Path()), imagePath); relErr == nil && !strings.HasPrefix(rel, "..") {
					stored = rel
				}
				changed := cmd.Flags().Changed
				placed := fitImageBox(box, changed("width"), changed("height"), width, height, proj.Viewport())
				o := set.AddImage(overlay.ImageSource{
					Path:          stored,
					NaturalWidth:  width,
					NaturalHeight: height,
				}, placement.Clamp(placed, proj.Viewport()), timing.start, timing.end)
				added = o.Clone()
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s image overlay %s (%dx%d, z %d)\n", format, added.ID, width, height, added.ZIndex)
			return nil
		},
	}

	cmd.Flags().Float64Var(&box.X, "x", 0, "Left edge in preview pixels")
	cmd.Flags().Float64Var(&box.Y, "y", 0, "Top edge in preview pixels")
	cmd.Flags().Float64Var(&box.Width, "width", 0, "Box width (default keeps the natural aspect ratio)")
	cmd.Flags().Float64Var(&box.Height, "height", 0, "Box height (default keeps the natural aspect ratio)")
	timing.register(cmd)
	return cmd
}

// fitImageBox sizes an image box. Explicit sizes win; a single explicit side
// derives the other from the natural aspect ratio; with neither, the natural
// size is used, shrunk to at most half the viewport.
func fitImageBox(box overlay.Rect, haveWidth, haveHeight bool, naturalW, naturalH int, vp placement.Viewport) overlay.Rect {
	aspect := float64(naturalW) / float64(naturalH)
	switch {
	case haveWidth && haveHeight:
	case haveWidth:
		box.Height = box.Width / aspect
	case haveHeight:
		box.Width = box.Height * aspect
	default:
		box.Width = float64(naturalW)
		box.Height = float64(naturalH)
		scale := math.Min(vp.Width/2/box.Width, vp.Height/2/box.Height)
		if scale < 1 {
			box.Width *= scale
			box.Height *= scale
		}
	}
	return box
}

func newOverlayListCommand(projectFlag *string) *cobra.Command {
	var jsonOutput bool
	var at float64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List overlays in draw order",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveProjectPath(*projectFlag)
			if err != nil {
				return err
			}
			proj, err := project.Load(path)
			if err != nil {
				return err
			}
			set := proj.Set()
			var overlays []overlay.Overlay
			if cmd.Flags().Changed("at") {
				overlays = set.Active(at)
			} else {
				overlays = sortedByZ(set.All())
			}
			if jsonOutput {
				if overlays == nil {
					overlays = []overlay.Overlay{}
				}
				return writeJSON(cmd, overlays)
			}
			if len(overlays) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No overlays")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Kind", "Content", "Box", "Window", "Z", "Opacity", "Rotation"},
				buildOverlayRows(overlays),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().Float64Var(&at, "at", 0, "Only list overlays visible at this time in seconds")
	return cmd
}

// sortedByZ orders overlays the way they stack, ignoring time windows.
func sortedByZ(overlays []overlay.Overlay) []overlay.Overlay {
	slices.SortStableFunc(overlays, func(a, b overlay.Overlay) int {
		return a.ZIndex - b.ZIndex
	})
	return overlays
}

func buildOverlayRows(overlays []overlay.Overlay) [][]string {
	rows := make([][]string, 0, len(overlays))
	for _, o := range overlays {
		rows = append(rows, []string{
			shortID(o.ID),
			string(o.Kind),
			o.Label(),
			fmt.Sprintf("%s,%s %sx%s", formatNumber(o.X), formatNumber(o.Y), formatNumber(o.Width), formatNumber(o.Height)),
			fmt.Sprintf("%s - %s", formatSeconds(o.StartTime), formatSeconds(o.EndTime)),
			strconv.Itoa(o.ZIndex),
			formatNumber(o.Opacity),
			formatNumber(o.Rotation),
		})
	}
	return rows
}

func newOverlayRemoveCommand(projectFlag *string) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "remove [id...]",
		Short: "Remove overlays by id or id prefix",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("specify overlay ids or --all")
			}
			removed := 0
			_, err := editProject(*projectFlag, func(_ *project.Project, set *overlay.Set) error {
				if all {
					removed = set.Len()
					set.Clear()
					return nil
				}
				for _, ref := range args {
					o, err := resolveOverlay(set, ref)
					if err != nil {
						return err
					}
					if set.Remove(o.ID) {
						removed++
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d overlay(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every overlay")
	return cmd
}

func newOverlayEditCommand(projectFlag *string) *cobra.Command {
	var (
		x, y, width, height float64
		rotation, opacity   float64
		start, end          float64
		zIndex              int
		content             string
		style               textStyleFlags
	)

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change an overlay's geometry, timing or style",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			var edited overlay.Overlay
			_, err := editProject(*projectFlag, func(proj *project.Project, set *overlay.Set) error {
				o, err := resolveOverlay(set, args[0])
				if err != nil {
					return err
				}
				if changed("width") {
					o.Width = width
				}
				if changed("height") {
					o.Height = height
				}
				if changed("x") {
					o.X = x
				}
				if changed("y") {
					o.Y = y
				}
				if changed("rotation") {
					o.Rotation = math.Mod(rotation, 360)
				}
				if changed("opacity") {
					o.Opacity = opacity
				}
				if changed("start") {
					o.StartTime = start
				}
				if changed("end") {
					o.EndTime = end
				}
				if changed("z") {
					o.ZIndex = zIndex
				}
				if o.Kind == overlay.KindText && o.Text != nil {
					if changed("text") {
						o.Text.Content = content
					}
					style.apply(cmd, o.Text)
				} else if changed("text") {
					return fmt.Errorf("overlay %s is not a text overlay", shortID(o.ID))
				}
				clamped := placement.Clamp(o.Bounds(), proj.Viewport())
				o.X, o.Y = clamped.X, clamped.Y
				edited = o.Clone()
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated overlay %s at %s,%s\n", shortID(edited.ID), formatNumber(edited.X), formatNumber(edited.Y))
			return nil
		},
	}

	cmd.Flags().Float64Var(&x, "x", 0, "Left edge in preview pixels")
	cmd.Flags().Float64Var(&y, "y", 0, "Top edge in preview pixels")
	cmd.Flags().Float64Var(&width, "width", 0, "Box width")
	cmd.Flags().Float64Var(&height, "height", 0, "Box height")
	cmd.Flags().Float64Var(&rotation, "rotation", 0, "Clockwise rotation in degrees")
	cmd.Flags().Float64Var(&opacity, "opacity", 1, "Opacity between 0 and 1")
	cmd.Flags().Float64Var(&start, "start", 0, "Start time in seconds")
	cmd.Flags().Float64Var(&end, "end", 0, "End time in seconds (exclusive)")
	cmd.Flags().IntVar(&zIndex, "z", 0, "Stacking order")
	cmd.Flags().StringVar(&content, "text", "", "Replace the text content")
	style.register(cmd)
	return cmd
}

func newOverlayDragCommand(ctx *commandContext, projectFlag *string) *cobra.Command {
	var from string
	var to []string

	cmd := &cobra.Command{
		Use:   "drag <id>",
		Short: "Replay a pointer drag on an overlay",
		Long: "Replays a pointer drag against the preview viewport: the pointer goes down at --from,\n" +
			"moves through each --to point in order and is released. The overlay keeps the\n" +
			"grab offset and never leaves the viewport.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			down, err := parsePoint(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if len(to) == 0 {
				return errors.New("at least one --to point is required")
			}
			moves := make([]placement.Point, 0, len(to))
			for _, raw := range to {
				p, err := parsePoint(raw)
				if err != nil {
					return fmt.Errorf("--to: %w", err)
				}
				moves = append(moves, p)
			}

			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			var final overlay.Overlay
			_, err = editProject(*projectFlag, func(proj *project.Project, set *overlay.Set) error {
				o, err := resolveOverlay(set, args[0])
				if err != nil {
					return err
				}
				listener := &dragTrace{logger: logger, id: o.ID}
				dragger := placement.NewDragger(placement.SetLayout(set), proj.Viewport(), listener)
				dragger.BeginDrag(o.ID, down)
				for _, p := range moves {
					dragger.Move(p)
				}
				dragger.EndDrag()
				final = o.Clone()
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved overlay %s to %s,%s\n", shortID(final.ID), formatNumber(final.X), formatNumber(final.Y))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Pointer-down position as x,y")
	cmd.Flags().StringArrayVar(&to, "to", nil, "Pointer position as x,y (repeatable)")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func parsePoint(value string) (placement.Point, error) {
	parts := strings.Split(strings.TrimSpace(value), ",")
	if len(parts) != 2 {
		return placement.Point{}, fmt.Errorf("point %q: expected x,y", value)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return placement.Point{}, fmt.Errorf("point %q: %w", value, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return placement.Point{}, fmt.Errorf("point %q: %w", value, err)
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return placement.Point{}, fmt.Errorf("point %q is not finite", value)
	}
	return placement.Point{X: x, Y: y}, nil
}
