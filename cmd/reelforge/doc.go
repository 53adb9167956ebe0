// Package main hosts the reelforge CLI entrypoint and command graph.
//
// Commands edit a project file (source video, preview size and overlays),
// render it through internal/studio, and inspect the render history. The
// package resolves configuration and logging once per invocation so
// subcommands stay thin; editing and rendering logic lives in the internal
// packages.
package main
