// Package preflight provides readiness checks for the tools and directories
// reelforge depends on.
//
// The CLI "reelforge status" command prints every check. The render command
// runs RunAll first and refuses to start when a required check fails, so a
// missing ffmpeg or an unwritable output directory is reported before any
// job record is created.
package preflight
