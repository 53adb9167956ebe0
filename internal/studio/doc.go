// Package studio drives a complete render of a project file.
//
// Render serialises renders through the busy lock, probes the source video,
// validates the project's overlays against it, records the attempt in the job
// history, runs the frame renderer with sampled progress reporting, and
// optionally hands the finished file to the AV1 archiver. Every failure after
// the job record exists is written back to it before Render returns.
//
// The ffprobe, ffmpeg and image-decoding collaborators are injectable through
// Options so tests can run the whole pipeline in memory.
package studio
