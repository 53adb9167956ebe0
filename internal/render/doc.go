// Package render bakes overlays into video frames.
//
// A Job is an explicit frame iterator: each Next call seeks the Source to the
// playhead, scales the frame onto the canvas, composites the overlays visible
// at that playhead in zIndex order, and writes the canvas to the Sink. The
// loop can be driven by Run or by any other scheduler.
//
// Overlay images are pre-loaded before the encoder starts, so a decode failure
// never leaves a partial output behind. Any failure inside the frame loop
// aborts the Sink and is terminal for the Job.
package render
