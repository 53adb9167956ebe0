// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Descriptor: the natural width, height, duration and frame rate of a
//     source video, the only probe data the renderer needs
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - Describe: Inspect reduced to a Descriptor
package ffprobe
