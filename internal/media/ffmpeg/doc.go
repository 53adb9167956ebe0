// Package ffmpeg streams raw RGBA frames in and out of ffmpeg subprocesses.
//
// Source decodes a video at the render frame rate and serves playhead seeks by
// reading forward through a rawvideo pipe, restarting the decoder only when a
// seek moves backwards or jumps far ahead. Encoder pipes composited frames into
// a second ffmpeg process that writes a hidden temporary file next to the
// requested output; the file is renamed into place only when the sink closes
// cleanly, so an aborted render never leaves a truncated video behind.
package ffmpeg
