// Package overlay models the timed, positioned text and image layers that are
// composited onto video frames.
//
// Key types:
//   - Overlay: a tagged union (Kind text|image) with shared geometry, opacity,
//     stacking order and a visibility window in source-video seconds
//   - Set: the in-memory overlay collection of one editing session; assigns
//     identities and monotonically increasing zIndex values
//
// Active selects the overlays visible at a playhead, ordered for drawing.
package overlay
