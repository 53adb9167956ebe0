// Package services defines shared utilities consumed by the render pipeline
// and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp render job IDs, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures as
//     resource load, render, validation, configuration, or busy errors.
//
// Use these helpers when wiring new pipeline steps so error classification and
// log fields stay uniform.
package services
