// Package logging builds the slog loggers used across reelforge.
//
// Two handlers are supported: a single-line console format that promotes the
// "component" attribute into the message prefix, and a JSON format with
// ts/level/msg keys. ContextFields lifts job IDs and stage names stamped by
// the services package into log attributes, and ProgressSampler keeps frame
// progress logs from flooding the output.
package logging
