// Package logging builds the slog loggers used across the pipeline: a
// human-readable console handler for interactive use and a JSON handler for
// log files, plus helpers that lift trial/stage/camera identifiers out of
// the context into structured fields.
package logging
