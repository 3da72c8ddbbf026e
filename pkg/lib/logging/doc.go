// Package logging builds the launcher's slog loggers: a compact console
// format for terminals and a JSON format for everything else.
package logging
