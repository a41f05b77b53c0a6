// Package logging builds the slog loggers used across canvasbridge. It
// provides a console handler for interactive use, a JSON handler for log
// files, and small attr helpers shared by every component.
package logging
