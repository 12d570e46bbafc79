// Package log configures structured logging for all reporunner binaries.
package log

import (
	"log/slog"
	"os"
)

// Setup installs a text handler on the default logger at the requested
// level. Unknown level names fall back to info.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// WithModule returns a child of the default logger tagged with the
// component name.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
