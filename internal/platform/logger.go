// Package platform carries the ambient concerns every command in this
// module shares: logging and environment-driven configuration. Adapted
// from the teacher's pkg/platform.
package platform

import (
	"log/slog"
	"os"
)

// InitLogger installs and returns a JSON slog.Logger at Info level,
// suitable for production use.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LogFatal logs err at Error level and exits the process.
func LogFatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
