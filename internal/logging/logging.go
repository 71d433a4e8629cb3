package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the process-wide structured logger.
var Logger *slog.Logger

func init() {
	Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Setup configures the logger. A nil writer means stderr.
func Setup(verbose bool, jsonOutput bool, w io.Writer) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	if w == nil {
		w = os.Stderr
	}

	if jsonOutput {
		Logger = slog.New(slog.NewJSONHandler(w, opts))
	} else {
		Logger = slog.New(slog.NewTextHandler(w, opts))
	}
}

func Debug(msg string, args ...any) { Logger.Debug(msg, args...) }

func Info(msg string, args ...any) { Logger.Info(msg, args...) }

func Warn(msg string, args ...any) { Logger.Warn(msg, args...) }

func Error(msg string, args ...any) { Logger.Error(msg, args...) }

// With returns a child logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return Logger.With(args...)
}
