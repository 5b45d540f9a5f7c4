package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/contriboss/python-extension-go/internal/ctxlog"
)

func newLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func loggingContext(f *logFlags, w io.Writer) context.Context {
	logger := newLogger(f.level, f.format, w)
	return ctxlog.WithLogger(context.Background(), logger)
}
