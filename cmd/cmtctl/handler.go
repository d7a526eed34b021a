package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/eth2030/cmt/pkg/log"
)

// formatterHandler adapts pkg/log's LogFormatter (plain text, color, or
// JSON line rendering) to the slog.Handler interface pkg/log.Logger wraps,
// so cmtctl can pick a human-friendly format for interactive use instead of
// the package default JSON-to-stderr handler.
type formatterHandler struct {
	out       io.Writer
	formatter log.LogFormatter
	level     slog.Level
	attrs     []slog.Attr
	groups    []string
}

func newFormatterHandler(out io.Writer, formatter log.LogFormatter, level slog.Level) *formatterHandler {
	return &formatterHandler{out: out, formatter: formatter, level: level}
}

func (h *formatterHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *formatterHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		fields[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.Any()
		return true
	})

	entry := log.LogEntry{
		Timestamp: r.Time,
		Level:     slogLevelToLogLevel(r.Level),
		Message:   r.Message,
		Fields:    fields,
	}
	_, err := fmt.Fprintln(h.out, h.formatter.Format(entry))
	return err
}

func (h *formatterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *formatterHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string(nil), h.groups...), name)
	return &next
}

func slogLevelToLogLevel(l slog.Level) log.LogLevel {
	switch {
	case l < slog.LevelInfo:
		return log.DEBUG
	case l < slog.LevelWarn:
		return log.INFO
	case l < slog.LevelError:
		return log.WARN
	default:
		return log.ERROR
	}
}

func formatterForName(name string) log.LogFormatter {
	switch name {
	case "json":
		return &log.JSONFormatter{}
	case "color":
		return &log.ColorFormatter{}
	default:
		return &log.TextFormatter{}
	}
}

func slogLevelForLogLevel(l log.LogLevel) slog.Level {
	switch l {
	case log.DEBUG:
		return slog.LevelDebug
	case log.WARN:
		return slog.LevelWarn
	case log.ERROR, log.FATAL:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
