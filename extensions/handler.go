package extensions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// SilentHandler is a slog.Handler that discards all log output
// Useful for testing when you don't want log output
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h
}

// HumanHandler is a slog.Handler that formats logs for human readability
// with proper line breaks, and draws cache trees as blocks
type HumanHandler struct {
	writer io.Writer
	level  slog.Level
}

// NewHumanHandler creates a new human-readable log handler
func NewHumanHandler(writer io.Writer, level slog.Level) *HumanHandler {
	return &HumanHandler{
		writer: writer,
		level:  level,
	}
}

func (h *HumanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *HumanHandler) Handle(ctx context.Context, record slog.Record) error {
	switch record.Message {
	case "Query Error":
		return h.handleQueryError(record)
	case "Query Panic":
		return h.handleQueryPanic(record)
	}

	if _, err := fmt.Fprintf(h.writer, "[%s] %s\n", record.Level, record.Message); err != nil {
		return err
	}
	var writeErr error
	record.Attrs(func(a slog.Attr) bool {
		if _, err := fmt.Fprintf(h.writer, "  %s: %v\n", a.Key, a.Value); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	return writeErr
}

func (h *HumanHandler) handleQueryError(record slog.Record) error {
	attrs := collect(record)
	return h.write(
		"",
		strings.Repeat("=", 70),
		"[CacheDebug] Query Error",
		strings.Repeat("=", 70),
		"",
		"Endpoint: "+attrs["endpoint"],
		"Key: "+attrs["key"],
		"Error: "+attrs["error"],
		"",
		"Cache:",
		attrs["cache_tree"],
		strings.Repeat("=", 70),
		"",
	)
}

func (h *HumanHandler) handleQueryPanic(record slog.Record) error {
	attrs := collect(record)
	return h.write(
		"",
		strings.Repeat("=", 70),
		"[CacheDebug] Query Panic",
		strings.Repeat("=", 70),
		"",
		"Endpoint: "+attrs["endpoint"],
		"Panic: "+attrs["panic"],
		"",
		"Stack Trace:",
		attrs["stack_trace"],
		strings.Repeat("=", 70),
		"",
	)
}

func (h *HumanHandler) write(lines ...string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(h.writer, line); err != nil {
			return err
		}
	}
	return nil
}

func collect(record slog.Record) map[string]string {
	attrs := make(map[string]string, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.String()
		return true
	})
	return attrs
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *HumanHandler) WithGroup(name string) slog.Handler {
	return h
}
