package logging

import (
	"context"
	"log/slog"
	"os"
	"sort"
)

// Level controls the minimum severity a Logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Field is a set of structured attributes attached to a log record.
type Field struct {
	attrs []slog.Attr
}

// WithField builds a single-attribute Field.
func WithField(key string, value interface{}) Field {
	return Field{attrs: []slog.Attr{slog.Any(key, value)}}
}

// WithFields builds a Field from a map. Keys are emitted in sorted
// order so log output is deterministic.
func WithFields(fields map[string]interface{}) Field {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return Field{attrs: attrs}
}

// Logger is a leveled structured logger backed by slog.
type Logger struct {
	sl *slog.Logger
}

// New creates a logger writing text records to stderr at the given
// minimum level.
func New(level Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level.slogLevel(),
	})
	return &Logger{sl: slog.New(handler)}
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(slog.LevelDebug, msg, fields)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.log(slog.LevelInfo, msg, fields)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(slog.LevelWarn, msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.log(slog.LevelError, msg, fields)
}

func (l *Logger) log(level slog.Level, msg string, fields []Field) {
	if l == nil || l.sl == nil {
		return
	}
	var attrs []any
	for _, f := range fields {
		for _, a := range f.attrs {
			attrs = append(attrs, a)
		}
	}
	l.sl.Log(context.Background(), level, msg, attrs...)
}
