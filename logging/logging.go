// Package logging wires memvfsctl's structured logging: a log/slog
// logger whose severity is runtime-adjustable via slog.LevelVar, writing
// either to stderr or to a lumberjack-rotated log file.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity is the memvfsctl log-severity vocabulary (spec ambient stack),
// one step finer-grained than slog's builtin levels: it adds TRACE below
// Debug and OFF above Error.
type Severity string

const (
	Trace   Severity = "TRACE"
	Debug   Severity = "DEBUG"
	Info    Severity = "INFO"
	Warning Severity = "WARNING"
	Error   Severity = "ERROR"
	Off     Severity = "OFF"
)

// levelForSeverity maps Severity to a slog.Level; TRACE sits one step
// below slog.LevelDebug, OFF one step above slog.LevelError so every
// record that isn't OFF remains filterable with a single LevelVar.
func levelForSeverity(s Severity) slog.Level {
	switch Severity(strings.ToUpper(string(s))) {
	case Trace:
		return slog.LevelDebug - 4
	case Debug:
		return slog.LevelDebug
	case Warning:
		return slog.LevelWarn
	case Error:
		return slog.LevelError
	case Off:
		return slog.LevelError + 4
	default:
		return slog.LevelInfo
	}
}

// Options configures New.
type Options struct {
	Severity Severity
	// LogFile, if non-empty, is rotated through lumberjack instead of
	// writing to stderr.
	LogFile    string
	MaxSizeMb  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a *slog.Logger plus the LevelVar controlling it, so callers
// can adjust severity at runtime (e.g. from a SIGHUP handler or a config
// reload) without rebuilding the logger.
func New(opts Options) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(levelForSeverity(opts.Severity))

	var w io.Writer = os.Stderr
	if opts.LogFile != "" {
		w = &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    nonZero(opts.MaxSizeMb, 100),
			MaxBackups: nonZero(opts.MaxBackups, 3),
			MaxAge:     nonZero(opts.MaxAgeDays, 28),
		}
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				a.Key = "severity"
				a.Value = slog.StringValue(string(severityForLevel(a.Value.Any().(slog.Level))))
			}
			return a
		},
	})
	return slog.New(handler), level
}

func severityForLevel(l slog.Level) Severity {
	switch {
	case l < slog.LevelDebug:
		return Trace
	case l < slog.LevelInfo:
		return Debug
	case l < slog.LevelWarn:
		return Info
	case l < slog.LevelError:
		return Warning
	default:
		return Error
	}
}

func nonZero(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// ContextWithLogger attaches logger to ctx, for handlers deep in the call
// stack (e.g. a mount's fuse op handlers) that need to log without
// threading a *slog.Logger through every signature.
type loggerKey struct{}

func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
