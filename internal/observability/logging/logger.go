package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"reel-relay/internal/handler/http/requestid"
)

// Options controls handler construction. OptionsFromEnv fills it from LOG_*.
type Options struct {
	Level  slog.Level
	Text   bool
	File   string
	MaxMB  int
	Backup int
}

// OptionsFromEnv reads LOG_LEVEL (debug|info|warn|error), LOG_FORMAT and LOG_FILE.
// Unknown levels mean info.
func OptionsFromEnv() Options {
	return Options{
		Level:  parseLevel(os.Getenv("LOG_LEVEL")),
		Text:   strings.EqualFold(os.Getenv("LOG_FORMAT"), "text"),
		File:   strings.TrimSpace(os.Getenv("LOG_FILE")),
		MaxMB:  100,
		Backup: 5,
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger writing to out and, when opts.File is set, to a
// lumberjack-rotated file as well. The returned Closer releases the file.
func New(opts Options, out io.Writer) (*slog.Logger, io.Closer) {
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxMB,
			MaxBackups: opts.Backup,
			Compress:   true,
		}
		out = io.MultiWriter(out, rotator)
		closer = rotator
	}

	ho := &slog.HandlerOptions{
		Level: opts.Level,
		// debug のときだけソース位置を付ける
		AddSource: opts.Level <= slog.LevelDebug,
	}
	var h slog.Handler
	if opts.Text {
		h = slog.NewTextHandler(out, ho)
	} else {
		h = slog.NewJSONHandler(out, ho)
	}
	return slog.New(h), closer
}

// WithRequestID returns logger annotated with the context's request id, if any.
func WithRequestID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	reqID := requestid.FromContext(ctx)
	if reqID == "" {
		return logger
	}
	return logger.With(slog.String("request_id", reqID))
}

// FromContext returns the logger stored by WithLogger, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

type contextKey string

const loggerContextKey contextKey = "logger"
