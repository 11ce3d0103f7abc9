// Package logging builds the relay's slog loggers and carries them through
// context.
//
// Output is JSON on stdout by default. LOG_FORMAT=text switches to the text
// handler for local runs, and LOG_FILE additionally writes to a size-rotated
// file:
//
//	logger, closer := logging.New(logging.OptionsFromEnv(), os.Stdout)
//	defer closer.Close()
//	slog.SetDefault(logger)
//
// Request-scoped loggers pick up the X-Request-ID set by the requestid
// middleware:
//
//	logger := logging.WithRequestID(ctx, slog.Default())
//	logger.Info("ingested", slog.String("request_id", id))
package logging
