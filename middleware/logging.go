package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/broady/concord"
)

// LoggingInterceptor creates an interceptor that logs calls using slog.
// It logs the start and end of each call, including duration and error status.
// Declared exceptions are logged at Warn, other errors at Error.
func LoggingInterceptor(logger *slog.Logger) concord.UnaryInterceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, call *concord.Call, next concord.HandlerFunc) (any, error) {
		start := time.Now()
		attrs := []any{slog.String("endpoint", call.EndpointID())}
		if id := RequestIDFromContext(ctx); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}

		logger.InfoContext(ctx, "request started", attrs...)

		res, err := next(ctx, call)
		attrs = append(attrs, slog.Duration("duration", time.Since(start)))

		var named concord.Named
		switch {
		case err == nil:
			logger.InfoContext(ctx, "request completed", attrs...)
		case errors.As(err, &named):
			logger.WarnContext(ctx, "request raised exception",
				append(attrs, slog.String("exception", named.ExceptionName()), slog.Any("error", err))...)
		default:
			logger.ErrorContext(ctx, "request failed", append(attrs, slog.Any("error", err))...)
		}

		return res, err
	}
}
