package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Logging logs every call with its duration. Failed calls are logged at warn level.
func Logging(logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) error {
			start := time.Now()
			err := next(ctx, call)
			var ev *zerolog.Event
			if err != nil {
				ev = logger.Warn().Err(err)
			} else {
				ev = logger.Debug()
			}
			ev.Str("method", call.Message.Name).
				Str("type", call.Message.Type.String()).
				Int32("seq", call.Message.SeqID).
				Dur("duration", time.Since(start)).
				Msg("call")
			return err
		}
	}
}
