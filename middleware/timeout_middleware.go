package middleware

import (
	"context"
	"time"
)

// Timeout puts a deadline on the context the handler receives. The handler
// owns the connection's stream and is never abandoned; services watch
// ctx.Done to give up early.
func Timeout(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, call)
		}
	}
}
