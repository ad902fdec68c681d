package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"mini-thrift/exception"
)

// RateLimit admits calls through a token bucket refilled at r per second
// holding at most burst tokens. Refused calls are answered with an
// InternalError exception and the connection stays open.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) error {
			if !limiter.Allow() {
				return Reject(call, exception.New(exception.InternalError, "rate limit exceeded"))
			}
			return next(ctx, call)
		}
	}
}
