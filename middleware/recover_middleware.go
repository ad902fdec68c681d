package middleware

import (
	"context"

	"github.com/pkg/errors"

	"mini-thrift/exception"
	"mini-thrift/message"
)

// Recover turns a panicking handler into an InternalError exception for the
// caller and an error for the connection loop: after a panic the position in
// the input stream is unknown, so the connection is not reused.
func Recover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Errorf("middleware: panic in %s: %v", call.Message.Name, r)
					if call.Message.Type != message.Oneway {
						_ = sendException(call, exception.New(exception.InternalError, "%s: internal error", call.Message.Name))
					}
				}
			}()
			return next(ctx, call)
		}
	}
}
