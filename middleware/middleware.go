// Package middleware wraps procedure handlers. A handler owns one call from
// the moment its envelope has been read: it must consume the argument
// struct and, for non-oneway calls, write exactly one reply or exception.
//
// Chain(A, B, C)(handler) builds A(B(C(handler))):
// A.before → B.before → C.before → handler → C.after → B.after → A.after
package middleware

import (
	"context"

	"mini-thrift/exception"
	"mini-thrift/message"
	"mini-thrift/protocol"
)

// Call is one incoming call whose envelope has been read.
type Call struct {
	Message message.Message
	In      protocol.Protocol
	Out     protocol.Protocol
}

// HandlerFunc serves one call. A returned error means the connection can no
// longer be used.
type HandlerFunc func(ctx context.Context, call *Call) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares into one, the first being the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Reject consumes the unread arguments of call and, unless the call is
// oneway, answers it with e. Middlewares use it to refuse a call without
// desynchronising the stream.
func Reject(call *Call, e error) error {
	if err := call.In.Skip(message.Struct); err != nil {
		return err
	}
	if err := call.In.ReadMessageEnd(); err != nil {
		return err
	}
	if call.Message.Type == message.Oneway {
		return nil
	}
	return sendException(call, e)
}

func sendException(call *Call, e error) error {
	ae, ok := exception.As(e)
	if !ok {
		ae = exception.New(exception.InternalError, "%s", e.Error())
	}
	return exception.Send(call.Out, call.Message.Name, call.Message.SeqID, ae)
}
