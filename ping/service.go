package ping

import (
	"context"

	"github.com/pkg/errors"

	"mini-thrift/exception"
	"mini-thrift/middleware"
	"mini-thrift/processor"
)

// Service is implemented by the server side of Ping.
type Service interface {
	Ping(ctx context.Context) (string, error)
	// Echo returns message. A returned *EchoError reaches the caller as the
	// declared exception; any other error as an InternalError exception.
	Echo(ctx context.Context, message string) (string, error)
}

// Handler is the stock Service: Ping answers "pong", Echo repeats its
// argument and rejects an empty one with an EchoError.
type Handler struct{}

func (Handler) Ping(ctx context.Context) (string, error) {
	return "pong", nil
}

func (Handler) Echo(ctx context.Context, message string) (string, error) {
	if message == "" {
		reason, code := "empty message", int32(400)
		return "", &EchoError{Reason: &reason, Code: &code}
	}
	return message, nil
}

// NewProcessor binds svc to the "Ping" and "Echo" methods.
func NewProcessor(svc Service, mws ...middleware.Middleware) *processor.Processor {
	h := &binding{svc: svc}
	return processor.New(map[string]middleware.HandlerFunc{
		"Ping": h.ping,
		"Echo": h.echo,
	}, mws...)
}

type binding struct {
	svc Service
}

func (b *binding) ping(ctx context.Context, call *middleware.Call) error {
	var args PingArgs
	if err := processor.ReadArgs(call, &args); err != nil {
		return err
	}
	v, err := b.svc.Ping(ctx)
	if err != nil {
		return processor.WriteException(call, internalError(call, err))
	}
	return processor.WriteReply(call, &PingResult{Success: &v})
}

func (b *binding) echo(ctx context.Context, call *middleware.Call) error {
	var args EchoArgs
	if err := processor.ReadArgs(call, &args); err != nil {
		return err
	}
	var msg string
	if args.Message != nil {
		msg = *args.Message
	}

	v, err := b.svc.Echo(ctx, msg)
	if err != nil {
		var ee *EchoError
		if errors.As(err, &ee) {
			return processor.WriteReply(call, &EchoResult{Err: ee})
		}
		return processor.WriteException(call, internalError(call, err))
	}
	return processor.WriteReply(call, &EchoResult{Success: &v})
}

func internalError(call *middleware.Call, err error) *exception.ApplicationException {
	return exception.New(exception.InternalError, "Internal error processing %s: %s", call.Message.Name, err.Error())
}
