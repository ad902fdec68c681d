// Package processor dispatches incoming calls to procedure handlers by name.
//
// A Processor owns an immutable table from method name to handler, built
// once by New. Process serves exactly one call: it reads the envelope, looks
// the name up and runs the handler, or answers with an UnknownMethod
// exception. It is driven repeatedly by a connection loop until it reports
// that the connection can no longer be used.
package processor

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"mini-thrift/codec"
	"mini-thrift/exception"
	"mini-thrift/message"
	"mini-thrift/middleware"
	"mini-thrift/protocol"
)

// Processor maps method names to handlers.
type Processor struct {
	handlers map[string]middleware.HandlerFunc
}

// New builds a Processor from handlers, each wrapped by mws in order
// (the first middleware is the outermost). The map is copied.
func New(handlers map[string]middleware.HandlerFunc, mws ...middleware.Middleware) *Processor {
	chain := middleware.Chain(mws...)
	table := make(map[string]middleware.HandlerFunc, len(handlers))
	for name, h := range handlers {
		table[name] = chain(h)
	}
	return &Processor{handlers: table}
}

// Methods returns the registered method names, sorted.
func (p *Processor) Methods() []string {
	names := make([]string, 0, len(p.handlers))
	for name := range p.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Process serves one call read from in, writing the answer to out.
// It returns true when the connection may serve another call. A false
// return always comes with the error that ended the connection, which is
// io.EOF (possibly wrapped) when the peer closed it between calls.
func (p *Processor) Process(ctx context.Context, in, out protocol.Protocol) (bool, error) {
	msg, err := in.ReadMessageBegin()
	if err != nil {
		return false, err
	}

	handler, ok := p.handlers[msg.Name]
	if !ok {
		if err := in.Skip(message.Struct); err != nil {
			return false, err
		}
		if err := in.ReadMessageEnd(); err != nil {
			return false, err
		}
		if msg.Type == message.Oneway {
			return true, nil
		}
		ae := exception.New(exception.UnknownMethod, "Invalid method name: '%s'", msg.Name)
		if err := exception.Send(out, msg.Name, msg.SeqID, ae); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := handler(ctx, &middleware.Call{Message: msg, In: in, Out: out}); err != nil {
		return false, err
	}
	return true, nil
}

// ReadArgs decodes the argument struct of call. A malformed argument struct
// is answered with a ProtocolError exception (unless the call is oneway)
// and the decode error is returned.
func ReadArgs(call *middleware.Call, args codec.Struct) error {
	if err := args.Read(call.In); err != nil {
		if call.Message.Type != message.Oneway {
			ae := exception.New(exception.ProtocolError, "%s: %s", call.Message.Name, err.Error())
			_ = exception.Send(call.Out, call.Message.Name, call.Message.SeqID, ae)
		}
		return errors.Wrapf(err, "processor: read %s arguments", call.Message.Name)
	}
	return call.In.ReadMessageEnd()
}

// WriteReply writes result in a Reply envelope echoing the call, then flushes.
// Oneway calls get no answer and nothing is written.
func WriteReply(call *middleware.Call, result codec.Struct) error {
	if call.Message.Type == message.Oneway {
		return nil
	}
	out := call.Out
	if err := out.WriteMessageBegin(message.Message{
		Name:  call.Message.Name,
		Type:  message.Reply,
		SeqID: call.Message.SeqID,
	}); err != nil {
		return err
	}
	if err := result.Write(out); err != nil {
		return err
	}
	if err := out.WriteMessageEnd(); err != nil {
		return err
	}
	return out.Flush()
}

// WriteException answers call with an application exception. Like
// WriteReply it writes nothing for a oneway call.
func WriteException(call *middleware.Call, e *exception.ApplicationException) error {
	if call.Message.Type == message.Oneway {
		return nil
	}
	return exception.Send(call.Out, call.Message.Name, call.Message.SeqID, e)
}
