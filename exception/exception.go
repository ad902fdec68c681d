// Package exception implements the application exception: the payload a
// server sends, inside an envelope of type Exception, when a call failed at
// the protocol layer rather than in the called procedure.
package exception

import (
	"fmt"

	"github.com/pkg/errors"

	"mini-thrift/codec"
	"mini-thrift/message"
	"mini-thrift/protocol"
)

// Kind classifies an application exception. Values are part of the wire format.
type Kind int32

const (
	Unknown               Kind = 0
	UnknownMethod         Kind = 1
	InvalidMessageType    Kind = 2
	WrongMethodName       Kind = 3
	BadSequenceID         Kind = 4
	MissingResult         Kind = 5
	InternalError         Kind = 6
	ProtocolError         Kind = 7
	InvalidTransform      Kind = 8
	InvalidProtocol       Kind = 9
	UnsupportedClientType Kind = 10
)

var kindNames = [...]string{
	Unknown:               "unknown",
	UnknownMethod:         "unknown method",
	InvalidMessageType:    "invalid message type",
	WrongMethodName:       "wrong method name",
	BadSequenceID:         "bad sequence id",
	MissingResult:         "missing result",
	InternalError:         "internal error",
	ProtocolError:         "protocol error",
	InvalidTransform:      "invalid transform",
	InvalidProtocol:       "invalid protocol",
	UnsupportedClientType: "unsupported client type",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int32(k))
}

const (
	fieldMessage int16 = 1
	fieldKind    int16 = 2
)

// ApplicationException is a protocol-level failure of one call. It is both
// an error and a codec.Struct:
//
//	1: string message
//	2: i32    type
type ApplicationException struct {
	Kind    Kind
	Message string
}

var _ codec.Struct = (*ApplicationException)(nil)

// New returns an ApplicationException with a formatted message.
func New(kind Kind, format string, args ...any) *ApplicationException {
	return &ApplicationException{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *ApplicationException) Error() string {
	if e.Message == "" {
		return "application exception: " + e.Kind.String()
	}
	return "application exception (" + e.Kind.String() + "): " + e.Message
}

func (e *ApplicationException) Read(r protocol.Reader) error {
	return codec.ReadStruct(r, func(f message.Field) error {
		switch f.ID {
		case fieldMessage:
			if ok, err := codec.Expect(r, f, message.String); !ok {
				return err
			}
			v, err := r.ReadString()
			if err != nil {
				return err
			}
			e.Message = v
		case fieldKind:
			if ok, err := codec.Expect(r, f, message.I32); !ok {
				return err
			}
			v, err := r.ReadI32()
			if err != nil {
				return err
			}
			e.Kind = Kind(v)
		default:
			return codec.SkipField(r, f)
		}
		return nil
	})
}

func (e *ApplicationException) Write(w protocol.Writer) error {
	return codec.WriteStruct(w, "ApplicationException", func() error {
		if e.Message != "" {
			if err := codec.WriteField(w, message.Field{Name: "message", Type: message.String, ID: fieldMessage}, func() error {
				return w.WriteString(e.Message)
			}); err != nil {
				return err
			}
		}
		return codec.WriteField(w, message.Field{Name: "type", Type: message.I32, ID: fieldKind}, func() error {
			return w.WriteI32(int32(e.Kind))
		})
	})
}

// As returns the ApplicationException in err's chain, if any.
func As(err error) (*ApplicationException, bool) {
	var ae *ApplicationException
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsKind reports whether err is, or wraps, an ApplicationException of kind.
func IsKind(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}

// Send writes e back to the caller inside an Exception envelope echoing the
// call's name and sequence id, then flushes.
func Send(w protocol.Writer, name string, seqID int32, e *ApplicationException) error {
	if err := w.WriteMessageBegin(message.Message{Name: name, Type: message.Exception, SeqID: seqID}); err != nil {
		return err
	}
	if err := e.Write(w); err != nil {
		return err
	}
	if err := w.WriteMessageEnd(); err != nil {
		return err
	}
	return w.Flush()
}
