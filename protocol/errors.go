package protocol

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies decoding failures that are not transport errors.
type ErrorKind int

const (
	UnknownError ErrorKind = iota
	InvalidData
	NegativeSize
	SizeLimit
	BadVersion
	NotImplemented
	DepthLimit
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidData:
		return "invalid data"
	case NegativeSize:
		return "negative size"
	case SizeLimit:
		return "size limit"
	case BadVersion:
		return "bad version"
	case NotImplemented:
		return "not implemented"
	case DepthLimit:
		return "depth limit"
	}
	return "unknown"
}

// Error is a malformed or unsupported input detected by the protocol layer.
type Error struct {
	Kind ErrorKind
	Msg  string
}

// NewError builds a protocol Error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return "protocol: " + e.Kind.String() + ": " + e.Msg
}

// IsError reports whether err is, or wraps, a protocol Error of the given kind.
func IsError(err error, kind ErrorKind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}
