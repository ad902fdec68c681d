// Package protocol encodes the envelope, struct field headers and scalar
// values onto a transport.
//
// Two encodings are provided and selected by Type, the same way the codec
// type byte selects a serializer elsewhere in the stack:
//
//   - Binary:  fixed-width big-endian scalars, i32 length prefixes.
//   - Compact: zigzag varints, field id deltas packed with the type tag.
//
// Both are self-describing enough for Skip to consume any value knowing only
// its type tag, which is what keeps readers forward compatible.
package protocol

import (
	"fmt"
	"strings"

	"mini-thrift/message"
	"mini-thrift/transport"
)

// Type selects the wire encoding.
type Type byte

const (
	TypeBinary  Type = 1
	TypeCompact Type = 2
)

func (t Type) String() string {
	switch t {
	case TypeBinary:
		return "binary"
	case TypeCompact:
		return "compact"
	}
	return fmt.Sprintf("Type(%d)", byte(t))
}

// ParseType maps "binary" or "compact" to a Type.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binary", "":
		return TypeBinary, nil
	case "compact":
		return TypeCompact, nil
	}
	return 0, fmt.Errorf("protocol: unknown protocol %q", s)
}

const (
	DefaultMaxStringLength    = 16 << 20
	DefaultMaxContainerLength = 1 << 20
	DefaultMaxSkipDepth       = 64
)

// Config bounds what a reader is willing to decode.
type Config struct {
	MaxStringLength    int32 // bytes per string/binary value
	MaxContainerLength int32 // entries per map, list or set
	MaxSkipDepth       int   // struct/container nesting Skip will follow

	// StrictFieldTypes makes struct readers reject a known field id whose
	// wire type differs from the declared one instead of skipping it.
	StrictFieldTypes bool
}

// DefaultConfig returns the limits used when a nil Config is passed to New.
func DefaultConfig() *Config {
	return &Config{
		MaxStringLength:    DefaultMaxStringLength,
		MaxContainerLength: DefaultMaxContainerLength,
		MaxSkipDepth:       DefaultMaxSkipDepth,
	}
}

func (c *Config) normalize() *Config {
	if c == nil {
		return DefaultConfig()
	}
	out := *c
	if out.MaxStringLength <= 0 {
		out.MaxStringLength = DefaultMaxStringLength
	}
	if out.MaxContainerLength <= 0 {
		out.MaxContainerLength = DefaultMaxContainerLength
	}
	if out.MaxSkipDepth <= 0 {
		out.MaxSkipDepth = DefaultMaxSkipDepth
	}
	return &out
}

// Writer encodes values. Every call may fail with a transport error.
type Writer interface {
	WriteMessageBegin(msg message.Message) error
	WriteMessageEnd() error
	WriteStructBegin(s message.StructHeader) error
	WriteStructEnd() error
	WriteFieldBegin(f message.Field) error
	WriteFieldEnd() error
	WriteFieldStop() error
	WriteMapBegin(h message.MapHeader) error
	WriteMapEnd() error
	WriteListBegin(h message.ListHeader) error
	WriteListEnd() error
	WriteSetBegin(h message.ListHeader) error
	WriteSetEnd() error
	WriteBool(v bool) error
	WriteByte(v int8) error
	WriteI16(v int16) error
	WriteI32(v int32) error
	WriteI64(v int64) error
	WriteDouble(v float64) error
	WriteString(v string) error
	WriteBinary(v []byte) error
	Flush() error
}

// Reader decodes values written by the matching Writer.
type Reader interface {
	ReadMessageBegin() (message.Message, error)
	ReadMessageEnd() error
	ReadStructBegin() (message.StructHeader, error)
	ReadStructEnd() error
	// ReadFieldBegin returns a Field with Type message.Stop at the end of a struct.
	ReadFieldBegin() (message.Field, error)
	ReadFieldEnd() error
	ReadMapBegin() (message.MapHeader, error)
	ReadMapEnd() error
	ReadListBegin() (message.ListHeader, error)
	ReadListEnd() error
	ReadSetBegin() (message.ListHeader, error)
	ReadSetEnd() error
	ReadBool() (bool, error)
	ReadByte() (int8, error)
	ReadI16() (int16, error)
	ReadI32() (int32, error)
	ReadI64() (int64, error)
	ReadDouble() (float64, error)
	ReadString() (string, error)
	ReadBinary() ([]byte, error)

	// Skip consumes and discards one value of type t, including nested
	// structs and containers.
	Skip(t message.TType) error
	// StrictFieldTypes reports whether a type mismatch on a known field id
	// is an error rather than a skip.
	StrictFieldTypes() bool
}

// Protocol is a Reader and a Writer bound to one transport.
type Protocol interface {
	Reader
	Writer
	Transport() transport.Transport
}

// New returns a Protocol of type t over trans. A nil cfg selects DefaultConfig.
func New(t Type, trans transport.Transport, cfg *Config) (Protocol, error) {
	switch t {
	case TypeBinary:
		return NewBinary(trans, cfg), nil
	case TypeCompact:
		return NewCompact(trans, cfg), nil
	}
	return nil, NewError(NotImplemented, "unsupported protocol type %d", byte(t))
}
