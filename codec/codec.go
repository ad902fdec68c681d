// Package codec defines the contract every request and response payload
// implements, plus the helpers generated structs are written with.
//
// A payload is a struct of optional fields keyed by small integer ids.
// Write emits only the fields that are set, in declared order, followed by
// exactly one Stop marker. Read loops over field headers until Stop:
// known ids decode into the matching attribute, unknown ids are skipped
// structurally so that a peer may add fields without breaking older readers.
package codec

import (
	"mini-thrift/message"
	"mini-thrift/protocol"
	"mini-thrift/transport"
)

// Struct is implemented by every argument, result and exception payload.
type Struct interface {
	Read(r protocol.Reader) error
	Write(w protocol.Writer) error
}

// Result is a call-result struct: at most one of a success value or one of
// the declared exceptions is set.
type Result interface {
	Struct
	// IsSetSuccess reports whether field 0 (the success value) is set.
	// Procedures without a return value report true once decoded.
	IsSetSuccess() bool
	// DeclaredError returns the first set declared exception in declaration
	// order, or nil.
	DeclaredError() error
}

// ReadStruct drives the read loop of a struct: struct begin, one call to
// field per field header until Stop, struct end. field must consume the
// value, typically by decoding it or by returning SkipField.
func ReadStruct(r protocol.Reader, field func(f message.Field) error) error {
	if _, err := r.ReadStructBegin(); err != nil {
		return err
	}
	for {
		f, err := r.ReadFieldBegin()
		if err != nil {
			return err
		}
		if f.Type == message.Stop {
			break
		}
		if err := field(f); err != nil {
			return err
		}
		if err := r.ReadFieldEnd(); err != nil {
			return err
		}
	}
	return r.ReadStructEnd()
}

// SkipField discards the value of a field the reader does not know.
func SkipField(r protocol.Reader, f message.Field) error {
	return r.Skip(f.Type)
}

// Expect checks the wire type of a known field id against the declared one.
// It returns true when they match and the caller should decode the value.
// On a mismatch the value is skipped and false is returned, unless the
// reader is in strict mode, in which case a *FieldTypeMismatchError is
// returned and nothing is consumed.
func Expect(r protocol.Reader, f message.Field, want message.TType) (bool, error) {
	if f.Type == want {
		return true, nil
	}
	if r.StrictFieldTypes() {
		return false, &FieldTypeMismatchError{ID: f.ID, Got: f.Type, Want: want}
	}
	return false, r.Skip(f.Type)
}

// WriteStruct writes a struct header, the fields written by fields, the
// Stop marker and the struct end.
func WriteStruct(w protocol.Writer, name string, fields func() error) error {
	if err := w.WriteStructBegin(message.StructHeader{Name: name}); err != nil {
		return err
	}
	if fields != nil {
		if err := fields(); err != nil {
			return err
		}
	}
	if err := w.WriteFieldStop(); err != nil {
		return err
	}
	return w.WriteStructEnd()
}

// WriteField writes one field header, the value written by value, and the
// field end.
func WriteField(w protocol.Writer, f message.Field, value func() error) error {
	if err := w.WriteFieldBegin(f); err != nil {
		return err
	}
	if err := value(); err != nil {
		return err
	}
	return w.WriteFieldEnd()
}

// Encode serializes s with the given protocol into a byte slice.
func Encode(t protocol.Type, s Struct) ([]byte, error) {
	mem := transport.NewMemory(nil)
	p, err := protocol.New(t, mem, nil)
	if err != nil {
		return nil, err
	}
	if err := s.Write(p); err != nil {
		return nil, err
	}
	return mem.Bytes(), nil
}

// Decode deserializes data into s. cfg may be nil.
func Decode(t protocol.Type, data []byte, s Struct, cfg *protocol.Config) error {
	p, err := protocol.New(t, transport.NewMemory(data), cfg)
	if err != nil {
		return err
	}
	return s.Read(p)
}
