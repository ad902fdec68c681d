package protocol

import (
	"mini-thrift/message"
)

// Skip consumes one value of type t from r without interpreting it.
// Nesting deeper than maxDepth is rejected.
func Skip(r Reader, t message.TType, maxDepth int) error {
	return skip(r, t, maxDepth)
}

func skip(r Reader, t message.TType, depth int) error {
	if depth <= 0 {
		return NewError(DepthLimit, "nesting too deep while skipping %s", t)
	}
	var err error
	switch t {
	case message.Bool:
		_, err = r.ReadBool()
	case message.Byte:
		_, err = r.ReadByte()
	case message.I16:
		_, err = r.ReadI16()
	case message.I32:
		_, err = r.ReadI32()
	case message.I64:
		_, err = r.ReadI64()
	case message.Double:
		_, err = r.ReadDouble()
	case message.String:
		_, err = r.ReadBinary()
	case message.Struct:
		if _, err = r.ReadStructBegin(); err != nil {
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
			if err := skip(r, f.Type, depth-1); err != nil {
				return err
			}
			if err := r.ReadFieldEnd(); err != nil {
				return err
			}
		}
		err = r.ReadStructEnd()
	case message.Map:
		h, err := r.ReadMapBegin()
		if err != nil {
			return err
		}
		for i := 0; i < h.Size; i++ {
			if err := skip(r, h.KeyType, depth-1); err != nil {
				return err
			}
			if err := skip(r, h.ValueType, depth-1); err != nil {
				return err
			}
		}
		return r.ReadMapEnd()
	case message.Set:
		h, err := r.ReadSetBegin()
		if err != nil {
			return err
		}
		for i := 0; i < h.Size; i++ {
			if err := skip(r, h.ElemType, depth-1); err != nil {
				return err
			}
		}
		return r.ReadSetEnd()
	case message.List:
		h, err := r.ReadListBegin()
		if err != nil {
			return err
		}
		for i := 0; i < h.Size; i++ {
			if err := skip(r, h.ElemType, depth-1); err != nil {
				return err
			}
		}
		return r.ReadListEnd()
	default:
		return NewError(InvalidData, "cannot skip unknown type %s", t)
	}
	return err
}
