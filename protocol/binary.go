package protocol

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"mini-thrift/message"
	"mini-thrift/transport"
)

const (
	binaryVersion1    uint32 = 0x80010000
	binaryVersionMask uint32 = 0xffff0000
	binaryTypeMask    uint32 = 0x000000ff
)

// Binary is the fixed-width encoding.
//
//	message: i32(version|type) string(name) i32(seq)
//	field:   byte(type) i16(id)          stop: byte(0)
//	map:     byte(key) byte(value) i32(size)
//	list:    byte(elem) i32(size)
//	string:  i32(len) bytes
type Binary struct {
	trans transport.Transport
	cfg   *Config
	buf   [8]byte
}

// NewBinary returns a Binary protocol over trans.
func NewBinary(trans transport.Transport, cfg *Config) *Binary {
	return &Binary{trans: trans, cfg: cfg.normalize()}
}

func (p *Binary) Transport() transport.Transport { return p.trans }

func (p *Binary) StrictFieldTypes() bool { return p.cfg.StrictFieldTypes }

func (p *Binary) Flush() error {
	return p.trans.Flush()
}

func (p *Binary) write(b []byte) error {
	if _, err := p.trans.Write(b); err != nil {
		return errors.Wrap(err, "protocol: write")
	}
	return nil
}

func (p *Binary) read(n int) ([]byte, error) {
	b := p.buf[:n]
	if _, err := io.ReadFull(p.trans, b); err != nil {
		return nil, errors.Wrap(err, "protocol: read")
	}
	return b, nil
}

func (p *Binary) WriteMessageBegin(msg message.Message) error {
	if err := p.WriteI32(int32(binaryVersion1 | uint32(msg.Type))); err != nil {
		return err
	}
	if err := p.WriteString(msg.Name); err != nil {
		return err
	}
	return p.WriteI32(msg.SeqID)
}

func (p *Binary) WriteMessageEnd() error { return nil }
func (p *Binary) WriteStructBegin(message.StructHeader) error { return nil }
func (p *Binary) WriteStructEnd() error { return nil }
func (p *Binary) WriteFieldEnd() error { return nil }
func (p *Binary) WriteMapEnd() error { return nil }
func (p *Binary) WriteListEnd() error { return nil }
func (p *Binary) WriteSetEnd() error { return nil }
func (p *Binary) WriteFieldStop() error { return p.WriteByte(int8(message.Stop)) }
func (p *Binary) WriteSetBegin(h message.ListHeader) error { return p.WriteListBegin(h) }

func (p *Binary) WriteFieldBegin(f message.Field) error {
	if err := p.WriteByte(int8(f.Type)); err != nil {
		return err
	}
	return p.WriteI16(f.ID)
}

func (p *Binary) WriteMapBegin(h message.MapHeader) error {
	if err := p.WriteByte(int8(h.KeyType)); err != nil {
		return err
	}
	if err := p.WriteByte(int8(h.ValueType)); err != nil {
		return err
	}
	return p.WriteI32(int32(h.Size))
}

func (p *Binary) WriteListBegin(h message.ListHeader) error {
	if err := p.WriteByte(int8(h.ElemType)); err != nil {
		return err
	}
	return p.WriteI32(int32(h.Size))
}

func (p *Binary) WriteBool(v bool) error {
	if v {
		return p.WriteByte(1)
	}
	return p.WriteByte(0)
}

func (p *Binary) WriteByte(v int8) error {
	p.buf[0] = byte(v)
	return p.write(p.buf[:1])
}

func (p *Binary) WriteI16(v int16) error {
	binary.BigEndian.PutUint16(p.buf[:2], uint16(v))
	return p.write(p.buf[:2])
}

func (p *Binary) WriteI32(v int32) error {
	binary.BigEndian.PutUint32(p.buf[:4], uint32(v))
	return p.write(p.buf[:4])
}

func (p *Binary) WriteI64(v int64) error {
	binary.BigEndian.PutUint64(p.buf[:8], uint64(v))
	return p.write(p.buf[:8])
}

func (p *Binary) WriteDouble(v float64) error {
	return p.WriteI64(int64(math.Float64bits(v)))
}

func (p *Binary) WriteString(v string) error {
	if err := p.WriteI32(int32(len(v))); err != nil {
		return err
	}
	if _, err := io.WriteString(p.trans, v); err != nil {
		return errors.Wrap(err, "protocol: write")
	}
	return nil
}

func (p *Binary) WriteBinary(v []byte) error {
	if err := p.WriteI32(int32(len(v))); err != nil {
		return err
	}
	return p.write(v)
}

// ReadMessageBegin accepts the strict header (version word first) and the
// old unversioned header (name length first).
func (p *Binary) ReadMessageBegin() (message.Message, error) {
	size, err := p.ReadI32()
	if err != nil {
		return message.Message{}, err
	}
	if size < 0 {
		word := uint32(size)
		if word&binaryVersionMask != binaryVersion1 {
			return message.Message{}, NewError(BadVersion, "bad message version %#x", word&binaryVersionMask)
		}
		name, err := p.ReadString()
		if err != nil {
			return message.Message{}, err
		}
		seq, err := p.ReadI32()
		if err != nil {
			return message.Message{}, err
		}
		return message.Message{Name: name, Type: message.MessageType(word & binaryTypeMask), SeqID: seq}, nil
	}

	name, err := p.readStringBody(size)
	if err != nil {
		return message.Message{}, err
	}
	typ, err := p.ReadByte()
	if err != nil {
		return message.Message{}, err
	}
	seq, err := p.ReadI32()
	if err != nil {
		return message.Message{}, err
	}
	return message.Message{Name: name, Type: message.MessageType(typ), SeqID: seq}, nil
}

func (p *Binary) ReadMessageEnd() error { return nil }
func (p *Binary) ReadStructBegin() (message.StructHeader, error) { return message.StructHeader{}, nil }
func (p *Binary) ReadStructEnd() error { return nil }
func (p *Binary) ReadFieldEnd() error { return nil }
func (p *Binary) ReadMapEnd() error { return nil }
func (p *Binary) ReadListEnd() error { return nil }
func (p *Binary) ReadSetEnd() error { return nil }
func (p *Binary) ReadSetBegin() (message.ListHeader, error) { return p.ReadListBegin() }

func (p *Binary) ReadFieldBegin() (message.Field, error) {
	t, err := p.ReadByte()
	if err != nil {
		return message.Field{}, err
	}
	if message.TType(t) == message.Stop {
		return message.Field{Type: message.Stop}, nil
	}
	id, err := p.ReadI16()
	if err != nil {
		return message.Field{}, err
	}
	return message.Field{Type: message.TType(t), ID: id}, nil
}

func (p *Binary) ReadMapBegin() (message.MapHeader, error) {
	k, err := p.ReadByte()
	if err != nil {
		return message.MapHeader{}, err
	}
	v, err := p.ReadByte()
	if err != nil {
		return message.MapHeader{}, err
	}
	size, err := p.readContainerSize()
	if err != nil {
		return message.MapHeader{}, err
	}
	return message.MapHeader{KeyType: message.TType(k), ValueType: message.TType(v), Size: size}, nil
}

func (p *Binary) ReadListBegin() (message.ListHeader, error) {
	e, err := p.ReadByte()
	if err != nil {
		return message.ListHeader{}, err
	}
	size, err := p.readContainerSize()
	if err != nil {
		return message.ListHeader{}, err
	}
	return message.ListHeader{ElemType: message.TType(e), Size: size}, nil
}

func (p *Binary) readContainerSize() (int, error) {
	size, err := p.ReadI32()
	if err != nil {
		return 0, err
	}
	if size < 0 {
		return 0, NewError(NegativeSize, "container size %d", size)
	}
	if size > p.cfg.MaxContainerLength {
		return 0, NewError(SizeLimit, "container size %d exceeds %d", size, p.cfg.MaxContainerLength)
	}
	return int(size), nil
}

func (p *Binary) ReadBool() (bool, error) {
	b, err := p.ReadByte()
	return b != 0, err
}

func (p *Binary) ReadByte() (int8, error) {
	b, err := p.read(1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

func (p *Binary) ReadI16() (int16, error) {
	b, err := p.read(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (p *Binary) ReadI32() (int32, error) {
	b, err := p.read(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (p *Binary) ReadI64() (int64, error) {
	b, err := p.read(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (p *Binary) ReadDouble() (float64, error) {
	v, err := p.ReadI64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(v)), nil
}

func (p *Binary) ReadString() (string, error) {
	size, err := p.ReadI32()
	if err != nil {
		return "", err
	}
	return p.readStringBody(size)
}

func (p *Binary) readStringBody(size int32) (string, error) {
	b, err := p.readBytes(size)
	return string(b), err
}

func (p *Binary) ReadBinary() ([]byte, error) {
	size, err := p.ReadI32()
	if err != nil {
		return nil, err
	}
	return p.readBytes(size)
}

func (p *Binary) readBytes(size int32) ([]byte, error) {
	if size < 0 {
		return nil, NewError(NegativeSize, "string size %d", size)
	}
	if size > p.cfg.MaxStringLength {
		return nil, NewError(SizeLimit, "string size %d exceeds %d", size, p.cfg.MaxStringLength)
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(p.trans, b); err != nil {
		return nil, errors.Wrap(err, "protocol: read")
	}
	return b, nil
}

func (p *Binary) Skip(t message.TType) error {
	return Skip(p, t, p.cfg.MaxSkipDepth)
}
