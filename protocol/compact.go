package protocol

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"mini-thrift/message"
	"mini-thrift/transport"
)

const (
	compactProtocolID  byte = 0x82
	compactVersion     byte = 1
	compactVersionMask byte = 0x1f
	compactTypeMask    byte = 0xe0
	compactTypeShift        = 5
	maxVarintLen            = 10
)

// compactType is the 4-bit type tag of the compact encoding. Booleans carry
// their value in the tag, so a bool field costs one byte.
type compactType byte

const (
	ctStop      compactType = 0x00
	ctBoolTrue  compactType = 0x01
	ctBoolFalse compactType = 0x02
	ctByte      compactType = 0x03
	ctI16       compactType = 0x04
	ctI32       compactType = 0x05
	ctI64       compactType = 0x06
	ctDouble    compactType = 0x07
	ctBinary    compactType = 0x08
	ctList      compactType = 0x09
	ctSet       compactType = 0x0A
	ctMap       compactType = 0x0B
	ctStruct    compactType = 0x0C
)

var toCompactType = map[message.TType]compactType{
	message.Stop:   ctStop,
	message.Bool:   ctBoolTrue,
	message.Byte:   ctByte,
	message.I16:    ctI16,
	message.I32:    ctI32,
	message.I64:    ctI64,
	message.Double: ctDouble,
	message.String: ctBinary,
	message.List:   ctList,
	message.Set:    ctSet,
	message.Map:    ctMap,
	message.Struct: ctStruct,
}

func compactTypeOf(t message.TType) (compactType, error) {
	ct, ok := toCompactType[t]
	if !ok {
		return 0, NewError(InvalidData, "no compact encoding for %s", t)
	}
	return ct, nil
}

func ttypeOf(ct compactType) (message.TType, error) {
	switch ct {
	case ctStop:
		return message.Stop, nil
	case ctBoolTrue, ctBoolFalse:
		return message.Bool, nil
	case ctByte:
		return message.Byte, nil
	case ctI16:
		return message.I16, nil
	case ctI32:
		return message.I32, nil
	case ctI64:
		return message.I64, nil
	case ctDouble:
		return message.Double, nil
	case ctBinary:
		return message.String, nil
	case ctList:
		return message.List, nil
	case ctSet:
		return message.Set, nil
	case ctMap:
		return message.Map, nil
	case ctStruct:
		return message.Struct, nil
	}
	return 0, NewError(InvalidData, "unknown compact type %#x", byte(ct))
}

// Compact is the variable-length encoding.
//
//	message: byte(0x82) byte(type<<5|version) varint(seq) string(name)
//	field:   byte(delta<<4|type) when 0 < id-last <= 15, else byte(type) zigzag(id)
//	list:    byte(size<<4|elem) when size < 15, else byte(0xf0|elem) varint(size)
//	map:     varint(size) byte(key<<4|value), a lone 0 byte when empty
//	ints:    zigzag varints; double: 8 bytes little-endian
type Compact struct {
	trans transport.Transport
	cfg   *Config
	buf   [maxVarintLen]byte
	vbuf  []byte

	lastFieldID int16
	lastFields  []int16

	// a bool field header is held back until WriteBool supplies the value
	boolField    message.Field
	hasBoolField bool
	// a bool read from a field header, returned by the next ReadBool
	boolValue    bool
	hasBoolValue bool
}

// NewCompact returns a Compact protocol over trans.
func NewCompact(trans transport.Transport, cfg *Config) *Compact {
	return &Compact{
		trans: trans,
		cfg:   cfg.normalize(),
		vbuf:  make([]byte, 0, maxVarintLen),
	}
}

func (p *Compact) Transport() transport.Transport { return p.trans }

func (p *Compact) StrictFieldTypes() bool { return p.cfg.StrictFieldTypes }

func (p *Compact) Flush() error {
	return p.trans.Flush()
}

func (p *Compact) write(b []byte) error {
	if _, err := p.trans.Write(b); err != nil {
		return errors.Wrap(err, "protocol: write")
	}
	return nil
}

func (p *Compact) writeRaw(b byte) error {
	p.buf[0] = b
	return p.write(p.buf[:1])
}

func (p *Compact) writeVarint(v uint64) error {
	p.vbuf = protowire.AppendVarint(p.vbuf[:0], v)
	return p.write(p.vbuf)
}

func (p *Compact) writeZigZag(v int64) error {
	return p.writeVarint(protowire.EncodeZigZag(v))
}

func (p *Compact) WriteMessageBegin(msg message.Message) error {
	if err := p.writeRaw(compactProtocolID); err != nil {
		return err
	}
	vt := (compactVersion & compactVersionMask) | ((byte(msg.Type) << compactTypeShift) & compactTypeMask)
	if err := p.writeRaw(vt); err != nil {
		return err
	}
	if err := p.writeVarint(uint64(uint32(msg.SeqID))); err != nil {
		return err
	}
	return p.WriteString(msg.Name)
}

func (p *Compact) WriteMessageEnd() error { return nil }

func (p *Compact) WriteStructBegin(message.StructHeader) error {
	p.lastFields = append(p.lastFields, p.lastFieldID)
	p.lastFieldID = 0
	return nil
}

func (p *Compact) WriteStructEnd() error {
	n := len(p.lastFields)
	if n == 0 {
		return NewError(InvalidData, "struct end without struct begin")
	}
	p.lastFieldID = p.lastFields[n-1]
	p.lastFields = p.lastFields[:n-1]
	return nil
}

func (p *Compact) WriteFieldBegin(f message.Field) error {
	if f.Type == message.Bool {
		p.boolField = f
		p.hasBoolField = true
		return nil
	}
	ct, err := compactTypeOf(f.Type)
	if err != nil {
		return err
	}
	return p.writeFieldHeader(f.ID, ct)
}

func (p *Compact) writeFieldHeader(id int16, ct compactType) error {
	delta := int(id) - int(p.lastFieldID)
	if id > p.lastFieldID && delta <= 15 {
		if err := p.writeRaw(byte(delta<<4) | byte(ct)); err != nil {
			return err
		}
	} else {
		if err := p.writeRaw(byte(ct)); err != nil {
			return err
		}
		if err := p.writeZigZag(int64(id)); err != nil {
			return err
		}
	}
	p.lastFieldID = id
	return nil
}

func (p *Compact) WriteFieldEnd() error { return nil }
func (p *Compact) WriteFieldStop() error { return p.writeRaw(byte(ctStop)) }

func (p *Compact) WriteMapBegin(h message.MapHeader) error {
	if h.Size == 0 {
		return p.writeRaw(0)
	}
	kt, err := compactTypeOf(h.KeyType)
	if err != nil {
		return err
	}
	vt, err := compactTypeOf(h.ValueType)
	if err != nil {
		return err
	}
	if err := p.writeVarint(uint64(h.Size)); err != nil {
		return err
	}
	return p.writeRaw(byte(kt)<<4 | byte(vt))
}

func (p *Compact) WriteMapEnd() error { return nil }

func (p *Compact) WriteListBegin(h message.ListHeader) error {
	et, err := compactTypeOf(h.ElemType)
	if err != nil {
		return err
	}
	if h.Size < 15 {
		return p.writeRaw(byte(h.Size)<<4 | byte(et))
	}
	if err := p.writeRaw(0xf0 | byte(et)); err != nil {
		return err
	}
	return p.writeVarint(uint64(h.Size))
}

func (p *Compact) WriteListEnd() error { return nil }
func (p *Compact) WriteSetBegin(h message.ListHeader) error { return p.WriteListBegin(h) }
func (p *Compact) WriteSetEnd() error { return nil }

func (p *Compact) WriteBool(v bool) error {
	ct := ctBoolFalse
	if v {
		ct = ctBoolTrue
	}
	if p.hasBoolField {
		p.hasBoolField = false
		return p.writeFieldHeader(p.boolField.ID, ct)
	}
	return p.writeRaw(byte(ct))
}

func (p *Compact) WriteByte(v int8) error { return p.writeRaw(byte(v)) }
func (p *Compact) WriteI16(v int16) error { return p.writeZigZag(int64(v)) }
func (p *Compact) WriteI32(v int32) error { return p.writeZigZag(int64(v)) }
func (p *Compact) WriteI64(v int64) error { return p.writeZigZag(v) }

func (p *Compact) WriteDouble(v float64) error {
	binary.LittleEndian.PutUint64(p.buf[:8], math.Float64bits(v))
	return p.write(p.buf[:8])
}

func (p *Compact) WriteString(v string) error {
	if err := p.writeVarint(uint64(len(v))); err != nil {
		return err
	}
	if _, err := io.WriteString(p.trans, v); err != nil {
		return errors.Wrap(err, "protocol: write")
	}
	return nil
}

func (p *Compact) WriteBinary(v []byte) error {
	if err := p.writeVarint(uint64(len(v))); err != nil {
		return err
	}
	return p.write(v)
}

func (p *Compact) readRaw() (byte, error) {
	if _, err := io.ReadFull(p.trans, p.buf[:1]); err != nil {
		return 0, errors.Wrap(err, "protocol: read")
	}
	return p.buf[0], nil
}

func (p *Compact) readVarint() (uint64, error) {
	var raw [maxVarintLen]byte
	for i := 0; i < maxVarintLen; i++ {
		b, err := p.readRaw()
		if err != nil {
			return 0, err
		}
		raw[i] = b
		if b&0x80 == 0 {
			v, n := protowire.ConsumeVarint(raw[:i+1])
			if n < 0 {
				return 0, NewError(InvalidData, "varint: %v", protowire.ParseError(n))
			}
			return v, nil
		}
	}
	return 0, NewError(InvalidData, "varint longer than %d bytes", maxVarintLen)
}

func (p *Compact) readZigZag() (int64, error) {
	v, err := p.readVarint()
	if err != nil {
		return 0, err
	}
	return protowire.DecodeZigZag(v), nil
}

func (p *Compact) ReadMessageBegin() (message.Message, error) {
	id, err := p.readRaw()
	if err != nil {
		return message.Message{}, err
	}
	if id != compactProtocolID {
		return message.Message{}, NewError(BadVersion, "expected protocol id %#x, got %#x", compactProtocolID, id)
	}
	vt, err := p.readRaw()
	if err != nil {
		return message.Message{}, err
	}
	if version := vt & compactVersionMask; version != compactVersion {
		return message.Message{}, NewError(BadVersion, "expected version %d, got %d", compactVersion, version)
	}
	seq, err := p.readVarint()
	if err != nil {
		return message.Message{}, err
	}
	name, err := p.ReadString()
	if err != nil {
		return message.Message{}, err
	}
	return message.Message{
		Name:  name,
		Type:  message.MessageType((vt & compactTypeMask) >> compactTypeShift),
		SeqID: int32(uint32(seq)),
	}, nil
}

func (p *Compact) ReadMessageEnd() error { return nil }

func (p *Compact) ReadStructBegin() (message.StructHeader, error) {
	p.lastFields = append(p.lastFields, p.lastFieldID)
	p.lastFieldID = 0
	return message.StructHeader{}, nil
}

func (p *Compact) ReadStructEnd() error {
	n := len(p.lastFields)
	if n == 0 {
		return NewError(InvalidData, "struct end without struct begin")
	}
	p.lastFieldID = p.lastFields[n-1]
	p.lastFields = p.lastFields[:n-1]
	return nil
}

func (p *Compact) ReadFieldBegin() (message.Field, error) {
	b, err := p.readRaw()
	if err != nil {
		return message.Field{}, err
	}
	ct := compactType(b & 0x0f)
	if ct == ctStop {
		return message.Field{Type: message.Stop}, nil
	}
	t, err := ttypeOf(ct)
	if err != nil {
		return message.Field{}, err
	}

	var id int16
	if delta := int16(b >> 4); delta != 0 {
		id = p.lastFieldID + delta
	} else {
		if id, err = p.ReadI16(); err != nil {
			return message.Field{}, err
		}
	}
	if t == message.Bool {
		p.boolValue = ct == ctBoolTrue
		p.hasBoolValue = true
	}
	p.lastFieldID = id
	return message.Field{Type: t, ID: id}, nil
}

func (p *Compact) ReadFieldEnd() error { return nil }

func (p *Compact) ReadMapBegin() (message.MapHeader, error) {
	size, err := p.readSize(p.cfg.MaxContainerLength, "container")
	if err != nil {
		return message.MapHeader{}, err
	}
	if size == 0 {
		return message.MapHeader{}, nil
	}
	kv, err := p.readRaw()
	if err != nil {
		return message.MapHeader{}, err
	}
	kt, err := ttypeOf(compactType(kv >> 4))
	if err != nil {
		return message.MapHeader{}, err
	}
	vt, err := ttypeOf(compactType(kv & 0x0f))
	if err != nil {
		return message.MapHeader{}, err
	}
	return message.MapHeader{KeyType: kt, ValueType: vt, Size: size}, nil
}

func (p *Compact) ReadMapEnd() error { return nil }

func (p *Compact) ReadListBegin() (message.ListHeader, error) {
	b, err := p.readRaw()
	if err != nil {
		return message.ListHeader{}, err
	}
	et, err := ttypeOf(compactType(b & 0x0f))
	if err != nil {
		return message.ListHeader{}, err
	}
	size := int(b >> 4)
	if size == 15 {
		if size, err = p.readSize(p.cfg.MaxContainerLength, "container"); err != nil {
			return message.ListHeader{}, err
		}
	}
	return message.ListHeader{ElemType: et, Size: size}, nil
}

func (p *Compact) ReadListEnd() error { return nil }
func (p *Compact) ReadSetBegin() (message.ListHeader, error) { return p.ReadListBegin() }
func (p *Compact) ReadSetEnd() error { return nil }

func (p *Compact) readSize(limit int32, what string) (int, error) {
	v, err := p.readVarint()
	if err != nil {
		return 0, err
	}
	if v > uint64(limit) {
		return 0, NewError(SizeLimit, "%s size %d exceeds %d", what, v, limit)
	}
	return int(v), nil
}

func (p *Compact) ReadBool() (bool, error) {
	if p.hasBoolValue {
		p.hasBoolValue = false
		return p.boolValue, nil
	}
	b, err := p.readRaw()
	if err != nil {
		return false, err
	}
	return compactType(b) == ctBoolTrue, nil
}

func (p *Compact) ReadByte() (int8, error) {
	b, err := p.readRaw()
	return int8(b), err
}

func (p *Compact) ReadI16() (int16, error) {
	v, err := p.readZigZag()
	if err != nil {
		return 0, err
	}
	if v < math.MinInt16 || v > math.MaxInt16 {
		return 0, NewError(InvalidData, "i16 out of range: %d", v)
	}
	return int16(v), nil
}

func (p *Compact) ReadI32() (int32, error) {
	v, err := p.readZigZag()
	if err != nil {
		return 0, err
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, NewError(InvalidData, "i32 out of range: %d", v)
	}
	return int32(v), nil
}

func (p *Compact) ReadI64() (int64, error) {
	return p.readZigZag()
}

func (p *Compact) ReadDouble() (float64, error) {
	if _, err := io.ReadFull(p.trans, p.buf[:8]); err != nil {
		return 0, errors.Wrap(err, "protocol: read")
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(p.buf[:8])), nil
}

func (p *Compact) ReadString() (string, error) {
	b, err := p.ReadBinary()
	return string(b), err
}

func (p *Compact) ReadBinary() ([]byte, error) {
	size, err := p.readSize(p.cfg.MaxStringLength, "string")
	if err != nil {
		return nil, err
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(p.trans, b); err != nil {
		return nil, errors.Wrap(err, "protocol: read")
	}
	return b, nil
}

func (p *Compact) Skip(t message.TType) error {
	return Skip(p, t, p.cfg.MaxSkipDepth)
}
