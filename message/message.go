// Package message defines the envelope exchanged between client and server.
//
// A Message is the header wrapping one call or reply. It is written by the
// protocol layer before the payload struct and carries the method name, the
// message type and the sequence id chosen by the client.
//
// Payload structs are self-describing: every field is preceded by a Field
// header carrying its type tag and numeric id, and the field stream ends
// with a single Stop tag. The type tag is what lets a reader skip data it
// does not understand.
package message

import "fmt"

// MessageType distinguishes calls, replies and protocol-level exceptions.
type MessageType int32

const (
	Call      MessageType = 1 // Client → Server, a reply is expected
	Reply     MessageType = 2 // Server → Client, carries the result struct
	Exception MessageType = 3 // Server → Client, carries an application exception
	Oneway    MessageType = 4 // Client → Server, no reply is written
)

func (t MessageType) String() string {
	switch t {
	case Call:
		return "CALL"
	case Reply:
		return "REPLY"
	case Exception:
		return "EXCEPTION"
	case Oneway:
		return "ONEWAY"
	}
	return fmt.Sprintf("MessageType(%d)", int32(t))
}

// Valid reports whether t is one of the four known message types.
func (t MessageType) Valid() bool {
	return t >= Call && t <= Oneway
}

// Message identifies one call/response pair.
//
//   - On request:  Name is the method, Type is Call or Oneway, SeqID is chosen by the client.
//   - On response: Name and SeqID echo the request, Type is Reply or Exception.
type Message struct {
	Name  string
	Type  MessageType
	SeqID int32
}

func (m Message) String() string {
	return fmt.Sprintf("%s(%s, seq=%d)", m.Type, m.Name, m.SeqID)
}

// TType is the wire type tag of a field or container element.
type TType byte

const (
	Stop   TType = 0 // terminates a struct's field stream, never a real field
	Void   TType = 1
	Bool   TType = 2
	Byte   TType = 3
	Double TType = 4
	I16    TType = 6
	I32    TType = 8
	I64    TType = 10
	String TType = 11 // also used for binary
	Struct TType = 12
	Map    TType = 13
	Set    TType = 14
	List   TType = 15
)

var typeNames = map[TType]string{
	Stop:   "STOP",
	Void:   "VOID",
	Bool:   "BOOL",
	Byte:   "BYTE",
	Double: "DOUBLE",
	I16:    "I16",
	I32:    "I32",
	I64:    "I64",
	String: "STRING",
	Struct: "STRUCT",
	Map:    "MAP",
	Set:    "SET",
	List:   "LIST",
}

func (t TType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TType(%d)", byte(t))
}

// Known reports whether t is a type tag the protocol layer can encode.
func (t TType) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// Field is the header preceding one encoded field value.
// Name is optional and only carried by encoders that keep it.
type Field struct {
	Name string
	Type TType
	ID   int16
}

func (f Field) String() string {
	return fmt.Sprintf("field %d (%s)", f.ID, f.Type)
}

// StructHeader is the header of an encoded struct. Binary encodings drop the name.
type StructHeader struct {
	Name string
}

// MapHeader precedes the entries of an encoded map.
type MapHeader struct {
	KeyType   TType
	ValueType TType
	Size      int
}

// ListHeader precedes the elements of an encoded list or set.
type ListHeader struct {
	ElemType TType
	Size     int
}
