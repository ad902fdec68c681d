package transport

import (
	"bytes"
)

// Memory is a Transport backed by a bytes.Buffer. Writes append to the
// buffer, reads consume from its front, Flush is a no-op.
// It is not safe for concurrent use.
type Memory struct {
	buf    bytes.Buffer
	closed bool
}

// NewMemory returns a Memory transport pre-filled with data.
func NewMemory(data []byte) *Memory {
	m := &Memory{}
	m.buf.Write(data)
	return m
}

func (m *Memory) Read(p []byte) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	return m.buf.Read(p)
}

func (m *Memory) Write(p []byte) (int, error) {
	if m.closed {
		return 0, ErrClosed
	}
	return m.buf.Write(p)
}

func (m *Memory) Flush() error {
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.closed = true
	return nil
}

func (m *Memory) IsOpen() bool {
	return !m.closed
}

// Bytes returns the unread portion of the buffer.
func (m *Memory) Bytes() []byte {
	return m.buf.Bytes()
}

// Len returns the number of unread bytes.
func (m *Memory) Len() int {
	return m.buf.Len()
}

// Reset discards all buffered data.
func (m *Memory) Reset() {
	m.buf.Reset()
}
