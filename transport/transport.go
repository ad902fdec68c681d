// Package transport provides the byte streams the protocol layer reads from
// and writes to.
//
// A Transport is a buffered, blocking byte stream: writes are collected until
// Flush pushes them to the peer, reads block until data is available. Three
// implementations are provided:
//
//   - Socket: a net.Conn with buffered reads and writes.
//   - Framed: wraps another Transport and sends each flush as one length-prefixed frame.
//   - Memory: an in-memory buffer, used by tests and for encoding to bytes.
package transport

import (
	"bufio"
	"io"
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrClosed is returned by operations on a transport that has been closed.
var ErrClosed = errors.New("transport: closed")

// Transport is the byte stream collaborator of the protocol layer.
type Transport interface {
	io.ReadWriter
	// Flush pushes buffered writes to the peer. It blocks until the
	// underlying writer accepts the data.
	Flush() error
	Close() error
	IsOpen() bool
}

const defaultBufferSize = 4096

// Socket is a Transport over a net.Conn.
type Socket struct {
	conn   net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	closed atomic.Bool
}

// NewSocket wraps conn with read and write buffers of bufSize bytes.
// A bufSize <= 0 selects the default of 4096.
func NewSocket(conn net.Conn, bufSize int) *Socket {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	return &Socket{
		conn: conn,
		r:    bufio.NewReaderSize(conn, bufSize),
		w:    bufio.NewWriterSize(conn, bufSize),
	}
}

func (s *Socket) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return s.r.Read(p)
}

func (s *Socket) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return s.w.Write(p)
}

func (s *Socket) Flush() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return errors.Wrap(s.w.Flush(), "transport: flush")
}

// Close closes the connection. Buffered writes that were not flushed are dropped.
func (s *Socket) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.conn.Close()
}

func (s *Socket) IsOpen() bool {
	return !s.closed.Load()
}

// Conn returns the underlying connection.
func (s *Socket) Conn() net.Conn {
	return s.conn
}
