package server

import (
	"io"
	"net"

	"github.com/pkg/errors"

	"mini-thrift/transport"
)

// isClosedConn reports whether err is the ordinary end of a connection:
// the peer hung up, or the socket was closed locally.
func isClosedConn(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, transport.ErrClosed) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
