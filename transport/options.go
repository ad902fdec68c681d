package transport

import "net"

// Options selects how a connection is wrapped into a Transport.
// Both peers of a connection must agree on Framed.
type Options struct {
	BufferSize   int    // socket read/write buffer, 0 selects 4096
	Framed       bool   // wrap the socket in a Framed transport
	MaxFrameSize uint32 // frame body limit, 0 selects DefaultMaxFrameSize
}

// Wrap builds the transport stack for conn. protocolType is written into
// frame headers when opts.Framed is set.
func Wrap(conn net.Conn, protocolType byte, opts Options) Transport {
	var t Transport = NewSocket(conn, opts.BufferSize)
	if opts.Framed {
		t = NewFramed(t, protocolType, opts.MaxFrameSize)
	}
	return t
}
