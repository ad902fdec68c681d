package transport

import (
	"io"
	"net"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTransport(t *testing.T) {
	m := NewMemory([]byte("abc"))
	_, err := m.Write([]byte("def"))
	require.NoError(t, err)
	require.NoError(t, m.Flush())

	got := make([]byte, 6)
	_, err = io.ReadFull(m, got)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(got))

	require.NoError(t, m.Close())
	assert.False(t, m.IsOpen())
	_, err = m.Write([]byte("x"))
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestFramedRoundTrip(t *testing.T) {
	wire := NewMemory(nil)
	w := NewFramed(wire, 1, 0)

	_, err := w.Write([]byte("first "))
	require.NoError(t, err)
	_, err = w.Write([]byte("frame"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	_, err = w.Write([]byte("second"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())
	// empty flush sends no frame
	require.NoError(t, w.Flush())

	assert.Equal(t, 2*HeaderSize+len("first frame")+len("second"), wire.Len())

	r := NewFramed(wire, 1, 0)
	got := make([]byte, len("first framesecond"))
	_, err = io.ReadFull(r, got)
	require.NoError(t, err)
	assert.Equal(t, "first framesecond", string(got))
}

func TestFramedProtocolMismatch(t *testing.T) {
	wire := NewMemory(nil)
	w := NewFramed(wire, 1, 0)
	_, err := w.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	r := NewFramed(wire, 2, 0)
	_, err = r.Read(make([]byte, 4))
	assert.True(t, errors.Is(err, ErrProtocolMismatch))
}

func TestFramedWriteLimit(t *testing.T) {
	w := NewFramed(NewMemory(nil), 1, 8)
	_, err := w.Write([]byte("0123456789"))
	assert.True(t, errors.Is(err, ErrFrameTooLarge))
}

func TestSocketOverPipe(t *testing.T) {
	c1, c2 := net.Pipe()
	client := NewSocket(c1, 0)
	server := NewSocket(c2, 0)
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = client.Write([]byte("ping"))
		_ = client.Flush()
	}()

	got := make([]byte, 4)
	_, err := io.ReadFull(server, got)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(got))

	require.NoError(t, server.Close())
	assert.False(t, server.IsOpen())
	// closing twice is harmless
	assert.NoError(t, server.Close())
	assert.True(t, errors.Is(server.Flush(), ErrClosed))
}

func TestWrapFramed(t *testing.T) {
	c1, c2 := net.Pipe()
	opts := Options{Framed: true, MaxFrameSize: 64}
	client := Wrap(c1, 2, opts)
	server := Wrap(c2, 2, opts)
	defer client.Close()
	defer server.Close()

	_, isFramed := client.(*Framed)
	assert.True(t, isFramed)

	go func() {
		_, _ = client.Write([]byte("hello"))
		_ = client.Flush()
	}()

	got := make([]byte, 5)
	_, err := io.ReadFull(server, got)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	_, isSocket := Wrap(c1, 2, Options{}).(*Socket)
	assert.True(t, isSocket)
}
