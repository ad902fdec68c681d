package client

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-thrift/exception"
	"mini-thrift/message"
	"mini-thrift/middleware"
	"mini-thrift/ping"
	"mini-thrift/protocol"
	"mini-thrift/server"
	"mini-thrift/transport"
)

func startServer(t testing.TB, cfg server.Config, mws ...middleware.Middleware) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := server.New(ping.NewProcessor(ping.Handler{}, mws...), cfg)
	go s.Serve(ln)
	<-s.Ready()
	t.Cleanup(func() { s.Shutdown(time.Second) })
	return s.Addr()
}

func TestPoolConcurrentCalls(t *testing.T) {
	opts := Options{Protocol: protocol.TypeCompact, Transport: transport.Options{Framed: true}}
	addr := startServer(t, server.Config{Protocol: opts.Protocol, Transport: opts.Transport})
	pool := NewPool(addr, 4, opts)
	defer pool.Close()
	pc := ping.NewClient(pool)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := fmt.Sprintf("msg-%d", i)
			got, err := pc.Echo(want)
			if err == nil && got != want {
				err = fmt.Errorf("echo %q returned %q", want, got)
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, pool.Len(), 4)
}

func TestPoolKeepsConnectionAfterExceptions(t *testing.T) {
	addr := startServer(t, server.Config{})
	pool := NewPool(addr, 1, DefaultOptions())
	defer pool.Close()

	// declared exception
	_, err := ping.NewClient(pool).Echo("")
	require.Error(t, err)
	// application exception
	err = pool.Call("Bogus", &ping.PingArgs{}, &ping.PingResult{})
	assert.True(t, exception.IsKind(err, exception.UnknownMethod))

	v, err := ping.NewClient(pool).Ping()
	require.NoError(t, err)
	assert.Equal(t, "pong", v)
	assert.Equal(t, 1, pool.Len())
}

func TestPoolDropsBrokenConnection(t *testing.T) {
	addr := startServer(t, server.Config{})
	pool := NewPool(addr, 1, DefaultOptions())
	defer pool.Close()

	// the server answers malformed arguments with a ProtocolError and hangs up
	err := pool.Call("Echo", badArgs{}, &ping.EchoResult{})
	assert.True(t, exception.IsKind(err, exception.ProtocolError), "got %v", err)
	assert.Equal(t, 0, pool.Len())

	v, err := ping.NewClient(pool).Ping()
	require.NoError(t, err)
	assert.Equal(t, "pong", v)
}

// badArgs writes a string field with a negative length.
type badArgs struct{}

func (badArgs) Read(r protocol.Reader) error { return nil }

func (badArgs) Write(w protocol.Writer) error {
	if err := w.WriteStructBegin(message.StructHeader{}); err != nil {
		return err
	}
	if err := w.WriteFieldBegin(message.Field{Type: message.String, ID: 1}); err != nil {
		return err
	}
	return w.WriteI32(-1)
}

func TestPoolRateLimitedCall(t *testing.T) {
	addr := startServer(t, server.Config{}, middleware.RateLimit(1, 1))
	pool := NewPool(addr, 1, DefaultOptions())
	defer pool.Close()
	pc := ping.NewClient(pool)

	_, err := pc.Ping()
	require.NoError(t, err)
	_, err = pc.Ping()
	assert.True(t, exception.IsKind(err, exception.InternalError), "got %v", err)
	assert.Equal(t, 1, pool.Len())
}

func TestPoolDialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	pool := NewPool(addr, 1, Options{DialTimeout: 100 * time.Millisecond})
	defer pool.Close()
	_, err = ping.NewClient(pool).Ping()
	assert.Error(t, err)
	assert.Equal(t, 0, pool.Len())
}

func TestPoolRetriesDial(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	// the server comes up while the pool is backing off
	go func() {
		time.Sleep(60 * time.Millisecond)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		s := server.New(ping.NewProcessor(ping.Handler{}), server.Config{})
		t.Cleanup(func() { s.Shutdown(time.Second) })
		s.Serve(ln)
	}()

	pool := NewPool(addr, 1, Options{MaxRetries: 5, RetryBaseDelay: 20 * time.Millisecond})
	defer pool.Close()
	v, err := ping.NewClient(pool).Ping()
	require.NoError(t, err)
	assert.Equal(t, "pong", v)
}
