package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-thrift/client"
	"mini-thrift/loadbalance"
	"mini-thrift/message"
	"mini-thrift/ping"
	"mini-thrift/protocol"
	"mini-thrift/registry"
	"mini-thrift/transport"
)

func start(t *testing.T, svc ping.Service, cfg Config, opts ...Option) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(ping.NewProcessor(svc), cfg, opts...)
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ln) }()
	<-s.Ready()
	t.Cleanup(func() {
		s.Shutdown(time.Second)
		assert.NoError(t, <-errc)
	})
	return s
}

func TestServeCalls(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"binary", Config{Protocol: protocol.TypeBinary}},
		{"compact framed", Config{Protocol: protocol.TypeCompact, Transport: transport.Options{Framed: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := start(t, ping.Handler{}, tt.cfg)

			c, err := client.Dial(s.Addr(), client.Options{Protocol: tt.cfg.Protocol, Transport: tt.cfg.Transport})
			require.NoError(t, err)
			defer c.Close()
			pc := ping.NewClient(c)

			v, err := pc.Ping()
			require.NoError(t, err)
			assert.Equal(t, "pong", v)
			v, err = pc.Echo("abc")
			require.NoError(t, err)
			assert.Equal(t, "abc", v)

			stats := s.Stats()
			assert.Equal(t, int64(1), stats.Accepted)
			assert.Equal(t, int64(1), stats.Active)
			// the counter moves after the reply is flushed
			assert.Eventually(t, func() bool { return s.Stats().Calls == 2 }, time.Second, 5*time.Millisecond)
		})
	}
}

func TestRegistryLifecycle(t *testing.T) {
	reg := registry.NewStaticRegistry(nil)
	s := start(t, ping.Handler{}, Config{
		ServiceName: "PingService",
		Protocol:    protocol.TypeCompact,
		Weight:      3,
	}, WithRegistry(reg))

	require.Eventually(t, func() bool {
		_, err := reg.Discover("PingService")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	c, inst, err := client.Discover(reg, &loadbalance.RoundRobinBalancer{}, "PingService", client.DefaultOptions())
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, s.Addr(), inst.Addr)
	assert.Equal(t, "compact", inst.Protocol)
	assert.Equal(t, 3, inst.Weight)

	v, err := ping.NewClient(c).Ping()
	require.NoError(t, err)
	assert.Equal(t, "pong", v)

	require.NoError(t, s.Shutdown(time.Second))
	_, err = reg.Discover("PingService")
	assert.True(t, errors.Is(err, registry.ErrNotFound))
}

func TestShutdownClosesIdleConnections(t *testing.T) {
	s := start(t, ping.Handler{}, Config{})

	c, err := client.Dial(s.Addr(), client.DefaultOptions())
	require.NoError(t, err)
	defer c.Close()
	_, err = ping.NewClient(c).Ping()
	require.NoError(t, err)

	require.NoError(t, s.Shutdown(time.Second))
	assert.Equal(t, int64(0), s.Stats().Active)

	_, err = ping.NewClient(c).Ping()
	assert.Error(t, err)
}

type blockingService struct {
	ping.Handler
	entered chan struct{}
	release chan struct{}
}

func (b *blockingService) Ping(ctx context.Context) (string, error) {
	close(b.entered)
	<-b.release
	return "late pong", nil
}

func TestShutdownWaitsForCallInProgress(t *testing.T) {
	svc := &blockingService{entered: make(chan struct{}), release: make(chan struct{})}
	s := start(t, svc, Config{})

	c, err := client.Dial(s.Addr(), client.DefaultOptions())
	require.NoError(t, err)
	defer c.Close()

	type reply struct {
		v   string
		err error
	}
	got := make(chan reply, 1)
	go func() {
		v, err := ping.NewClient(c).Ping()
		got <- reply{v, err}
	}()
	<-svc.entered

	shut := make(chan error, 1)
	go func() { shut <- s.Shutdown(2 * time.Second) }()
	time.Sleep(50 * time.Millisecond)
	close(svc.release)

	r := <-got
	require.NoError(t, r.err)
	assert.Equal(t, "late pong", r.v)
	assert.NoError(t, <-shut)
}

func TestShutdownFinishesPartialRequest(t *testing.T) {
	s := start(t, ping.Handler{}, Config{})

	mem := transport.NewMemory(nil)
	req := protocol.NewBinary(mem, nil)
	require.NoError(t, req.WriteMessageBegin(message.Message{Name: "Ping", Type: message.Call, SeqID: 1}))
	require.NoError(t, (&ping.PingArgs{}).Write(req))
	require.NoError(t, req.WriteMessageEnd())
	data := mem.Bytes()

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(data[:8])
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	shut := make(chan error, 1)
	go func() { shut <- s.Shutdown(2 * time.Second) }()
	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-shut:
		t.Fatalf("shutdown returned before the call finished: %v", err)
	default:
	}

	_, err = conn.Write(data[8:])
	require.NoError(t, err)

	in := protocol.NewBinary(transport.NewSocket(conn, 0), nil)
	msg, err := in.ReadMessageBegin()
	require.NoError(t, err)
	assert.Equal(t, message.Message{Name: "Ping", Type: message.Reply, SeqID: 1}, msg)
	var res ping.PingResult
	require.NoError(t, res.Read(in))
	require.NoError(t, in.ReadMessageEnd())
	require.True(t, res.IsSetSuccess())
	assert.Equal(t, "pong", *res.Success)

	assert.NoError(t, <-shut)
	_, err = in.ReadMessageBegin()
	assert.Error(t, err)
}

func TestShutdownTimeout(t *testing.T) {
	svc := &blockingService{entered: make(chan struct{}), release: make(chan struct{})}
	defer close(svc.release)
	s := start(t, svc, Config{})

	c, err := client.Dial(s.Addr(), client.DefaultOptions())
	require.NoError(t, err)
	defer c.Close()
	go ping.NewClient(c).Ping()
	<-svc.entered

	err = s.Shutdown(50 * time.Millisecond)
	assert.Error(t, err)
}
