// Package server accepts connections and drives a processor over each one.
//
// Connection pipeline:
//
//	Accept conn → handleConn (one goroutine per connection)
//	  → transport.Wrap → protocol.New
//	  → loop Processor.Process until it reports the connection is done
//
// Calls on one connection are served strictly in order: a reply is written
// before the next request is read.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"mini-thrift/protocol"
	"mini-thrift/registry"
	"mini-thrift/transport"
)

// Processor serves one call per Process invocation.
type Processor interface {
	Process(ctx context.Context, in, out protocol.Protocol) (bool, error)
}

// Config describes what the server listens on and how it announces itself.
type Config struct {
	Addr           string // listen address, e.g. ":9090"
	AdvertiseAddr  string // address registered for discovery, e.g. "10.0.0.5:9090"
	ServiceName    string
	Protocol       protocol.Type
	ProtocolConfig *protocol.Config
	Transport      transport.Options
	RegistryTTL    int64 // seconds
	Weight         int
	Version        string
}

// Stats is a snapshot of the server counters.
type Stats struct {
	Accepted int64 // connections accepted since start
	Active   int64 // connections currently open
	Calls    int64 // calls served
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the logger for connection-level events.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRegistry makes Serve register the service under cfg.ServiceName and
// Shutdown deregister it.
func WithRegistry(reg registry.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// Server runs a Processor on every accepted connection.
type Server struct {
	cfg      Config
	proc     Processor
	logger   zerolog.Logger
	registry registry.Registry

	mu       sync.Mutex
	listener net.Listener
	conns    map[*serverConn]struct{}
	wg       sync.WaitGroup // tracks connection goroutines for graceful shutdown

	ctx      context.Context
	cancel   context.CancelFunc
	shutdown atomic.Bool
	ready    chan struct{}

	accepted atomic.Int64
	active   atomic.Int64
	calls    atomic.Int64
}

// New returns a Server serving proc.
func New(proc Processor, cfg Config, opts ...Option) *Server {
	if cfg.Protocol == 0 {
		cfg.Protocol = protocol.TypeBinary
	}
	if cfg.RegistryTTL <= 0 {
		cfg.RegistryTTL = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		proc:   proc,
		logger: zerolog.Nop(),
		conns:  make(map[*serverConn]struct{}),
		ctx:    ctx,
		cancel: cancel,
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListenAndServe listens on cfg.Addr and calls Serve.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "server: listen %s", s.cfg.Addr)
	}
	return s.Serve(ln)
}

// Serve registers the service if a registry is set, then accepts
// connections on ln until Shutdown. It returns nil after Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return errors.New("server: already serving")
	}
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)
	if s.shutdown.Load() {
		ln.Close()
		return nil
	}

	if s.registry != nil {
		if err := s.registry.Register(s.cfg.ServiceName, s.instance(), s.cfg.RegistryTTL); err != nil {
			ln.Close()
			return errors.Wrap(err, "server: register")
		}
	}

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("protocol", s.cfg.Protocol.String()).
		Bool("framed", s.cfg.Transport.Framed).
		Msg("serving")

	for {
		nc, err := ln.Accept()
		if err != nil {
			// Shutdown closes the listener, which makes Accept fail.
			if s.shutdown.Load() {
				return nil
			}
			return errors.Wrap(err, "server: accept")
		}
		conn := &serverConn{Conn: nc}
		if !s.track(conn) {
			nc.Close()
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) instance() registry.ServiceInstance {
	addr := s.cfg.AdvertiseAddr
	if addr == "" {
		addr = s.Addr()
	}
	return registry.ServiceInstance{
		Addr:     addr,
		Weight:   s.cfg.Weight,
		Version:  s.cfg.Version,
		Protocol: s.cfg.Protocol.String(),
		Framed:   s.cfg.Transport.Framed,
	}
}

// Addr returns the listener address once Serve has been called.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Ready is closed once Serve has taken its listener.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// serverConn marks a connection busy from the first byte of a request until
// the call has been answered.
type serverConn struct {
	net.Conn

	mu       sync.Mutex
	busy     bool
	draining bool
}

func (c *serverConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.mu.Lock()
		if !c.busy && c.draining {
			// a request started just as the deadline was set; let it finish
			c.Conn.SetReadDeadline(time.Time{})
		}
		c.busy = true
		c.mu.Unlock()
	}
	return n, err
}

func (c *serverConn) idle() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// drain wakes the connection if it is waiting for a request. A busy
// connection is left alone and exits after its reply.
func (c *serverConn) drain(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draining = true
	if !c.busy {
		c.Conn.SetReadDeadline(now)
	}
}

// track records conn as open. It fails once shutdown has started.
func (s *Server) track(conn *serverConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.accepted.Inc()
	s.active.Inc()
	return true
}

func (s *Server) untrack(conn *serverConn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.active.Dec()
	s.wg.Done()
}

func (s *Server) handleConn(conn *serverConn) {
	defer s.untrack(conn)
	defer conn.Close()

	logger := s.logger.With().Str("remote", conn.RemoteAddr().String()).Logger()
	logger.Debug().Msg("connection opened")

	trans := transport.Wrap(conn, byte(s.cfg.Protocol), s.cfg.Transport)
	proto, err := protocol.New(s.cfg.Protocol, trans, s.cfg.ProtocolConfig)
	if err != nil {
		logger.Error().Err(err).Msg("build protocol")
		return
	}

	for {
		ok, err := s.proc.Process(s.ctx, proto, proto)
		if !ok {
			s.logClose(logger, err)
			return
		}
		s.calls.Inc()
		conn.idle()
		if s.shutdown.Load() {
			logger.Debug().Msg("connection drained")
			return
		}
	}
}

func (s *Server) logClose(logger zerolog.Logger, err error) {
	if err == nil || isClosedConn(err) || s.shutdown.Load() {
		logger.Debug().Err(err).Msg("connection closed")
		return
	}
	logger.Warn().Err(err).Msg("connection dropped")
}

// Stats returns the current counters.
func (s *Server) Stats() Stats {
	return Stats{
		Accepted: s.accepted.Load(),
		Active:   s.active.Load(),
		Calls:    s.calls.Load(),
	}
}

// Shutdown stops the server gracefully:
//  1. Deregister from the registry so clients stop picking this server
//  2. Close the listener
//  3. Let calls in progress finish, then close idle connections
//  4. Wait up to timeout, then force-close whatever is left
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.shutdown.Swap(true) {
		return nil
	}

	var firstErr error
	if s.registry != nil {
		if err := s.registry.Deregister(s.cfg.ServiceName, s.instance().Addr); err != nil {
			firstErr = errors.Wrap(err, "server: deregister")
		}
	}

	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	// Idle connections wake up with a timeout error. Busy ones finish the
	// call in hand and close after writing the reply.
	now := time.Now()
	for conn := range s.conns {
		conn.drain(now)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return firstErr
	case <-time.After(timeout):
	}

	s.cancel()
	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()
	if firstErr == nil {
		firstErr = errors.New("server: timeout waiting for connections to finish")
	}
	return firstErr
}
