package client

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"mini-thrift/codec"
	"mini-thrift/exception"
	"mini-thrift/transport"
)

// Pool shares a bounded set of connections to one server between
// goroutines. Each call borrows a connection for its whole request/reply
// exchange. Sequence ids are unique across the pool.
type Pool struct {
	opts  Options
	conns *transport.Pool
	seqID atomic.Int32
}

// NewPool returns a pool of at most size connections to addr. Connections
// are dialed lazily.
func NewPool(addr string, size int, opts Options) *Pool {
	return &Pool{
		opts: opts,
		conns: transport.NewPool(size, func() (transport.Transport, error) {
			return opts.dial(addr)
		}),
	}
}

// Call borrows a connection and performs Client.Call on it. A connection
// whose stream may be out of step after the call is discarded.
func (p *Pool) Call(method string, args codec.Struct, result codec.Result) error {
	return p.do(func(c *Client) error {
		err := c.Call(method, args, result)
		if err != nil && !replyConsumed(err, result) {
			return &brokenConnError{err}
		}
		return err
	})
}

// Oneway borrows a connection and performs Client.Oneway on it.
func (p *Pool) Oneway(method string, args codec.Struct) error {
	return p.do(func(c *Client) error {
		if err := c.Oneway(method, args); err != nil {
			return &brokenConnError{err}
		}
		return nil
	})
}

func (p *Pool) do(fn func(c *Client) error) error {
	pt, err := p.get()
	if err != nil {
		return err
	}
	defer p.conns.Put(pt)

	proto, err := p.opts.newProtocol(pt.Transport)
	if err != nil {
		pt.MarkUnusable()
		return err
	}
	c := NewFromProtocol(proto)
	c.seqID = p.seqID.Inc() - 1

	err = fn(c)
	if broken, ok := err.(*brokenConnError); ok {
		pt.MarkUnusable()
		return broken.err
	}
	return err
}

// get borrows a connection, retrying failed dials with exponential
// backoff. Nothing has been sent at that point, so a retry cannot run a
// call twice.
func (p *Pool) get() (*transport.PooledTransport, error) {
	delay := p.opts.RetryBaseDelay
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}
	for attempt := 0; ; attempt++ {
		pt, err := p.conns.Get()
		if err == nil || attempt >= p.opts.MaxRetries || errors.Is(err, transport.ErrPoolClosed) {
			return pt, err
		}
		time.Sleep(delay << attempt)
	}
}

// Len returns the number of open connections.
func (p *Pool) Len() int {
	return p.conns.Len()
}

// Close closes idle connections; borrowed ones are closed on return.
func (p *Pool) Close() error {
	return p.conns.Close()
}

type brokenConnError struct{ err error }

func (e *brokenConnError) Error() string { return e.err.Error() }

// replyConsumed reports whether Call read the whole reply before failing,
// leaving the connection usable. A server closes the connection after
// answering with a ProtocolError.
func replyConsumed(err error, result codec.Result) bool {
	if ae, ok := exception.As(err); ok {
		return ae.Kind != exception.ProtocolError
	}
	declared := result.DeclaredError()
	return declared != nil && declared == err
}
