package transport

// Pool hands out transports for exclusive use: a borrowed transport serves
// one caller at a time and goes back to the pool when the caller is done.
//
// Pool design: a buffered channel holds idle transports (FIFO, goroutine-safe,
// blocking on empty is built in); new transports are created lazily up to max.

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrPoolClosed is returned by Get after Close.
var ErrPoolClosed = errors.New("transport: pool closed")

// Pool manages reusable transports to a single peer.
type Pool struct {
	mu      sync.Mutex
	idle    chan *PooledTransport
	max     int
	cur     int
	closed  bool
	freed   chan struct{} // signals a slot freed by discard
	factory func() (Transport, error)
}

// PooledTransport is a Transport borrowed from a Pool.
type PooledTransport struct {
	Transport
	pool     *Pool
	unusable bool
}

// MarkUnusable flags the transport as broken; Put closes and discards it.
func (p *PooledTransport) MarkUnusable() {
	p.unusable = true
}

// NewPool creates a pool of at most max transports built by factory.
// Transports are created lazily: the pool starts empty and grows on demand.
func NewPool(max int, factory func() (Transport, error)) *Pool {
	if max <= 0 {
		max = 1
	}
	return &Pool{
		idle:    make(chan *PooledTransport, max),
		freed:   make(chan struct{}, 1),
		max:     max,
		factory: factory,
	}
}

// Get returns an idle transport, creates a new one while under the limit,
// or blocks until another caller returns one.
func (p *Pool) Get() (*PooledTransport, error) {
	for {
		select {
		case t, ok := <-p.idle:
			if !ok {
				return nil, ErrPoolClosed
			}
			if t.unusable || !t.IsOpen() {
				p.discard(t)
				continue
			}
			return t, nil
		default:
		}

		t, created, err := p.tryCreate()
		if err != nil {
			return nil, err
		}
		if created {
			return t, nil
		}

		// At capacity: block until a transport is returned or a slot frees up
		select {
		case t, ok := <-p.idle:
			if !ok {
				return nil, ErrPoolClosed
			}
			if t.unusable || !t.IsOpen() {
				p.discard(t)
				continue
			}
			return t, nil
		case <-p.freed:
		}
	}
}

// tryCreate builds a new transport when the pool is under its limit.
func (p *Pool) tryCreate() (*PooledTransport, bool, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, false, ErrPoolClosed
	}
	if p.cur >= p.max {
		p.mu.Unlock()
		return nil, false, nil
	}
	p.cur++
	p.mu.Unlock()

	t, err := p.factory()
	if err != nil {
		p.mu.Lock()
		p.cur--
		p.mu.Unlock()
		return nil, false, errors.Wrap(err, "transport: pool factory")
	}
	return &PooledTransport{Transport: t, pool: p}, true, nil
}

// Put returns a transport to the pool. Unusable transports are closed and
// their slot is freed.
func (p *Pool) Put(t *PooledTransport) {
	p.mu.Lock()
	if t.unusable || p.closed {
		p.mu.Unlock()
		p.discard(t)
		return
	}
	// never blocks: the channel holds max entries and at most max exist
	p.idle <- t
	p.mu.Unlock()
}

func (p *Pool) discard(t *PooledTransport) {
	t.Close()
	p.mu.Lock()
	p.cur--
	p.mu.Unlock()
	select {
	case p.freed <- struct{}{}:
	default:
	}
}

// Len returns the number of transports currently owned by the pool,
// idle or borrowed.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur
}

// Close closes all idle transports and wakes callers blocked in Get.
// Transports still borrowed are closed when they are returned.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.idle)
	p.mu.Unlock()

	for t := range p.idle {
		p.discard(t)
	}
	return nil
}
