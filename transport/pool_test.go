package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryFactory(created *int, mu *sync.Mutex) func() (Transport, error) {
	return func() (Transport, error) {
		mu.Lock()
		*created++
		mu.Unlock()
		return NewMemory(nil), nil
	}
}

func TestPoolReuse(t *testing.T) {
	var (
		mu      sync.Mutex
		created int
	)
	p := NewPool(2, memoryFactory(&created, &mu))

	t1, err := p.Get()
	require.NoError(t, err)
	p.Put(t1)

	t2, err := p.Get()
	require.NoError(t, err)
	assert.Same(t, t1, t2)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, p.Len())
}

func TestPoolBlocksAtCapacity(t *testing.T) {
	var (
		mu      sync.Mutex
		created int
	)
	p := NewPool(1, memoryFactory(&created, &mu))

	t1, err := p.Get()
	require.NoError(t, err)

	got := make(chan *PooledTransport)
	go func() {
		t2, err := p.Get()
		if err == nil {
			got <- t2
		}
	}()

	select {
	case <-got:
		t.Fatal("Get should block while the only transport is borrowed")
	case <-time.After(50 * time.Millisecond):
	}

	p.Put(t1)
	select {
	case t2 := <-got:
		assert.Same(t, t1, t2)
	case <-time.After(time.Second):
		t.Fatal("Get did not wake up after Put")
	}
}

func TestPoolDiscardsUnusable(t *testing.T) {
	var (
		mu      sync.Mutex
		created int
	)
	p := NewPool(1, memoryFactory(&created, &mu))

	t1, err := p.Get()
	require.NoError(t, err)
	t1.MarkUnusable()
	p.Put(t1)
	assert.False(t, t1.IsOpen())
	assert.Equal(t, 0, p.Len())

	t2, err := p.Get()
	require.NoError(t, err)
	assert.NotSame(t, t1, t2)
	assert.Equal(t, 2, created)
}

func TestPoolFactoryError(t *testing.T) {
	p := NewPool(1, func() (Transport, error) {
		return nil, errors.New("dial refused")
	})
	_, err := p.Get()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial refused")
	assert.Equal(t, 0, p.Len())
}

func TestPoolClose(t *testing.T) {
	var (
		mu      sync.Mutex
		created int
	)
	p := NewPool(2, memoryFactory(&created, &mu))
	t1, err := p.Get()
	require.NoError(t, err)
	p.Put(t1)

	require.NoError(t, p.Close())
	assert.False(t, t1.IsOpen())

	_, err = p.Get()
	assert.True(t, errors.Is(err, ErrPoolClosed))
}

func TestPoolWakesOnDiscard(t *testing.T) {
	var (
		mu      sync.Mutex
		created int
	)
	p := NewPool(1, memoryFactory(&created, &mu))

	t1, err := p.Get()
	require.NoError(t, err)

	got := make(chan *PooledTransport, 1)
	go func() {
		t2, err := p.Get()
		if err == nil {
			got <- t2
		}
	}()
	time.Sleep(20 * time.Millisecond)

	t1.MarkUnusable()
	p.Put(t1)
	select {
	case t2 := <-got:
		assert.NotSame(t, t1, t2)
	case <-time.After(time.Second):
		t.Fatal("Get did not wake up after a discard")
	}
}
