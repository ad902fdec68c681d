package registry

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// etcdEndpoints returns the endpoints from MINI_THRIFT_ETCD or skips the test.
func etcdEndpoints(t *testing.T) []string {
	t.Helper()
	raw := os.Getenv("MINI_THRIFT_ETCD")
	if raw == "" {
		t.Skip("MINI_THRIFT_ETCD not set")
	}
	return strings.Split(raw, ",")
}

func TestEtcdRegisterAndDiscover(t *testing.T) {
	reg, err := NewEtcdRegistry(etcdEndpoints(t), 2*time.Second)
	require.NoError(t, err)
	defer reg.Close()

	inst1 := ServiceInstance{Addr: "127.0.0.1:8001", Weight: 10, Version: "1.0"}
	inst2 := ServiceInstance{Addr: "127.0.0.1:8002", Weight: 5, Version: "1.0", Protocol: "compact"}

	require.NoError(t, reg.Register("PingService", inst1, 10))
	require.NoError(t, reg.Register("PingService", inst2, 10))

	instances, err := reg.Discover("PingService")
	require.NoError(t, err)
	assert.ElementsMatch(t, []ServiceInstance{inst1, inst2}, instances)

	require.NoError(t, reg.Deregister("PingService", inst1.Addr))
	time.Sleep(100 * time.Millisecond)

	instances, err = reg.Discover("PingService")
	require.NoError(t, err)
	assert.Equal(t, []ServiceInstance{inst2}, instances)

	require.NoError(t, reg.Deregister("PingService", inst2.Addr))
	_, err = reg.Discover("PingService")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestWatchLoopRefreshesOnEvents(t *testing.T) {
	events := make(chan clientv3.WatchResponse)
	out := make(chan []ServiceInstance, 1)
	inst := ServiceInstance{Addr: "127.0.0.1:8001"}
	go watchLoop(context.Background(), events, func() ([]ServiceInstance, error) {
		return []ServiceInstance{inst}, nil
	}, out)

	events <- clientv3.WatchResponse{}
	assert.Equal(t, []ServiceInstance{inst}, <-out)

	close(events)
	_, ok := <-out
	assert.False(t, ok)
}

func TestWatchLoopStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan clientv3.WatchResponse, 1)
	out := make(chan []ServiceInstance)
	done := make(chan struct{})
	go func() {
		watchLoop(ctx, events, func() ([]ServiceInstance, error) { return nil, ErrNotFound }, out)
		close(done)
	}()

	// nobody reads out, so the loop is parked on the send
	events <- clientv3.WatchResponse{}
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch loop still running after cancel")
	}
	_, ok := <-out
	assert.False(t, ok)
}

func TestEtcdWatchClosedByClose(t *testing.T) {
	reg, err := NewEtcdRegistry(etcdEndpoints(t), 2*time.Second)
	require.NoError(t, err)

	ch := reg.Watch("PingService")
	require.NoError(t, reg.Close())

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}
