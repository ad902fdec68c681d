package server

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini-thrift/client"
	"mini-thrift/loadbalance"
	"mini-thrift/ping"
	"mini-thrift/registry"
)

// callAll discovers PingService n times through reg and returns how many
// calls each server address took.
func callAll(t *testing.T, reg registry.Registry, bal loadbalance.Balancer, n int) map[string]int {
	t.Helper()
	hits := map[string]int{}
	for i := 0; i < n; i++ {
		c, inst, err := client.Discover(reg, bal, "PingService", client.DefaultOptions())
		require.NoError(t, err)
		v, err := ping.NewClient(c).Ping()
		c.Close()
		require.NoError(t, err)
		assert.Equal(t, "pong", v)
		hits[inst.Addr]++
	}
	return hits
}

func TestMultiServerStatic(t *testing.T) {
	reg := registry.NewStaticRegistry(nil)
	s1 := start(t, ping.Handler{}, Config{ServiceName: "PingService", Weight: 10}, WithRegistry(reg))
	s2 := start(t, ping.Handler{}, Config{ServiceName: "PingService", Weight: 10}, WithRegistry(reg))

	require.Eventually(t, func() bool {
		list, err := reg.Discover("PingService")
		return err == nil && len(list) == 2
	}, time.Second, 10*time.Millisecond)

	hits := callAll(t, reg, &loadbalance.RoundRobinBalancer{}, 10)
	assert.Equal(t, 5, hits[s1.Addr()])
	assert.Equal(t, 5, hits[s2.Addr()])

	// a consistent hash key sticks to one server
	hits = callAll(t, reg, loadbalance.NewConsistentHashBalancer("user-42"), 5)
	assert.Len(t, hits, 1)
}

func TestMultiServerEtcd(t *testing.T) {
	raw := os.Getenv("MINI_THRIFT_ETCD")
	if raw == "" {
		t.Skip("MINI_THRIFT_ETCD not set")
	}
	reg, err := registry.NewEtcdRegistry(strings.Split(raw, ","), 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	start(t, ping.Handler{}, Config{ServiceName: "PingService", Weight: 10}, WithRegistry(reg))
	start(t, ping.Handler{}, Config{ServiceName: "PingService", Weight: 10}, WithRegistry(reg))

	require.Eventually(t, func() bool {
		list, err := reg.Discover("PingService")
		return err == nil && len(list) >= 2
	}, 2*time.Second, 20*time.Millisecond)

	hits := callAll(t, reg, &loadbalance.WeightedRandomBalancer{}, 10)
	total := 0
	for _, n := range hits {
		total += n
	}
	assert.Equal(t, 10, total)
}
