package loadbalance

import (
	"sort"
	"strings"
	"sync"

	"github.com/lafikl/consistent"

	"mini-thrift/registry"
)

// ConsistentHashBalancer maps a key to an instance on a hash ring, so the
// same key keeps hitting the same instance while the instance set is
// stable. Pick uses the key given at construction; PickKey takes one per
// call.
type ConsistentHashBalancer struct {
	key string

	mu    sync.Mutex
	ring  *consistent.Consistent
	hosts string // sorted, comma-joined addrs the ring was built from
}

func NewConsistentHashBalancer(key string) *ConsistentHashBalancer {
	return &ConsistentHashBalancer{key: key, ring: consistent.New()}
}

func (b *ConsistentHashBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	return b.PickKey(b.key, instances)
}

// PickKey returns the instance owning key.
func (b *ConsistentHashBalancer) PickKey(key string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	b.mu.Lock()
	b.sync(instances)
	addr, err := b.ring.Get(key)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	for i := range instances {
		if instances[i].Addr == addr {
			return &instances[i], nil
		}
	}
	return nil, ErrNoInstances
}

// sync rebuilds the ring when the instance set changed. Callers hold mu.
func (b *ConsistentHashBalancer) sync(instances []registry.ServiceInstance) {
	addrs := make([]string, 0, len(instances))
	for i := range instances {
		addrs = append(addrs, instances[i].Addr)
	}
	sort.Strings(addrs)
	hosts := strings.Join(addrs, ",")
	if hosts == b.hosts {
		return
	}

	b.ring = consistent.New()
	for _, addr := range addrs {
		b.ring.Add(addr)
	}
	b.hosts = hosts
}

func (b *ConsistentHashBalancer) Name() string {
	return "consistent-hash"
}
