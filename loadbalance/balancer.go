// Package loadbalance picks the instance a client dials out of the list a
// registry returns.
//
// Three strategies are implemented:
//   - RoundRobin:      equal-capacity instances
//   - WeightedRandom:  instances with different capacity
//   - ConsistentHash:  affinity of a key to one instance
package loadbalance

import (
	"github.com/pkg/errors"

	"mini-thrift/registry"
)

// ErrNoInstances is returned by Pick on an empty instance list.
var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer selects one instance per dial. Implementations are goroutine-safe.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name (for logging and config).
	Name() string
}

// New returns the balancer named by strategy. key is only used by
// "consistent-hash".
func New(strategy, key string) (Balancer, error) {
	switch strategy {
	case "", "round-robin":
		return &RoundRobinBalancer{}, nil
	case "weighted-random":
		return &WeightedRandomBalancer{}, nil
	case "consistent-hash":
		return NewConsistentHashBalancer(key), nil
	}
	return nil, errors.Errorf("loadbalance: unknown strategy %q", strategy)
}
