package registry

import (
	"sort"
	"sync"
)

// StaticRegistry keeps instances in memory. It serves single-host setups
// configured from a file, and tests. TTLs are ignored.
type StaticRegistry struct {
	mu       sync.Mutex
	services map[string]map[string]ServiceInstance
	watchers map[string][]chan []ServiceInstance
}

// NewStaticRegistry returns a registry holding the given instances.
func NewStaticRegistry(instances map[string][]ServiceInstance) *StaticRegistry {
	r := &StaticRegistry{
		services: make(map[string]map[string]ServiceInstance),
		watchers: make(map[string][]chan []ServiceInstance),
	}
	for name, list := range instances {
		for _, inst := range list {
			r.put(name, inst)
		}
	}
	return r
}

func (r *StaticRegistry) put(serviceName string, instance ServiceInstance) {
	m, ok := r.services[serviceName]
	if !ok {
		m = make(map[string]ServiceInstance)
		r.services[serviceName] = m
	}
	m[instance.Addr] = instance
}

func (r *StaticRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(serviceName, instance)
	r.notify(serviceName)
	return nil
}

func (r *StaticRegistry) Deregister(serviceName string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services[serviceName], addr)
	r.notify(serviceName)
	return nil
}

// Discover returns the instances of serviceName sorted by address.
func (r *StaticRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.list(serviceName)
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list, nil
}

func (r *StaticRegistry) list(serviceName string) []ServiceInstance {
	list := make([]ServiceInstance, 0, len(r.services[serviceName]))
	for _, inst := range r.services[serviceName] {
		list = append(list, inst)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Addr < list[j].Addr })
	return list
}

// Watch emits the instance list after every change to serviceName.
// Slow watchers miss intermediate lists but always see the latest one.
func (r *StaticRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan []ServiceInstance, 1)
	r.watchers[serviceName] = append(r.watchers[serviceName], ch)
	return ch
}

func (r *StaticRegistry) notify(serviceName string) {
	list := r.list(serviceName)
	for _, ch := range r.watchers[serviceName] {
		// drop a stale pending list so the send never blocks
		select {
		case <-ch:
		default:
		}
		ch <- list
	}
}
