// EtcdRegistry stores instances in etcd, one key per instance:
//
//	Key:   /mini-thrift/{ServiceName}/{Addr}
//	Value: JSON-encoded ServiceInstance
//
// Registration uses TTL leases: if a server dies without deregistering, its
// lease expires and the entry disappears on its own.
package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	keyPrefix      = "/mini-thrift/"
	requestTimeout = 5 * time.Second
)

// EtcdRegistry implements Registry on etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client

	// ctx scopes watches; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	leases map[string]lease // key → lease kept alive by this process
}

type lease struct {
	id     clientv3.LeaseID
	cancel context.CancelFunc
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "registry: connect etcd")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EtcdRegistry{client: c, ctx: ctx, cancel: cancel, leases: make(map[string]lease)}, nil
}

func instanceKey(serviceName, addr string) string {
	return keyPrefix + serviceName + "/" + addr
}

func servicePrefix(serviceName string) string {
	return keyPrefix + serviceName + "/"
}

// Register puts instance under a lease of ttl seconds and keeps the lease
// alive until Deregister or Close.
func (r *EtcdRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	grant, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return errors.Wrap(err, "registry: grant lease")
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	key := instanceKey(serviceName, instance.Addr)
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(grant.ID)); err != nil {
		return errors.Wrapf(err, "registry: put %s", key)
	}

	// The keepalive outlives this call, so it gets its own context.
	kaCtx, kaCancel := context.WithCancel(context.Background())
	ch, err := r.client.KeepAlive(kaCtx, grant.ID)
	if err != nil {
		kaCancel()
		return errors.Wrap(err, "registry: keepalive")
	}
	go func() {
		for range ch {
		}
	}()

	r.mu.Lock()
	if old, ok := r.leases[key]; ok {
		old.cancel()
	}
	r.leases[key] = lease{id: grant.ID, cancel: kaCancel}
	r.mu.Unlock()
	return nil
}

// Deregister stops the keepalive and deletes the instance key.
func (r *EtcdRegistry) Deregister(serviceName string, addr string) error {
	key := instanceKey(serviceName, addr)
	r.mu.Lock()
	if l, ok := r.leases[key]; ok {
		l.cancel()
		delete(r.leases, key)
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if _, err := r.client.Delete(ctx, key); err != nil {
		return errors.Wrapf(err, "registry: delete %s", key)
	}
	return nil
}

// Watch emits the full instance list of serviceName after every change
// under its prefix (registration, deregistration, lease expiry). The
// channel is closed by Close.
func (r *EtcdRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)
	events := r.client.Watch(r.ctx, servicePrefix(serviceName), clientv3.WithPrefix())
	go watchLoop(r.ctx, events, func() ([]ServiceInstance, error) {
		return r.Discover(serviceName)
	}, ch)
	return ch
}

// watchLoop sends a fresh list on ch for every batch of events until events
// closes or ctx is done, then closes ch.
func watchLoop(ctx context.Context, events clientv3.WatchChan, list func() ([]ServiceInstance, error), ch chan<- []ServiceInstance) {
	defer close(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
		}
		// re-fetch the list instead of applying individual events
		instances, err := list()
		if err != nil && !errors.Is(err, ErrNotFound) {
			continue
		}
		select {
		case ch <- instances:
		case <-ctx.Done():
			return
		}
	}
}

// Discover returns all currently registered instances of serviceName.
func (r *EtcdRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := r.client.Get(ctx, servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrap(err, "registry: get")
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // skip malformed entries
		}
		instances = append(instances, instance)
	}
	if len(instances) == 0 {
		return nil, ErrNotFound
	}
	return instances, nil
}

// Close stops all keepalives and watches and closes the etcd client.
// Leases held by this process expire after their TTL.
func (r *EtcdRegistry) Close() error {
	r.cancel()
	r.mu.Lock()
	for key, l := range r.leases {
		l.cancel()
		delete(r.leases, key)
	}
	r.mu.Unlock()
	return r.client.Close()
}
