// Package registry records which addresses serve which service so that
// clients can find a server by service name.
package registry

import "github.com/pkg/errors"

// ErrNotFound is returned by Discover when a service has no instances.
var ErrNotFound = errors.New("registry: service not found")

// ServiceInstance is one server of a service.
type ServiceInstance struct {
	Addr     string `json:"addr"`
	Weight   int    `json:"weight"` // Weight for load balancing
	Version  string `json:"version,omitempty"`
	Protocol string `json:"protocol,omitempty"` // "binary" or "compact", empty means the client default
	Framed   bool   `json:"framed,omitempty"`
}

type Registry interface {
	Register(serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(serviceName string, addr string) error
	Discover(serviceName string) ([]ServiceInstance, error)
	Watch(serviceName string) <-chan []ServiceInstance
}
