package client

import (
	"net"
	"time"

	"github.com/pkg/errors"

	"mini-thrift/loadbalance"
	"mini-thrift/protocol"
	"mini-thrift/registry"
	"mini-thrift/transport"
)

// Options configures how a client connects.
type Options struct {
	Protocol       protocol.Type
	ProtocolConfig *protocol.Config
	Transport      transport.Options
	DialTimeout    time.Duration

	// Pool only: a failed dial is retried MaxRetries times, waiting
	// RetryBaseDelay, then twice as long before each further attempt.
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// DefaultOptions returns binary protocol over an unframed socket.
func DefaultOptions() Options {
	return Options{
		Protocol:    protocol.TypeBinary,
		DialTimeout: 5 * time.Second,
	}
}

func (o Options) dial(addr string) (transport.Transport, error) {
	timeout := o.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "client: dial %s", addr)
	}
	return transport.Wrap(conn, byte(o.Protocol), o.Transport), nil
}

func (o Options) newProtocol(trans transport.Transport) (protocol.Protocol, error) {
	t := o.Protocol
	if t == 0 {
		t = protocol.TypeBinary
	}
	return protocol.New(t, trans, o.ProtocolConfig)
}

// Dial connects to addr and returns a Client owning the connection.
func Dial(addr string, opts Options) (*Client, error) {
	trans, err := opts.dial(addr)
	if err != nil {
		return nil, err
	}
	p, err := opts.newProtocol(trans)
	if err != nil {
		trans.Close()
		return nil, err
	}
	return NewFromProtocol(p), nil
}

// Discover resolves service through reg, picks one instance with bal and
// dials it. The protocol and framing the instance registered with take
// precedence over opts.
func Discover(reg registry.Registry, bal loadbalance.Balancer, service string, opts Options) (*Client, *registry.ServiceInstance, error) {
	instances, err := reg.Discover(service)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "client: discover %s", service)
	}
	inst, err := bal.Pick(instances)
	if err != nil {
		return nil, nil, err
	}

	opts, err = opts.forInstance(inst)
	if err != nil {
		return nil, nil, err
	}
	c, err := Dial(inst.Addr, opts)
	if err != nil {
		return nil, nil, err
	}
	return c, inst, nil
}

func (o Options) forInstance(inst *registry.ServiceInstance) (Options, error) {
	if inst.Protocol != "" {
		t, err := protocol.ParseType(inst.Protocol)
		if err != nil {
			return o, errors.Wrapf(err, "client: instance %s", inst.Addr)
		}
		o.Protocol = t
	}
	o.Transport.Framed = inst.Framed
	return o, nil
}
