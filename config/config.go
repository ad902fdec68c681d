// Package config loads the TOML configuration of the ping binaries.
//
//	[server]
//	addr = ":9090"
//	service_name = "PingService"
//	protocol = "compact"
//	framed = true
//
//	[registry]
//	kind = "etcd"
//	endpoints = ["127.0.0.1:2379"]
//
//	[log]
//	level = "debug"
package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"mini-thrift/client"
	"mini-thrift/loadbalance"
	"mini-thrift/logging"
	"mini-thrift/protocol"
	"mini-thrift/registry"
	"mini-thrift/server"
	"mini-thrift/transport"
)

// Duration is a time.Duration written as a string such as "5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the whole file.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Client   ClientConfig   `toml:"client"`
	Registry RegistryConfig `toml:"registry"`
	Log      logging.Config `toml:"log"`
}

// WireConfig is shared by both ends of a connection.
type WireConfig struct {
	Protocol           string `toml:"protocol"`
	Framed             bool   `toml:"framed"`
	MaxFrameSize       uint32 `toml:"max_frame_size"`
	BufferSize         int    `toml:"buffer_size"`
	MaxStringLength    int32  `toml:"max_string_length"`
	MaxContainerLength int32  `toml:"max_container_length"`
	StrictFieldTypes   bool   `toml:"strict_field_types"`
}

type ServerConfig struct {
	WireConfig
	Addr            string   `toml:"addr"`
	AdvertiseAddr   string   `toml:"advertise_addr"`
	ServiceName     string   `toml:"service_name"`
	Weight          int      `toml:"weight"`
	Version         string   `toml:"version"`
	RegistryTTL     int64    `toml:"registry_ttl"`
	RateLimit       float64  `toml:"rate_limit"` // calls per second, 0 disables
	RateBurst       int      `toml:"rate_burst"`
	CallTimeout     Duration `toml:"call_timeout"` // handler context deadline, 0 disables
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type ClientConfig struct {
	WireConfig
	Addr        string   `toml:"addr"` // dial directly, bypassing the registry
	ServiceName string   `toml:"service_name"`
	DialTimeout Duration `toml:"dial_timeout"`
	PoolSize    int      `toml:"pool_size"`
	MaxRetries  int      `toml:"max_retries"`
	RetryDelay  Duration `toml:"retry_delay"`
	Balancer    string   `toml:"balancer"`
	HashKey     string   `toml:"hash_key"`
}

type RegistryConfig struct {
	Kind        string           `toml:"kind"` // none, static or etcd
	Endpoints   []string         `toml:"endpoints"`
	DialTimeout Duration         `toml:"dial_timeout"`
	Static      []StaticInstance `toml:"static"`
}

// StaticInstance is one [[registry.static]] entry.
type StaticInstance struct {
	Service  string `toml:"service"`
	Addr     string `toml:"addr"`
	Weight   int    `toml:"weight"`
	Version  string `toml:"version"`
	Protocol string `toml:"protocol"`
	Framed   bool   `toml:"framed"`
}

// Default returns a configuration for a local binary-protocol setup
// without discovery.
func Default() Config {
	return Config{
		Server: ServerConfig{
			WireConfig:      WireConfig{Protocol: "binary"},
			Addr:            ":9090",
			ServiceName:     "PingService",
			Weight:          10,
			Version:         "1.0",
			RegistryTTL:     10,
			ShutdownTimeout: Duration{5 * time.Second},
		},
		Client: ClientConfig{
			WireConfig:  WireConfig{Protocol: "binary"},
			Addr:        "127.0.0.1:9090",
			ServiceName: "PingService",
			DialTimeout: Duration{5 * time.Second},
			PoolSize:    4,
			MaxRetries:  2,
			RetryDelay:  Duration{100 * time.Millisecond},
			Balancer:    "round-robin",
		},
		Registry: RegistryConfig{
			Kind:        "none",
			DialTimeout: Duration{2 * time.Second},
		},
		Log: logging.DefaultConfig(),
	}
}

// Load reads path over Default and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "config: load %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be caught by decoding.
func (c Config) Validate() error {
	if _, err := protocol.ParseType(c.Server.Protocol); err != nil {
		return errors.Wrap(err, "config: server")
	}
	if _, err := protocol.ParseType(c.Client.Protocol); err != nil {
		return errors.Wrap(err, "config: client")
	}
	if c.Server.Addr == "" {
		return errors.New("config: server.addr is empty")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return errors.New("config: server rate limit must not be negative")
	}
	if c.Client.PoolSize < 0 || c.Client.MaxRetries < 0 {
		return errors.New("config: client.pool_size and client.max_retries must not be negative")
	}
	if _, err := loadbalance.New(c.Client.Balancer, c.Client.HashKey); err != nil {
		return errors.Wrap(err, "config: client")
	}
	switch c.Registry.Kind {
	case "", "none", "static":
	case "etcd":
		if len(c.Registry.Endpoints) == 0 {
			return errors.New("config: registry.endpoints is empty")
		}
	default:
		return errors.Errorf("config: unknown registry kind %q", c.Registry.Kind)
	}
	return c.Log.Validate()
}

func (w WireConfig) protocolType() (protocol.Type, *protocol.Config, error) {
	t, err := protocol.ParseType(w.Protocol)
	if err != nil {
		return 0, nil, err
	}
	return t, &protocol.Config{
		MaxStringLength:    w.MaxStringLength,
		MaxContainerLength: w.MaxContainerLength,
		StrictFieldTypes:   w.StrictFieldTypes,
	}, nil
}

func (w WireConfig) transportOptions() transport.Options {
	return transport.Options{
		BufferSize:   w.BufferSize,
		Framed:       w.Framed,
		MaxFrameSize: w.MaxFrameSize,
	}
}

// Build converts the [server] section.
func (c ServerConfig) Build() (server.Config, error) {
	t, pc, err := c.protocolType()
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Addr:           c.Addr,
		AdvertiseAddr:  c.AdvertiseAddr,
		ServiceName:    c.ServiceName,
		Protocol:       t,
		ProtocolConfig: pc,
		Transport:      c.transportOptions(),
		RegistryTTL:    c.RegistryTTL,
		Weight:         c.Weight,
		Version:        c.Version,
	}, nil
}

// Options converts the [client] section.
func (c ClientConfig) Options() (client.Options, error) {
	t, pc, err := c.protocolType()
	if err != nil {
		return client.Options{}, err
	}
	return client.Options{
		Protocol:       t,
		ProtocolConfig: pc,
		Transport:      c.transportOptions(),
		DialTimeout:    c.DialTimeout.Duration,
		MaxRetries:     c.MaxRetries,
		RetryBaseDelay: c.RetryDelay.Duration,
	}, nil
}

// Open builds the configured registry. It returns nil for kind "none".
// An etcd registry should be closed by the caller.
func (c RegistryConfig) Open() (registry.Registry, error) {
	switch c.Kind {
	case "", "none":
		return nil, nil
	case "static":
		instances := make(map[string][]registry.ServiceInstance)
		for _, s := range c.Static {
			instances[s.Service] = append(instances[s.Service], registry.ServiceInstance{
				Addr:     s.Addr,
				Weight:   s.Weight,
				Version:  s.Version,
				Protocol: s.Protocol,
				Framed:   s.Framed,
			})
		}
		return registry.NewStaticRegistry(instances), nil
	case "etcd":
		reg, err := registry.NewEtcdRegistry(c.Endpoints, c.DialTimeout.Duration)
		if err != nil {
			return nil, err
		}
		return reg, nil
	}
	return nil, errors.Errorf("config: unknown registry kind %q", c.Kind)
}
