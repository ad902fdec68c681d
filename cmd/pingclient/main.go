// pingclient calls the Ping service.
//
//	pingclient --addr 127.0.0.1:9090 ping
//	pingclient --config client.toml echo hello
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"mini-thrift/client"
	"mini-thrift/config"
	"mini-thrift/loadbalance"
	"mini-thrift/ping"
)

func main() {
	app := cli.NewApp()
	app.Name = "pingclient"
	app.Usage = "call the Ping service"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "TOML configuration file"},
		cli.StringFlag{Name: "addr", Usage: "server address, overrides discovery"},
		cli.StringFlag{Name: "protocol", Usage: "binary or compact"},
		cli.BoolFlag{Name: "framed", Usage: "use the framed transport"},
		cli.IntFlag{Name: "count, n", Value: 1, Usage: "number of calls"},
	}
	app.Commands = []cli.Command{
		{
			Name:   "ping",
			Usage:  "send Ping",
			Action: withClient(func(c *ping.Client, args []string) (string, error) { return c.Ping() }),
		},
		{
			Name:      "echo",
			Usage:     "send Echo with the given message",
			ArgsUsage: "<message>",
			Action: withClient(func(c *ping.Client, args []string) (string, error) {
				return c.Echo(strings.Join(args, " "))
			}),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withClient(call func(c *ping.Client, args []string) (string, error)) func(ctx *cli.Context) error {
	return func(ctx *cli.Context) error {
		c, closer, err := connect(ctx.Parent())
		if err != nil {
			return err
		}
		defer closer.Close()

		for i := 0; i < ctx.Parent().Int("count"); i++ {
			v, err := call(ping.NewClient(c), ctx.Args())
			if err != nil {
				return err
			}
			fmt.Println(v)
		}
		return nil
	}
}

func connect(ctx *cli.Context) (ping.Caller, io.Closer, error) {
	cfg := config.Default()
	if path := ctx.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, nil, err
		}
	}
	if ctx.IsSet("protocol") {
		cfg.Client.Protocol = ctx.String("protocol")
	}
	if ctx.Bool("framed") {
		cfg.Client.Framed = true
	}
	opts, err := cfg.Client.Options()
	if err != nil {
		return nil, nil, err
	}

	reg, err := cfg.Registry.Open()
	if err != nil {
		return nil, nil, err
	}
	if reg == nil || ctx.IsSet("addr") {
		addr := cfg.Client.Addr
		if ctx.IsSet("addr") {
			addr = ctx.String("addr")
		}
		pool := client.NewPool(addr, cfg.Client.PoolSize, opts)
		return pool, pool, nil
	}
	if rc, ok := reg.(io.Closer); ok {
		defer rc.Close()
	}

	bal, err := loadbalance.New(cfg.Client.Balancer, cfg.Client.HashKey)
	if err != nil {
		return nil, nil, err
	}
	c, _, err := client.Discover(reg, bal, cfg.Client.ServiceName, opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "pingclient")
	}
	return c, c, nil
}
