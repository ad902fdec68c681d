// pingserver serves the Ping service.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"mini-thrift/config"
	"mini-thrift/logging"
	"mini-thrift/middleware"
	"mini-thrift/ping"
	"mini-thrift/server"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config, c",
		Usage: "TOML configuration file",
	}
	addrFlag = cli.StringFlag{
		Name:  "addr",
		Usage: "listen address, overrides server.addr",
	}
	protocolFlag = cli.StringFlag{
		Name:  "protocol",
		Usage: "binary or compact, overrides server.protocol",
	}
	framedFlag = cli.BoolFlag{
		Name:  "framed",
		Usage: "use the framed transport",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "pingserver"
	app.Usage = "serve the Ping service"
	app.Flags = []cli.Flag{configFlag, addrFlag, protocolFlag, framedFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := ctx.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet("addr") {
		cfg.Server.Addr = ctx.String("addr")
	}
	if ctx.IsSet("protocol") {
		cfg.Server.Protocol = ctx.String("protocol")
	}
	if ctx.Bool("framed") {
		cfg.Server.Framed = true
	}
	return cfg, cfg.Validate()
}

func run(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger, err := logging.New("pingserver", cfg.Log)
	if err != nil {
		return err
	}

	sc, err := cfg.Server.Build()
	if err != nil {
		return err
	}

	mws := []middleware.Middleware{middleware.Recover(), middleware.Logging(logger)}
	if d := cfg.Server.CallTimeout.Duration; d > 0 {
		mws = append(mws, middleware.Timeout(d))
	}
	if cfg.Server.RateLimit > 0 {
		mws = append(mws, middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))
	}

	opts := []server.Option{server.WithLogger(logger)}
	reg, err := cfg.Registry.Open()
	if err != nil {
		return err
	}
	if reg != nil {
		if c, ok := reg.(io.Closer); ok {
			defer c.Close()
		}
		opts = append(opts, server.WithRegistry(reg))
	}

	srv := server.New(ping.NewProcessor(ping.Handler{}, mws...), sc, opts...)

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		return errors.Wrap(err, "pingserver")
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	}

	if err := srv.Shutdown(cfg.Server.ShutdownTimeout.Duration); err != nil {
		logger.Warn().Err(err).Msg("shutdown")
	}
	stats := srv.Stats()
	logger.Info().
		Int64("connections", stats.Accepted).
		Int64("calls", stats.Calls).
		Msg("stopped")
	return <-errc
}
