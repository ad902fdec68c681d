// Package logging builds the zerolog loggers used by the server, the
// middlewares and the binaries.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvLevel overrides Config.Level when set.
const EnvLevel = "MINI_THRIFT_LOG_LEVEL"

// Config selects level, format and destination.
type Config struct {
	Level      string `toml:"level"`  // debug, info, warn, error
	Format     string `toml:"format"` // console or json
	File       string `toml:"file"`   // empty logs to stdout
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// DefaultConfig logs info and above to the console.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		MaxSizeMB:  100,
		MaxBackups: 14,
	}
}

// Validate checks level and format.
func (c Config) Validate() error {
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	switch c.Format {
	case "", "console", "json":
		return nil
	}
	return errors.Errorf("logging: unknown format %q", c.Format)
}

func parseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(err, "logging: level %q", s)
	}
	return lvl, nil
}

// New returns a logger tagged with app and installs it as the global
// zerolog logger.
func New(app string, cfg Config) (zerolog.Logger, error) {
	if env := os.Getenv(EnvLevel); env != "" {
		cfg.Level = env
	}
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	logger := zerolog.New(output(cfg)).Level(lvl).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger, nil
}

func output(cfg Config) io.Writer {
	var w io.Writer = os.Stdout
	if cfg.File != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
			LocalTime:  true,
		}
	}
	if cfg.Format == "json" {
		return w
	}
	return zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    cfg.File != "",
		TimeFormat: time.RFC3339,
	}
}
