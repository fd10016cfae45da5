package main

import (
	"flag"
	"io"

	"github.com/c2h5oh/datasize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

const (
	modeExact = "exact"
	modeUpTo  = "up-to"

	allocatorGo     = "go"
	allocatorNative = "native"
)

// Config holds the ringbench command line.
type Config struct {
	Capacity    datasize.ByteSize
	Chunk       datasize.ByteSize
	Iterations  int
	Mode        string
	Allocator   string
	MetricsAddr string
	LogLevel    string
}

// RegisterFlags adds the flags required to config this to the given FlagSet.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.TextVar(&cfg.Capacity, "capacity", datasize.ByteSize(63), "Size of the ring arena, e.g. 63B or 4KB.")
	f.TextVar(&cfg.Chunk, "chunk", datasize.ByteSize(16), "Bytes requested per message.")
	f.IntVar(&cfg.Iterations, "iterations", 1_000_000, "Number of messages to pass from producer to consumer.")
	f.StringVar(&cfg.Mode, "mode", modeExact, "Acquire mode: exact or up-to.")
	f.StringVar(&cfg.Allocator, "allocator", allocatorGo, "Arena allocator: go or native.")
	f.StringVar(&cfg.MetricsAddr, "metrics.addr", "", "Address to serve Prometheus metrics on. Empty disables the endpoint.")
	f.StringVar(&cfg.LogLevel, "log.level", "info", "Only log messages with the given severity or above. Valid levels: [debug, info, warn, error]")
}

// Validate checks the parsed flags.
func (cfg *Config) Validate() error {
	if cfg.Capacity == 0 {
		return errors.New("-capacity must be positive")
	}
	if cfg.Chunk == 0 {
		return errors.New("-chunk must be positive")
	}
	if cfg.Mode == modeExact && cfg.Chunk > cfg.Capacity {
		return errors.Errorf("-chunk %s does not fit in -capacity %s", cfg.Chunk.HumanReadable(), cfg.Capacity.HumanReadable())
	}
	if cfg.Iterations < 0 {
		return errors.Errorf("-iterations %d is negative", cfg.Iterations)
	}
	switch cfg.Mode {
	case modeExact, modeUpTo:
	default:
		return errors.Errorf("unknown -mode %q", cfg.Mode)
	}
	switch cfg.Allocator {
	case allocatorGo, allocatorNative:
	default:
		return errors.Errorf("unknown -allocator %q", cfg.Allocator)
	}
	if _, err := levelOption(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

func levelOption(name string) (level.Option, error) {
	switch name {
	case "debug":
		return level.AllowDebug(), nil
	case "info":
		return level.AllowInfo(), nil
	case "warn":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	}
	return nil, errors.Errorf("unrecognized log level %q", name)
}

// newLogger returns a logfmt logger filtered to the configured level.
func newLogger(w io.Writer, name string) (log.Logger, error) {
	opt, err := levelOption(name)
	if err != nil {
		return nil, err
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = level.NewFilter(logger, opt)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller), nil
}
