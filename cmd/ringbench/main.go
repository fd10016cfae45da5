// Command ringbench pushes messages from one producer goroutine to one
// consumer goroutine through a ringbuf.Ring and checks every payload on
// the way out.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pavanmanishd/ringbuf"
	"github.com/pavanmanishd/ringbuf/internal/pattern"
)

func main() {
	var cfg Config
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, err := newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			level.Info(logger).Log("msg", "serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				level.Error(logger).Log("msg", "metrics server failed", "err", err)
			}
		}()
		defer srv.Close()
	}

	if err := run(ctx, cfg, logger, reg); err != nil {
		level.Error(logger).Log("msg", "ringbench failed", "err", err)
		stop()
		os.Exit(1)
	}
}

// run passes cfg.Iterations messages through a fresh ring and returns an
// error on the first corrupted payload. Cancelling ctx stops the producer
// early; messages already queued are still checked.
func run(ctx context.Context, cfg Config, logger log.Logger, reg prometheus.Registerer) error {
	opts := []ringbuf.Option{ringbuf.WithLogger(logger), ringbuf.WithReleaseCheck()}
	if cfg.Allocator == allocatorNative {
		na := ringbuf.NewNativeAllocator()
		defer func() {
			if err := na.Close(); err != nil {
				level.Warn(logger).Log("msg", "failed to close native allocator", "err", err)
			}
		}()
		opts = append(opts, ringbuf.WithAllocator(na))
	}

	r, err := ringbuf.New(int(cfg.Capacity.Bytes()), opts...)
	if err != nil {
		return errors.Wrap(err, "creating ring")
	}
	defer r.Cleanup()

	if reg != nil {
		c := ringbuf.NewCollector("ringbench", r)
		if err := reg.Register(c); err != nil {
			return errors.Wrap(err, "registering ring collector")
		}
		defer reg.Unregister(c)
	}

	acquire := r.Acquire
	if cfg.Mode == modeUpTo {
		acquire = r.AcquireUpTo
	}
	chunk := int(cfg.Chunk.Bytes())

	var (
		queue    = make(chan ringbuf.Slice, 64)
		produced int
		consumed int
		bytes    uint64
		stalls   uint64
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for s := range queue {
			if !pattern.Verify(s.Bytes(), consumed) {
				return errors.Errorf("message %d at offset %d: payload %q does not match", consumed, s.Offset(), s.Bytes())
			}
			bytes += uint64(s.Len())
			r.Release(s)
			consumed++
		}
		return nil
	})

	g.Go(func() error {
		defer close(queue)
		for produced < cfg.Iterations {
			if gctx.Err() != nil {
				return nil
			}
			s, err := acquire(chunk)
			if errors.Is(err, ringbuf.ErrNoAvailableBuffers) {
				stalls++
				runtime.Gosched()
				continue
			}
			if err != nil {
				return errors.Wrapf(err, "message %d", produced)
			}
			pattern.Fill(s.Bytes(), produced)
			select {
			case queue <- s:
			case <-gctx.Done():
				return nil
			}
			produced++
		}
		return nil
	})

	start := time.Now()
	err = g.Wait()
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	if consumed < cfg.Iterations {
		level.Warn(logger).Log("msg", "interrupted", "consumed", consumed, "requested", cfg.Iterations)
	}

	m := r.Metrics()
	level.Info(logger).Log(
		"msg", "run complete",
		"mode", cfg.Mode,
		"allocator", cfg.Allocator,
		"capacity", cfg.Capacity.HumanReadable(),
		"messages", consumed,
		"bytes", datasize.ByteSize(bytes).HumanReadable(),
		"elapsed", elapsed,
		"msgs_per_sec", fmt.Sprintf("%.0f", float64(consumed)/elapsed.Seconds()),
		"throughput", datasize.ByteSize(float64(bytes)/elapsed.Seconds()).HumanReadable()+"/s",
		"stalls", stalls,
	)
	level.Info(logger).Log(
		"msg", "ring metrics",
		"acquires", m.Acquires,
		"acquire_failures", m.AcquireFailures,
		"wraps", m.Wraps,
		"rewinds", m.Rewinds,
		"releases", m.Releases,
		"outstanding", m.Outstanding,
		"state", m.State,
	)
	return nil
}
