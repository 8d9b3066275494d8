// Package worker fans the device pipeline out over many target addresses
// with bounded parallelism, per-device timeouts and aggregate progress
// reporting.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/martinsuchenak/assetd/internal/log"
	"github.com/martinsuchenak/assetd/internal/model"
	"github.com/martinsuchenak/assetd/pkg/discovery"
)

// Compile-time interface check
var _ discovery.ProgressReporter = (*Scheduler)(nil)

// Pipeline runs the full per-device pipeline and always returns a record.
type Pipeline interface {
	Run(ctx context.Context, address string) *model.DeviceRecord
}

// Options configures a Scheduler.
type Options struct {
	MaxConcurrency   int           // Concurrent device pipelines
	PerDeviceTimeout time.Duration // Deadline for one pipeline
	GlobalTimeout    time.Duration // Deadline for the whole run (0 = none)
}

// Scheduler executes one pipeline per target address on a bounded worker
// pool. Pipelines share nothing but the append-only sink and the progress
// counters; record emission order is completion order, not input order.
type Scheduler struct {
	pipeline Pipeline
	sink     discovery.Sink

	maxConcurrency   int
	perDeviceTimeout time.Duration
	globalTimeout    time.Duration

	attempted    atomic.Int64
	reachable    atomic.Int64
	collected    atomic.Int64
	fallbackUsed atomic.Int64
	failed       atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
}

// NewScheduler creates a scheduler.
func NewScheduler(pipeline Pipeline, sink discovery.Sink, opts Options) *Scheduler {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	if opts.PerDeviceTimeout <= 0 {
		opts.PerDeviceTimeout = 2 * time.Minute
	}
	return &Scheduler{
		pipeline:         pipeline,
		sink:             sink,
		maxConcurrency:   opts.MaxConcurrency,
		perDeviceTimeout: opts.PerDeviceTimeout,
		globalTimeout:    opts.GlobalTimeout,
		stop:             make(chan struct{}),
	}
}

// Run processes every target and blocks until all pipelines finalized.
// The only fatal errors are pre-scheduling configuration errors; runtime
// failures stay local to their device and are visible in the records.
func (s *Scheduler) Run(ctx context.Context, targets []string) error {
	if len(targets) == 0 {
		return fmt.Errorf("no target addresses given")
	}
	if s.sink == nil {
		return fmt.Errorf("no result sink configured")
	}

	if s.globalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.globalTimeout)
		defer cancel()
	}

	pool := NewPool(ctx, s.maxConcurrency)
	pool.Start()

	// Stop requests cancel the pool context; in-flight pipelines observe
	// it between stages and finalize partial records.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-s.stop:
			pool.Cancel()
		case <-watchDone:
		}
	}()

	log.Info("Discovery run started", "targets", len(targets), "concurrency", s.maxConcurrency)
	start := time.Now()

	for _, address := range targets {
		job := Job{ID: address, Handler: func(ctx context.Context) {
			s.runDevice(ctx, address)
		}}
		if err := pool.Submit(job); err != nil {
			// Pool cancelled mid-submission: the remaining targets are
			// finalized under the cancelled pool context so every input
			// yields an output without running a full pipeline.
			s.runDevice(pool.ctx, address)
		}
	}

	pool.Drain()
	close(watchDone)

	p := s.Progress()
	log.Info("Discovery run finished",
		"duration", time.Since(start).Truncate(time.Millisecond),
		"attempted", p.Attempted,
		"reachable", p.Reachable,
		"collected", p.Collected,
		"fallback_used", p.FallbackUsed,
		"failed", p.Failed)
	return nil
}

// Stop raises the global stop signal. Safe to call more than once and
// from any goroutine.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Progress returns a snapshot of the aggregate counters.
func (s *Scheduler) Progress() discovery.Progress {
	return discovery.Progress{
		Attempted:    s.attempted.Load(),
		Reachable:    s.reachable.Load(),
		Collected:    s.collected.Load(),
		FallbackUsed: s.fallbackUsed.Load(),
		Failed:       s.failed.Load(),
	}
}

func (s *Scheduler) runDevice(ctx context.Context, address string) {
	deviceCtx, cancel := context.WithTimeout(ctx, s.perDeviceTimeout)
	defer cancel()

	rec := s.pipeline.Run(deviceCtx, address)

	s.attempted.Add(1)
	switch {
	case !rec.Reachability.Alive:
		s.failed.Add(1)
	case rec.CollectionMethod == model.MethodBasicFallback:
		s.reachable.Add(1)
		s.fallbackUsed.Add(1)
	default:
		s.reachable.Add(1)
		s.collected.Add(1)
	}

	// The counters partition attempted by pipeline outcome; a sink
	// rejection loses the record but does not reclassify the device.
	if err := s.sink.Accept(rec); err != nil {
		log.Error("Sink rejected device record", "address", address, "error", err)
	}
}
