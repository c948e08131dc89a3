// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cr0nhq/cr0n/internal/auth"
	"github.com/cr0nhq/cr0n/pkg/errutil"
)

// DefaultTaskTimeout bounds a single background task.
const DefaultTaskTimeout = 30 * time.Second

// Dispatcher runs email sends in the background so requests never wait on
// the provider. Failures are logged and counted.
type Dispatcher struct {
	ctx      context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
	logger   *slog.Logger
	failures *prometheus.CounterVec

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. The failure counter is registered on
// reg when reg is non-nil.
func NewDispatcher(logger *slog.Logger, reg prometheus.Registerer) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cr0n_mail_failures_total",
		Help: "Total number of background email tasks that failed",
	}, []string{"task"})
	if reg != nil {
		reg.MustRegister(failures)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		ctx:      ctx,
		cancel:   cancel,
		timeout:  DefaultTaskTimeout,
		logger:   logger,
		failures: failures,
	}
}

// Go implements auth.Dispatcher. Tasks submitted after Close are dropped.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("dispatcher closed, task dropped", "task", name)
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			d.failures.WithLabelValues(name).Inc()
			errutil.LogError(d.logger.With("task", name), "background task failed", err)
		}
	}()
}

// Close stops accepting tasks and waits for running ones. When ctx ends
// first, running tasks are cancelled and Close returns ctx.Err() after they
// exit.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// Failures returns the failure counter.
func (d *Dispatcher) Failures() *prometheus.CounterVec {
	return d.failures
}

var _ auth.Dispatcher = (*Dispatcher)(nil)
