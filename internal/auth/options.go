// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/cr0nhq/cr0n/internal/activity"
	"github.com/cr0nhq/cr0n/pkg/errutil"
)

// Option configures the optional collaborators of the auth services.
type Option func(*options)

type options struct {
	logger          *slog.Logger
	activity        activity.Recorder
	notifier        Notifier
	dispatcher      Dispatcher
	throttle        LoginThrottle
	sites           SiteCreator
	provisioners    []Provisioner
	resetTTL        time.Duration
	verificationTTL time.Duration
	now             func() time.Time
	tracerProvider  trace.TracerProvider
	tx              Transactor
}

func buildOptions(opts []Option) options {
	o := options{
		activity:        activity.Nop{},
		resetTTL:        DefaultResetTTL,
		verificationTTL: DefaultVerificationTTL,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.dispatcher == nil {
		o.dispatcher = inlineDispatcher{logger: o.logger}
	}
	if o.tx == nil {
		o.tx = directTx{}
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithActivity sets the audit recorder.
func WithActivity(r activity.Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.activity = r
		}
	}
}

// WithNotifier sets the email notifier.
func WithNotifier(n Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithDispatcher sets the background dispatcher used for fire-and-forget email.
func WithDispatcher(d Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// WithLoginThrottle enables failed-login lockout.
func WithLoginThrottle(t LoginThrottle) Option {
	return func(o *options) { o.throttle = t }
}

// WithSiteCreator enables default site creation at registration.
func WithSiteCreator(c SiteCreator) Option {
	return func(o *options) { o.sites = c }
}

// WithProvisioners adds best-effort registration provisioners.
func WithProvisioners(p ...Provisioner) Option {
	return func(o *options) { o.provisioners = append(o.provisioners, p...) }
}

// WithResetTTL overrides DefaultResetTTL.
func WithResetTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.resetTTL = ttl
		}
	}
}

// WithVerificationTTL overrides DefaultVerificationTTL.
func WithVerificationTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.verificationTTL = ttl
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithTracerProvider sets the provider of auth spans. Defaults to the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithTransactor groups the writes that consume a token with the writes the
// token authorizes. Without it each write commits on its own.
func WithTransactor(tx Transactor) Option {
	return func(o *options) { o.tx = tx }
}

// Transactor runs fn inside one database transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type directTx struct{}

func (directTx) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// inlineDispatcher runs work synchronously and logs failures.
type inlineDispatcher struct {
	logger *slog.Logger
}

func (d inlineDispatcher) Go(name string, fn func(ctx context.Context) error) {
	if err := fn(context.Background()); err != nil {
		errutil.LogError(d.logger.With("task", name), "background task failed", err)
	}
}
