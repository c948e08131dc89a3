// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package main

import (
	"context"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/resend/resend-go/v2"
	"github.com/stripe/stripe-go/v76"

	"github.com/cr0nhq/cr0n/internal/config"
	"github.com/cr0nhq/cr0n/internal/media"
	"github.com/cr0nhq/cr0n/internal/observability"
	"github.com/cr0nhq/cr0n/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// PoolFactory connects to PostgreSQL.
	// Default: store.Open
	PoolFactory func(ctx context.Context, dsn string, cfg store.PoolConfig) (Pool, error)

	// RedisFactory creates the login throttle client. It is only called
	// when redis.addr is set.
	// Default: goredis.NewClient
	RedisFactory func(cfg config.RedisConfig) RedisClient

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)

	// StripeBackends overrides the Stripe endpoints.
	// Default: nil (api.stripe.com)
	StripeBackends *stripe.Backends

	// ResendFactory creates the email client. It is only called when
	// mail.resend_api_key is set.
	// Default: resend.NewClient
	ResendFactory func(apiKey string) *resend.Client

	// PresignerFactory creates the S3 presigner. It is only called when
	// media.bucket is set.
	// Default: media.NewS3Presigner
	PresignerFactory func(ctx context.Context, cfg media.S3Config) (media.Presigner, error)
}

// Pool interface wraps the methods used from *pgxpool.Pool.
type Pool interface {
	store.Pool
	Ping(ctx context.Context) error
	Close()
}

// RedisClient interface wraps the methods used from *goredis.Client.
type RedisClient interface {
	goredis.Cmdable
	Close() error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
	Registerer() prometheus.Registerer
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.PoolFactory == nil {
		out.PoolFactory = func(ctx context.Context, dsn string, cfg store.PoolConfig) (Pool, error) {
			return store.Open(ctx, dsn, cfg)
		}
	}
	if out.RedisFactory == nil {
		out.RedisFactory = func(cfg config.RedisConfig) RedisClient {
			return goredis.NewClient(&goredis.Options{
				Addr:     cfg.Addr,
				Password: cfg.Password,
				DB:       cfg.DB,
			})
		}
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	if out.ResendFactory == nil {
		out.ResendFactory = resend.NewClient
	}
	if out.PresignerFactory == nil {
		out.PresignerFactory = func(ctx context.Context, cfg media.S3Config) (media.Presigner, error) {
			return media.NewS3Presigner(ctx, cfg)
		}
	}
	return &out
}
