// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package redis provides a Redis-backed login throttle.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/auth"
)

// DefaultKeyPrefix namespaces the failure counters.
const DefaultKeyPrefix = "cr0n:login_failures:"

// LoginThrottle counts failed logins per normalized email. Counters expire
// auth.LockoutDuration after the most recent failure.
type LoginThrottle struct {
	client goredis.Cmdable
	prefix string
	window time.Duration
}

// Option configures a LoginThrottle.
type Option func(*LoginThrottle)

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) Option {
	return func(t *LoginThrottle) { t.prefix = prefix }
}

// NewLoginThrottle creates a LoginThrottle on client.
func NewLoginThrottle(client goredis.Cmdable, opts ...Option) *LoginThrottle {
	t := &LoginThrottle{
		client: client,
		prefix: DefaultKeyPrefix,
		window: auth.LockoutDuration,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *LoginThrottle) key(email string) string {
	return t.prefix + auth.NormalizeEmail(email)
}

// Check returns the throttle state for email.
func (t *LoginThrottle) Check(ctx context.Context, email string) (auth.RateLimitResult, error) {
	key := t.key(email)

	var (
		countCmd *goredis.StringCmd
		ttlCmd   *goredis.DurationCmd
	)
	_, err := t.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		countCmd = pipe.Get(ctx, key)
		ttlCmd = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, goredis.Nil) {
		return auth.RateLimitResult{}, oops.Code("THROTTLE_CHECK_FAILED").
			With("operation", "read failure counter").
			Wrap(err)
	}

	failures, err := countCmd.Int()
	if errors.Is(err, goredis.Nil) {
		return auth.RateLimitResult{}, nil
	}
	if err != nil {
		return auth.RateLimitResult{}, oops.Code("THROTTLE_CHECK_FAILED").
			With("operation", "parse failure counter").
			Wrap(err)
	}
	return auth.CheckFailures(failures, ttlCmd.Val()), nil
}

// RecordFailure increments the counter and restarts its window.
func (t *LoginThrottle) RecordFailure(ctx context.Context, email string) error {
	key := t.key(email)
	_, err := t.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, t.window)
		return nil
	})
	if err != nil {
		return oops.Code("THROTTLE_RECORD_FAILED").
			With("operation", "increment failure counter").
			Wrap(err)
	}
	return nil
}

// Reset clears the counter after a successful login.
func (t *LoginThrottle) Reset(ctx context.Context, email string) error {
	if err := t.client.Del(ctx, t.key(email)).Err(); err != nil {
		return oops.Code("THROTTLE_RESET_FAILED").Wrap(err)
	}
	return nil
}

var _ auth.LoginThrottle = (*LoginThrottle)(nil)
