// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Provisioner creates a record for a new user in an external system.
// Provisioners are best-effort: a failure never fails registration.
type Provisioner interface {
	Name() string
	Provision(ctx context.Context, user *User) (ExternalRefs, error)
}

// SiteCreator creates the default workspace owned by a new user.
type SiteCreator interface {
	CreateDefaultSite(ctx context.Context, userID ulid.ULID, fullName *string) (ulid.ULID, error)
}

// Notifier delivers account emails.
type Notifier interface {
	SendWelcome(ctx context.Context, email string, fullName *string) error
	SendVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// Dispatcher runs fire-and-forget work outside the request.
type Dispatcher interface {
	Go(name string, fn func(ctx context.Context) error)
}

// LoginThrottle tracks failed logins per account.
type LoginThrottle interface {
	Check(ctx context.Context, email string) (RateLimitResult, error)
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}
