// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package plan

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/auth"
)

// CodeLimitReached is returned by callers that refuse an action on a cap.
const CodeLimitReached = "PLAN_LIMIT_REACHED"

// Result is the outcome of a limit check.
type Result struct {
	Allowed bool   `json:"allowed"`
	Current int    `json:"current"`
	Limit   int    `json:"limit"`
	Plan    string `json:"plan"`
}

// UserReader loads the account whose plan is checked.
type UserReader interface {
	GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error)
}

// Counter counts the resources a user currently holds.
type Counter interface {
	CountOwned(ctx context.Context, userID ulid.ULID) (int, error)
}

// Enforcer checks resource counts against plan caps.
type Enforcer struct {
	users    UserReader
	catalog  *Catalog
	counters map[string]Counter
}

// EnforcerOption configures an Enforcer.
type EnforcerOption func(*Enforcer)

// WithCounter registers the counter for resource. Resources without a
// counter are treated as holding zero.
func WithCounter(resource string, c Counter) EnforcerOption {
	return func(e *Enforcer) { e.counters[resource] = c }
}

// NewEnforcer creates an Enforcer.
func NewEnforcer(users UserReader, catalog *Catalog, opts ...EnforcerOption) (*Enforcer, error) {
	if users == nil {
		return nil, oops.Errorf("user reader is required")
	}
	if catalog == nil {
		return nil, oops.Errorf("plan catalog is required")
	}
	e := &Enforcer{users: users, catalog: catalog, counters: map[string]Counter{}}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Catalog returns the catalog the enforcer reads.
func (e *Enforcer) Catalog() *Catalog {
	return e.catalog
}

// Check reports whether userID may create one more resource. Unlimited caps
// short-circuit without counting. A missing account is checked against the
// default plan.
func (e *Enforcer) Check(ctx context.Context, userID ulid.ULID, resource string) (Result, error) {
	planName := e.catalog.Default
	user, err := e.users.GetByID(ctx, userID)
	switch {
	case err == nil:
		planName = e.catalog.Resolve(user.Plan)
	case errors.Is(err, auth.ErrNotFound):
	default:
		return Result{}, oops.Code("PLAN_CHECK_FAILED").
			With("operation", "load user").
			With("user_id", userID.String()).
			Wrap(err)
	}

	limit := e.catalog.Limit(planName, resource)
	if limit == Unlimited {
		return Result{Allowed: true, Current: 0, Limit: Unlimited, Plan: planName}, nil
	}

	current := 0
	if counter, ok := e.counters[resource]; ok {
		current, err = counter.CountOwned(ctx, userID)
		if err != nil {
			return Result{}, oops.Code("PLAN_CHECK_FAILED").
				With("operation", "count resources").
				With("resource", resource).
				With("user_id", userID.String()).
				Wrap(err)
		}
	}

	return Result{Allowed: current < limit, Current: current, Limit: limit, Plan: planName}, nil
}
