// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Context is the authenticated identity attached to a request.
type Context struct {
	UserID                ulid.ULID `json:"userId"`
	SessionID             ulid.ULID `json:"-"`
	Email                 string    `json:"email"`
	FullName              *string   `json:"fullName"`
	Plan                  string    `json:"plan"`
	EmailVerified         bool      `json:"emailVerified"`
	BillingCustomerID     *string   `json:"billingCustomerId"`
	BillingSubscriptionID *string   `json:"billingSubscriptionId"`
	CRMContactID          *string   `json:"crmContactId"`
}

// Resolver maps a session token to a Context. It keeps no cache; every
// call reads the store.
type Resolver struct {
	sessions *SessionStore
}

// NewResolver creates a Resolver.
func NewResolver(sessions *SessionStore) (*Resolver, error) {
	if sessions == nil {
		return nil, oops.Errorf("session store is required")
	}
	return &Resolver{sessions: sessions}, nil
}

// Resolve returns the Context for token, or nil when the token is empty,
// unknown, expired, or belongs to an inactive account. Only store failures
// are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Context, error) {
	if token == "" {
		return nil, nil
	}

	found, err := r.sessions.Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("AUTH_RESOLVE_FAILED").
			With("operation", "lookup session").
			Wrap(err)
	}
	if !r.sessions.IsValid(found) {
		return nil, nil
	}

	u := found.User
	return &Context{
		UserID:                u.ID,
		SessionID:             found.Session.ID,
		Email:                 u.Email,
		FullName:              u.FullName,
		Plan:                  u.PlanOrDefault(),
		EmailVerified:         u.EmailVerified,
		BillingCustomerID:     u.BillingCustomerID,
		BillingSubscriptionID: u.BillingSubscriptionID,
		CRMContactID:          u.CRMContactID,
	}, nil
}
