// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package sitetest provides in-memory site storage for tests.
package sitetest

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/cr0nhq/cr0n/internal/access"
	"github.com/cr0nhq/cr0n/internal/site"
)

// Repository is a site.Repository backed by a slice. Only owners are
// tracked.
type Repository struct {
	mu    sync.Mutex
	sites []site.Site

	// CreateErr, when set, fails every Create.
	CreateErr error
}

// Create implements site.Repository.
func (r *Repository) Create(_ context.Context, s *site.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	r.sites = append(r.sites, *s)
	return nil
}

// ListForUser implements site.Repository.
func (r *Repository) ListForUser(_ context.Context, userID ulid.ULID) ([]site.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []site.Membership
	for _, s := range r.sites {
		if s.OwnerID == userID {
			out = append(out, site.Membership{Site: s, Role: access.RoleOwner})
		}
	}
	return out, nil
}

// RoleOf implements site.Repository.
func (r *Repository) RoleOf(_ context.Context, siteID, userID ulid.ULID) (access.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sites {
		if s.ID == siteID && s.OwnerID == userID {
			return access.RoleOwner, nil
		}
	}
	return "", access.ErrNotMember
}

// CountOwned implements site.Repository.
func (r *Repository) CountOwned(_ context.Context, userID ulid.ULID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sites {
		if s.OwnerID == userID {
			n++
		}
	}
	return n, nil
}

// Len reports how many sites are stored.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sites)
}

// SerialTx runs transactions one at a time.
type SerialTx struct {
	mu    sync.Mutex
	calls int
}

// InSerializable implements site.Transactor.
func (tx *SerialTx) InSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.calls++
	return fn(ctx)
}

// Calls reports how many transactions ran.
func (tx *SerialTx) Calls() int {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.calls
}

var (
	_ site.Repository = (*Repository)(nil)
	_ site.Transactor = (*SerialTx)(nil)
)
