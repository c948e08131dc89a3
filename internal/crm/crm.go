// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package crm keeps a contact record for every account.
package crm

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/auth"
)

// DefaultSource tags contacts created at sign-up.
const DefaultSource = "signup"

// Sync log events.
const (
	EventRegistration = "registration"
)

// Contact is a CRM record for an account.
type Contact struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	Email     string
	FullName  *string
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository stores contacts and their sync log.
type Repository interface {
	// Upsert creates the contact of contact.UserID or refreshes the existing
	// one, returning the stored contact ID.
	Upsert(ctx context.Context, contact *Contact) (ulid.ULID, error)
	AppendSyncLog(ctx context.Context, contactID ulid.ULID, event string, payload map[string]any) error
}

// Transactor runs a function inside a database transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Provisioner creates the contact of a new account.
type Provisioner struct {
	repo   Repository
	tx     Transactor
	source string
	now    func() time.Time
}

// NewProvisioner creates a Provisioner. An empty source means DefaultSource.
func NewProvisioner(repo Repository, tx Transactor, source string) *Provisioner {
	if source == "" {
		source = DefaultSource
	}
	return &Provisioner{repo: repo, tx: tx, source: source, now: time.Now}
}

// Name implements auth.Provisioner.
func (p *Provisioner) Name() string { return "crm" }

// Provision implements auth.Provisioner.
func (p *Provisioner) Provision(ctx context.Context, user *auth.User) (auth.ExternalRefs, error) {
	now := p.now().UTC()
	contact := &Contact{
		ID:        ulid.Make(),
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Source:    p.source,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var id ulid.ULID
	err := p.tx.InTransaction(ctx, func(ctx context.Context) error {
		var err error
		id, err = p.repo.Upsert(ctx, contact)
		if err != nil {
			return err
		}
		return p.repo.AppendSyncLog(ctx, id, EventRegistration, map[string]any{
			"email":  user.Email,
			"source": p.source,
		})
	})
	if err != nil {
		return auth.ExternalRefs{}, oops.Code("CRM_PROVISION_FAILED").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	ref := id.String()
	return auth.ExternalRefs{CRMContactID: &ref}, nil
}

var _ auth.Provisioner = (*Provisioner)(nil)
