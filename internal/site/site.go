// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package site manages the workspaces users own and belong to.
package site

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/access"
)

// Error codes.
const (
	CodeNameRequired = "SITE_NAME_REQUIRED"
	CodeNameTooLong  = "SITE_NAME_TOO_LONG"
)

// MaxNameLength bounds site names.
const MaxNameLength = 120

// Site is a workspace.
type Site struct {
	ID        ulid.ULID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   ulid.ULID `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Membership is a site together with the member's role.
type Membership struct {
	Site
	Role access.Role `json:"role"`
}

// NewSite creates a validated Site owned by ownerID.
func NewSite(ownerID ulid.ULID, name string, createdAt time.Time) (*Site, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, oops.Code(CodeNameRequired).Errorf("site name is required")
	}
	if len(name) > MaxNameLength {
		return nil, oops.Code(CodeNameTooLong).
			With("max", MaxNameLength).
			Errorf("site name must be %d characters or less", MaxNameLength)
	}
	return &Site{
		ID:        ulid.Make(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: createdAt,
	}, nil
}

// DefaultName is the name of the site created at registration.
func DefaultName(fullName *string) string {
	if fullName != nil {
		if n := strings.TrimSpace(*fullName); n != "" {
			return n + "'s Site"
		}
	}
	return "My Site"
}

// Repository persists sites and memberships.
type Repository interface {
	// Create stores the site and the owner's membership.
	Create(ctx context.Context, site *Site) error

	// ListForUser returns every site the user belongs to, oldest first.
	ListForUser(ctx context.Context, userID ulid.ULID) ([]Membership, error)

	// RoleOf returns the user's role, or access.ErrNotMember.
	RoleOf(ctx context.Context, siteID, userID ulid.ULID) (access.Role, error)

	// CountOwned counts sites where the user holds the owner role.
	CountOwned(ctx context.Context, userID ulid.ULID) (int, error)
}
