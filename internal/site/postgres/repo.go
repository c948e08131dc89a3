// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package postgres implements site persistence on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/access"
	"github.com/cr0nhq/cr0n/internal/site"
	"github.com/cr0nhq/cr0n/internal/store"
)

// Repository implements site.Repository.
type Repository struct {
	db store.Querier
}

// NewRepository creates a new Repository.
func NewRepository(db store.Querier) *Repository {
	return &Repository{db: db}
}

// Create inserts the site and its owner membership. Callers run it inside
// a transaction so both rows land together.
func (r *Repository) Create(ctx context.Context, s *site.Site) error {
	q := store.QuerierFrom(ctx, r.db)
	if _, err := q.Exec(ctx, `
		INSERT INTO sites (id, name, owner_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, s.ID.String(), s.Name, s.OwnerID.String(), s.CreatedAt); err != nil {
		return oops.Code("SITE_CREATE_FAILED").
			With("operation", "insert site").
			With("owner_id", s.OwnerID.String()).
			Wrap(err)
	}
	if _, err := q.Exec(ctx, `
		INSERT INTO site_members (site_id, user_id, role, created_at)
		VALUES ($1, $2, $3, $4)
	`, s.ID.String(), s.OwnerID.String(), string(access.RoleOwner), s.CreatedAt); err != nil {
		return oops.Code("SITE_CREATE_FAILED").
			With("operation", "insert owner membership").
			With("site_id", s.ID.String()).
			Wrap(err)
	}
	return nil
}

// ListForUser returns the user's memberships, oldest site first.
func (r *Repository) ListForUser(ctx context.Context, userID ulid.ULID) ([]site.Membership, error) {
	rows, err := store.QuerierFrom(ctx, r.db).Query(ctx, `
		SELECT s.id, s.name, s.owner_id, s.created_at, m.role
		FROM site_members m
		JOIN sites s ON s.id = m.site_id
		WHERE m.user_id = $1
		ORDER BY s.created_at, s.id
	`, userID.String())
	if err != nil {
		return nil, oops.Code("SITE_LIST_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var out []site.Membership
	for rows.Next() {
		var (
			id, name, owner, role string
			createdAt             time.Time
		)
		if err := rows.Scan(&id, &name, &owner, &createdAt, &role); err != nil {
			return nil, oops.Code("SITE_SCAN_FAILED").Wrap(err)
		}
		siteID, err := ulid.Parse(id)
		if err != nil {
			return nil, oops.Code("SITE_INVALID_ID").With("id", id).Wrap(err)
		}
		ownerID, err := ulid.Parse(owner)
		if err != nil {
			return nil, oops.Code("SITE_INVALID_OWNER_ID").With("owner_id", owner).Wrap(err)
		}
		out = append(out, site.Membership{
			Site: site.Site{ID: siteID, Name: name, OwnerID: ownerID, CreatedAt: createdAt},
			Role: access.Role(role),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SITE_ROWS_ERROR").Wrap(err)
	}
	return out, nil
}

// RoleOf returns the user's role on the site.
func (r *Repository) RoleOf(ctx context.Context, siteID, userID ulid.ULID) (access.Role, error) {
	var role string
	err := store.QuerierFrom(ctx, r.db).QueryRow(ctx, `
		SELECT role FROM site_members WHERE site_id = $1 AND user_id = $2
	`, siteID.String(), userID.String()).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", access.ErrNotMember
	}
	if err != nil {
		return "", oops.Code("SITE_ROLE_FAILED").
			With("site_id", siteID.String()).
			With("user_id", userID.String()).
			Wrap(err)
	}
	return access.Role(role), nil
}

// CountOwned counts the sites the user owns.
func (r *Repository) CountOwned(ctx context.Context, userID ulid.ULID) (int, error) {
	var n int
	err := store.QuerierFrom(ctx, r.db).QueryRow(ctx, `
		SELECT COUNT(*) FROM site_members WHERE user_id = $1 AND role = $2
	`, userID.String(), string(access.RoleOwner)).Scan(&n)
	if err != nil {
		return 0, oops.Code("SITE_COUNT_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return n, nil
}

var (
	_ site.Repository         = (*Repository)(nil)
	_ access.MembershipReader = (*Repository)(nil)
)
