// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package postgres stores CRM contacts in PostgreSQL.
package postgres

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/crm"
	"github.com/cr0nhq/cr0n/internal/store"
)

// Repository implements crm.Repository.
type Repository struct {
	db store.Querier
}

// NewRepository creates a new Repository.
func NewRepository(db store.Querier) *Repository {
	return &Repository{db: db}
}

// Upsert implements crm.Repository.
func (r *Repository) Upsert(ctx context.Context, c *crm.Contact) (ulid.ULID, error) {
	var id string
	err := store.QuerierFrom(ctx, r.db).QueryRow(ctx, `
		INSERT INTO crm_contacts (id, user_id, email, full_name, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET email = EXCLUDED.email, full_name = EXCLUDED.full_name, updated_at = EXCLUDED.updated_at
		RETURNING id
	`,
		c.ID.String(),
		c.UserID.String(),
		c.Email,
		c.FullName,
		c.Source,
		c.CreatedAt,
		c.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return ulid.ULID{}, oops.Code("CRM_UPSERT_FAILED").
			With("user_id", c.UserID.String()).
			Wrap(err)
	}

	parsed, err := ulid.Parse(id)
	if err != nil {
		return ulid.ULID{}, oops.Code("CRM_UPSERT_FAILED").
			With("contact_id", id).
			Wrapf(err, "parse contact id")
	}
	return parsed, nil
}

// AppendSyncLog implements crm.Repository.
func (r *Repository) AppendSyncLog(ctx context.Context, contactID ulid.ULID, event string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	_, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `
		INSERT INTO crm_sync_log (id, contact_id, event, payload)
		VALUES ($1, $2, $3, $4)
	`, ulid.Make().String(), contactID.String(), event, payload)
	if err != nil {
		return oops.Code("CRM_SYNC_LOG_FAILED").
			With("contact_id", contactID.String()).
			With("event", event).
			Wrap(err)
	}
	return nil
}

var _ crm.Repository = (*Repository)(nil)
