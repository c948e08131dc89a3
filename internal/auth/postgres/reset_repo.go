// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/auth"
	"github.com/cr0nhq/cr0n/internal/store"
)

// PasswordResetRepository implements auth.PasswordResetRepository using PostgreSQL.
type PasswordResetRepository struct {
	db store.Querier
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(db store.Querier) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create stores a new reset grant.
func (r *PasswordResetRepository) Create(ctx context.Context, reset *auth.PasswordReset) error {
	_, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `
		INSERT INTO password_resets (id, user_id, token_hash, expires_at, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, reset.ID.String(), reset.UserID.String(), reset.TokenHash, reset.ExpiresAt, reset.Used, reset.CreatedAt)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password_reset").
			With("user_id", reset.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves an unused grant by token hash.
func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordReset, error) {
	row := store.QuerierFrom(ctx, r.db).QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, used, created_at
		FROM password_resets
		WHERE token_hash = $1 AND used = FALSE
	`, tokenHash)

	var (
		idStr, userIDStr, hash string
		expiresAt, createdAt   time.Time
		used                   bool
	)
	if err := row.Scan(&idStr, &userIDStr, &hash, &expiresAt, &used, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
		}
		return nil, oops.Code("RESET_GET_BY_TOKEN_FAILED").
			With("operation", "get reset by token hash").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").With("id", idStr).Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_USER_ID").With("user_id", userIDStr).Wrap(err)
	}
	return &auth.PasswordReset{
		ID:        id,
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		Used:      used,
		CreatedAt: createdAt,
	}, nil
}

// MarkUsed flips used from false to true. Only one caller can win; the rest
// get auth.ErrNotFound.
func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id ulid.ULID) error {
	result, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `
		UPDATE password_resets SET used = TRUE
		WHERE id = $1 AND used = FALSE
	`, id.String())
	if err != nil {
		return oops.Code("RESET_MARK_USED_FAILED").
			With("operation", "mark reset used").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes grants expired at now.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `DELETE FROM password_resets WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired resets").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
