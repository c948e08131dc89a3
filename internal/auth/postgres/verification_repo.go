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

// VerificationRepository implements auth.VerificationRepository using PostgreSQL.
type VerificationRepository struct {
	db store.Querier
}

// NewVerificationRepository creates a new VerificationRepository.
func NewVerificationRepository(db store.Querier) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Create stores a new verification.
func (r *VerificationRepository) Create(ctx context.Context, v *auth.EmailVerification) error {
	_, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `
		INSERT INTO email_verifications (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, v.ID.String(), v.UserID.String(), v.TokenHash, v.ExpiresAt, v.CreatedAt)
	if err != nil {
		return oops.Code("VERIFY_CREATE_FAILED").
			With("operation", "insert email_verification").
			With("user_id", v.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a verification by token hash.
func (r *VerificationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.EmailVerification, error) {
	row := store.QuerierFrom(ctx, r.db).QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM email_verifications
		WHERE token_hash = $1
	`, tokenHash)

	var (
		idStr, userIDStr, hash string
		expiresAt, createdAt   time.Time
	)
	if err := row.Scan(&idStr, &userIDStr, &hash, &expiresAt, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oops.Code("VERIFY_NOT_FOUND").Wrap(auth.ErrNotFound)
		}
		return nil, oops.Code("VERIFY_GET_BY_TOKEN_FAILED").
			With("operation", "get verification by token hash").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("VERIFY_INVALID_ID").With("id", idStr).Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("VERIFY_INVALID_USER_ID").With("user_id", userIDStr).Wrap(err)
	}
	return &auth.EmailVerification{
		ID:        id,
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// Delete consumes a verification. Returns auth.ErrNotFound when it is
// already gone.
func (r *VerificationRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `DELETE FROM email_verifications WHERE id = $1`, id.String())
	if err != nil {
		return oops.Code("VERIFY_DELETE_FAILED").
			With("operation", "delete verification").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("VERIFY_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByUser removes every pending verification of the user.
func (r *VerificationRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `DELETE FROM email_verifications WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("VERIFY_DELETE_BY_USER_FAILED").
			With("operation", "delete verifications by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes verifications expired at now.
func (r *VerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `DELETE FROM email_verifications WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("VERIFY_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired verifications").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

var _ auth.VerificationRepository = (*VerificationRepository)(nil)
