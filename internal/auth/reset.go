// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultResetTTL is the lifetime of a password reset token.
const DefaultResetTTL = time.Hour

// PasswordReset is a single-use password reset grant.
type PasswordReset struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

// NewPasswordReset creates a validated PasswordReset.
func NewPasswordReset(userID ulid.ULID, tokenHash string, createdAt, expiresAt time.Time) (*PasswordReset, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RESET_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(createdAt) {
		return nil, oops.Code("RESET_INVALID_EXPIRY").Errorf("expiry must be after creation")
	}
	return &PasswordReset{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// IsExpiredAt reports whether the grant is expired at t.
func (r *PasswordReset) IsExpiredAt(t time.Time) bool {
	return !r.ExpiresAt.After(t)
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// Create stores a new reset grant.
	Create(ctx context.Context, reset *PasswordReset) error

	// GetByTokenHash retrieves an unused grant by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*PasswordReset, error)

	// MarkUsed atomically flips used from false to true.
	// Returns ErrNotFound if the grant is missing or already used.
	MarkUsed(ctx context.Context, id ulid.ULID) error

	// DeleteExpired removes grants expired at now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
