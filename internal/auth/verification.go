// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultVerificationTTL is the lifetime of an email verification token.
const DefaultVerificationTTL = 24 * time.Hour

// EmailVerification is a pending email ownership proof. It is consumed by deletion.
type EmailVerification struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewEmailVerification creates a validated EmailVerification.
func NewEmailVerification(userID ulid.ULID, tokenHash string, createdAt, expiresAt time.Time) (*EmailVerification, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("VERIFY_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("VERIFY_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if !expiresAt.After(createdAt) {
		return nil, oops.Code("VERIFY_INVALID_EXPIRY").Errorf("expiry must be after creation")
	}
	return &EmailVerification{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// IsExpiredAt reports whether the verification is expired at t.
func (v *EmailVerification) IsExpiredAt(t time.Time) bool {
	return !v.ExpiresAt.After(t)
}

// VerificationRepository manages email verification persistence.
type VerificationRepository interface {
	// Create stores a new verification.
	Create(ctx context.Context, v *EmailVerification) error

	// GetByTokenHash retrieves a verification by its token hash.
	GetByTokenHash(ctx context.Context, tokenHash string) (*EmailVerification, error)

	// Delete removes a verification. Returns ErrNotFound if it no longer exists.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByUser removes every verification of the user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes verifications expired at now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
