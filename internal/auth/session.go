// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session defaults.
const (
	DefaultSessionTTL  = 30 * 24 * time.Hour
	DefaultMaxSessions = 5
)

// RequestMeta describes the client that initiated a request.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Session is a server-side login session. Only the token hash is stored.
type Session struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	IPAddress string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewSession creates a validated Session.
func NewSession(userID ulid.ULID, tokenHash string, meta RequestMeta, createdAt, expiresAt time.Time) (*Session, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() || !expiresAt.After(createdAt) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry must be after creation")
	}

	return &Session{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		ExpiresAt: expiresAt,
		CreatedAt: createdAt,
	}, nil
}

// IsExpiredAt reports whether the session is expired at t. A session is
// valid only while its expiry is strictly in the future.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !s.ExpiresAt.After(t)
}

// SessionWithUser is a session joined with its owning user.
type SessionWithUser struct {
	Session *Session
	User    *User
}

// SessionRepository manages session persistence.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetWithUserByTokenHash retrieves a session and its owner.
	GetWithUserByTokenHash(ctx context.Context, tokenHash string) (*SessionWithUser, error)

	// ListByUser returns the user's sessions, newest first.
	ListByUser(ctx context.Context, userID ulid.ULID) ([]*Session, error)

	// DeleteByTokenHash removes a session. Deleting a missing session is not an error.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByIDs removes the listed sessions.
	DeleteByIDs(ctx context.Context, ids []ulid.ULID) error

	// DeleteByUser removes every session of the user.
	DeleteByUser(ctx context.Context, userID ulid.ULID) error

	// DeleteExpired removes sessions expired at now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
