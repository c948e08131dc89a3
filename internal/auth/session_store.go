// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionStore owns the session lifecycle: creation, revocation, retention
// and lookup.
type SessionStore struct {
	repo        SessionRepository
	tokens      *TokenGenerator
	ttl         time.Duration
	maxSessions int
	now         func() time.Time
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithSessionTTL overrides DefaultSessionTTL.
func WithSessionTTL(ttl time.Duration) SessionStoreOption {
	return func(s *SessionStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxSessions overrides DefaultMaxSessions.
func WithMaxSessions(n int) SessionStoreOption {
	return func(s *SessionStore) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithSessionClock sets the time source.
func WithSessionClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionStore creates a SessionStore.
func NewSessionStore(repo SessionRepository, tokens *TokenGenerator, opts ...SessionStoreOption) (*SessionStore, error) {
	if repo == nil {
		return nil, oops.Errorf("session repository is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token generator is required")
	}

	s := &SessionStore{
		repo:        repo,
		tokens:      tokens,
		ttl:         DefaultSessionTTL,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create issues a session for the user and returns the plaintext token.
func (s *SessionStore) Create(ctx context.Context, userID ulid.ULID, meta RequestMeta) (string, *Session, error) {
	token, err := s.tokens.SessionToken()
	if err != nil {
		return "", nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	now := s.now().UTC()
	session, err := NewSession(userID, HashToken(token), meta, now, now.Add(s.ttl))
	if err != nil {
		return "", nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "build session").
			Wrap(err)
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return "", nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return token, session, nil
}

// Lookup returns the session and owner for a token, or ErrNotFound.
// Expiry and account state are not checked here.
func (s *SessionStore) Lookup(ctx context.Context, token string) (*SessionWithUser, error) {
	if token == "" {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(ErrNotFound)
	}
	hash := HashToken(token)
	found, err := s.repo.GetWithUserByTokenHash(ctx, hash)
	if err != nil {
		return nil, err //nolint:wrapcheck // repository errors carry codes
	}
	if !MatchToken(token, found.Session.TokenHash) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(ErrNotFound)
	}
	return found, nil
}

// IsValid reports whether a looked-up session authenticates its owner at the
// current time.
func (s *SessionStore) IsValid(found *SessionWithUser) bool {
	if found == nil || found.Session == nil || found.User == nil {
		return false
	}
	return !found.Session.IsExpiredAt(s.now()) && found.User.IsActive()
}

// Delete revokes the session behind token. Unknown tokens are ignored.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repo.DeleteByTokenHash(ctx, HashToken(token)); err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session by token").
			Wrap(err)
	}
	return nil
}

// DeleteAllForUser revokes every session of the user.
func (s *SessionStore) DeleteAllForUser(ctx context.Context, userID ulid.ULID) error {
	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		return oops.Code("SESSION_DELETE_ALL_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// Prune enforces the retention cap before a new session is created: when the
// user already holds maxSessions or more, all but the newest maxSessions-1
// are deleted. Concurrent logins may briefly exceed the cap.
func (s *SessionStore) Prune(ctx context.Context, userID ulid.ULID) (int, error) {
	sessions, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return 0, oops.Code("SESSION_PRUNE_FAILED").
			With("operation", "list sessions").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if len(sessions) < s.maxSessions {
		return 0, nil
	}

	keep := s.maxSessions - 1
	stale := make([]ulid.ULID, 0, len(sessions)-keep)
	for _, sess := range sessions[keep:] {
		stale = append(stale, sess.ID)
	}
	if err := s.repo.DeleteByIDs(ctx, stale); err != nil {
		return 0, oops.Code("SESSION_PRUNE_FAILED").
			With("operation", "delete stale sessions").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return len(stale), nil
}

// SweepExpired deletes sessions that have expired.
func (s *SessionStore) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").Wrap(err)
	}
	return n, nil
}
