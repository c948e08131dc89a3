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

const sessionColumns = `id, user_id, token_hash, ip_address, user_agent, expires_at, created_at`

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db store.Querier
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db store.Querier) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		session.ID.String(),
		session.UserID.String(),
		session.TokenHash,
		session.IPAddress,
		session.UserAgent,
		session.ExpiresAt,
		session.CreatedAt,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", session.UserID.String()).
			Wrap(err)
	}
	return nil
}

// GetWithUserByTokenHash retrieves a session joined with its owner.
func (r *SessionRepository) GetWithUserByTokenHash(ctx context.Context, tokenHash string) (*auth.SessionWithUser, error) {
	row := store.QuerierFrom(ctx, r.db).QueryRow(ctx, `
		SELECT s.id, s.user_id, s.token_hash, s.ip_address, s.user_agent, s.expires_at, s.created_at,
		       `+joinedUserColumns+`
		FROM sessions s
		JOIN users u ON u.id = s.user_id
		WHERE s.token_hash = $1
	`, tokenHash)

	var (
		sess sessionRecord
		user userRecord
	)
	if err := row.Scan(append(sess.dest(), user.dest()...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
		}
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	session, err := sess.toSession()
	if err != nil {
		return nil, err
	}
	owner, err := user.toUser()
	if err != nil {
		return nil, err
	}
	return &auth.SessionWithUser{Session: session, User: owner}, nil
}

// ListByUser returns the user's sessions, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID ulid.ULID) ([]*auth.Session, error) {
	rows, err := store.QuerierFrom(ctx, r.db).Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID.String())
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").
			With("operation", "list sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var sessions []*auth.Session
	for rows.Next() {
		var rec sessionRecord
		if err := rows.Scan(rec.dest()...); err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").
				With("operation", "scan session row").
				Wrap(err)
		}
		session, err := rec.toSession()
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate session rows").
			Wrap(err)
	}
	return sessions, nil
}

// DeleteByTokenHash removes a session. Missing sessions are not an error.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session by token hash").
			Wrap(err)
	}
	return nil
}

// DeleteByIDs removes the listed sessions.
func (r *SessionRepository) DeleteByIDs(ctx context.Context, ids []ulid.ULID) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	_, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `DELETE FROM sessions WHERE id = ANY($1)`, strIDs)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete sessions by id").
			With("count", len(ids)).
			Wrap(err)
	}
	return nil
}

// DeleteByUser removes every session of the user.
func (r *SessionRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	_, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_BY_USER_FAILED").
			With("operation", "delete sessions by user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes sessions whose expiry is at or before now.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

type sessionRecord struct {
	id        string
	userID    string
	tokenHash string
	ipAddress string
	userAgent string
	expiresAt time.Time
	createdAt time.Time
}

func (s *sessionRecord) dest() []any {
	return []any{&s.id, &s.userID, &s.tokenHash, &s.ipAddress, &s.userAgent, &s.expiresAt, &s.createdAt}
}

func (s *sessionRecord) toSession() (*auth.Session, error) {
	id, err := ulid.Parse(s.id)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", s.id).Wrap(err)
	}
	userID, err := ulid.Parse(s.userID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").With("user_id", s.userID).Wrap(err)
	}
	return &auth.Session{
		ID:        id,
		UserID:    userID,
		TokenHash: s.tokenHash,
		IPAddress: s.ipAddress,
		UserAgent: s.userAgent,
		ExpiresAt: s.expiresAt,
		CreatedAt: s.createdAt,
	}, nil
}

var _ auth.SessionRepository = (*SessionRepository)(nil)
