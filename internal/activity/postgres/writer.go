// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package postgres stores activity entries in PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/activity"
	"github.com/cr0nhq/cr0n/internal/store"
)

// Writer appends entries to activity_log.
type Writer struct {
	db store.Querier
}

// NewWriter creates a new Writer.
func NewWriter(db store.Querier) *Writer {
	return &Writer{db: db}
}

// Write inserts entry.
func (w *Writer) Write(ctx context.Context, entry activity.Entry) error {
	_, err := store.QuerierFrom(ctx, w.db).Exec(ctx, `
		INSERT INTO activity_log (id, action, user_id, site_id, details, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		entry.ID.String(),
		string(entry.Action),
		idOrNil(entry.UserID),
		idOrNil(entry.SiteID),
		entry.Details,
		entry.IPAddress,
		entry.CreatedAt,
	)
	if err != nil {
		return oops.Code("ACTIVITY_WRITE_FAILED").
			With("operation", "insert activity").
			With("action", string(entry.Action)).
			Wrap(err)
	}
	return nil
}

// ListByUser returns the most recent entries of a user, newest first.
func (w *Writer) ListByUser(ctx context.Context, userID ulid.ULID, limit int) ([]activity.Entry, error) {
	rows, err := store.QuerierFrom(ctx, w.db).Query(ctx, `
		SELECT id, action, user_id, site_id, details, ip_address, created_at
		FROM activity_log
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID.String(), limit)
	if err != nil {
		return nil, oops.Code("ACTIVITY_LIST_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	defer rows.Close()

	var entries []activity.Entry
	for rows.Next() {
		var (
			id, action, ip string
			uid, sid       *string
			details        map[string]any
			createdAt      time.Time
		)
		if err := rows.Scan(&id, &action, &uid, &sid, &details, &ip, &createdAt); err != nil {
			return nil, oops.Code("ACTIVITY_SCAN_FAILED").Wrap(err)
		}
		entry := activity.Entry{
			Action:    activity.Action(action),
			Details:   details,
			IPAddress: ip,
			CreatedAt: createdAt,
		}
		if entry.ID, err = ulid.Parse(id); err != nil {
			return nil, oops.Code("ACTIVITY_INVALID_ID").With("id", id).Wrap(err)
		}
		if entry.UserID, err = parseOptional(uid); err != nil {
			return nil, oops.Code("ACTIVITY_INVALID_USER_ID").Wrap(err)
		}
		if entry.SiteID, err = parseOptional(sid); err != nil {
			return nil, oops.Code("ACTIVITY_INVALID_SITE_ID").Wrap(err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACTIVITY_ROWS_ERROR").Wrap(err)
	}
	return entries, nil
}

func idOrNil(id *ulid.ULID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func parseOptional(s *string) (*ulid.ULID, error) {
	if s == nil {
		return nil, nil
	}
	id, err := ulid.Parse(*s)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by caller
	}
	return &id, nil
}

var _ activity.Writer = (*Writer)(nil)
