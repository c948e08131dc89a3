// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package postgres stores processed billing events in PostgreSQL.
package postgres

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/billing"
	"github.com/cr0nhq/cr0n/internal/store"
)

// Ledger records webhook event ids in billing_events.
type Ledger struct {
	db  store.Querier
	now func() time.Time
}

// NewLedger creates a new Ledger.
func NewLedger(db store.Querier) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// MarkProcessed inserts the event id and reports whether it was new.
func (l *Ledger) MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	tag, err := store.QuerierFrom(ctx, l.db).Exec(ctx, `
		INSERT INTO billing_events (id, type, processed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, eventID, eventType, l.now().UTC())
	if err != nil {
		return false, oops.Code("BILLING_LEDGER_FAILED").
			With("operation", "mark event processed").
			With("event_id", eventID).
			Wrap(err)
	}
	return tag.RowsAffected() == 1, nil
}

var _ billing.EventLedger = (*Ledger)(nil)
