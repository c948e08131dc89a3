// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package postgres_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userColumnNames = []string{
	"id", "email", "password_hash", "full_name", "plan", "status", "email_verified",
	"billing_customer_id", "billing_subscription_id", "current_period_end", "crm_contact_id",
	"last_login_at", "created_at", "updated_at",
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		mock.Close()
	})
	return mock
}

func strPtr(s string) *string { return &s }

// userRow returns the column values of an active, unverified user.
func userRow(id ulid.ULID, email string, at time.Time) []any {
	return []any{
		id.String(), email, "hash", strPtr("Ada Lovelace"), "free", "active", false,
		(*string)(nil), (*string)(nil), (*time.Time)(nil), (*string)(nil),
		(*time.Time)(nil), at, at,
	}
}
