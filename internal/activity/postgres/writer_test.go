// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cr0nhq/cr0n/internal/activity"
	"github.com/cr0nhq/cr0n/internal/activity/postgres"
	"github.com/cr0nhq/cr0n/pkg/errutil"
)

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

func TestWriter_Write(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	userID := ulid.Make()
	userStr := userID.String()

	t.Run("optional ids become strings or NULL", func(t *testing.T) {
		entry := activity.Entry{
			ID:        ulid.Make(),
			Action:    activity.ActionLogin,
			UserID:    activity.Ref(userID),
			Details:   map[string]any{"method": "password"},
			IPAddress: "10.0.0.1",
			CreatedAt: at,
		}

		mock := newMockPool(t)
		mock.ExpectExec("INSERT INTO activity_log").
			WithArgs(entry.ID.String(), "login", &userStr, (*string)(nil), entry.Details, "10.0.0.1", at).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, postgres.NewWriter(mock).Write(ctx, entry))
	})

	t.Run("failure", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec("INSERT INTO activity_log").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("disk full"))

		err := postgres.NewWriter(mock).Write(ctx, activity.Entry{ID: ulid.Make(), Action: activity.ActionLogout})
		errutil.AssertErrorCode(t, err, "ACTIVITY_WRITE_FAILED")
		errutil.AssertErrorContext(t, err, "action", "logout")
	})
}

func TestWriter_ListByUser(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	userID := ulid.Make()
	userStr := userID.String()
	entryID := ulid.Make()

	mock := newMockPool(t)
	mock.ExpectQuery("FROM activity_log").
		WithArgs(userStr, 20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "action", "user_id", "site_id", "details", "ip_address", "created_at"}).
			AddRow(entryID.String(), "signup", &userStr, (*string)(nil), map[string]any{}, "", at))

	entries, err := postgres.NewWriter(mock).ListByUser(ctx, userID, 20)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entryID, entries[0].ID)
	assert.Equal(t, activity.ActionSignup, entries[0].Action)
	require.NotNil(t, entries[0].UserID)
	assert.Equal(t, userID, *entries[0].UserID)
	assert.Nil(t, entries[0].SiteID)
}
