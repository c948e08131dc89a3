// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cr0nhq/cr0n/pkg/errutil"
)

func TestLedger_MarkProcessed(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "new event", affected: 1, want: true},
		{name: "redelivered event", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			t.Cleanup(func() {
				assert.NoError(t, mock.ExpectationsWereMet())
				mock.Close()
			})

			mock.ExpectExec(`INSERT INTO billing_events`).
				WithArgs("evt_1", "customer.subscription.updated", pgxmock.AnyArg()).
				WillReturnResult(pgxmock.NewResult("INSERT", tt.affected))

			fresh, err := NewLedger(mock).MarkProcessed(context.Background(), "evt_1", "customer.subscription.updated")
			require.NoError(t, err)
			assert.Equal(t, tt.want, fresh)
		})
	}
}

func TestLedger_MarkProcessed_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO billing_events`).
		WithArgs("evt_2", "checkout.session.completed", pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err = NewLedger(mock).MarkProcessed(context.Background(), "evt_2", "checkout.session.completed")
	errutil.AssertErrorCode(t, err, "BILLING_LEDGER_FAILED")
	errutil.AssertErrorContext(t, err, "event_id", "evt_2")
	assert.NoError(t, mock.ExpectationsWereMet())
}
