// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package crm

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cr0nhq/cr0n/internal/auth"
	"github.com/cr0nhq/cr0n/pkg/errutil"
)

type syncEntry struct {
	contactID ulid.ULID
	event     string
	payload   map[string]any
}

type memoryRepo struct {
	byUser    map[ulid.ULID]*Contact
	log       []syncEntry
	upsertErr error
	logErr    error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byUser: map[ulid.ULID]*Contact{}}
}

func (r *memoryRepo) Upsert(_ context.Context, c *Contact) (ulid.ULID, error) {
	if r.upsertErr != nil {
		return ulid.ULID{}, r.upsertErr
	}
	if existing, ok := r.byUser[c.UserID]; ok {
		existing.Email = c.Email
		existing.FullName = c.FullName
		return existing.ID, nil
	}
	stored := *c
	r.byUser[c.UserID] = &stored
	return c.ID, nil
}

func (r *memoryRepo) AppendSyncLog(_ context.Context, contactID ulid.ULID, event string, payload map[string]any) error {
	if r.logErr != nil {
		return r.logErr
	}
	r.log = append(r.log, syncEntry{contactID: contactID, event: event, payload: payload})
	return nil
}

type directTx struct{ calls int }

func (tx *directTx) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.calls++
	return fn(ctx)
}

func newUser() *auth.User {
	name := "Ada Lovelace"
	return &auth.User{ID: ulid.Make(), Email: "ada@example.com", FullName: &name}
}

func TestProvisioner_Provision(t *testing.T) {
	repo := newMemoryRepo()
	tx := &directTx{}
	p := NewProvisioner(repo, tx, "")
	user := newUser()

	refs, err := p.Provision(context.Background(), user)
	require.NoError(t, err)
	require.NotNil(t, refs.CRMContactID)
	assert.Nil(t, refs.BillingCustomerID)
	assert.Equal(t, "crm", p.Name())
	assert.Equal(t, 1, tx.calls)

	stored := repo.byUser[user.ID]
	require.NotNil(t, stored)
	assert.Equal(t, stored.ID.String(), *refs.CRMContactID)
	assert.Equal(t, DefaultSource, stored.Source)

	require.Len(t, repo.log, 1)
	assert.Equal(t, EventRegistration, repo.log[0].event)
	assert.Equal(t, stored.ID, repo.log[0].contactID)
	assert.Equal(t, "ada@example.com", repo.log[0].payload["email"])
}

func TestProvisioner_ProvisionIsIdempotentPerUser(t *testing.T) {
	repo := newMemoryRepo()
	p := NewProvisioner(repo, &directTx{}, "import")
	user := newUser()

	first, err := p.Provision(context.Background(), user)
	require.NoError(t, err)
	second, err := p.Provision(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, *first.CRMContactID, *second.CRMContactID)
	assert.Len(t, repo.byUser, 1)
	assert.Equal(t, "import", repo.byUser[user.ID].Source)
}

func TestProvisioner_ProvisionErrors(t *testing.T) {
	t.Run("upsert", func(t *testing.T) {
		repo := newMemoryRepo()
		repo.upsertErr = errors.New("db down")
		user := newUser()

		_, err := NewProvisioner(repo, &directTx{}, "").Provision(context.Background(), user)
		errutil.AssertErrorCode(t, err, "CRM_PROVISION_FAILED")
		errutil.AssertErrorContext(t, err, "user_id", user.ID.String())
	})

	t.Run("sync log", func(t *testing.T) {
		repo := newMemoryRepo()
		repo.logErr = errors.New("db down")

		_, err := NewProvisioner(repo, &directTx{}, "").Provision(context.Background(), newUser())
		errutil.AssertErrorCode(t, err, "CRM_PROVISION_FAILED")
	})
}
