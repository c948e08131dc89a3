// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cr0nhq/cr0n/internal/activity"
	"github.com/cr0nhq/cr0n/internal/activity/activitytest"
	"github.com/cr0nhq/cr0n/internal/auth"
	"github.com/cr0nhq/cr0n/internal/auth/authtest"
	"github.com/cr0nhq/cr0n/internal/auth/mocks"
	"github.com/cr0nhq/cr0n/pkg/errutil"
)

type serviceFixture struct {
	users    *mocks.MockUserRepository
	hasher   *mocks.MockPasswordHasher
	store    *authtest.Store
	sessions *auth.SessionStore
	recorder *activitytest.Recorder
	svc      *auth.Service
}

func newServiceFixture(t *testing.T, opts ...auth.Option) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		users:    mocks.NewMockUserRepository(t),
		hasher:   mocks.NewMockPasswordHasher(t),
		store:    authtest.NewStore(),
		recorder: &activitytest.Recorder{},
	}
	f.sessions = newMemorySessionStore(t, f.store, newClock(epoch()))

	opts = append([]auth.Option{auth.WithActivity(f.recorder), auth.WithClock(epoch)}, opts...)
	tokens := auth.NewTokenGenerator("cr0n")
	verifications, err := auth.NewVerificationService(f.users, f.store.Verifications(), tokens, opts...)
	require.NoError(t, err)
	f.svc, err = auth.NewAuthService(f.users, f.sessions, f.hasher, verifications, opts...)
	require.NoError(t, err)
	return f
}

func activeUser(t *testing.T) *auth.User {
	t.Helper()
	user, err := auth.NewUser("ada@example.com", "stored-hash", strPtr("Ada"))
	require.NoError(t, err)
	return user
}

func TestNewAuthService_NilDependencies(t *testing.T) {
	store := authtest.NewStore()
	sessions := newMemorySessionStore(t, store, newClock(epoch()))
	verifications, err := auth.NewVerificationService(store.Users(), store.Verifications(), auth.NewTokenGenerator(""))
	require.NoError(t, err)

	tests := []struct {
		name          string
		users         auth.UserRepository
		sessions      *auth.SessionStore
		hasher        auth.PasswordHasher
		verifications *auth.VerificationService
		expectError   string
	}{
		{"nil users repository", nil, sessions, auth.NewArgon2idHasher(), verifications, "users repository is required"},
		{"nil session store", store.Users(), nil, auth.NewArgon2idHasher(), verifications, "session store is required"},
		{"nil password hasher", store.Users(), sessions, nil, verifications, "password hasher is required"},
		{"nil verification service", store.Users(), sessions, auth.NewArgon2idHasher(), nil, "verification service is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewAuthService(tt.users, tt.sessions, tt.hasher, tt.verifications)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	meta := auth.RequestMeta{IPAddress: "203.0.113.7", UserAgent: "test"}

	t.Run("successful login creates session", func(t *testing.T) {
		f := newServiceFixture(t)
		user := activeUser(t)

		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.hasher.On("Verify", "password123", "stored-hash").Return(true, nil)
		f.hasher.On("NeedsUpgrade", "stored-hash").Return(false)
		f.users.On("UpdateLastLogin", mock.Anything, user.ID, epoch().UTC()).Return(nil)

		result, err := f.svc.Login(ctx, "  Ada@Example.com ", "password123", meta)
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(result.Token, "cr0n_"))
		assert.Equal(t, user.ID, result.Session.UserID)
		assert.Equal(t, "203.0.113.7", result.Session.IPAddress)
		require.NotNil(t, result.User.LastLoginAt)
		assert.Equal(t, 1, f.store.SessionCount(user.ID))

		entries := f.recorder.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, activity.ActionLogin, entries[0].Action)
		assert.Equal(t, user.ID, *entries[0].UserID)
		assert.Equal(t, "ada@example.com", entries[0].Details["email"])
		assert.Equal(t, "203.0.113.7", entries[0].IPAddress)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newServiceFixture(t)

		for _, tc := range []struct{ email, password string }{
			{"", "password123"},
			{"ada@example.com", ""},
			{"   ", "password123"},
		} {
			_, err := f.svc.Login(ctx, tc.email, tc.password, meta)
			errutil.AssertErrorCode(t, err, auth.CodeMissingFields)
		}
	})

	t.Run("unknown email still verifies against dummy hash", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Verify", "password123", mock.AnythingOfType("string")).Return(false, nil).Once()

		_, err := f.svc.Login(ctx, "ghost@example.com", "password123", meta)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
		assert.Empty(t, f.recorder.Entries())
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newServiceFixture(t)
		user := activeUser(t)

		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.hasher.On("Verify", "wrongpass", "stored-hash").Return(false, nil)

		_, err := f.svc.Login(ctx, "ada@example.com", "wrongpass", meta)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
		assert.Equal(t, 0, f.store.SessionCount(user.ID))
	})

	t.Run("suspended account with correct password", func(t *testing.T) {
		f := newServiceFixture(t)
		user := activeUser(t)
		user.Status = auth.StatusSuspended

		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.hasher.On("Verify", "password123", "stored-hash").Return(true, nil)

		_, err := f.svc.Login(ctx, "ada@example.com", "password123", meta)
		errutil.AssertErrorCode(t, err, auth.CodeAccountSuspended)
		assert.Equal(t, 0, f.store.SessionCount(user.ID))
	})

	t.Run("suspended account with wrong password", func(t *testing.T) {
		f := newServiceFixture(t)
		user := activeUser(t)
		user.Status = auth.StatusSuspended

		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.hasher.On("Verify", "wrongpass", "stored-hash").Return(false, nil)

		_, err := f.svc.Login(ctx, "ada@example.com", "wrongpass", meta)
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("repository failure", func(t *testing.T) {
		f := newServiceFixture(t)

		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, errors.New("db down"))

		_, err := f.svc.Login(ctx, "ada@example.com", "password123", meta)
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
	})

	t.Run("malformed stored hash", func(t *testing.T) {
		f := newServiceFixture(t)
		user := activeUser(t)

		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.hasher.On("Verify", "password123", "stored-hash").Return(false, errors.New("bad hash"))

		_, err := f.svc.Login(ctx, "ada@example.com", "password123", meta)
		errutil.AssertErrorCode(t, err, "AUTH_LOGIN_FAILED")
	})

	t.Run("legacy credential is upgraded", func(t *testing.T) {
		f := newServiceFixture(t)
		user := activeUser(t)

		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.hasher.On("Verify", "password123", "stored-hash").Return(true, nil)
		f.hasher.On("NeedsUpgrade", "stored-hash").Return(true)
		f.hasher.On("Hash", "password123").Return("$argon2id$new", nil)
		f.users.On("UpdatePassword", mock.Anything, user.ID, "$argon2id$new").Return(nil)
		f.users.On("UpdateLastLogin", mock.Anything, user.ID, mock.AnythingOfType("time.Time")).Return(nil)

		result, err := f.svc.Login(ctx, "ada@example.com", "password123", meta)
		require.NoError(t, err)
		assert.Equal(t, "$argon2id$new", result.User.PasswordHash)
	})

	t.Run("upgrade failure does not fail login", func(t *testing.T) {
		f := newServiceFixture(t)
		user := activeUser(t)

		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.hasher.On("Verify", "password123", "stored-hash").Return(true, nil)
		f.hasher.On("NeedsUpgrade", "stored-hash").Return(true)
		f.hasher.On("Hash", "password123").Return("$argon2id$new", nil)
		f.users.On("UpdatePassword", mock.Anything, user.ID, "$argon2id$new").Return(errors.New("db down"))
		f.users.On("UpdateLastLogin", mock.Anything, user.ID, mock.AnythingOfType("time.Time")).Return(errors.New("db down"))

		result, err := f.svc.Login(ctx, "ada@example.com", "password123", meta)
		require.NoError(t, err)
		assert.Equal(t, "stored-hash", result.User.PasswordHash)
		assert.Nil(t, result.User.LastLoginAt)
	})

	t.Run("sixth login prunes to retention cap", func(t *testing.T) {
		f := newServiceFixture(t)
		user := activeUser(t)
		for range auth.DefaultMaxSessions {
			_, _, err := f.sessions.Create(ctx, user.ID, meta)
			require.NoError(t, err)
		}

		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.hasher.On("Verify", "password123", "stored-hash").Return(true, nil)
		f.hasher.On("NeedsUpgrade", "stored-hash").Return(false)
		f.users.On("UpdateLastLogin", mock.Anything, user.ID, mock.AnythingOfType("time.Time")).Return(nil)

		_, err := f.svc.Login(ctx, "ada@example.com", "password123", meta)
		require.NoError(t, err)
		assert.Equal(t, auth.DefaultMaxSessions, f.store.SessionCount(user.ID))
	})
}

func TestService_Login_Throttle(t *testing.T) {
	ctx := context.Background()

	t.Run("locked account is rejected before lookup", func(t *testing.T) {
		throttle := mocks.NewMockLoginThrottle(t)
		f := newServiceFixture(t, auth.WithLoginThrottle(throttle))

		throttle.On("Check", mock.Anything, "ada@example.com").
			Return(auth.RateLimitResult{Failures: 7, IsLockedOut: true, LockoutRemaining: 10 * time.Minute}, nil)

		_, err := f.svc.Login(ctx, "ada@example.com", "password123", auth.RequestMeta{})
		errutil.AssertErrorCode(t, err, auth.CodeAccountLocked)
		errutil.AssertErrorContext(t, err, "retry_after", "10m0s")
	})

	t.Run("failure is recorded", func(t *testing.T) {
		throttle := mocks.NewMockLoginThrottle(t)
		f := newServiceFixture(t, auth.WithLoginThrottle(throttle))
		user := activeUser(t)

		throttle.On("Check", mock.Anything, "ada@example.com").Return(auth.RateLimitResult{}, nil)
		throttle.On("RecordFailure", mock.Anything, "ada@example.com").Return(nil)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.hasher.On("Verify", "wrongpass", "stored-hash").Return(false, nil)

		_, err := f.svc.Login(ctx, "ada@example.com", "wrongpass", auth.RequestMeta{})
		errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	})

	t.Run("success resets failures", func(t *testing.T) {
		throttle := mocks.NewMockLoginThrottle(t)
		f := newServiceFixture(t, auth.WithLoginThrottle(throttle))
		user := activeUser(t)

		throttle.On("Check", mock.Anything, "ada@example.com").Return(auth.RateLimitResult{Failures: 2}, nil)
		throttle.On("Reset", mock.Anything, "ada@example.com").Return(nil)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.hasher.On("Verify", "password123", "stored-hash").Return(true, nil)
		f.hasher.On("NeedsUpgrade", "stored-hash").Return(false)
		f.users.On("UpdateLastLogin", mock.Anything, user.ID, mock.AnythingOfType("time.Time")).Return(nil)

		_, err := f.svc.Login(ctx, "ada@example.com", "password123", auth.RequestMeta{})
		require.NoError(t, err)
	})

	t.Run("throttle outage fails open", func(t *testing.T) {
		throttle := mocks.NewMockLoginThrottle(t)
		f := newServiceFixture(t, auth.WithLoginThrottle(throttle))
		user := activeUser(t)

		throttle.On("Check", mock.Anything, "ada@example.com").Return(auth.RateLimitResult{}, errors.New("redis down"))
		throttle.On("Reset", mock.Anything, "ada@example.com").Return(errors.New("redis down"))
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(user, nil)
		f.hasher.On("Verify", "password123", "stored-hash").Return(true, nil)
		f.hasher.On("NeedsUpgrade", "stored-hash").Return(false)
		f.users.On("UpdateLastLogin", mock.Anything, user.ID, mock.AnythingOfType("time.Time")).Return(nil)

		_, err := f.svc.Login(ctx, "ada@example.com", "password123", auth.RequestMeta{})
		require.NoError(t, err)
	})
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	meta := auth.RequestMeta{IPAddress: "203.0.113.7"}

	t.Run("creates account, site, verification and session", func(t *testing.T) {
		sites := mocks.NewMockSiteCreator(t)
		notifier := mocks.NewMockNotifier(t)
		billing := mocks.NewMockProvisioner(t)
		crm := mocks.NewMockProvisioner(t)
		f := newServiceFixture(t,
			auth.WithSiteCreator(sites),
			auth.WithNotifier(notifier),
			auth.WithProvisioners(billing, crm),
		)
		siteID := ulid.Make()

		f.users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", "password123").Return("hashed", nil)
		f.users.On("Create", mock.Anything, mock.MatchedBy(func(u *auth.User) bool {
			return u.Email == "new@example.com" && u.PasswordHash == "hashed" && u.Plan == auth.DefaultPlan
		})).Return(nil)
		sites.On("CreateDefaultSite", mock.Anything, mock.AnythingOfType("ulid.ULID"), mock.Anything).Return(siteID, nil)
		billing.On("Provision", mock.Anything, mock.Anything).
			Return(auth.ExternalRefs{BillingCustomerID: strPtr("cus_123")}, nil)
		crm.On("Provision", mock.Anything, mock.Anything).
			Return(auth.ExternalRefs{CRMContactID: strPtr("crm_1")}, nil)
		f.users.On("SetExternalRefs", mock.Anything, mock.AnythingOfType("ulid.ULID"), mock.MatchedBy(func(r auth.ExternalRefs) bool {
			return r.BillingCustomerID != nil && *r.BillingCustomerID == "cus_123" &&
				r.CRMContactID != nil && *r.CRMContactID == "crm_1"
		})).Return(nil)
		notifier.On("SendWelcome", mock.Anything, "new@example.com", mock.Anything).Return(nil)
		notifier.On("SendVerification", mock.Anything, "new@example.com", mock.MatchedBy(func(token string) bool {
			return strings.HasPrefix(token, "cr0n_verify_")
		})).Return(nil)

		result, err := f.svc.Register(ctx, auth.RegisterInput{
			Email:    "New@Example.com",
			Password: "password123",
			FullName: strPtr("Grace Hopper"),
			Meta:     meta,
		})
		require.NoError(t, err)

		assert.Equal(t, "new@example.com", result.User.Email)
		require.NotNil(t, result.SiteID)
		assert.Equal(t, siteID, *result.SiteID)
		assert.Equal(t, "cus_123", *result.User.BillingCustomerID)
		assert.Equal(t, "crm_1", *result.User.CRMContactID)
		assert.Equal(t, 1, f.store.SessionCount(result.User.ID))

		_, pending := f.store.LatestVerification(result.User.ID)
		assert.True(t, pending)

		entries := f.recorder.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, activity.ActionSignup, entries[0].Action)
		assert.Equal(t, siteID, *entries[0].SiteID)
	})

	t.Run("side effect failures do not fail registration", func(t *testing.T) {
		sites := mocks.NewMockSiteCreator(t)
		notifier := mocks.NewMockNotifier(t)
		billing := mocks.NewMockProvisioner(t)
		f := newServiceFixture(t,
			auth.WithSiteCreator(sites),
			auth.WithNotifier(notifier),
			auth.WithProvisioners(billing),
		)

		f.users.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", "password123").Return("hashed", nil)
		f.users.On("Create", mock.Anything, mock.AnythingOfType("*auth.User")).Return(nil)
		sites.On("CreateDefaultSite", mock.Anything, mock.Anything, mock.Anything).Return(ulid.ULID{}, errors.New("db down"))
		billing.On("Provision", mock.Anything, mock.Anything).Return(auth.ExternalRefs{}, errors.New("stripe down"))
		billing.On("Name").Return("billing")
		notifier.On("SendWelcome", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))
		notifier.On("SendVerification", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

		result, err := f.svc.Register(ctx, auth.RegisterInput{Email: "new@example.com", Password: "password123"})
		require.NoError(t, err)
		assert.Nil(t, result.SiteID)
		assert.Nil(t, result.User.BillingCustomerID)
		assert.NotEmpty(t, result.Token)
	})

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name     string
			email    string
			password string
			code     string
		}{
			{"missing email", "", "password123", auth.CodeMissingFields},
			{"missing password", "new@example.com", "", auth.CodeMissingFields},
			{"short password", "new@example.com", "short", auth.CodePasswordTooShort},
			{"seven characters", "new@example.com", "1234567", auth.CodePasswordTooShort},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newServiceFixture(t)
				_, err := f.svc.Register(ctx, auth.RegisterInput{Email: tt.email, Password: tt.password})
				errutil.AssertErrorCode(t, err, tt.code)
			})
		}
	})

	t.Run("existing email", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(activeUser(t), nil)

		_, err := f.svc.Register(ctx, auth.RegisterInput{Email: "ada@example.com", Password: "password123"})
		errutil.AssertErrorCode(t, err, auth.CodeEmailTaken)
	})

	t.Run("concurrent duplicate loses at insert", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", "password123").Return("hashed", nil)
		f.users.On("Create", mock.Anything, mock.AnythingOfType("*auth.User")).Return(auth.ErrEmailTaken)

		_, err := f.svc.Register(ctx, auth.RegisterInput{Email: "ada@example.com", Password: "password123"})
		errutil.AssertErrorCode(t, err, auth.CodeEmailTaken)
	})

	t.Run("insert failure", func(t *testing.T) {
		f := newServiceFixture(t)
		f.users.On("GetByEmail", mock.Anything, "ada@example.com").Return(nil, auth.ErrNotFound)
		f.hasher.On("Hash", "password123").Return("hashed", nil)
		f.users.On("Create", mock.Anything, mock.AnythingOfType("*auth.User")).Return(errors.New("db down"))

		_, err := f.svc.Register(ctx, auth.RegisterInput{Email: "ada@example.com", Password: "password123"})
		errutil.AssertErrorCode(t, err, "AUTH_REGISTER_FAILED")
	})
}

func TestService_Logout(t *testing.T) {
	ctx := context.Background()
	store := authtest.NewStore()
	sessions := newMemorySessionStore(t, store, newClock(epoch()))
	recorder := &activitytest.Recorder{}
	verifications, err := auth.NewVerificationService(store.Users(), store.Verifications(), auth.NewTokenGenerator(""))
	require.NoError(t, err)
	svc, err := auth.NewAuthService(store.Users(), sessions, auth.NewArgon2idHasher(), verifications, auth.WithActivity(recorder))
	require.NoError(t, err)

	user := seedUser(t, store, "ada@example.com")
	token, _, err := sessions.Create(ctx, user.ID, auth.RequestMeta{})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token, auth.RequestMeta{IPAddress: "10.0.0.1"}))
	assert.Equal(t, 0, store.SessionCount(user.ID))
	assert.Equal(t, []activity.Action{activity.ActionLogout}, recorder.Actions())

	// Repeated and empty logouts succeed without another entry.
	require.NoError(t, svc.Logout(ctx, token, auth.RequestMeta{}))
	require.NoError(t, svc.Logout(ctx, "", auth.RequestMeta{}))
	assert.Len(t, recorder.Entries(), 1)
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		code     string
	}{
		{"blank", "   ", auth.CodeMissingFields},
		{"too short", "abc", auth.CodePasswordTooShort},
		{"multibyte counts runes", "ééééééé", auth.CodePasswordTooShort},
		{"exactly minimum", "12345678", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidatePassword(tt.password)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		ok    bool
	}{
		{"plain", "ada@example.com", true},
		{"empty", "", false},
		{"no at sign", "not-an-email", false},
		{"no local part", "@example.com", false},
		{"no domain", "ada@", false},
		{"inner space", "ada lovelace@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidateEmail(tt.email)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, auth.CodeInvalidEmail)
		})
	}
}

func TestService_Register_InvalidEmail(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Register(context.Background(), auth.RegisterInput{
		Email:    "not-an-email",
		Password: "Password1",
	})

	errutil.AssertErrorCode(t, err, auth.CodeInvalidEmail)
	f.users.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
}
