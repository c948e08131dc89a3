// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package mocks provides testify mocks for the auth interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/cr0nhq/cr0n/internal/auth"
)

// TestingT is the subset of *testing.T the constructors need.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

func get[T any](args mock.Arguments, i int) T {
	var zero T
	if v := args.Get(i); v != nil {
		return v.(T)
	}
	return zero
}

// MockUserRepository mocks auth.UserRepository.
type MockUserRepository struct{ mock.Mock }

// NewMockUserRepository creates a mock that asserts its expectations on cleanup.
func NewMockUserRepository(t TestingT) *MockUserRepository {
	m := &MockUserRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *auth.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	args := m.Called(ctx, id)
	return get[*auth.User](args, 0), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	return get[*auth.User](args, 0), args.Error(1)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockUserRepository) MarkEmailVerified(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockUserRepository) SetExternalRefs(ctx context.Context, id ulid.ULID, refs auth.ExternalRefs) error {
	return m.Called(ctx, id, refs).Error(0)
}

func (m *MockUserRepository) ApplyBillingUpdate(ctx context.Context, update auth.BillingUpdate) (int64, error) {
	args := m.Called(ctx, update)
	return get[int64](args, 0), args.Error(1)
}

// MockSessionRepository mocks auth.SessionRepository.
type MockSessionRepository struct{ mock.Mock }

// NewMockSessionRepository creates a mock that asserts its expectations on cleanup.
func NewMockSessionRepository(t TestingT) *MockSessionRepository {
	m := &MockSessionRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSessionRepository) Create(ctx context.Context, session *auth.Session) error {
	return m.Called(ctx, session).Error(0)
}

func (m *MockSessionRepository) GetWithUserByTokenHash(ctx context.Context, tokenHash string) (*auth.SessionWithUser, error) {
	args := m.Called(ctx, tokenHash)
	return get[*auth.SessionWithUser](args, 0), args.Error(1)
}

func (m *MockSessionRepository) ListByUser(ctx context.Context, userID ulid.ULID) ([]*auth.Session, error) {
	args := m.Called(ctx, userID)
	return get[[]*auth.Session](args, 0), args.Error(1)
}

func (m *MockSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	return m.Called(ctx, tokenHash).Error(0)
}

func (m *MockSessionRepository) DeleteByIDs(ctx context.Context, ids []ulid.ULID) error {
	return m.Called(ctx, ids).Error(0)
}

func (m *MockSessionRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return get[int64](args, 0), args.Error(1)
}

// MockPasswordResetRepository mocks auth.PasswordResetRepository.
type MockPasswordResetRepository struct{ mock.Mock }

// NewMockPasswordResetRepository creates a mock that asserts its expectations on cleanup.
func NewMockPasswordResetRepository(t TestingT) *MockPasswordResetRepository {
	m := &MockPasswordResetRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordResetRepository) Create(ctx context.Context, reset *auth.PasswordReset) error {
	return m.Called(ctx, reset).Error(0)
}

func (m *MockPasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.PasswordReset, error) {
	args := m.Called(ctx, tokenHash)
	return get[*auth.PasswordReset](args, 0), args.Error(1)
}

func (m *MockPasswordResetRepository) MarkUsed(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockPasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return get[int64](args, 0), args.Error(1)
}

// MockVerificationRepository mocks auth.VerificationRepository.
type MockVerificationRepository struct{ mock.Mock }

// NewMockVerificationRepository creates a mock that asserts its expectations on cleanup.
func NewMockVerificationRepository(t TestingT) *MockVerificationRepository {
	m := &MockVerificationRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockVerificationRepository) Create(ctx context.Context, v *auth.EmailVerification) error {
	return m.Called(ctx, v).Error(0)
}

func (m *MockVerificationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.EmailVerification, error) {
	args := m.Called(ctx, tokenHash)
	return get[*auth.EmailVerification](args, 0), args.Error(1)
}

func (m *MockVerificationRepository) Delete(ctx context.Context, id ulid.ULID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockVerificationRepository) DeleteByUser(ctx context.Context, userID ulid.ULID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *MockVerificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return get[int64](args, 0), args.Error(1)
}

// MockPasswordHasher mocks auth.PasswordHasher.
type MockPasswordHasher struct{ mock.Mock }

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t TestingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockNotifier mocks auth.Notifier.
type MockNotifier struct{ mock.Mock }

// NewMockNotifier creates a mock that asserts its expectations on cleanup.
func NewMockNotifier(t TestingT) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockNotifier) SendWelcome(ctx context.Context, email string, fullName *string) error {
	return m.Called(ctx, email, fullName).Error(0)
}

func (m *MockNotifier) SendVerification(ctx context.Context, email, token string) error {
	return m.Called(ctx, email, token).Error(0)
}

func (m *MockNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	return m.Called(ctx, email, token).Error(0)
}

// MockLoginThrottle mocks auth.LoginThrottle.
type MockLoginThrottle struct{ mock.Mock }

// NewMockLoginThrottle creates a mock that asserts its expectations on cleanup.
func NewMockLoginThrottle(t TestingT) *MockLoginThrottle {
	m := &MockLoginThrottle{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockLoginThrottle) Check(ctx context.Context, email string) (auth.RateLimitResult, error) {
	args := m.Called(ctx, email)
	return get[auth.RateLimitResult](args, 0), args.Error(1)
}

func (m *MockLoginThrottle) RecordFailure(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *MockLoginThrottle) Reset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

// MockProvisioner mocks auth.Provisioner.
type MockProvisioner struct{ mock.Mock }

// NewMockProvisioner creates a mock that asserts its expectations on cleanup.
func NewMockProvisioner(t TestingT) *MockProvisioner {
	m := &MockProvisioner{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockProvisioner) Name() string {
	return m.Called().String(0)
}

func (m *MockProvisioner) Provision(ctx context.Context, user *auth.User) (auth.ExternalRefs, error) {
	args := m.Called(ctx, user)
	return get[auth.ExternalRefs](args, 0), args.Error(1)
}

// MockSiteCreator mocks auth.SiteCreator.
type MockSiteCreator struct{ mock.Mock }

// NewMockSiteCreator creates a mock that asserts its expectations on cleanup.
func NewMockSiteCreator(t TestingT) *MockSiteCreator {
	m := &MockSiteCreator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSiteCreator) CreateDefaultSite(ctx context.Context, userID ulid.ULID, fullName *string) (ulid.ULID, error) {
	args := m.Called(ctx, userID, fullName)
	return get[ulid.ULID](args, 0), args.Error(1)
}

var (
	_ auth.UserRepository          = (*MockUserRepository)(nil)
	_ auth.SessionRepository       = (*MockSessionRepository)(nil)
	_ auth.PasswordResetRepository = (*MockPasswordResetRepository)(nil)
	_ auth.VerificationRepository  = (*MockVerificationRepository)(nil)
	_ auth.PasswordHasher          = (*MockPasswordHasher)(nil)
	_ auth.Notifier                = (*MockNotifier)(nil)
	_ auth.LoginThrottle           = (*MockLoginThrottle)(nil)
	_ auth.Provisioner             = (*MockProvisioner)(nil)
	_ auth.SiteCreator             = (*MockSiteCreator)(nil)
)
