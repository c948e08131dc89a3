// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinPasswordLength is the shortest password accepted at registration and reset.
const MinPasswordLength = 8

// DefaultPlan is assigned to new accounts and to accounts without a plan.
const DefaultPlan = "free"

// Status is the account lifecycle state.
type Status string

// Account states. Accounts are suspended, never deleted.
const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// User is a registered account.
type User struct {
	ID                    ulid.ULID
	Email                 string
	PasswordHash          string
	FullName              *string
	Plan                  string
	Status                Status
	EmailVerified         bool
	BillingCustomerID     *string
	BillingSubscriptionID *string
	CurrentPeriodEnd      *time.Time
	CRMContactID          *string
	LastLoginAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ValidateEmail checks that email has a non-empty local part and a domain.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeInvalidEmail).Errorf("email cannot be empty")
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.ContainsAny(email, " \t\r\n") {
		return oops.Code(CodeInvalidEmail).With("email", email).Errorf("email is malformed")
	}
	return nil
}

// NewUser creates a validated active User on the default plan.
func NewUser(email, passwordHash string, fullName *string) (*User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	if fullName != nil {
		trimmed := strings.TrimSpace(*fullName)
		if trimmed == "" {
			fullName = nil
		} else {
			fullName = &trimmed
		}
	}

	now := time.Now().UTC()
	return &User{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     fullName,
		Plan:         DefaultPlan,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsActive reports whether the account may authenticate.
func (u *User) IsActive() bool {
	return u.Status == StatusActive
}

// PlanOrDefault returns the user's plan, falling back to DefaultPlan.
func (u *User) PlanOrDefault() string {
	if u.Plan == "" {
		return DefaultPlan
	}
	return u.Plan
}

// NormalizeEmail lower-cases and trims an email address. Emails are unique
// case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ExternalRefs holds identifiers assigned by external systems at registration.
// Nil fields are left unchanged.
type ExternalRefs struct {
	BillingCustomerID *string
	CRMContactID      *string
}

// IsEmpty reports whether no reference is set.
func (r ExternalRefs) IsEmpty() bool {
	return r.BillingCustomerID == nil && r.CRMContactID == nil
}

// BillingUpdate describes a subscription change applied to every user with
// the given billing customer.
type BillingUpdate struct {
	CustomerID       string
	Plan             string
	SubscriptionID   *string
	CurrentPeriodEnd *time.Time
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrEmailTaken if the email exists.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByEmail retrieves a user by normalized email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// UpdatePassword replaces the stored credential.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// UpdateLastLogin records a successful login.
	UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// MarkEmailVerified sets the verified flag.
	MarkEmailVerified(ctx context.Context, id ulid.ULID) error

	// SetExternalRefs stores non-nil external identifiers.
	SetExternalRefs(ctx context.Context, id ulid.ULID, refs ExternalRefs) error

	// ApplyBillingUpdate updates plan and subscription state by billing customer.
	// Returns the number of users updated.
	ApplyBillingUpdate(ctx context.Context, update BillingUpdate) (int64, error)
}
