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

const userColumns = `id, email, password_hash, full_name, plan, status, email_verified,
	billing_customer_id, billing_subscription_id, current_period_end, crm_contact_id,
	last_login_at, created_at, updated_at`

const joinedUserColumns = `u.id, u.email, u.password_hash, u.full_name, u.plan, u.status, u.email_verified,
	u.billing_customer_id, u.billing_subscription_id, u.current_period_end, u.crm_contact_id,
	u.last_login_at, u.created_at, u.updated_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db store.Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db store.Querier) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user. A duplicate email yields auth.ErrEmailTaken.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `
		INSERT INTO users (
			id, email, password_hash, full_name, plan, status, email_verified,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID.String(),
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.PlanOrDefault(),
		string(user.Status),
		user.EmailVerified,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if store.IsUniqueViolation(err) {
		return oops.Code("USER_EMAIL_TAKEN").
			With("email", user.Email).
			Wrap(auth.ErrEmailTaken)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := store.QuerierFrom(ctx, r.db).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := store.QuerierFrom(ctx, r.db).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").
			With("operation", "get user by email").
			With("email", email).
			Wrap(err)
	}
	return user, nil
}

// UpdatePassword replaces the stored credential.
func (r *UserRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return r.exec(ctx, "USER_UPDATE_PASSWORD_FAILED", id, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now())
}

// UpdateLastLogin records a successful login.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	return r.exec(ctx, "USER_UPDATE_LAST_LOGIN_FAILED", id, `
		UPDATE users SET last_login_at = $2
		WHERE id = $1
	`, id.String(), at)
}

// MarkEmailVerified sets the verified flag.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, id ulid.ULID) error {
	return r.exec(ctx, "USER_MARK_VERIFIED_FAILED", id, `
		UPDATE users SET email_verified = TRUE, updated_at = $2
		WHERE id = $1
	`, id.String(), time.Now())
}

// SetExternalRefs stores the non-nil external identifiers.
func (r *UserRepository) SetExternalRefs(ctx context.Context, id ulid.ULID, refs auth.ExternalRefs) error {
	return r.exec(ctx, "USER_SET_REFS_FAILED", id, `
		UPDATE users SET
			billing_customer_id = COALESCE($2, billing_customer_id),
			crm_contact_id = COALESCE($3, crm_contact_id),
			updated_at = $4
		WHERE id = $1
	`, id.String(), refs.BillingCustomerID, refs.CRMContactID, time.Now())
}

// ApplyBillingUpdate updates plan and subscription state for every user of
// the billing customer.
func (r *UserRepository) ApplyBillingUpdate(ctx context.Context, update auth.BillingUpdate) (int64, error) {
	result, err := store.QuerierFrom(ctx, r.db).Exec(ctx, `
		UPDATE users SET
			plan = $2,
			billing_subscription_id = $3,
			current_period_end = $4,
			updated_at = $5
		WHERE billing_customer_id = $1
	`, update.CustomerID, update.Plan, update.SubscriptionID, update.CurrentPeriodEnd, time.Now())
	if err != nil {
		return 0, oops.Code("USER_BILLING_UPDATE_FAILED").
			With("operation", "apply billing update").
			With("customer_id", update.CustomerID).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// exec runs a single-row update and maps zero affected rows to auth.ErrNotFound.
func (r *UserRepository) exec(ctx context.Context, code string, id ulid.ULID, sql string, args ...any) error {
	result, err := store.QuerierFrom(ctx, r.db).Exec(ctx, sql, args...)
	if err != nil {
		return oops.Code(code).
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// userRecord holds the raw column values of a users row.
type userRecord struct {
	id                    string
	email                 string
	passwordHash          string
	fullName              *string
	plan                  string
	status                string
	emailVerified         bool
	billingCustomerID     *string
	billingSubscriptionID *string
	currentPeriodEnd      *time.Time
	crmContactID          *string
	lastLoginAt           *time.Time
	createdAt             time.Time
	updatedAt             time.Time
}

func (u *userRecord) dest() []any {
	return []any{
		&u.id, &u.email, &u.passwordHash, &u.fullName, &u.plan, &u.status, &u.emailVerified,
		&u.billingCustomerID, &u.billingSubscriptionID, &u.currentPeriodEnd, &u.crmContactID,
		&u.lastLoginAt, &u.createdAt, &u.updatedAt,
	}
}

func (u *userRecord) toUser() (*auth.User, error) {
	id, err := ulid.Parse(u.id)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", u.id).
			Wrap(err)
	}
	return &auth.User{
		ID:                    id,
		Email:                 u.email,
		PasswordHash:          u.passwordHash,
		FullName:              u.fullName,
		Plan:                  u.plan,
		Status:                auth.Status(u.status),
		EmailVerified:         u.emailVerified,
		BillingCustomerID:     u.billingCustomerID,
		BillingSubscriptionID: u.billingSubscriptionID,
		CurrentPeriodEnd:      u.currentPeriodEnd,
		CRMContactID:          u.crmContactID,
		LastLoginAt:           u.lastLoginAt,
		CreatedAt:             u.createdAt,
		UpdatedAt:             u.updatedAt,
	}, nil
}

// scanUser scans a single row into a User. QueryRow defers query errors to
// Scan, so scan errors are returned unwrapped for the caller to code.
func scanUser(row pgx.Row) (*auth.User, error) {
	var rec userRecord
	if err := row.Scan(rec.dest()...); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context-specific info
	}
	return rec.toUser()
}

var _ auth.UserRepository = (*UserRepository)(nil)
