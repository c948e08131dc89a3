// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/activity"
	"github.com/cr0nhq/cr0n/pkg/errutil"
)

// PasswordResetService handles password reset operations.
type PasswordResetService struct {
	users    UserRepository
	resets   PasswordResetRepository
	sessions *SessionStore
	hasher   PasswordHasher
	tokens   *TokenGenerator
	opts     options
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(
	users UserRepository,
	resets PasswordResetRepository,
	sessions *SessionStore,
	hasher PasswordHasher,
	tokens *TokenGenerator,
	opts ...Option,
) (*PasswordResetService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if resets == nil {
		return nil, oops.Errorf("reset repository is required")
	}
	if sessions == nil {
		return nil, oops.Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token generator is required")
	}
	return &PasswordResetService{
		users:    users,
		resets:   resets,
		sessions: sessions,
		hasher:   hasher,
		tokens:   tokens,
		opts:     buildOptions(opts),
	}, nil
}

// RequestReset issues a reset token for the account and emails it. Unknown
// emails succeed silently so callers cannot discover which accounts exist.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string, meta RequestMeta) error {
	email = NormalizeEmail(email)
	if email == "" {
		return oops.Code(CodeMissingFields).Errorf("email is required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, err := s.tokens.ResetToken()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	now := s.opts.now().UTC()
	reset, err := NewPasswordReset(user.ID, HashToken(token), now, now.Add(s.opts.resetTTL))
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "build reset").
			Wrap(err)
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "persist reset").
			Wrap(err)
	}

	if s.opts.notifier != nil {
		if err := s.opts.notifier.SendPasswordReset(ctx, user.Email, token); err != nil {
			errutil.LogError(s.opts.logger, "password reset email failed", err)
		}
	}

	s.opts.activity.Record(ctx, activity.Entry{
		Action:    activity.ActionRequestPasswordReset,
		UserID:    activity.Ref(user.ID),
		IPAddress: meta.IPAddress,
	})
	return nil
}

// ValidateToken returns the unused, unexpired grant behind token.
func (s *PasswordResetService) ValidateToken(ctx context.Context, token string) (*PasswordReset, error) {
	if token == "" {
		return nil, oops.Code(CodeMissingFields).Errorf("reset token is required")
	}

	reset, err := s.resets.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeResetTokenInvalid).Errorf("reset token not found")
		}
		return nil, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "get reset by token hash").
			Wrap(err)
	}
	if reset.Used || !MatchToken(token, reset.TokenHash) {
		return nil, oops.Code(CodeResetTokenInvalid).Errorf("reset token not found")
	}
	if reset.IsExpiredAt(s.opts.now()) {
		return nil, oops.Code(CodeResetTokenExpired).Errorf("reset token has expired")
	}
	return reset, nil
}

// ResetPassword consumes a reset token, replaces the credential and revokes
// every session of the account.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	if token == "" || newPassword == "" {
		return oops.Code(CodeMissingFields).Errorf("token and password are required")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	reset, err := s.ValidateToken(ctx, token)
	if err != nil {
		return err
	}

	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	// Claiming the grant before the update keeps it single-use under
	// concurrent requests. A failed update releases the claim.
	err = s.opts.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.resets.MarkUsed(ctx, reset.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code(CodeResetTokenInvalid).Errorf("reset token already used")
			}
			return oops.Code("RESET_PASSWORD_FAILED").
				With("operation", "mark reset used").
				Wrap(err)
		}

		if err := s.users.UpdatePassword(ctx, reset.UserID, hashed); err != nil {
			return oops.Code("RESET_PASSWORD_FAILED").
				With("operation", "update password").
				Wrap(err)
		}

		if err := s.sessions.DeleteAllForUser(ctx, reset.UserID); err != nil {
			return oops.Code("RESET_PASSWORD_FAILED").
				With("operation", "revoke sessions").
				Wrap(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.opts.activity.Record(ctx, activity.Entry{
		Action:    activity.ActionResetPassword,
		UserID:    activity.Ref(reset.UserID),
		IPAddress: meta.IPAddress,
	})
	return nil
}

// SweepExpired deletes expired reset grants.
func (s *PasswordResetService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.resets.DeleteExpired(ctx, s.opts.now())
	if err != nil {
		return 0, oops.Code("RESET_SWEEP_FAILED").Wrap(err)
	}
	return n, nil
}
