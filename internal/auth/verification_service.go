// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/activity"
	"github.com/cr0nhq/cr0n/pkg/errutil"
)

// VerificationService issues and consumes email verification tokens.
type VerificationService struct {
	users         UserRepository
	verifications VerificationRepository
	tokens        *TokenGenerator
	opts          options
}

// NewVerificationService creates a new VerificationService.
func NewVerificationService(
	users UserRepository,
	verifications VerificationRepository,
	tokens *TokenGenerator,
	opts ...Option,
) (*VerificationService, error) {
	if users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if verifications == nil {
		return nil, oops.Errorf("verification repository is required")
	}
	if tokens == nil {
		return nil, oops.Errorf("token generator is required")
	}
	return &VerificationService{
		users:         users,
		verifications: verifications,
		tokens:        tokens,
		opts:          buildOptions(opts),
	}, nil
}

// Issue stores a new verification for the user and returns the plaintext token.
func (s *VerificationService) Issue(ctx context.Context, userID ulid.ULID) (string, error) {
	token, err := s.tokens.VerifyToken()
	if err != nil {
		return "", oops.Code("VERIFY_ISSUE_FAILED").Wrap(err)
	}

	now := s.opts.now().UTC()
	v, err := NewEmailVerification(userID, HashToken(token), now, now.Add(s.opts.verificationTTL))
	if err != nil {
		return "", oops.Code("VERIFY_ISSUE_FAILED").
			With("operation", "build verification").
			Wrap(err)
	}
	if err := s.verifications.Create(ctx, v); err != nil {
		return "", oops.Code("VERIFY_ISSUE_FAILED").
			With("operation", "persist verification").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return token, nil
}

// Verify consumes a verification token and marks the owner's email verified.
// Expired tokens are deleted on sight.
func (s *VerificationService) Verify(ctx context.Context, token string, meta RequestMeta) error {
	if token == "" {
		return oops.Code(CodeMissingFields).Errorf("token is required")
	}

	v, err := s.verifications.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeVerifyTokenInvalid).Errorf("invalid verification token")
		}
		return oops.Code("VERIFY_FAILED").
			With("operation", "get verification").
			Wrap(err)
	}
	if !MatchToken(token, v.TokenHash) {
		return oops.Code(CodeVerifyTokenInvalid).Errorf("invalid verification token")
	}

	if v.IsExpiredAt(s.opts.now()) {
		if err := s.verifications.Delete(ctx, v.ID); err != nil && !errors.Is(err, ErrNotFound) {
			errutil.LogError(s.opts.logger, "failed to delete expired verification", err)
		}
		return oops.Code(CodeVerifyTokenExpired).Errorf("verification token has expired")
	}

	// Deleting first makes the token single-use under concurrent requests.
	// A failed update restores it.
	err = s.opts.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.verifications.Delete(ctx, v.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code(CodeVerifyTokenInvalid).Errorf("invalid verification token")
			}
			return oops.Code("VERIFY_FAILED").
				With("operation", "consume verification").
				Wrap(err)
		}

		if err := s.users.MarkEmailVerified(ctx, v.UserID); err != nil {
			return oops.Code("VERIFY_FAILED").
				With("operation", "mark email verified").
				With("user_id", v.UserID.String()).
				Wrap(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.opts.activity.Record(ctx, activity.Entry{
		Action:    activity.ActionVerifyEmail,
		UserID:    activity.Ref(v.UserID),
		IPAddress: meta.IPAddress,
	})
	return nil
}

// Resend replaces any outstanding verification for the authenticated user
// and emails a fresh token.
func (s *VerificationService) Resend(ctx context.Context, identity *Context) error {
	if identity == nil {
		return oops.Code(CodeUnauthorized).Errorf("authentication required")
	}
	if identity.EmailVerified {
		return oops.Code(CodeAlreadyVerified).Errorf("email is already verified")
	}

	if err := s.verifications.DeleteByUser(ctx, identity.UserID); err != nil {
		return oops.Code("VERIFY_RESEND_FAILED").
			With("operation", "delete previous verifications").
			Wrap(err)
	}

	token, err := s.Issue(ctx, identity.UserID)
	if err != nil {
		return err
	}

	if s.opts.notifier != nil {
		if err := s.opts.notifier.SendVerification(ctx, identity.Email, token); err != nil {
			errutil.LogError(s.opts.logger, "verification email failed", err)
		}
	}
	return nil
}

// SweepExpired deletes expired verifications.
func (s *VerificationService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.verifications.DeleteExpired(ctx, s.opts.now())
	if err != nil {
		return 0, oops.Code("VERIFY_SWEEP_FAILED").Wrap(err)
	}
	return n, nil
}
