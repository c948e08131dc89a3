// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by UserRepository.Create when the email is
// already registered.
var ErrEmailTaken = errors.New("email already registered")

// Error codes surfaced to callers. Handlers map these to response statuses.
const (
	CodeMissingFields      = "AUTH_MISSING_FIELDS"
	CodeInvalidEmail       = "AUTH_INVALID_EMAIL"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAccountSuspended   = "AUTH_ACCOUNT_SUSPENDED"
	CodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
	CodePasswordTooShort   = "AUTH_PASSWORD_TOO_SHORT"
	CodeEmailTaken         = "AUTH_EMAIL_TAKEN"
	CodeUnauthorized       = "AUTH_UNAUTHORIZED"
	CodeResetTokenInvalid  = "RESET_TOKEN_INVALID"
	CodeResetTokenExpired  = "RESET_TOKEN_EXPIRED"
	CodeVerifyTokenInvalid = "VERIFY_TOKEN_INVALID"
	CodeVerifyTokenExpired = "VERIFY_TOKEN_EXPIRED"
	CodeAlreadyVerified    = "VERIFY_ALREADY_VERIFIED"
)
