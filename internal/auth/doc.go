// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package auth provides the session-based authentication core for cr0n.
//
// # Domain Types
//
// Domain types (User, Session, PasswordReset, EmailVerification) should be
// created using their constructors:
//   - NewUser - normalizes the email and validates the credential hash
//   - NewSession - validates owner, token hash and expiry
//   - NewPasswordReset - validates owner, token hash and expiry
//   - NewEmailVerification - validates owner, token hash and expiry
//
// Only SHA-256 hashes of bearer tokens are persisted. Plaintext tokens leave
// the process exactly once: in a cookie, or in an email link.
//
// # Services
//
//   - Service - login, registration, logout
//   - SessionStore - session lifecycle and retention
//   - Resolver - maps a session token to an authenticated Context
//   - PasswordResetService - reset request and execution
//   - VerificationService - email verification and resend
package auth
