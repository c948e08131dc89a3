// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"time"
)

// Login throttling configuration.
const (
	// LockoutDuration is how long failures are remembered, and how long a
	// locked account stays locked after the last failure.
	LockoutDuration = 15 * time.Minute

	// LockoutThreshold is the number of failures that triggers a lockout.
	LockoutThreshold = 7
)

// RateLimitResult contains the result of a throttle check.
type RateLimitResult struct {
	// Failures is the number of recent failed attempts.
	Failures int

	// Delay is the suggested wait before another attempt.
	Delay time.Duration

	// IsLockedOut indicates the account is temporarily locked.
	IsLockedOut bool

	// LockoutRemaining is the time until the lockout expires.
	LockoutRemaining time.Duration
}

// CheckFailures evaluates the throttle state for a failure count whose
// window expires after remaining.
func CheckFailures(failures int, remaining time.Duration) RateLimitResult {
	result := RateLimitResult{Failures: failures}

	// Progressive delay: 2^(failures-1) seconds, max 32s before lockout
	if failures > 0 && failures < LockoutThreshold {
		result.Delay = time.Duration(1<<(failures-1)) * time.Second
		if result.Delay > 32*time.Second {
			result.Delay = 32 * time.Second
		}
	}

	if failures >= LockoutThreshold {
		result.IsLockedOut = true
		result.LockoutRemaining = remaining
		if remaining <= 0 {
			result.LockoutRemaining = LockoutDuration
		}
	}

	return result
}
