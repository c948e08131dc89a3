// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package activity records the append-only audit trail of account events.
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cr0nhq/cr0n/pkg/errutil"
)

// Action names a recorded event.
type Action string

// Recorded actions.
const (
	ActionSignup               Action = "signup"
	ActionLogin                Action = "login"
	ActionLogout               Action = "logout"
	ActionRequestPasswordReset Action = "request_password_reset"
	ActionResetPassword        Action = "reset_password"
	ActionVerifyEmail          Action = "verify_email"
	ActionCreateSite           Action = "create_site"
	ActionPlanChanged          Action = "plan_changed"
)

// Entry is a single audit record.
type Entry struct {
	ID        ulid.ULID
	Action    Action
	UserID    *ulid.ULID
	SiteID    *ulid.ULID
	Details   map[string]any
	IPAddress string
	CreatedAt time.Time
}

// Ref returns a pointer to id, for optional Entry fields.
func Ref(id ulid.ULID) *ulid.ULID {
	return &id
}

// Recorder records entries without ever failing the caller.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Writer persists entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}

// Logger is a Recorder backed by a Writer. Write failures are logged and
// counted, then dropped.
type Logger struct {
	writer   Writer
	logger   *slog.Logger
	failures prometheus.Counter
	now      func() time.Time
}

// NewLogger creates a Logger. The failure counter is registered on reg when
// reg is non-nil.
func NewLogger(writer Writer, logger *slog.Logger, reg prometheus.Registerer) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cr0n_activity_failures_total",
		Help: "Total number of activity entries that could not be written",
	})
	if reg != nil {
		reg.MustRegister(failures)
	}
	return &Logger{
		writer:   writer,
		logger:   logger,
		failures: failures,
		now:      time.Now,
	}
}

// Record writes the entry. It never returns an error and never panics on
// writer failure.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	if entry.ID.Compare(ulid.ULID{}) == 0 {
		entry.ID = ulid.Make()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now().UTC()
	}
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}

	if err := l.writer.Write(ctx, entry); err != nil {
		l.failures.Inc()
		errutil.LogError(l.logger.With("action", string(entry.Action)), "failed to record activity", err)
	}
}

// Failures returns the failure counter.
func (l *Logger) Failures() prometheus.Counter {
	return l.failures
}

// Nop discards every entry.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(context.Context, Entry) {}

var (
	_ Recorder = (*Logger)(nil)
	_ Recorder = Nop{}
)
