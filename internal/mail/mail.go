// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package mail renders and delivers account emails.
package mail

import (
	"context"
	"log/slog"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message and returns the provider message ID.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// LogSender writes messages to the log instead of delivering them.
// Used when no provider key is configured.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (s LogSender) Send(ctx context.Context, msg Message) (string, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email not delivered, no provider configured",
		"to", msg.To,
		"subject", msg.Subject)
	return "", nil
}
