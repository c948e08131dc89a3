// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package authtest

import (
	"context"
	"sync"

	"github.com/cr0nhq/cr0n/internal/auth"
)

// Mail is one notification captured by Outbox.
type Mail struct {
	Kind  string
	Email string
	Token string
}

// Outbox is an auth.Notifier that keeps every message in memory.
type Outbox struct {
	mu   sync.Mutex
	sent []Mail
}

// SendWelcome implements auth.Notifier.
func (o *Outbox) SendWelcome(_ context.Context, email string, _ *string) error {
	o.add(Mail{Kind: "welcome", Email: email})
	return nil
}

// SendVerification implements auth.Notifier.
func (o *Outbox) SendVerification(_ context.Context, email, token string) error {
	o.add(Mail{Kind: "verification", Email: email, Token: token})
	return nil
}

// SendPasswordReset implements auth.Notifier.
func (o *Outbox) SendPasswordReset(_ context.Context, email, token string) error {
	o.add(Mail{Kind: "reset", Email: email, Token: token})
	return nil
}

func (o *Outbox) add(m Mail) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
}

// Last returns the most recent message of kind sent to email.
func (o *Outbox) Last(kind, email string) (Mail, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].Kind == kind && o.sent[i].Email == email {
			return o.sent[i], true
		}
	}
	return Mail{}, false
}

// Count reports how many messages of kind were sent.
func (o *Outbox) Count(kind string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, m := range o.sent {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

var _ auth.Notifier = (*Outbox)(nil)
