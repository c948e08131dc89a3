// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package mail

import (
	"context"

	"github.com/resend/resend-go/v2"
	"github.com/samber/oops"
)

// ResendSender delivers messages through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
}

// NewResendSender creates a sender using client. from is the RFC 5322
// sender, e.g. "cr0n <noreply@example.com>".
func NewResendSender(client *resend.Client, from string) *ResendSender {
	return &ResendSender{client: client, from: from}
}

// Send implements Sender.
func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return "", oops.Code("MAIL_SEND_FAILED").
			With("subject", msg.Subject).
			Wrap(err)
	}
	return sent.Id, nil
}

var _ Sender = (*ResendSender)(nil)
