// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/auth"
)

//go:embed templates/*.html
var templateFS embed.FS

// Branding configures links and names in rendered emails.
type Branding struct {
	AppName string
	AppURL  string
}

// Notifier renders account emails and hands them to a Sender.
type Notifier struct {
	sender    Sender
	brand     Branding
	templates map[string]*template.Template
	now       func() time.Time
}

// NewNotifier parses the embedded templates.
func NewNotifier(sender Sender, brand Branding) (*Notifier, error) {
	if brand.AppName == "" {
		brand.AppName = "cr0n"
	}
	brand.AppURL = strings.TrimRight(brand.AppURL, "/")

	templates := make(map[string]*template.Template, 3)
	for _, name := range []string{"welcome", "verify", "reset"} {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, oops.Code("MAIL_TEMPLATE_INVALID").With("template", name).Wrap(err)
		}
		templates[name] = t
	}
	return &Notifier{sender: sender, brand: brand, templates: templates, now: time.Now}, nil
}

type emailData struct {
	AppName   string
	Year      int
	FirstName string
	URL       string
	Expiry    string
}

// SendWelcome implements auth.Notifier.
func (n *Notifier) SendWelcome(ctx context.Context, email string, fullName *string) error {
	first := "there"
	if fullName != nil {
		if f := strings.Fields(*fullName); len(f) > 0 {
			first = f[0]
		}
	}
	link := n.brand.AppURL + "/dashboard"
	return n.send(ctx, "welcome", email,
		"Welcome to "+n.brand.AppName,
		emailData{FirstName: first, URL: link},
		fmt.Sprintf("Welcome, %s!\n\nYou're all set. Head to your dashboard to get started:\n%s\n", first, link))
}

// SendVerification implements auth.Notifier.
func (n *Notifier) SendVerification(ctx context.Context, email, token string) error {
	link := n.brand.AppURL + "/verify-email?token=" + url.QueryEscape(token)
	expiry := humanize(auth.DefaultVerificationTTL)
	return n.send(ctx, "verify", email,
		"Verify your "+n.brand.AppName+" email",
		emailData{URL: link, Expiry: expiry},
		fmt.Sprintf("Verify your email address:\n%s\n\nThis link expires in %s.\n", link, expiry))
}

// SendPasswordReset implements auth.Notifier.
func (n *Notifier) SendPasswordReset(ctx context.Context, email, token string) error {
	link := n.brand.AppURL + "/reset-password?token=" + url.QueryEscape(token)
	expiry := humanize(auth.DefaultResetTTL)
	return n.send(ctx, "reset", email,
		"Reset your "+n.brand.AppName+" password",
		emailData{URL: link, Expiry: expiry},
		fmt.Sprintf("Choose a new password:\n%s\n\nThis link expires in %s.\n", link, expiry))
}

func (n *Notifier) send(ctx context.Context, name, to, subject string, data emailData, text string) error {
	data.AppName = n.brand.AppName
	data.Year = n.now().Year()

	var buf bytes.Buffer
	if err := n.templates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return oops.Code("MAIL_RENDER_FAILED").With("template", name).Wrap(err)
	}

	_, err := n.sender.Send(ctx, Message{
		To:      to,
		Subject: subject,
		HTML:    buf.String(),
		Text:    text,
	})
	return err
}

func humanize(d time.Duration) string {
	if h := int(d.Hours()); h >= 1 && d == time.Duration(h)*time.Hour {
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	return d.String()
}

var _ auth.Notifier = (*Notifier)(nil)
