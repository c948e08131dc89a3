// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package billing connects accounts to the payment provider: customers,
// checkout and portal sessions, and subscription webhooks that set the plan.
package billing

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Error codes surfaced to handlers.
const (
	CodeUnknownPrice     = "BILLING_UNKNOWN_PRICE"
	CodeNoCustomer       = "BILLING_NO_CUSTOMER"
	CodeSignatureInvalid = "BILLING_SIGNATURE_INVALID"
	CodeNotConfigured    = "BILLING_NOT_CONFIGURED"
)

// Subscription is the provider state a plan is derived from.
type Subscription struct {
	ID               string
	CustomerID       string
	PriceID          string
	Active           bool
	CurrentPeriodEnd *time.Time
}

// Gateway is the subset of the payment provider the service uses.
type Gateway interface {
	CreateCustomer(ctx context.Context, email string, name *string, userID ulid.ULID) (string, error)
	CheckoutURL(ctx context.Context, customerID, priceID, successURL, cancelURL string) (string, error)
	PortalURL(ctx context.Context, customerID, returnURL string) (string, error)
	Subscription(ctx context.Context, subscriptionID string) (Subscription, error)
}

// EventLedger remembers processed webhook events.
type EventLedger interface {
	// MarkProcessed records the event and reports whether it was new.
	MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error)
}

// Transactor runs a function inside a database transaction.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
