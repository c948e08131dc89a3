// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package billing

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeGateway implements Gateway with the Stripe API.
type StripeGateway struct {
	api *client.API
}

// NewStripeGateway creates a gateway from an explicitly constructed client.
func NewStripeGateway(api *client.API) *StripeGateway {
	return &StripeGateway{api: api}
}

// NewStripeClient builds a Stripe client for secretKey. backends may be nil
// to use the default endpoints.
func NewStripeClient(secretKey string, backends *stripe.Backends) *client.API {
	return client.New(secretKey, backends)
}

// CreateCustomer creates a customer tagged with the account ID.
func (g *StripeGateway) CreateCustomer(ctx context.Context, email string, name *string, userID ulid.ULID) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  name,
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID.String())

	c, err := g.api.Customers.New(params)
	if err != nil {
		return "", oops.Code("BILLING_CUSTOMER_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return c.ID, nil
}

// CheckoutURL opens a subscription checkout for one unit of priceID.
func (g *StripeGateway) CheckoutURL(ctx context.Context, customerID, priceID, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", oops.Code("BILLING_CHECKOUT_FAILED").
			With("customer_id", customerID).
			With("price_id", priceID).
			Wrap(err)
	}
	return s.URL, nil
}

// PortalURL opens a billing portal session.
func (g *StripeGateway) PortalURL(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	s, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", oops.Code("BILLING_PORTAL_FAILED").
			With("customer_id", customerID).
			Wrap(err)
	}
	return s.URL, nil
}

// Subscription fetches a subscription.
func (g *StripeGateway) Subscription(ctx context.Context, subscriptionID string) (Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := g.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return Subscription{}, oops.Code("BILLING_SUBSCRIPTION_FAILED").
			With("subscription_id", subscriptionID).
			Wrap(err)
	}
	return fromStripe(sub), nil
}

func fromStripe(sub *stripe.Subscription) Subscription {
	out := Subscription{
		ID:     sub.ID,
		Active: sub.Status == stripe.SubscriptionStatusActive,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &end
	}
	return out
}

var _ Gateway = (*StripeGateway)(nil)
