// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package billing

import (
	"context"
	"encoding/json"

	"github.com/samber/oops"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/cr0nhq/cr0n/internal/activity"
	"github.com/cr0nhq/cr0n/internal/auth"
)

// Subscription event types that change a plan.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// HandleWebhook verifies and applies a provider event. Redelivered events
// are acknowledged without being applied twice. Unhandled types are ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return oops.Code(CodeNotConfigured).Errorf("webhook secret is not configured")
	}
	if signature == "" {
		return oops.Code(CodeSignatureInvalid).Errorf("missing signature")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return oops.Code(CodeSignatureInvalid).Wrapf(err, "invalid signature")
	}

	update, ok, err := s.updateFor(ctx, event)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	return s.tx.InTransaction(ctx, func(ctx context.Context) error {
		fresh, err := s.ledger.MarkProcessed(ctx, event.ID, string(event.Type))
		if err != nil {
			return oops.Code("BILLING_WEBHOOK_FAILED").
				With("operation", "record event").
				With("event_id", event.ID).
				Wrap(err)
		}
		if !fresh {
			s.logger.InfoContext(ctx, "duplicate billing event ignored", "event_id", event.ID)
			return nil
		}

		n, err := s.users.ApplyBillingUpdate(ctx, update)
		if err != nil {
			return oops.Code("BILLING_WEBHOOK_FAILED").
				With("operation", "apply billing update").
				With("event_id", event.ID).
				Wrap(err)
		}

		s.activity.Record(ctx, activity.Entry{
			Action: activity.ActionPlanChanged,
			Details: map[string]any{
				"event":       string(event.Type),
				"customer_id": update.CustomerID,
				"plan":        update.Plan,
				"accounts":    n,
			},
		})
		return nil
	})
}

// updateFor derives the billing update carried by event.
func (s *Service) updateFor(ctx context.Context, event stripe.Event) (auth.BillingUpdate, bool, error) {
	raw := json.RawMessage(nil)
	if event.Data != nil {
		raw = event.Data.Raw
	}

	switch string(event.Type) {
	case EventCheckoutCompleted:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(raw, &cs); err != nil {
			return auth.BillingUpdate{}, false, decodeError(event, err)
		}
		if cs.Customer == nil || cs.Subscription == nil || cs.Subscription.ID == "" {
			return auth.BillingUpdate{}, false, nil
		}
		sub, err := s.gateway.Subscription(ctx, cs.Subscription.ID)
		if err != nil {
			return auth.BillingUpdate{}, false, err
		}
		p, _ := s.catalog.PlanForPrice(sub.PriceID)
		return auth.BillingUpdate{
			CustomerID:       cs.Customer.ID,
			Plan:             p,
			SubscriptionID:   &sub.ID,
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
		}, true, nil

	case EventSubscriptionUpdated:
		var obj stripe.Subscription
		if err := json.Unmarshal(raw, &obj); err != nil {
			return auth.BillingUpdate{}, false, decodeError(event, err)
		}
		sub := fromStripe(&obj)
		if sub.CustomerID == "" {
			return auth.BillingUpdate{}, false, nil
		}
		p := s.catalog.Default
		if sub.Active && sub.PriceID != "" {
			p, _ = s.catalog.PlanForPrice(sub.PriceID)
		}
		return auth.BillingUpdate{
			CustomerID:       sub.CustomerID,
			Plan:             p,
			SubscriptionID:   &sub.ID,
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
		}, true, nil

	case EventSubscriptionDeleted:
		var obj stripe.Subscription
		if err := json.Unmarshal(raw, &obj); err != nil {
			return auth.BillingUpdate{}, false, decodeError(event, err)
		}
		sub := fromStripe(&obj)
		if sub.CustomerID == "" {
			return auth.BillingUpdate{}, false, nil
		}
		return auth.BillingUpdate{CustomerID: sub.CustomerID, Plan: s.catalog.Default}, true, nil
	}

	return auth.BillingUpdate{}, false, nil
}

func decodeError(event stripe.Event, err error) error {
	return oops.Code("BILLING_WEBHOOK_FAILED").
		With("operation", "decode event").
		With("event_id", event.ID).
		With("event_type", string(event.Type)).
		Wrap(err)
}
