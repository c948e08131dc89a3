// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package billing

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/activity"
	"github.com/cr0nhq/cr0n/internal/auth"
	"github.com/cr0nhq/cr0n/internal/plan"
)

// URLs are the return addresses handed to hosted billing pages.
type URLs struct {
	CheckoutSuccess string
	CheckoutCancel  string
	PortalReturn    string
}

// Service runs billing flows for authenticated accounts.
type Service struct {
	gateway       Gateway
	users         auth.UserRepository
	catalog       *plan.Catalog
	ledger        EventLedger
	tx            Transactor
	webhookSecret string
	urls          URLs
	activity      activity.Recorder
	logger        *slog.Logger
}

// Config holds the Service dependencies.
type Config struct {
	Gateway       Gateway
	Users         auth.UserRepository
	Catalog       *plan.Catalog
	Ledger        EventLedger
	Tx            Transactor
	WebhookSecret string
	URLs          URLs
	Activity      activity.Recorder
	Logger        *slog.Logger
}

// NewService creates a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Gateway == nil {
		return nil, oops.Errorf("billing gateway is required")
	}
	if cfg.Users == nil {
		return nil, oops.Errorf("users repository is required")
	}
	if cfg.Catalog == nil {
		return nil, oops.Errorf("plan catalog is required")
	}
	if cfg.Ledger == nil || cfg.Tx == nil {
		return nil, oops.Errorf("event ledger and transactor are required")
	}
	s := &Service{
		gateway:       cfg.Gateway,
		users:         cfg.Users,
		catalog:       cfg.Catalog,
		ledger:        cfg.Ledger,
		tx:            cfg.Tx,
		webhookSecret: cfg.WebhookSecret,
		urls:          cfg.URLs,
		activity:      cfg.Activity,
		logger:        cfg.Logger,
	}
	if s.activity == nil {
		s.activity = activity.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Name implements auth.Provisioner.
func (s *Service) Name() string { return "billing" }

// Provision creates the billing customer of a new account.
func (s *Service) Provision(ctx context.Context, user *auth.User) (auth.ExternalRefs, error) {
	id, err := s.gateway.CreateCustomer(ctx, user.Email, user.FullName, user.ID)
	if err != nil {
		return auth.ExternalRefs{}, err
	}
	return auth.ExternalRefs{BillingCustomerID: &id}, nil
}

// Checkout returns a hosted checkout URL for priceID. Accounts without a
// billing customer get one first.
func (s *Service) Checkout(ctx context.Context, identity *auth.Context, priceID string) (string, error) {
	if identity == nil {
		return "", oops.Code(auth.CodeUnauthorized).Errorf("authentication required")
	}
	if !s.catalog.IsPrice(priceID) {
		return "", oops.Code(CodeUnknownPrice).
			With("price_id", priceID).
			Errorf("unknown price")
	}

	customerID, err := s.ensureCustomer(ctx, identity)
	if err != nil {
		return "", err
	}
	return s.gateway.CheckoutURL(ctx, customerID, priceID, s.urls.CheckoutSuccess, s.urls.CheckoutCancel)
}

// Portal returns a hosted billing portal URL.
func (s *Service) Portal(ctx context.Context, identity *auth.Context) (string, error) {
	if identity == nil {
		return "", oops.Code(auth.CodeUnauthorized).Errorf("authentication required")
	}
	if identity.BillingCustomerID == nil || *identity.BillingCustomerID == "" {
		return "", oops.Code(CodeNoCustomer).Errorf("no billing account")
	}
	return s.gateway.PortalURL(ctx, *identity.BillingCustomerID, s.urls.PortalReturn)
}

func (s *Service) ensureCustomer(ctx context.Context, identity *auth.Context) (string, error) {
	if identity.BillingCustomerID != nil && *identity.BillingCustomerID != "" {
		return *identity.BillingCustomerID, nil
	}

	id, err := s.gateway.CreateCustomer(ctx, identity.Email, identity.FullName, identity.UserID)
	if err != nil {
		return "", err
	}
	if err := s.users.SetExternalRefs(ctx, identity.UserID, auth.ExternalRefs{BillingCustomerID: &id}); err != nil {
		return "", oops.Code("BILLING_CUSTOMER_FAILED").
			With("operation", "store customer id").
			Wrap(err)
	}
	return id, nil
}

var _ auth.Provisioner = (*Service)(nil)
