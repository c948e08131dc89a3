// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package web

import (
	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/billing"
)

// stripeSignatureHeader carries the webhook signature.
const stripeSignatureHeader = "Stripe-Signature"

type checkoutRequest struct {
	PriceID string `json:"priceId"`
}

func (s *Server) checkout(c *gin.Context) {
	if s.cfg.Billing == nil {
		s.abortCode(c, billing.CodeNotConfigured, "billing is not configured")
		return
	}

	var req checkoutRequest
	if !s.bind(c, &req) {
		return
	}
	if req.PriceID == "" {
		s.fail(c, oops.Code(billing.CodeUnknownPrice).Errorf("price id is required"),
			withMessage(billing.CodeUnknownPrice, "Price ID is required"))
		return
	}

	identity, _ := Identity(c)
	url, err := s.cfg.Billing.Checkout(c.Request.Context(), identity, req.PriceID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"url": url})
}

func (s *Server) portal(c *gin.Context) {
	if s.cfg.Billing == nil {
		s.abortCode(c, billing.CodeNotConfigured, "billing is not configured")
		return
	}

	identity, _ := Identity(c)
	url, err := s.cfg.Billing.Portal(c.Request.Context(), identity)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"url": url})
}

func (s *Server) stripeWebhook(c *gin.Context) {
	if s.cfg.Billing == nil {
		s.abortCode(c, billing.CodeNotConfigured, "billing is not configured")
		return
	}

	signature := c.GetHeader(stripeSignatureHeader)
	if signature == "" {
		s.fail(c, oops.Code(billing.CodeSignatureInvalid).Errorf("missing signature"),
			withMessage(billing.CodeSignatureInvalid, "Missing signature"))
		return
	}

	payload, err := c.GetRawData()
	if err != nil {
		s.abortCode(c, CodeInvalidBody, "read webhook body: %v", err)
		return
	}

	if err := s.cfg.Billing.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"received": true})
}
