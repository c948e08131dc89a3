// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package web serves the cr0n JSON API and guards the dashboard pages.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/cr0nhq/cr0n/internal/auth"
	"github.com/cr0nhq/cr0n/internal/billing"
	"github.com/cr0nhq/cr0n/internal/media"
	"github.com/cr0nhq/cr0n/internal/observability"
	"github.com/cr0nhq/cr0n/internal/plan"
	"github.com/cr0nhq/cr0n/internal/site"
)

// DefaultProduct prefixes the session cookie name.
const DefaultProduct = "cr0n"

// TracerName names the tracer of request spans.
const TracerName = "cr0n/web"

// Config wires the API to its services. Billing and Media are optional;
// their routes answer 503 when unset.
type Config struct {
	Product       string
	SecureCookies bool

	Auth          *auth.Service
	Resets        *auth.PasswordResetService
	Verifications *auth.VerificationService
	Resolver      *auth.Resolver
	SessionTTL    time.Duration

	Sites    *site.Service
	Enforcer *plan.Enforcer
	Billing  *billing.Service
	Media    *media.Service

	// Pages serves non-API paths after the guard. Nil means 404.
	Pages http.Handler

	// TrustedProxies lists the proxy addresses or CIDRs whose
	// X-Forwarded-For is believed. Empty trusts none.
	TrustedProxies []string

	Metrics *observability.Metrics
	Logger  *slog.Logger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Server is the HTTP front end.
type Server struct {
	cfg        Config
	engine     *gin.Engine
	guard      *Guard
	cookieName string
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewServer validates cfg and builds the router.
func NewServer(cfg Config) (*Server, error) {
	switch {
	case cfg.Auth == nil:
		return nil, oops.Errorf("auth service is required")
	case cfg.Resets == nil:
		return nil, oops.Errorf("password reset service is required")
	case cfg.Verifications == nil:
		return nil, oops.Errorf("verification service is required")
	case cfg.Resolver == nil:
		return nil, oops.Errorf("resolver is required")
	case cfg.Sites == nil:
		return nil, oops.Errorf("site service is required")
	case cfg.Enforcer == nil:
		return nil, oops.Errorf("plan enforcer is required")
	}
	if cfg.Product == "" {
		cfg.Product = DefaultProduct
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = auth.DefaultSessionTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	guard, err := NewGuard(DefaultProtectedRoutes, DefaultAuthRoutes)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		guard:      guard,
		cookieName: SessionCookieName(cfg.Product),
		logger:     logger,
		tracer:     tp.Tracer(TracerName),
	}
	if err := s.routes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) routes() error {
	r := gin.New()
	if err := r.SetTrustedProxies(s.cfg.TrustedProxies); err != nil {
		return oops.Code("WEB_ROUTER_FAILED").With("trusted_proxies", s.cfg.TrustedProxies).Wrap(err)
	}
	r.Use(gin.Recovery())
	r.Use(s.observe())
	r.Use(s.guard.Middleware(s.cookieName))
	r.Use(s.identify())

	api := r.Group("/api")
	{
		a := api.Group("/auth")
		a.GET("/me", s.requireAuth, s.me)
		a.POST("/login", s.login)
		a.POST("/register", s.register)
		a.POST("/logout", s.logout)
		a.POST("/reset-password", s.requestReset)
		a.PUT("/reset-password", s.resetPassword)
		a.POST("/verify-email", s.verifyEmail)
		a.POST("/resend-verification", s.requireAuth, s.resendVerification)

		api.GET("/sites", s.requireAuth, s.listSites)
		api.POST("/sites", s.requireAuth, s.createSite)
		api.POST("/sites/:siteID/media/upload-url", s.requireAuth, s.uploadURL)
		api.GET("/plan/limits/:resource", s.requireAuth, s.planLimit)

		api.POST("/billing/checkout", s.requireAuth, s.checkout)
		api.POST("/billing/portal", s.requireAuth, s.portal)
		api.POST("/webhooks/stripe", s.stripeWebhook)
	}

	r.NoRoute(func(c *gin.Context) {
		if s.cfg.Pages != nil {
			s.cfg.Pages.ServeHTTP(c.Writer, c.Request)
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	s.engine = r
	return nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}
