// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package web_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/cr0nhq/cr0n/internal/access"
	"github.com/cr0nhq/cr0n/internal/auth"
	"github.com/cr0nhq/cr0n/internal/auth/authtest"
	"github.com/cr0nhq/cr0n/internal/billing"
	"github.com/cr0nhq/cr0n/internal/media"
	"github.com/cr0nhq/cr0n/internal/observability"
	"github.com/cr0nhq/cr0n/internal/plan"
	"github.com/cr0nhq/cr0n/internal/site"
	"github.com/cr0nhq/cr0n/internal/site/sitetest"
	"github.com/cr0nhq/cr0n/internal/web"
)

const cookieName = "cr0n_session"

func init() {
	gin.SetMode(gin.TestMode)
}

// harness is a fully wired API over in-memory storage.
type harness struct {
	handler  http.Handler
	store    *authtest.Store
	outbox   *authtest.Outbox
	sites    *sitetest.Repository
	registry *prometheus.Registry
	metrics  *observability.Metrics
	gateway  *stubGateway
	spans    *tracetest.SpanRecorder
}

type harnessOption func(*web.Config, *harness)

// withBilling enables the billing routes against a stub gateway.
func withBilling(t require.TestingT) harnessOption {
	return func(cfg *web.Config, h *harness) {
		catalog, err := plan.DefaultCatalog()
		require.NoError(t, err)
		h.gateway = &stubGateway{}
		svc, err := billing.NewService(billing.Config{
			Gateway:       h.gateway,
			Users:         h.store.Users(),
			Catalog:       catalog,
			Ledger:        &memoryLedger{seen: map[string]bool{}},
			Tx:            directTx{},
			WebhookSecret: "whsec_test",
			URLs: billing.URLs{
				CheckoutSuccess: "http://cr0n.test/dashboard?checkout=success",
				CheckoutCancel:  "http://cr0n.test/dashboard",
				PortalReturn:    "http://cr0n.test/settings",
			},
		})
		require.NoError(t, err)
		cfg.Billing = svc
	}
}

// withTrustedProxies believes X-Forwarded-For from the given networks.
func withTrustedProxies(cidrs ...string) harnessOption {
	return func(cfg *web.Config, _ *harness) {
		cfg.TrustedProxies = cidrs
	}
}

// withLogger replaces the discarding logger.
func withLogger(logger *slog.Logger) harnessOption {
	return func(cfg *web.Config, _ *harness) {
		cfg.Logger = logger
	}
}

// withMedia enables presigned uploads against a fake endpoint.
func withMedia() harnessOption {
	return func(cfg *web.Config, h *harness) {
		client := s3.New(s3.Options{
			Region:       "us-east-1",
			Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
			BaseEndpoint: aws.String("http://127.0.0.1:9000"),
			UsePathStyle: true,
		})
		checker := access.NewChecker(h.sites, slog.New(slog.NewTextHandler(io.Discard, nil)))
		cfg.Media = media.NewService(s3.NewPresignClient(client), checker, "cr0n-media")
	}
}

func newHarness(t require.TestingT, opts ...harnessOption) *harness {
	h := &harness{
		store:    authtest.NewStore(),
		outbox:   &authtest.Outbox{},
		sites:    &sitetest.Repository{},
		registry: prometheus.NewRegistry(),
		spans:    tracetest.NewSpanRecorder(),
	}
	h.metrics = observability.NewMetrics(h.registry)
	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalog, err := plan.DefaultCatalog()
	require.NoError(t, err)
	enforcer, err := plan.NewEnforcer(h.store.Users(), catalog, plan.WithCounter(plan.ResourceSites, h.sites))
	require.NoError(t, err)
	sites, err := site.NewService(h.sites, enforcer, &sitetest.SerialTx{}, site.WithLogger(logger))
	require.NoError(t, err)

	tokens := auth.NewTokenGenerator("cr0n")
	sessions, err := auth.NewSessionStore(h.store.Sessions(), tokens)
	require.NoError(t, err)
	hasher, err := auth.NewPasswordHasher(auth.AlgorithmArgon2id, 0)
	require.NoError(t, err)

	authOpts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithNotifier(h.outbox),
		auth.WithTracerProvider(tracerProvider),
	}
	verifications, err := auth.NewVerificationService(h.store.Users(), h.store.Verifications(), tokens, authOpts...)
	require.NoError(t, err)
	svc, err := auth.NewAuthService(h.store.Users(), sessions, hasher, verifications,
		append(authOpts, auth.WithSiteCreator(sites))...)
	require.NoError(t, err)
	resets, err := auth.NewPasswordResetService(h.store.Users(), h.store.Resets(), sessions, hasher, tokens, authOpts...)
	require.NoError(t, err)
	resolver, err := auth.NewResolver(sessions)
	require.NoError(t, err)

	cfg := web.Config{
		Auth:           svc,
		Resets:         resets,
		Verifications:  verifications,
		Resolver:       resolver,
		SessionTTL:     sessions.TTL(),
		Sites:          sites,
		Enforcer:       enforcer,
		Metrics:        h.metrics,
		Logger:         logger,
		TracerProvider: tracerProvider,
	}
	for _, opt := range opts {
		opt(&cfg, h)
	}

	srv, err := web.NewServer(cfg)
	require.NoError(t, err)
	h.handler = srv.Handler()
	return h
}

// do sends a request. body may be "" for no body.
func (h *harness) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := newRequest(method, path, body)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return h.serve(req)
}

func (h *harness) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

// newRequest builds a request from 192.0.2.1. body may be "" for no body.
func newRequest(method, path, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// endedSpan returns the first finished span called name.
func (h *harness) endedSpan(t require.TestingT, name string) sdktrace.ReadOnlySpan {
	for _, span := range h.spans.Ended() {
		if span.Name() == name {
			return span
		}
	}
	require.Fail(t, "span not recorded", name)
	return nil
}

// register creates an account and returns its session cookie.
func (h *harness) register(t require.TestingT, email, password string) *http.Cookie {
	w := h.do(http.MethodPost, "/api/auth/register",
		`{"email":"`+email+`","password":"`+password+`","fullName":"Ada Lovelace"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	return cookie
}

// setPlan moves the account onto planName as a billing webhook would.
func (h *harness) setPlan(t require.TestingT, email, planName string) {
	ctx := context.Background()
	user, err := h.store.Users().GetByEmail(ctx, email)
	require.NoError(t, err)
	customerID := "cus_" + user.ID.String()
	require.NoError(t, h.store.Users().SetExternalRefs(ctx, user.ID, auth.ExternalRefs{BillingCustomerID: &customerID}))
	n, err := h.store.Users().ApplyBillingUpdate(ctx, auth.BillingUpdate{CustomerID: customerID, Plan: planName})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func decodeBody(t require.TestingT, w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

type stubGateway struct {
	mu        sync.Mutex
	customers int
}

func (g *stubGateway) CreateCustomer(_ context.Context, _ string, _ *string, _ ulid.ULID) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customers++
	return "cus_test", nil
}

func (g *stubGateway) CheckoutURL(_ context.Context, customerID, priceID, _, _ string) (string, error) {
	return "https://checkout.stripe.test/" + customerID + "/" + priceID, nil
}

func (g *stubGateway) PortalURL(_ context.Context, customerID, _ string) (string, error) {
	return "https://billing.stripe.test/" + customerID, nil
}

func (g *stubGateway) Subscription(_ context.Context, id string) (billing.Subscription, error) {
	return billing.Subscription{ID: id}, nil
}

type memoryLedger struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (l *memoryLedger) MarkProcessed(_ context.Context, eventID, _ string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seen[eventID] {
		return false, nil
	}
	l.seen[eventID] = true
	return true, nil
}

type directTx struct{}

func (directTx) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
