// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"

	"github.com/cr0nhq/cr0n/internal/access"
	"github.com/cr0nhq/cr0n/internal/activity"
	activitypg "github.com/cr0nhq/cr0n/internal/activity/postgres"
	"github.com/cr0nhq/cr0n/internal/auth"
	authpg "github.com/cr0nhq/cr0n/internal/auth/postgres"
	"github.com/cr0nhq/cr0n/internal/billing"
	billingpg "github.com/cr0nhq/cr0n/internal/billing/postgres"
	"github.com/cr0nhq/cr0n/internal/config"
	"github.com/cr0nhq/cr0n/internal/crm"
	crmpg "github.com/cr0nhq/cr0n/internal/crm/postgres"
	"github.com/cr0nhq/cr0n/internal/mail"
	"github.com/cr0nhq/cr0n/internal/media"
	"github.com/cr0nhq/cr0n/internal/observability"
	"github.com/cr0nhq/cr0n/internal/plan"
	"github.com/cr0nhq/cr0n/internal/site"
	sitepg "github.com/cr0nhq/cr0n/internal/site/postgres"
	"github.com/cr0nhq/cr0n/internal/store"
	"github.com/cr0nhq/cr0n/internal/web"
)

// crmSource tags contacts created at signup.
const crmSource = "cr0n_signup"

// serializationBackoff is the first wait before retrying a serializable
// transaction.
const serializationBackoff = 10 * time.Millisecond

// authCore is the token-bearing part of the auth stack, shared by serve and
// sweep.
type authCore struct {
	users         *authpg.UserRepository
	tokens        *auth.TokenGenerator
	hasher        *auth.CompositeHasher
	sessions      *auth.SessionStore
	resets        *auth.PasswordResetService
	verifications *auth.VerificationService
}

func newAuthCore(cfg *config.Config, db store.Querier, opts ...auth.Option) (*authCore, error) {
	core := &authCore{
		users:  authpg.NewUserRepository(db),
		tokens: auth.NewTokenGenerator(web.DefaultProduct),
	}

	var err error
	core.hasher, err = auth.NewPasswordHasher(cfg.Auth.PasswordAlgorithm, cfg.Auth.PBKDF2Iterations)
	if err != nil {
		return nil, err
	}
	core.sessions, err = auth.NewSessionStore(authpg.NewSessionRepository(db), core.tokens,
		auth.WithSessionTTL(cfg.Auth.SessionTTL),
		auth.WithMaxSessions(cfg.Auth.MaxSessions))
	if err != nil {
		return nil, err
	}
	core.verifications, err = auth.NewVerificationService(core.users, authpg.NewVerificationRepository(db), core.tokens, opts...)
	if err != nil {
		return nil, err
	}
	core.resets, err = auth.NewPasswordResetService(core.users, authpg.NewPasswordResetRepository(db),
		core.sessions, core.hasher, core.tokens, opts...)
	if err != nil {
		return nil, err
	}
	return core, nil
}

// sweepTargets names every store with expiring tokens.
func (c *authCore) sweepTargets() map[string]expirer {
	return map[string]expirer{
		"sessions":            c.sessions,
		"password_resets":     c.resets,
		"email_verifications": c.verifications,
	}
}

// app is the wired API plus the background pieces serve must stop.
type app struct {
	server     *web.Server
	dispatcher *mail.Dispatcher
	sweeper    *sweeper
}

// wire builds every service on pool. obs may be nil when metrics are
// disabled; throttle may be nil when Redis is not configured.
func wire(ctx context.Context, cfg *config.Config, pool Pool, deps *ServeDeps, obs ObservabilityServer,
	throttle auth.LoginThrottle, logger *slog.Logger,
) (*app, error) {
	var (
		reg     prometheus.Registerer
		metrics *observability.Metrics
	)
	if obs != nil {
		reg = obs.Registerer()
		metrics = obs.Metrics()
	}

	tx := store.NewTransactor(pool, store.WithSerializationRetries(cfg.Database.SerializationRetries, serializationBackoff))
	recorder := activity.NewLogger(activitypg.NewWriter(pool), logger, reg)

	catalog, err := loadCatalog(cfg.Plans.File)
	if err != nil {
		return nil, err
	}

	dispatcher := mail.NewDispatcher(logger, reg)
	notifier, err := mail.NewNotifier(newSender(cfg, deps, logger), mail.Branding{
		AppName: cfg.Mail.AppName,
		AppURL:  cfg.HTTP.AppURL,
	})
	if err != nil {
		return nil, err
	}

	tracerProvider := otel.GetTracerProvider()
	authOpts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithTracerProvider(tracerProvider),
		auth.WithTransactor(tx),
		auth.WithActivity(recorder),
		auth.WithNotifier(notifier),
		auth.WithDispatcher(dispatcher),
	}
	core, err := newAuthCore(cfg, pool, authOpts...)
	if err != nil {
		return nil, err
	}

	siteRepo := sitepg.NewRepository(pool)
	enforcer, err := plan.NewEnforcer(core.users, catalog, plan.WithCounter(plan.ResourceSites, siteRepo))
	if err != nil {
		return nil, err
	}
	sites, err := site.NewService(siteRepo, enforcer, tx, site.WithActivity(recorder), site.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	provisioners := []auth.Provisioner{crm.NewProvisioner(crmpg.NewRepository(pool), tx, crmSource)}

	var billingSvc *billing.Service
	if cfg.Billing.StripeSecretKey != "" {
		appURL := strings.TrimRight(cfg.HTTP.AppURL, "/")
		billingSvc, err = billing.NewService(billing.Config{
			Gateway:       billing.NewStripeGateway(billing.NewStripeClient(cfg.Billing.StripeSecretKey, deps.StripeBackends)),
			Users:         core.users,
			Catalog:       catalog,
			Ledger:        billingpg.NewLedger(pool),
			Tx:            tx,
			WebhookSecret: cfg.Billing.WebhookSecret,
			URLs: billing.URLs{
				CheckoutSuccess: appURL + "/dashboard?checkout=success",
				CheckoutCancel:  appURL + "/dashboard/settings/billing?checkout=cancelled",
				PortalReturn:    appURL + "/dashboard/settings/billing",
			},
			Activity: recorder,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		provisioners = append(provisioners, billingSvc)
	} else {
		logger.Info("billing disabled: billing.stripe_secret_key is not set")
	}

	var mediaSvc *media.Service
	if cfg.Media.Bucket != "" {
		presigner, err := deps.PresignerFactory(ctx, media.S3Config{
			Region:    cfg.Media.Region,
			Endpoint:  cfg.Media.Endpoint,
			AccessKey: cfg.Media.AccessKey,
			SecretKey: cfg.Media.SecretKey,
			PathStyle: cfg.Media.PathStyle,
		})
		if err != nil {
			return nil, err
		}
		mediaSvc = media.NewService(presigner, access.NewChecker(siteRepo, logger), cfg.Media.Bucket)
	} else {
		logger.Info("media uploads disabled: media.bucket is not set")
	}

	serviceOpts := append(authOpts,
		auth.WithSiteCreator(sites),
		auth.WithProvisioners(provisioners...))
	if throttle != nil {
		serviceOpts = append(serviceOpts, auth.WithLoginThrottle(throttle))
	}
	authSvc, err := auth.NewAuthService(core.users, core.sessions, core.hasher, core.verifications, serviceOpts...)
	if err != nil {
		return nil, err
	}
	resolver, err := auth.NewResolver(core.sessions)
	if err != nil {
		return nil, err
	}

	server, err := web.NewServer(web.Config{
		Product:        web.DefaultProduct,
		SecureCookies:  cfg.Production(),
		Auth:           authSvc,
		Resets:         core.resets,
		Verifications:  core.verifications,
		Resolver:       resolver,
		SessionTTL:     core.sessions.TTL(),
		Sites:          sites,
		Enforcer:       enforcer,
		Billing:        billingSvc,
		Media:          mediaSvc,
		Metrics:        metrics,
		Logger:         logger,
		TracerProvider: tracerProvider,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		server:     server,
		dispatcher: dispatcher,
		sweeper:    newSweeper(logger, core.sweepTargets()),
	}, nil
}

func loadCatalog(path string) (*plan.Catalog, error) {
	if path == "" {
		return plan.DefaultCatalog()
	}
	catalog, err := plan.LoadCatalogFile(path)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("plans.file", path).Wrap(err)
	}
	return catalog, nil
}

func newSender(cfg *config.Config, deps *ServeDeps, logger *slog.Logger) mail.Sender {
	if cfg.Mail.ResendAPIKey == "" {
		logger.Warn("mail.resend_api_key is not set; emails will be logged, not sent")
		return mail.LogSender{Logger: logger}
	}
	return mail.NewResendSender(deps.ResendFactory(cfg.Mail.ResendAPIKey), cfg.Mail.From)
}
