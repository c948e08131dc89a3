// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package site

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/activity"
	"github.com/cr0nhq/cr0n/internal/auth"
	"github.com/cr0nhq/cr0n/internal/plan"
)

// Transactor runs a function in a serializable transaction, retrying it on
// serialization failures.
type Transactor interface {
	InSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service creates and lists sites under plan limits.
type Service struct {
	repo     Repository
	enforcer *plan.Enforcer
	tx       Transactor
	activity activity.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithActivity sets the audit recorder.
func WithActivity(r activity.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.activity = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(repo Repository, enforcer *plan.Enforcer, tx Transactor, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, oops.Errorf("site repository is required")
	}
	if enforcer == nil {
		return nil, oops.Errorf("plan enforcer is required")
	}
	if tx == nil {
		return nil, oops.Errorf("transactor is required")
	}
	s := &Service{
		repo:     repo,
		enforcer: enforcer,
		tx:       tx,
		activity: activity.Nop{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create makes userID the owner of a new site. The plan check and the
// insert share one serializable transaction, so concurrent requests cannot
// push the owner past the cap.
func (s *Service) Create(ctx context.Context, userID ulid.ULID, name string, meta auth.RequestMeta) (*Site, error) {
	created, err := s.create(ctx, userID, name)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, activity.Entry{
		Action:    activity.ActionCreateSite,
		UserID:    activity.Ref(userID),
		SiteID:    activity.Ref(created.ID),
		Details:   map[string]any{"name": created.Name},
		IPAddress: meta.IPAddress,
	})
	return created, nil
}

// CreateDefaultSite creates the site every new account starts with.
func (s *Service) CreateDefaultSite(ctx context.Context, userID ulid.ULID, fullName *string) (ulid.ULID, error) {
	created, err := s.create(ctx, userID, DefaultName(fullName))
	if err != nil {
		return ulid.ULID{}, err
	}
	return created.ID, nil
}

func (s *Service) create(ctx context.Context, userID ulid.ULID, name string) (*Site, error) {
	candidate, err := NewSite(userID, name, s.now().UTC())
	if err != nil {
		return nil, err
	}

	err = s.tx.InSerializable(ctx, func(ctx context.Context) error {
		result, err := s.enforcer.Check(ctx, userID, plan.ResourceSites)
		if err != nil {
			return err
		}
		if !result.Allowed {
			return oops.Code(plan.CodeLimitReached).
				With("resource", plan.ResourceSites).
				With("plan", result.Plan).
				With("limit", result.Limit).
				With("current", result.Current).
				Errorf("plan limit of %d sites reached", result.Limit)
		}
		return s.repo.Create(ctx, candidate)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "site created",
		"site_id", candidate.ID.String(),
		"user_id", userID.String())
	return candidate, nil
}

// List returns the user's sites with their roles.
func (s *Service) List(ctx context.Context, userID ulid.ULID) ([]Membership, error) {
	sites, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, oops.Code("SITE_LIST_FAILED").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return sites, nil
}

var _ auth.SiteCreator = (*Service)(nil)
