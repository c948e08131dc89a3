// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package access decides what a site member may do.
//
// Permissions are "action:resource" strings such as "write:media" and are
// matched against glob patterns per role, with ':' as the separator.
package access

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is a membership role on a site.
type Role string

// Site roles.
const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// CodeDenied is the error code of a refused permission check.
const CodeDenied = "ACCESS_DENIED"

// ErrNotMember is returned by MembershipReader when the user has no role on
// the site.
var ErrNotMember = errors.New("not a member of site")

// MembershipReader resolves a user's role on a site.
type MembershipReader interface {
	RoleOf(ctx context.Context, siteID, userID ulid.ULID) (Role, error)
}

// Checker evaluates site permissions. Roles are immutable after construction.
type Checker struct {
	roles   map[Role][]glob.Glob
	members MembershipReader
	logger  *slog.Logger
}

// NewChecker creates a Checker with DefaultRoles.
//
// Panics if the default roles contain invalid patterns.
func NewChecker(members MembershipReader, logger *slog.Logger) *Checker {
	c, err := NewCheckerWithRoles(DefaultRoles(), members, logger)
	if err != nil {
		panic("invalid permission pattern in DefaultRoles: " + err.Error())
	}
	return c
}

// NewCheckerWithRoles creates a Checker with custom roles.
func NewCheckerWithRoles(roles map[Role][]string, members MembershipReader, logger *slog.Logger) (*Checker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	compiled := make(map[Role][]glob.Glob, len(roles))
	for role, perms := range roles {
		globs := make([]glob.Glob, 0, len(perms))
		for _, p := range perms {
			g, err := glob.Compile(p, ':')
			if err != nil {
				return nil, oops.In("access").
					Code("INVALID_PERMISSION_PATTERN").
					With("role", string(role)).
					With("pattern", p).
					Wrap(err)
			}
			globs = append(globs, g)
		}
		compiled[role] = globs
	}
	return &Checker{roles: compiled, members: members, logger: logger}, nil
}

// Allows reports whether role grants action on resource.
func (c *Checker) Allows(role Role, action, resource string) bool {
	requested := action + ":" + resource
	for _, g := range c.roles[role] {
		if g.Match(requested) {
			return true
		}
	}
	return false
}

// Check reports whether userID may perform action on resource within
// siteID. Non-members are denied without error.
func (c *Checker) Check(ctx context.Context, userID, siteID ulid.ULID, action, resource string) (bool, error) {
	role, err := c.members.RoleOf(ctx, siteID, userID)
	if errors.Is(err, ErrNotMember) {
		return false, nil
	}
	if err != nil {
		return false, oops.In("access").
			Code("ACCESS_CHECK_FAILED").
			With("site_id", siteID.String()).
			With("user_id", userID.String()).
			Wrap(err)
	}

	allowed := c.Allows(role, action, resource)
	if !allowed {
		c.logger.DebugContext(ctx, "permission denied",
			"site_id", siteID.String(),
			"user_id", userID.String(),
			"role", string(role),
			"action", action,
			"resource", resource)
	}
	return allowed, nil
}

// Require is Check returning an ACCESS_DENIED error on refusal.
func (c *Checker) Require(ctx context.Context, userID, siteID ulid.ULID, action, resource string) error {
	ok, err := c.Check(ctx, userID, siteID, action, resource)
	if err != nil {
		return err
	}
	if !ok {
		return oops.In("access").
			Code(CodeDenied).
			With("action", action).
			With("resource", resource).
			Errorf("permission denied")
	}
	return nil
}
