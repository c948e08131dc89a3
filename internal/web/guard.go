// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package web

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Page routes guarded by session cookie presence.
var (
	DefaultProtectedRoutes = []string{"/dashboard", "/settings", "/content", "/media", "/crm", "/setup"}
	DefaultAuthRoutes      = []string{"/login", "/signup", "/forgot-password"}
)

const (
	loginPath     = "/login"
	dashboardPath = "/dashboard"
)

// Guard redirects page requests on cookie presence alone. It never looks a
// session up; API handlers resolve the session authoritatively.
type Guard struct {
	protected []glob.Glob
	authOnly  []glob.Glob
}

// NewGuard compiles route prefixes. Each prefix matches itself and any
// sub-path.
func NewGuard(protected, authRoutes []string) (*Guard, error) {
	p, err := compileRoutes(protected)
	if err != nil {
		return nil, err
	}
	a, err := compileRoutes(authRoutes)
	if err != nil {
		return nil, err
	}
	return &Guard{protected: p, authOnly: a}, nil
}

func compileRoutes(routes []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(routes)*2)
	for _, route := range routes {
		for _, pattern := range []string{route, route + "/**"} {
			g, err := glob.Compile(pattern, '/')
			if err != nil {
				return nil, oops.Code("WEB_INVALID_ROUTE").
					With("route", route).
					Wrap(err)
			}
			out = append(out, g)
		}
	}
	return out, nil
}

func matchAny(globs []glob.Glob, path string) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// Redirect returns where a request for path should go, or "" to let it
// through.
func (g *Guard) Redirect(path string, hasSession bool) string {
	switch {
	case !hasSession && matchAny(g.protected, path):
		return loginPath + "?" + url.Values{"redirect": {path}}.Encode()
	case hasSession && matchAny(g.authOnly, path):
		return dashboardPath
	default:
		return ""
	}
}

// Middleware applies the guard using the named cookie.
func (g *Guard) Middleware(cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		hasSession := err == nil && token != ""
		if target := g.Redirect(c.Request.URL.Path, hasSession); target != "" {
			c.Redirect(http.StatusTemporaryRedirect, target)
			c.Abort()
			return
		}
		c.Next()
	}
}
