// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/cr0nhq/cr0n/internal/auth"
	"github.com/cr0nhq/cr0n/pkg/errutil"
)

const identityKey = "identity"

// observe traces, counts and logs every request. An incoming traceparent
// header continues the caller's trace. Only the path is logged; query
// strings can carry tokens.
func (s *Server) observe() gin.HandlerFunc {
	propagator := propagation.TraceContext{}
	return func(c *gin.Context) {
		start := time.Now()
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := s.tracer.Start(ctx, "http.request",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.request.method", c.Request.Method)))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		span.SetName(c.Request.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		}

		s.logger.InfoContext(ctx, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"route", route,
			"status", status,
			"duration", time.Since(start))
	}
}

// identify attaches the session's auth.Context when the cookie names a
// valid session. Lookup failures leave the request anonymous.
func (s *Server) identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(s.cookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		identity, err := s.cfg.Resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			errutil.LogError(s.logger, "session resolve failed", err)
		} else if identity != nil {
			c.Set(identityKey, identity)
		}
		c.Next()
	}
}

// requireAuth rejects requests without an identity.
func (s *Server) requireAuth(c *gin.Context) {
	if _, ok := Identity(c); !ok {
		s.abortCode(c, auth.CodeUnauthorized, "authentication required")
		return
	}
	c.Next()
}

// Identity returns the authenticated caller, if any.
func Identity(c *gin.Context) (*auth.Context, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	identity, ok := value.(*auth.Context)
	return identity, ok && identity != nil
}

// requestMeta describes the caller. Forwarded addresses count only when the
// request came through a trusted proxy.
func requestMeta(c *gin.Context) auth.RequestMeta {
	return auth.RequestMeta{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// bind decodes a JSON body. An empty body leaves dst zeroed.
func (s *Server) bind(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		s.abortCode(c, CodeInvalidBody, "invalid JSON body: %v", err)
		return false
	}
	return true
}

func ok(c *gin.Context, body gin.H) {
	c.JSON(http.StatusOK, body)
}
