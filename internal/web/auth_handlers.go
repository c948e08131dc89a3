// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package web

import (
	"github.com/gin-gonic/gin"

	"github.com/cr0nhq/cr0n/internal/auth"
	"github.com/cr0nhq/cr0n/pkg/errutil"
)

type credentialsRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"fullName"`
}

type tokenRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

// userSummary is the account view returned by login and register.
func userSummary(u *auth.User) gin.H {
	return gin.H{
		"id":            u.ID.String(),
		"email":         u.Email,
		"fullName":      u.FullName,
		"plan":          u.Plan,
		"emailVerified": u.EmailVerified,
	}
}

func (s *Server) me(c *gin.Context) {
	identity, _ := Identity(c)
	ok(c, gin.H{"user": identity})
}

func (s *Server) login(c *gin.Context) {
	var req credentialsRequest
	if !s.bind(c, &req) {
		return
	}

	result, err := s.cfg.Auth.Login(c.Request.Context(), req.Email, req.Password, requestMeta(c))
	if err != nil {
		s.cfg.Metrics.RecordAuthEvent("login", outcome(err))
		s.fail(c, err)
		return
	}
	s.cfg.Metrics.RecordAuthEvent("login", "success")

	s.setSessionCookie(c, result.Token)
	ok(c, gin.H{"success": true, "user": userSummary(result.User)})
}

func (s *Server) register(c *gin.Context) {
	var req credentialsRequest
	if !s.bind(c, &req) {
		return
	}

	result, err := s.cfg.Auth.Register(c.Request.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Meta:     requestMeta(c),
	})
	if err != nil {
		s.cfg.Metrics.RecordAuthEvent("register", outcome(err))
		s.fail(c, err)
		return
	}
	s.cfg.Metrics.RecordAuthEvent("register", "success")

	s.setSessionCookie(c, result.Token)
	body := gin.H{"success": true, "user": userSummary(result.User)}
	if result.SiteID != nil {
		body["siteId"] = result.SiteID.String()
	}
	ok(c, body)
}

// logout always succeeds and always clears the cookie.
func (s *Server) logout(c *gin.Context) {
	if token, err := c.Cookie(s.cookieName); err == nil && token != "" {
		if err := s.cfg.Auth.Logout(c.Request.Context(), token, requestMeta(c)); err != nil {
			errutil.LogError(s.logger, "logout failed", err)
		}
	}
	s.cfg.Metrics.RecordAuthEvent("logout", "success")
	s.clearSessionCookie(c)
	ok(c, gin.H{"success": true})
}

// requestReset answers 200 whether or not the account exists.
func (s *Server) requestReset(c *gin.Context) {
	var req emailRequest
	if !s.bind(c, &req) {
		return
	}

	if err := s.cfg.Resets.RequestReset(c.Request.Context(), req.Email, requestMeta(c)); err != nil {
		if errutil.Code(err) == auth.CodeMissingFields {
			s.fail(c, err, withMessage(auth.CodeMissingFields, "Email is required"))
			return
		}
		errutil.LogError(s.logger, "password reset request failed", err)
	}
	s.cfg.Metrics.RecordAuthEvent("reset_request", "success")
	ok(c, gin.H{"success": true})
}

func (s *Server) resetPassword(c *gin.Context) {
	var req tokenRequest
	if !s.bind(c, &req) {
		return
	}

	if err := s.cfg.Resets.ResetPassword(c.Request.Context(), req.Token, req.Password, requestMeta(c)); err != nil {
		s.cfg.Metrics.RecordAuthEvent("reset_password", outcome(err))
		s.fail(c, err, withMessage(auth.CodeMissingFields, "Token and password are required"))
		return
	}
	s.cfg.Metrics.RecordAuthEvent("reset_password", "success")
	ok(c, gin.H{"success": true})
}

func (s *Server) verifyEmail(c *gin.Context) {
	var req tokenRequest
	if !s.bind(c, &req) {
		return
	}

	if err := s.cfg.Verifications.Verify(c.Request.Context(), req.Token, requestMeta(c)); err != nil {
		s.cfg.Metrics.RecordAuthEvent("verify_email", outcome(err))
		s.fail(c, err, withMessage(auth.CodeMissingFields, "Token is required"))
		return
	}
	s.cfg.Metrics.RecordAuthEvent("verify_email", "success")
	ok(c, gin.H{"success": true})
}

func (s *Server) resendVerification(c *gin.Context) {
	identity, _ := Identity(c)
	if err := s.cfg.Verifications.Resend(c.Request.Context(), identity); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, gin.H{"success": true})
}

// outcome labels a failed auth event: "rejected" for client errors and
// "error" for anything that became a 500.
func outcome(err error) string {
	if _, known := errorTable[errutil.Code(err)]; known {
		return "rejected"
	}
	return "error"
}
