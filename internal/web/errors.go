// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package web

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/access"
	"github.com/cr0nhq/cr0n/internal/auth"
	"github.com/cr0nhq/cr0n/internal/billing"
	"github.com/cr0nhq/cr0n/internal/media"
	"github.com/cr0nhq/cr0n/internal/plan"
	"github.com/cr0nhq/cr0n/internal/site"
	"github.com/cr0nhq/cr0n/pkg/errutil"
)

// Codes raised by the HTTP layer itself.
const (
	CodeInvalidBody   = "WEB_INVALID_BODY"
	CodeInvalidID     = "WEB_INVALID_ID"
	CodeNotConfigured = "WEB_NOT_CONFIGURED"
)

const internalErrorMessage = "Internal server error"

type errorResponse struct {
	status  int
	message string
}

// errorTable maps error codes to the response a client sees. Codes not
// listed here become a generic 500.
var errorTable = map[string]errorResponse{
	auth.CodeMissingFields:      {http.StatusBadRequest, "Email and password are required"},
	auth.CodeInvalidEmail:       {http.StatusBadRequest, "Invalid email address"},
	auth.CodePasswordTooShort:   {http.StatusBadRequest, fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength)},
	auth.CodeInvalidCredentials: {http.StatusUnauthorized, "Invalid email or password"},
	auth.CodeUnauthorized:       {http.StatusUnauthorized, "Unauthorized"},
	auth.CodeAccountSuspended:   {http.StatusForbidden, "Account is suspended"},
	auth.CodeAccountLocked:      {http.StatusTooManyRequests, "Too many failed login attempts. Try again later"},
	auth.CodeEmailTaken:         {http.StatusConflict, "An account with this email already exists"},
	auth.CodeResetTokenInvalid:  {http.StatusBadRequest, "Invalid or expired token"},
	auth.CodeResetTokenExpired:  {http.StatusBadRequest, "Token has expired"},
	auth.CodeVerifyTokenInvalid: {http.StatusBadRequest, "Invalid or expired token"},
	auth.CodeVerifyTokenExpired: {http.StatusBadRequest, "Token has expired"},
	auth.CodeAlreadyVerified:    {http.StatusBadRequest, "Email is already verified"},

	site.CodeNameRequired: {http.StatusBadRequest, "Site name is required"},
	site.CodeNameTooLong:  {http.StatusBadRequest, fmt.Sprintf("Site name must be %d characters or less", site.MaxNameLength)},
	plan.CodeLimitReached: {http.StatusForbidden, "Plan limit reached"},
	access.CodeDenied:     {http.StatusForbidden, "Forbidden"},

	billing.CodeUnknownPrice:     {http.StatusBadRequest, "Unknown price"},
	billing.CodeNoCustomer:       {http.StatusBadRequest, "No billing account found"},
	billing.CodeSignatureInvalid: {http.StatusBadRequest, "Invalid signature"},
	billing.CodeNotConfigured:    {http.StatusServiceUnavailable, "Billing is not configured"},

	media.CodeInvalidUpload: {http.StatusBadRequest, "Invalid upload"},

	CodeInvalidBody:   {http.StatusBadRequest, "Invalid request body"},
	CodeInvalidID:     {http.StatusBadRequest, "Invalid ID"},
	CodeNotConfigured: {http.StatusServiceUnavailable, "Not available"},
}

// message overrides the table message for one code on one route.
type message struct {
	code string
	text string
}

func withMessage(code, text string) message {
	return message{code: code, text: text}
}

// fail writes the client-facing response for err and aborts the chain.
func (s *Server) fail(c *gin.Context, err error, overrides ...message) {
	code := errutil.Code(err)
	entry, ok := errorTable[code]
	if !ok {
		errutil.LogError(s.logger, "request failed", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": internalErrorMessage})
		return
	}

	text := entry.message
	for _, o := range overrides {
		if o.code == code {
			text = o.text
		}
	}

	errCtx := map[string]any{}
	if oopsErr, ok := oops.AsOops(err); ok {
		errCtx = oopsErr.Context()
	}

	switch code {
	case plan.CodeLimitReached:
		text = limitMessage(errCtx)
	case auth.CodeAccountLocked:
		if retry, ok := errCtx["retry_after"].(string); ok {
			if d, err := time.ParseDuration(retry); err == nil {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
			}
		}
	}

	c.AbortWithStatusJSON(entry.status, gin.H{"error": text, "code": code})
}

func limitMessage(errCtx map[string]any) string {
	limit, ok1 := errCtx["limit"].(int)
	current, ok2 := errCtx["current"].(int)
	if !ok1 || !ok2 {
		return errorTable[plan.CodeLimitReached].message
	}
	suffix := "s"
	if limit == 1 {
		suffix = ""
	}
	return fmt.Sprintf("You've reached your plan limit of %d site%s. Current: %d", limit, suffix, current)
}

// abortCode is shorthand for failing with a code raised by this package.
func (s *Server) abortCode(c *gin.Context, code, format string, args ...any) {
	s.fail(c, oops.Code(code).Errorf(format, args...))
}
