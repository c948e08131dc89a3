// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package auth

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cr0nhq/cr0n/pkg/errutil"
)

// TracerName names the tracer of auth spans.
const TracerName = "cr0n/auth"

// endSpan records err, if any, and ends span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := errutil.Code(err); code != "" {
			span.SetAttributes(attribute.String("error.code", code))
		}
	}
	span.End()
}

func traceResult(span trace.Span, result *LoginResult) {
	if result != nil && result.User != nil {
		span.SetAttributes(attribute.String("user.id", result.User.ID.String()))
	}
}
