// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cr0nhq/cr0n/internal/logging"
)

func attrs(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracing_RequestSpanParentsAuthSpan(t *testing.T) {
	h := newHarness(t)

	h.register(t, "ada@example.com", "correct horse")

	server := h.endedSpan(t, "POST /api/auth/register")
	assert.Equal(t, trace.SpanKindServer, server.SpanKind())
	serverAttrs := attrs(server.Attributes())
	assert.Equal(t, "/api/auth/register", serverAttrs["http.route"].AsString())
	assert.Equal(t, int64(http.StatusOK), serverAttrs["http.response.status_code"].AsInt64())

	register := h.endedSpan(t, "auth.register")
	assert.Equal(t, server.SpanContext().TraceID(), register.SpanContext().TraceID())
	assert.Equal(t, server.SpanContext().SpanID(), register.Parent().SpanID())
	assert.NotEmpty(t, attrs(register.Attributes())["user.id"].AsString())
}

func TestTracing_FailedLoginRecordsCode(t *testing.T) {
	h := newHarness(t)
	h.register(t, "ada@example.com", "correct horse")

	w := h.do(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"wrong horse"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	login := h.endedSpan(t, "auth.login")
	assert.Equal(t, codes.Error, login.Status().Code)
	assert.Equal(t, "AUTH_INVALID_CREDENTIALS", attrs(login.Attributes())["error.code"].AsString())
}

func TestTracing_ContinuesIncomingTrace(t *testing.T) {
	var logs bytes.Buffer
	h := newHarness(t, withLogger(logging.New(logging.Options{Service: "cr0n"}, &logs)))

	req := newRequest(http.MethodGet, "/api/auth/me", "")
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	w := h.serve(req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	span := h.endedSpan(t, "GET /api/auth/me")
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())

	var entry map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		var candidate map[string]any
		require.NoError(t, json.Unmarshal(line, &candidate))
		if candidate["msg"] == "http request" {
			entry = candidate
		}
	}
	require.NotNil(t, entry, logs.String())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), entry["span_id"])
}

func TestRequestMeta_ForwardedForNeedsTrustedProxy(t *testing.T) {
	tests := []struct {
		name   string
		opts   []harnessOption
		wantIP string
	}{
		{name: "untrusted peer", wantIP: "192.0.2.1"},
		{name: "trusted proxy", opts: []harnessOption{withTrustedProxies("192.0.2.0/24")}, wantIP: "198.51.100.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.opts...)

			req := newRequest(http.MethodPost, "/api/auth/register",
				`{"email":"ada@example.com","password":"correct horse"}`)
			req.Header.Set("X-Forwarded-For", "198.51.100.7")
			w := h.serve(req)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			user, err := h.store.Users().GetByEmail(context.Background(), "ada@example.com")
			require.NoError(t, err)
			sessions, err := h.store.Sessions().ListByUser(context.Background(), user.ID)
			require.NoError(t, err)
			require.Len(t, sessions, 1)
			assert.Equal(t, tt.wantIP, sessions[0].IPAddress)
		})
	}
}
