// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package media

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cr0nhq/cr0n/internal/access"
	"github.com/cr0nhq/cr0n/internal/auth"
	"github.com/cr0nhq/cr0n/pkg/errutil"
)

type stubAuthorizer struct {
	deny  bool
	calls []string
}

func (a *stubAuthorizer) Require(_ context.Context, _, _ ulid.ULID, action, resource string) error {
	a.calls = append(a.calls, action+":"+resource)
	if a.deny {
		return oops.Code(access.CodeDenied).Errorf("permission denied")
	}
	return nil
}

func newPresignClient() *s3.PresignClient {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		BaseEndpoint: aws.String("http://127.0.0.1:9000"),
		UsePathStyle: true,
	})
	return s3.NewPresignClient(client)
}

func TestService_UploadURL(t *testing.T) {
	authz := &stubAuthorizer{}
	svc := NewService(newPresignClient(), authz, "cr0n-media")
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	siteID := ulid.Make()

	up, err := svc.UploadURL(context.Background(), &auth.Context{UserID: ulid.Make()}, siteID, "My Photo.PNG", "image/png")
	require.NoError(t, err)

	assert.Equal(t, []string{"write:media"}, authz.calls)
	assert.Equal(t, "PUT", up.Method)
	assert.True(t, strings.HasPrefix(up.Key, "sites/"+siteID.String()+"/"))
	assert.True(t, strings.HasSuffix(up.Key, "-My-Photo.PNG"))
	assert.Equal(t, now.Add(DefaultUploadTTL), up.ExpiresAt)

	u, err := url.Parse(up.URL)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", u.Host)
	assert.True(t, strings.HasPrefix(u.Path, "/cr0n-media/sites/"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}

func TestService_UploadURL_Denied(t *testing.T) {
	svc := NewService(newPresignClient(), &stubAuthorizer{deny: true}, "cr0n-media")

	_, err := svc.UploadURL(context.Background(), &auth.Context{UserID: ulid.Make()}, ulid.Make(), "a.png", "image/png")
	errutil.AssertErrorCode(t, err, access.CodeDenied)
}

func TestService_UploadURL_Validation(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
	}{
		{name: "missing filename", filename: "", contentType: "image/png"},
		{name: "missing content type", filename: "a.png", contentType: ""},
		{name: "executable", filename: "run.sh", contentType: "application/x-sh"},
		{name: "html", filename: "x.html", contentType: "text/html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authz := &stubAuthorizer{}
			svc := NewService(newPresignClient(), authz, "cr0n-media")

			_, err := svc.UploadURL(context.Background(), &auth.Context{UserID: ulid.Make()}, ulid.Make(), tt.filename, tt.contentType)
			errutil.AssertErrorCode(t, err, CodeInvalidUpload)
			assert.Empty(t, authz.calls)
		})
	}
}

func TestService_UploadURL_Unauthenticated(t *testing.T) {
	svc := NewService(newPresignClient(), &stubAuthorizer{}, "cr0n-media")
	_, err := svc.UploadURL(context.Background(), nil, ulid.Make(), "a.png", "image/png")
	errutil.AssertErrorCode(t, err, auth.CodeUnauthorized)
}

func TestObjectKey(t *testing.T) {
	site := ulid.Make()
	obj := ulid.Make()

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{name: "plain", filename: "logo.svg", want: "logo.svg"},
		{name: "strips directories", filename: "../../etc/passwd", want: "passwd"},
		{name: "windows path", filename: `C:\Users\ada\cat pic.jpg`, want: "cat-pic.jpg"},
		{name: "only unsafe", filename: "???", want: "upload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := ObjectKey(site, obj, tt.filename)
			assert.Equal(t, "sites/"+site.String()+"/"+strings.ToLower(obj.String())+"-"+tt.want, key)
		})
	}
}
