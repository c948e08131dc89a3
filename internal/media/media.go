// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

// Package media issues presigned upload URLs for site media.
package media

import (
	"context"
	"path"
	"regexp"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cr0nhq/cr0n/internal/auth"
)

// Error codes.
const (
	CodeInvalidUpload = "MEDIA_INVALID_UPLOAD"
)

// DefaultUploadTTL is how long a presigned URL stays valid.
const DefaultUploadTTL = 15 * time.Minute

var allowedTypePrefixes = []string{"image/", "video/", "audio/", "application/pdf"}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Presigner signs S3 PUT requests. *s3.PresignClient implements it.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Authorizer refuses users lacking a permission on a site.
type Authorizer interface {
	Require(ctx context.Context, userID, siteID ulid.ULID, action, resource string) error
}

// Upload is a presigned upload the client performs directly against storage.
type Upload struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Key       string            `json:"key"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// Service issues upload URLs.
type Service struct {
	presigner Presigner
	access    Authorizer
	bucket    string
	ttl       time.Duration
	now       func() time.Time
}

// NewService creates a Service uploading into bucket.
func NewService(presigner Presigner, access Authorizer, bucket string) *Service {
	return &Service{
		presigner: presigner,
		access:    access,
		bucket:    bucket,
		ttl:       DefaultUploadTTL,
		now:       time.Now,
	}
}

// UploadURL presigns a PUT for a new object under the site's prefix. The
// caller needs write:media on the site.
func (s *Service) UploadURL(ctx context.Context, identity *auth.Context, siteID ulid.ULID, filename, contentType string) (*Upload, error) {
	if identity == nil {
		return nil, oops.Code(auth.CodeUnauthorized).Errorf("authentication required")
	}
	if err := validate(filename, contentType); err != nil {
		return nil, err
	}
	if err := s.access.Require(ctx, identity.UserID, siteID, "write", "media"); err != nil {
		return nil, err
	}

	key := ObjectKey(siteID, ulid.Make(), filename)
	expires := s.now().Add(s.ttl)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		ContentType: &contentType,
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, oops.Code("MEDIA_PRESIGN_FAILED").
			With("site_id", siteID.String()).
			With("key", key).
			Wrap(err)
	}

	headers := make(map[string]string, len(req.SignedHeader))
	for name, values := range req.SignedHeader {
		if strings.EqualFold(name, "host") || len(values) == 0 {
			continue
		}
		headers[name] = values[0]
	}
	return &Upload{
		URL:       req.URL,
		Method:    req.Method,
		Key:       key,
		Headers:   headers,
		ExpiresAt: expires,
	}, nil
}

// ObjectKey returns sites/<site>/<object>-<sanitized name>.
func ObjectKey(siteID, objectID ulid.ULID, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.Trim(unsafeChars.ReplaceAllString(base, "-"), "-.")
	if base == "" {
		base = "upload"
	}
	if len(base) > 100 {
		base = base[len(base)-100:]
	}
	return "sites/" + siteID.String() + "/" + strings.ToLower(objectID.String()) + "-" + base
}

func validate(filename, contentType string) error {
	if strings.TrimSpace(filename) == "" || strings.TrimSpace(contentType) == "" {
		return oops.Code(CodeInvalidUpload).Errorf("filename and content type are required")
	}
	ct := strings.ToLower(contentType)
	for _, prefix := range allowedTypePrefixes {
		if strings.HasPrefix(ct, prefix) {
			return nil
		}
	}
	return oops.Code(CodeInvalidUpload).
		With("content_type", contentType).
		Errorf("unsupported content type")
}
