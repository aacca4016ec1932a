// Package storage publishes rendered artifacts to S3-compatible object
// storage and issues short-lived signed URLs for them.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nurpe/freight-booking/internal/config"
)

const (
	RateConfirmationPrefix = "rate-confirmations/"
	ContentTypePDF         = "application/pdf"
)

type Disposition string

const (
	DispositionInline     Disposition = "inline"
	DispositionAttachment Disposition = "attachment"
)

// RateConfirmationKey is the storage key of a shipment's rate confirmation.
// Downstream tooling looks documents up by this exact pattern.
func RateConfirmationKey(shipmentNumber string) string {
	return RateConfirmationPrefix + shipmentNumber + "_RateConfirmation.pdf"
}

type MinioStore struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func NewMinioStore(cfg config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage client: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, ttl: cfg.SignedURLTTL}, nil
}

// Publish uploads r under key as a private object and returns the key.
func (s *MinioStore) Publish(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty storage key")
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

// SignedURL returns a presigned GET URL for key valid for ttl, or the store
// default when ttl is zero. The response headers are overridden so browsers
// honour the disposition and content type.
func (s *MinioStore) SignedURL(ctx context.Context, key string, disposition Disposition, contentType string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	params := ResponseParams(key, disposition, contentType)

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

// ResponseParams builds the response header overrides of a signed URL.
func ResponseParams(key string, disposition Disposition, contentType string) url.Values {
	if disposition == "" {
		disposition = DispositionInline
	}
	params := url.Values{}
	name := key
	if i := strings.LastIndex(key, "/"); i >= 0 {
		name = key[i+1:]
	}
	params.Set("response-content-disposition", mime.FormatMediaType(string(disposition), map[string]string{"filename": name}))
	if contentType != "" {
		params.Set("response-content-type", contentType)
	}
	return params
}
