// Package uploads stores editor images in object storage and hands back
// hosted URLs.
package uploads

import (
	"context"
	"fmt"
	"io"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"inkwell/api/internal/util"
)

type Service struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// New connects to MinIO (or any S3-compatible endpoint) and ensures the
// bucket exists. baseURL is the public prefix uploaded objects are served
// from; if empty, the endpoint itself is used.
func New(ctx context.Context, endpoint, accessKey, secretKey, bucket, baseURL string, useSSL bool) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	if baseURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		baseURL = scheme + "://" + endpoint
	}
	return &Service{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Upload stores the object under a fresh key and returns its public URL.
func (s *Service) Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	key := "uploads/" + util.NewID("") + "/" + sanitizeName(name)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return s.baseURL + "/" + s.bucket + "/" + key, nil
}

// sanitizeName keeps object keys to a safe character set.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "file"
	}
	return out
}
