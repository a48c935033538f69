package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOOptions configures the S3-compatible backend.
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
}

// MinIO archives to an S3-compatible bucket.
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO connects a MinIO client. No request is made until Put.
func NewMinIO(opts MinIOOptions) (*MinIO, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("minio endpoint is required")
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("archive bucket is required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connection: %w", err)
	}
	return &MinIO{client: client, bucket: opts.Bucket}, nil
}

// Put implements Store.
func (m *MinIO) Put(ctx context.Context, key string, raw []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{
		ContentType: ContentType,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", m.bucket, key, err)
	}
	return nil
}

// Name implements Store.
func (m *MinIO) Name() string { return "minio" }
