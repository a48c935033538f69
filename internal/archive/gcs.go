package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GCS archives to a Google Cloud Storage bucket. Objects are created only if
// absent, so a replayed record never overwrites its original bytes.
type GCS struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCS creates a storage client using application default credentials.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("archive bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

// Put implements Store. An existing object is not an error.
func (g *GCS) Put(ctx context.Context, key string, raw []byte) error {
	writer := g.bucket.Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = ContentType

	if _, err := io.Copy(writer, bytes.NewReader(raw)); err != nil {
		_ = writer.Close()
		if alreadyExists(err) {
			return nil
		}
		return fmt.Errorf("write gs://%s/%s: %w", g.name, key, err)
	}
	if err := writer.Close(); err != nil {
		if alreadyExists(err) {
			return nil
		}
		return fmt.Errorf("finalize gs://%s/%s: %w", g.name, key, err)
	}
	return nil
}

// Name implements Store.
func (g *GCS) Name() string { return "gcs" }

// Close releases the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func alreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
