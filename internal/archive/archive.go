package archive

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"liftmail/internal/config"
)

// ContentType is the media type stored with every archived message.
const ContentType = "message/rfc822"

// Store persists raw messages by key.
type Store interface {
	Put(ctx context.Context, key string, raw []byte) error
	Name() string
}

// Key returns the object key for a record archived at the given time.
func Key(prefix string, at time.Time, recordID string) string {
	day := at.UTC().Format("2006/01/02")
	name := strings.TrimSpace(recordID) + ".eml"
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return path.Join(day, name)
	}
	return path.Join(prefix, day, name)
}

// Open builds the configured archive backend.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Archive.Backend)) {
	case "", "none":
		return Disabled{}, nil
	case "minio":
		return NewMinIO(MinIOOptions{
			Endpoint:  cfg.Archive.MinioEndpoint,
			AccessKey: cfg.Archive.MinioAccessKey,
			SecretKey: cfg.Archive.MinioSecretKey,
			UseSSL:    cfg.Archive.MinioUseSSL,
			Region:    cfg.Archive.MinioRegion,
			Bucket:    cfg.Archive.Bucket,
		})
	case "gcs":
		return NewGCS(ctx, cfg.Archive.Bucket)
	default:
		return nil, fmt.Errorf("unsupported archive backend %q", cfg.Archive.Backend)
	}
}

// Disabled discards everything.
type Disabled struct{}

// Put implements Store.
func (Disabled) Put(context.Context, string, []byte) error { return nil }

// Name implements Store.
func (Disabled) Name() string { return "none" }
