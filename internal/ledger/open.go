package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"

	"liftmail/internal/config"
)

// Open builds the ledger selected by cfg.Ledger.Backend. db is used by the
// sqlite backend and may be nil for the others.
func Open(ctx context.Context, cfg *config.Config, db *sql.DB, opts ...Option) (Ledger, error) {
	opts = append([]Option{WithDedupeWindow(cfg.DedupeWindow())}, opts...)
	switch cfg.Ledger.Backend {
	case "", "sqlite":
		if db == nil {
			return nil, fmt.Errorf("sqlite ledger requires a database handle")
		}
		return NewSQLite(db, opts...), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Ledger.RedisAddr,
			Password: cfg.Ledger.RedisPassword,
			DB:       cfg.Ledger.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Ledger.RedisAddr, err)
		}
		return NewRedis(client, cfg.Ledger.RedisPrefix, opts...), nil
	case "firestore":
		client, err := firestore.NewClient(ctx, cfg.Ledger.FirestoreProject)
		if err != nil {
			return nil, fmt.Errorf("create firestore client: %w", err)
		}
		return NewFirestore(client, cfg.Ledger.FirestoreCollection, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend %q", cfg.Ledger.Backend)
	}
}
