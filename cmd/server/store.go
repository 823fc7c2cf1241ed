package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kilimokredo/internal/loan/store"
	"kilimokredo/internal/loan/store/memory"
	mongostore "kilimokredo/internal/loan/store/mongo"
	"kilimokredo/internal/loan/store/postgres"
	"kilimokredo/internal/platform/config"
)

const connectTimeout = 10 * time.Second

// openStore builds the configured application store and returns a func that
// releases its connections.
func openStore(ctx context.Context, cfg config.Store, log *slog.Logger) (store.Store, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Driver {
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info("using postgres application store")
		return postgres.New(db), func() { _ = db.Close() }, nil

	case config.StoreMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		disconnect := func() {
			dctx, dcancel := context.WithTimeout(context.Background(), connectTimeout)
			defer dcancel()
			_ = client.Disconnect(dctx)
		}
		if err := client.Ping(ctx, nil); err != nil {
			disconnect()
			return nil, nil, fmt.Errorf("ping mongo: %w", err)
		}
		s := mongostore.New(client.Database(cfg.MongoDatabase))
		if err := s.EnsureIndexes(ctx); err != nil {
			disconnect()
			return nil, nil, err
		}
		log.Info("using mongo application store", "database", cfg.MongoDatabase)
		return s, disconnect, nil

	default:
		log.Warn("using in-memory application store; data is lost on restart")
		return memory.New(), func() {}, nil
	}
}
