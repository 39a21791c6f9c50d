package core

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStores selects the storage backend from cfg, applies migrations when it is PostgreSQL,
// and, when seed is set, provisions the seed credentials. The closer releases the database pool.
func OpenStores(ctx context.Context, cfg Config, log logrus.FieldLogger, seed bool) (Stores, io.Closer, error) {
	if cfg.UsesMemoryStore() {
		log.Warn("using in-memory store; data is lost on restart")
		stores := NewMemoryStores()
		if err := seedStores(ctx, cfg, stores, log, seed); err != nil {
			return Stores{}, nil, err
		}
		return stores, nopCloser{}, nil
	}

	db, err := Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return Stores{}, nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return Stores{}, nil, err
	}
	stores := NewPgStores(db)
	if err := seedStores(ctx, cfg, stores, log, seed); err != nil {
		db.Close()
		return Stores{}, nil, err
	}
	return stores, db, nil
}

func seedStores(ctx context.Context, cfg Config, stores Stores, log logrus.FieldLogger, seed bool) error {
	if !seed {
		return nil
	}
	return SeedCredentials(ctx, stores.Credentials, NewCredentialStore(stores.Credentials, cfg.PasswordSalt), cfg, log)
}
