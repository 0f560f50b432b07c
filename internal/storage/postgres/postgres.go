// Package postgres implements the storage.Backend interface on
// PostgreSQL through the GORM backend.
package postgres

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rlmatch/recorder/internal/config"
	"github.com/rlmatch/recorder/internal/database"
	gormstorage "github.com/rlmatch/recorder/internal/storage/gorm"
)

// Dependencies holds all dependencies for the Postgres backend.
// When DB is nil, Init connects using Config.
type Dependencies struct {
	DB     *gorm.DB
	Config config.PostgresConfig
	Logger zerolog.Logger
	Tag    string
}

// Backend wraps the GORM backend for PostgreSQL.
type Backend struct {
	*gormstorage.Backend
	deps Dependencies
}

// New creates a new Postgres storage backend. No connection is made
// until Init.
func New(deps Dependencies) *Backend {
	deps.Logger = deps.Logger.With().Str("backend", "postgres").Logger()
	return &Backend{deps: deps}
}

// Init connects if needed, then migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.OpenPostgres(b.deps.Config, b.deps.Logger)
		if err != nil {
			return err
		}
		b.deps.DB = db
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:     b.deps.DB,
		Logger: b.deps.Logger,
		Tag:    b.deps.Tag,
	})
	if err := b.Backend.Init(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}

// Close closes the connection pool if Init succeeded.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
