// Package sqlitestorage implements the storage.Backend interface on a
// SQLite database file. It wraps the GORM backend via composition; the
// only SQLite-specific concern is opening the database.
package sqlitestorage

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rlmatch/recorder/internal/config"
	"github.com/rlmatch/recorder/internal/database"
	gormstorage "github.com/rlmatch/recorder/internal/storage/gorm"
)

// Backend wraps the GORM backend for SQLite.
type Backend struct {
	*gormstorage.Backend
	cfg config.SQLiteConfig
}

// New opens the SQLite database at cfg.Path. An empty path keeps the
// database in memory.
func New(cfg config.SQLiteConfig, tag string, log zerolog.Logger) (*Backend, error) {
	db, err := database.OpenSqlite(cfg.Path, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite DB: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:     db,
			Logger: log.With().Str("backend", "sqlite").Logger(),
			Tag:    tag,
		}),
		cfg: cfg,
	}, nil
}

// Path returns the database file path, empty for in-memory.
func (b *Backend) Path() string {
	return b.cfg.Path
}
