// Package gormstorage implements the storage.Backend interface on GORM.
// Appended snapshots are buffered and written with their match row in
// one transaction at Finalize.
package gormstorage

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rlmatch/recorder/internal/database"
	"github.com/rlmatch/recorder/internal/model"
	"github.com/rlmatch/recorder/internal/model/convert"
	"github.com/rlmatch/recorder/internal/queue"
	"github.com/rlmatch/recorder/pkg/core"
)

// insertBatchSize bounds rows per INSERT statement.
const insertBatchSize = 500

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger zerolog.Logger
	Tag    string
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps    Dependencies
	pending *queue.Queue[core.Snapshot]

	mu        sync.Mutex
	lastMatch model.Match
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps:    deps,
		pending: queue.New[core.Snapshot](),
	}
}

// Init runs schema migration.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database")
	}
	if err := database.Migrate(b.deps.DB, b.deps.Logger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}

// Append buffers a copy of the snapshot until Finalize.
func (b *Backend) Append(s *core.Snapshot) error {
	b.pending.Push(*s)
	return nil
}

// Finalize stores the buffered history as a new match.
func (b *Backend) Finalize(winner core.TeamIndex) error {
	history := b.pending.Drain()
	matchID := uuid.NewString()

	match := convert.MatchToModel(matchID, b.deps.Tag, winner, history)
	rows := make([]model.MatchSnapshot, 0, len(history))
	for i, s := range history {
		row, err := convert.SnapshotToModel(matchID, i, s)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	err := b.deps.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&match).Error; err != nil {
			return fmt.Errorf("failed to insert match: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert snapshots: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.lastMatch = match
	b.mu.Unlock()

	b.deps.Logger.Info().
		Str("matchId", matchID).
		Int("winner", int(winner)).
		Int("snapshots", len(rows)).
		Msg("Match stored")
	return nil
}

// LastMatch returns the match row written by the last Finalize.
func (b *Backend) LastMatch() model.Match {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastMatch
}

// LoadRecording reads a stored match back as a recording document.
func (b *Backend) LoadRecording(matchID string) (core.Recording, error) {
	var m model.Match
	err := b.deps.DB.
		Preload("Snapshots", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		First(&m, "id = ?", matchID).Error
	if err != nil {
		return core.Recording{}, fmt.Errorf("load match %s: %w", matchID, err)
	}
	return convert.MatchToRecording(m)
}

// ListMatches returns up to limit match rows, newest first, without
// their snapshots.
func (b *Backend) ListMatches(limit int) ([]model.Match, error) {
	var matches []model.Match
	err := b.deps.DB.Order("created_at DESC").Limit(limit).Find(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return matches, nil
}
