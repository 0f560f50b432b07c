package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/rlmatch/recorder/internal/config"
	"github.com/rlmatch/recorder/internal/database"
	"github.com/rlmatch/recorder/internal/model"
	gormstorage "github.com/rlmatch/recorder/internal/storage/gorm"
)

const listLimit = 20

// runCommand handles the offline subcommands that read matches back out
// of a relational store.
func runCommand(args []string) error {
	storageCfg := config.GetStorageConfig()
	db, err := openStore(storageCfg)
	if err != nil {
		return err
	}
	store := gormstorage.New(gormstorage.Dependencies{DB: db, Logger: ZLogger})
	defer store.Close()

	switch args[0] {
	case "export":
		ids := args[1:]
		if len(ids) == 0 {
			return fmt.Errorf("no match ids provided")
		}
		return exportMatches(store, ids, storageCfg.Memory.OutputDir)
	case "list":
		return listMatches(store)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func openStore(storageCfg config.StorageConfig) (*gorm.DB, error) {
	switch storageCfg.Type {
	case "sqlite":
		return database.OpenSqlite(storageCfg.SQLite.Path, ZLogger)
	case "postgres":
		return database.OpenPostgres(storageCfg.Postgres, ZLogger)
	default:
		return nil, fmt.Errorf("storage type %q has no match database", storageCfg.Type)
	}
}

// exportMatches writes each stored match as <id>.json.gz in dir.
func exportMatches(store *gormstorage.Backend, ids []string, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, id := range ids {
		start := time.Now()
		rec, err := store.LoadRecording(id)
		if err != nil {
			return err
		}

		path := filepath.Join(dir, id+".json.gz")
		if err := writeRecording(path, rec); err != nil {
			return err
		}
		Logger.Info("Exported match", "matchId", id, "snapshots", len(rec.Snapshots),
			"path", path, "took", time.Since(start))
	}
	return nil
}

func writeRecording(path string, rec any) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(rec); err != nil {
		return fmt.Errorf("encode recording: %w", err)
	}
	return gz.Close()
}

func listMatches(store *gormstorage.Backend) error {
	matches, err := store.ListMatches(listLimit)
	if err != nil {
		return err
	}
	lines := lo.Map(matches, func(m model.Match, _ int) string {
		return fmt.Sprintf("%s  %s  %d-%d  winner=%d  %s  %q",
			m.ID, m.CreatedAt.Format(time.RFC3339), m.Team1Score, m.Team2Score,
			m.Winner, time.Duration(m.DurationMs)*time.Millisecond, m.Tag)
	})
	for _, l := range lines {
		fmt.Println(l)
	}
	return nil
}
