package main

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlmatch/recorder/internal/config"
	"github.com/rlmatch/recorder/internal/database"
	gormstorage "github.com/rlmatch/recorder/internal/storage/gorm"
	influxstorage "github.com/rlmatch/recorder/internal/storage/influx"
	"github.com/rlmatch/recorder/internal/storage/memory"
	pgstorage "github.com/rlmatch/recorder/internal/storage/postgres"
	sqlitestorage "github.com/rlmatch/recorder/internal/storage/sqlite"
	wsstorage "github.com/rlmatch/recorder/internal/storage/websocket"
	"github.com/rlmatch/recorder/pkg/core"
)

func setupTest(t *testing.T) {
	t.Helper()
	viper.Reset()
	config.SetDefaults()
	Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	ZLogger = zerolog.Nop()
	t.Cleanup(viper.Reset)
}

func TestHttpToWS(t *testing.T) {
	assert.Equal(t, "ws://localhost:5000", httpToWS("http://localhost:5000/"))
	assert.Equal(t, "wss://matches.example", httpToWS("https://matches.example"))
}

func TestNewBackend(t *testing.T) {
	setupTest(t)
	cfg := config.GetStorageConfig()

	tests := []struct {
		typ  string
		want any
	}{
		{"", &memory.Backend{}},
		{"memory", &memory.Backend{}},
		{"postgres", &pgstorage.Backend{}},
		{"websocket", &wsstorage.Backend{}},
		{"influx", &influxstorage.Backend{}},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			cfg.Type = tt.typ
			b, err := newBackend(cfg, "")
			require.NoError(t, err)
			assert.IsType(t, tt.want, b)
		})
	}
}

func TestNewBackend_SQLite(t *testing.T) {
	setupTest(t)
	cfg := config.GetStorageConfig()
	cfg.Type = "sqlite"
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "m.db")

	b, err := newBackend(cfg, "tag")
	require.NoError(t, err)
	require.IsType(t, &sqlitestorage.Backend{}, b)
	assert.NoError(t, b.Close())
}

func TestNewBackend_Unknown(t *testing.T) {
	setupTest(t)
	cfg := config.GetStorageConfig()
	cfg.Type = "mongo"
	_, err := newBackend(cfg, "")
	assert.Error(t, err)
}

func TestLoadConfig_FlagsOverride(t *testing.T) {
	setupTest(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName),
		[]byte(`{"relay": {"port": 1111, "debug": false}}`), 0644))

	fs := newFlagSet()
	require.NoError(t, fs.Parse([]string{"--config", dir, "--debug", "--debug-filter", "game:update_state"}))
	require.NoError(t, loadConfig(fs))

	relay := config.GetRelayConfig()
	assert.Equal(t, 1111, relay.Port)
	assert.True(t, relay.Debug)
	assert.Equal(t, []string{"game:update_state"}, relay.DebugFilters)

	fs = newFlagSet()
	require.NoError(t, fs.Parse([]string{"--config", dir, "--port", "2222"}))
	require.NoError(t, loadConfig(fs))
	assert.Equal(t, 2222, config.GetRelayConfig().Port)
}

func TestExportMatches(t *testing.T) {
	setupTest(t)
	db, err := database.OpenSqlite("", zerolog.Nop())
	require.NoError(t, err)
	store := gormstorage.New(gormstorage.Dependencies{DB: db, Logger: zerolog.Nop()})
	require.NoError(t, store.Init())
	defer store.Close()

	s := core.DefaultSnapshot()
	s.SetClock(299_000, false)
	require.NoError(t, store.Append(&s))
	require.NoError(t, store.Finalize(core.Team2))
	id := store.LastMatch().ID

	dir := t.TempDir()
	require.NoError(t, exportMatches(store, []string{id}, dir))

	f, err := os.Open(filepath.Join(dir, id+".json.gz"))
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)

	var rec core.Recording
	require.NoError(t, json.NewDecoder(gz).Decode(&rec))
	assert.Equal(t, core.Team2, rec.Winner)
	require.Len(t, rec.Snapshots, 1)
	assert.Equal(t, int64(1000), rec.Snapshots[0].TimePassed)

	assert.Error(t, exportMatches(store, []string{"missing"}, dir))
}

func TestRunCommand_NoDatabase(t *testing.T) {
	setupTest(t)
	err := runCommand([]string{"list"})
	assert.Error(t, err)
}
