package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/rlmatch/recorder/internal/config"
	"github.com/rlmatch/recorder/internal/storage"
	influxstorage "github.com/rlmatch/recorder/internal/storage/influx"
	"github.com/rlmatch/recorder/internal/storage/memory"
	pgstorage "github.com/rlmatch/recorder/internal/storage/postgres"
	sqlitestorage "github.com/rlmatch/recorder/internal/storage/sqlite"
	wsstorage "github.com/rlmatch/recorder/internal/storage/websocket"
)

// streamPath is appended to api.serverUrl when storage.websocket.url is unset.
const streamPath = "/api/v1/matches/stream"

func newBackend(storageCfg config.StorageConfig, tag string) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		Logger.Info("Postgres storage backend selected", "host", storageCfg.Postgres.Host)
		return pgstorage.New(pgstorage.Dependencies{
			Config: storageCfg.Postgres,
			Logger: ZLogger,
			Tag:    tag,
		}), nil

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, tag, ZLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend selected", "path", backend.Path())
		return backend, nil

	case "websocket":
		wsCfg := storageCfg.WebSocket
		if wsCfg.URL == "" {
			wsCfg.URL = httpToWS(viper.GetString("api.serverUrl")) + streamPath
		}
		if wsCfg.Secret == "" {
			wsCfg.Secret = viper.GetString("api.apiKey")
		}
		Logger.Info("WebSocket storage backend selected", "url", wsCfg.URL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsCfg.URL,
			Secret: wsCfg.Secret,
		}, Logger), nil

	case "influx":
		Logger.Info("InfluxDB storage backend selected", "url", storageCfg.Influx.URL())
		return influxstorage.New(influxstorage.Dependencies{
			Config:     storageCfg.Influx,
			Logger:     ZLogger.With().Str("backend", "influx").Logger(),
			Tag:        tag,
			BackupPath: filepath.Join(viper.GetString("logsDir"), "influx_backup.lp.gz"),
		}), nil

	case "memory", "":
		Logger.Info("Memory storage backend selected", "outputDir", storageCfg.Memory.OutputDir)
		return memory.New(storageCfg.Memory), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
