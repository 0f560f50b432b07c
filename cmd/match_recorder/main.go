package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/rlmatch/recorder/internal/api"
	"github.com/rlmatch/recorder/internal/config"
	"github.com/rlmatch/recorder/internal/logging"
	intOtel "github.com/rlmatch/recorder/internal/otel"
	"github.com/rlmatch/recorder/internal/reducer"
	"github.com/rlmatch/recorder/internal/router"
	"github.com/rlmatch/recorder/internal/transport"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "match_recorder"
)

// global variables
var (
	SessionStartTime time.Time = time.Now()

	// LogFilePath is empty when logging to stdout
	LogFilePath string
	LogFile     *os.File

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// ZLogger feeds the router, database and influx layers
	ZLogger zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	matchReducer *reducer.Reducer
)

func main() {
	flags := newFlagSet()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := loadConfig(flags); err != nil {
		// defaults are already registered
		fmt.Fprintf(os.Stderr, "Failed to load config, using defaults: %v\n", err)
	}

	setupLogging()
	defer shutdownLogging()

	Logger.Info("Starting up", "version", CurrentVersion, "buildDate", BuildDate)

	args := flags.Args()
	if len(args) > 0 {
		if err := runCommand(args); err != nil {
			Logger.Error("Command failed", "command", args[0], "error", err)
			shutdownLogging()
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		Logger.Error("Recorder stopped with error", "error", err)
		shutdownLogging()
		os.Exit(1)
	}
	Logger.Info("Shut down cleanly")
}

// setupLogging opens the session log file and wires slog, OTel and
// zerolog. Failures fall back to stdout.
func setupLogging() {
	SlogManager = logging.NewSlogManager()

	logsDir := viper.GetString("logsDir")
	if f, err := logging.OpenSessionLog(logsDir, AppName, SessionStartTime); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file in %s: %v\n", logsDir, err)
	} else {
		LogFile = f
		LogFilePath = f.Name()
	}

	otelCfg := config.GetOTelConfig()
	var otelErr error
	if otelCfg.Enabled {
		cfg := intOtel.Config{
			Enabled:        true,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: CurrentVersion,
			BatchTimeout:   otelCfg.BatchTimeout,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		}
		if LogFile != nil {
			cfg.LogWriter = LogFile
		}
		OTelProvider, otelErr = intOtel.New(cfg)
	}

	graylogCfg := config.GetGraylogConfig()
	var graylogErr error
	if graylogCfg.Enabled {
		graylogErr = SlogManager.EnableGraylog(graylogCfg.Address)
	}

	// matchReducer is created after logging, so the source reads it late
	SlogManager.WatchMatch(func() logging.MatchState {
		if matchReducer == nil {
			return logging.MatchState{}
		}
		running, elapsed := matchReducer.Progress()
		return logging.MatchState{InProgress: running, TimePassed: elapsed}
	})

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	if LogFile != nil {
		SlogManager.Setup(LogFile, viper.GetString("logLevel"), otelLogProvider)
	} else {
		SlogManager.Setup(nil, viper.GetString("logLevel"), otelLogProvider)
	}
	Logger = SlogManager.Logger()
	slog.SetDefault(Logger)

	var zw = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	if LogFile != nil {
		ZLogger = zerolog.New(LogFile).With().Timestamp().Logger()
	} else {
		ZLogger = zerolog.New(zw).With().Timestamp().Logger()
	}
	if lvl, err := zerolog.ParseLevel(viper.GetString("logLevel")); err == nil {
		ZLogger = ZLogger.Level(lvl)
	}

	if LogFilePath != "" {
		Logger.Info("Logging to file", "path", LogFilePath)
	}
	if otelErr != nil {
		Logger.Error("Failed to initialize OTel provider", "error", otelErr)
	} else if OTelProvider != nil {
		Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
	}
	if graylogErr != nil {
		Logger.Error("Failed to enable Graylog", "address", graylogCfg.Address, "error", graylogErr)
	}
}

func shutdownLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if SlogManager != nil {
		_ = SlogManager.Flush(ctx)
		_ = SlogManager.Close()
	}
	if OTelProvider != nil {
		_ = OTelProvider.Shutdown(ctx)
	}
	if LogFile != nil {
		_ = LogFile.Close()
		LogFile = nil
	}
}

// run wires the relay connection, router, reducer and storage, then
// serves until ctx is done.
func run(ctx context.Context) error {
	relayCfg := config.GetRelayConfig()
	tag := viper.GetString("tag")

	backend, err := newBackend(config.GetStorageConfig(), tag)
	if err != nil {
		return fmt.Errorf("create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("init storage backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Warn("Failed to close storage backend", "error", err)
		}
	}()

	client := transport.New(transport.Config{URL: relayCfg.URL()}, Logger.With("component", "transport"))

	var opts []router.Option
	if relayCfg.Debug {
		opts = append(opts, router.WithDebug(relayCfg.DebugFilters...))
	}
	routerLogger := logging.NewRouterLogger(ZLogger.With().Str("component", "router").Logger())
	eventRouter, err := router.New(client, routerLogger, opts...)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	matchReducer = reducer.New(reducer.Dependencies{
		Backend:  backend,
		Uploader: newUploader(ctx),
		Logger:   Logger.With("component", "reducer"),
		Tag:      tag,
	})
	matchReducer.RegisterHandlers(eventRouter)
	Logger.Info("Reducer handlers registered", "relay", relayCfg.URL())

	return client.Run(ctx, eventRouter)
}

// newUploader returns nil unless uploads are enabled.
func newUploader(ctx context.Context) reducer.Uploader {
	apiCfg := config.GetAPIConfig()
	if !apiCfg.Upload || apiCfg.ServerURL == "" {
		return nil
	}

	client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Healthcheck(hctx); err != nil {
		Logger.Warn("Match server not reachable, uploads may fail", "url", apiCfg.ServerURL, "error", err)
	} else {
		Logger.Info("Match server reachable", "url", apiCfg.ServerURL)
	}
	return client
}
