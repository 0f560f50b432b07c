package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// indirections for tests
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// instrumentationName names the otelslog bridge scope.
const instrumentationName = "match-recorder"

// SlogManager owns the recorder's slog pipeline. Records go to the session
// log file (or stdout), and optionally to OTel and Graylog.
type SlogManager struct {
	logger      *slog.Logger
	logProvider *sdklog.LoggerProvider
	graylog     io.WriteCloser
	match       MatchSource
}

// NewSlogManager returns a manager that logs through slog.Default until
// Setup runs.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel accepts the names slog understands, in any case. Anything
// else, including "", means info.
func parseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// utcTime rewrites record timestamps as UTC RFC3339.
func utcTime(_ []string, a slog.Attr) slog.Attr {
	if t, ok := a.Value.Any().(time.Time); ok && a.Key == slog.TimeKey {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// EnableGraylog ships every record to a GELF UDP endpoint. Call before Setup.
func (m *SlogManager) EnableGraylog(addr string) error {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return fmt.Errorf("graylog writer: %w", err)
	}
	m.graylog = w
	return nil
}

// WatchMatch stamps the state reported by src on every record.
// Call before Setup.
func (m *SlogManager) WatchMatch(src MatchSource) {
	m.match = src
}

// Setup builds the logger. A nil file logs to stdout and a nil provider
// leaves OTel out. Calling it again replaces the previous pipeline.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	opts := &slog.HandlerOptions{Level: parseLevel(level), ReplaceAttr: utcTime}
	m.logProvider = provider

	out := file
	if out == nil {
		out = osStdout
	}
	sinks := fanout{slog.NewTextHandler(out, opts)}
	if provider != nil {
		sinks = append(sinks, otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider)))
	}
	// one GELF message per record
	if m.graylog != nil {
		sinks = append(sinks, slog.NewJSONHandler(m.graylog, opts))
	}

	var h slog.Handler = sinks
	if len(sinks) == 1 {
		h = sinks[0]
	}
	if m.match != nil {
		h = matchHandler{next: h, source: m.match}
	}

	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush pushes buffered OTel records out. It is a no-op without OTel.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider == nil {
		return nil
	}
	return m.logProvider.ForceFlush(ctx)
}

// Close releases the Graylog connection.
func (m *SlogManager) Close() error {
	if m.graylog == nil {
		return nil
	}
	err := m.graylog.Close()
	m.graylog = nil
	return err
}

// fanout copies each record to every sink that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return lo.ContainsBy(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

// Handle keeps going past a failing sink and reports every failure.
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return fanout(lo.Map(f, func(h slog.Handler, _ int) slog.Handler { return h.WithAttrs(attrs) }))
}

func (f fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return fanout(lo.Map(f, func(h slog.Handler, _ int) slog.Handler { return h.WithGroup(name) }))
}
