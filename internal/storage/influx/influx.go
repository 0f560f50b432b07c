// Package influxstorage writes finished matches to InfluxDB as time series.
package influxstorage

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/rlmatch/recorder/internal/config"
	"github.com/rlmatch/recorder/pkg/core"
)

// Measurement names written by the backend.
const (
	MeasurementSnapshot = "match_snapshot"
	MeasurementResult   = "match_result"
)

const pingTimeout = 5 * time.Second

// Dependencies for the InfluxDB backend.
type Dependencies struct {
	Config config.InfluxConfig
	Logger zerolog.Logger
	Tag    string
	// BackupPath receives gzipped line protocol when the server is
	// unreachable at Init. Empty disables the fallback.
	BackupPath string
}

// Backend buffers a match and writes one point per snapshot on Finalize.
type Backend struct {
	deps Dependencies

	client influxdb2.Client
	writer influxdb2_api.WriteAPIBlocking

	backupFile *os.File
	backup     *gzip.Writer

	pending []core.Snapshot
	lastID  string

	mu sync.Mutex
}

// New creates an InfluxDB backend. Init must be called before use.
func New(deps Dependencies) *Backend {
	return &Backend{deps: deps}
}

// Init connects to InfluxDB, falling back to the backup file when the
// server does not answer a ping.
func (b *Backend) Init() error {
	cfg := b.deps.Config
	if cfg.Host == "" {
		return errors.New("influx host not configured")
	}

	b.client = influxdb2.NewClientWithOptions(cfg.URL(), cfg.Token,
		influxdb2.DefaultOptions().SetBatchSize(2500))

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	running, err := b.client.Ping(ctx)
	if err == nil && running {
		b.writer = b.client.WriteAPIBlocking(cfg.Org, cfg.Bucket)
		b.deps.Logger.Info().Str("url", cfg.URL()).Str("bucket", cfg.Bucket).Msg("InfluxDB backend initialized")
		return nil
	}

	if b.deps.BackupPath == "" {
		b.client.Close()
		b.client = nil
		if err == nil {
			err = errors.New("server not ready")
		}
		return fmt.Errorf("ping influx at %s: %w", cfg.URL(), err)
	}

	file, ferr := os.OpenFile(b.deps.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if ferr != nil {
		return fmt.Errorf("create influx backup file: %w", ferr)
	}
	b.backupFile = file
	b.backup = gzip.NewWriter(file)
	b.deps.Logger.Warn().Err(err).Str("backupPath", b.deps.BackupPath).
		Msg("InfluxDB unreachable, writing to backup file")
	return nil
}

// Close flushes the backup file and releases the client.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	if b.backup != nil {
		errs = append(errs, b.backup.Close(), b.backupFile.Close())
		b.backup = nil
		b.backupFile = nil
	}
	if b.client != nil {
		b.client.Close()
		b.client = nil
	}
	return errors.Join(errs...)
}

// Append buffers a copy of the snapshot.
func (b *Backend) Append(s *core.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, *s)
	return nil
}

// Finalize writes the buffered match and clears it.
func (b *Backend) Finalize(winner core.TeamIndex) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	points := MatchPoints(id, b.deps.Tag, winner, b.pending, time.Now())
	count := len(b.pending)
	b.pending = nil

	if err := b.write(points); err != nil {
		return fmt.Errorf("write match %s: %w", id, err)
	}
	b.lastID = id
	b.deps.Logger.Info().Str("matchId", id).Int("snapshots", count).Msg("Match written to InfluxDB")
	return nil
}

func (b *Backend) write(points []*influxdb2_write.Point) error {
	if b.writer != nil {
		return b.writer.WritePoint(context.Background(), points...)
	}
	if b.backup == nil {
		return errors.New("influx backend not initialized")
	}
	for _, p := range points {
		line := strings.TrimSuffix(influxdb2_write.PointToLineProtocol(p, time.Nanosecond), "\n")
		if _, err := b.backup.Write([]byte(line + "\n")); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
	}
	return b.backup.Flush()
}

// LastMatchID returns the id tag of the most recently written match.
func (b *Backend) LastMatchID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastID
}

// MatchPoints converts a finished match into points. Snapshot timestamps
// are laid out backwards from end using each snapshot's elapsed time;
// the result point is stamped at end.
func MatchPoints(matchID, tag string, winner core.TeamIndex, snapshots []core.Snapshot, end time.Time) []*influxdb2_write.Point {
	var duration int64
	if n := len(snapshots); n > 0 {
		duration = snapshots[n-1].TimePassed
	}
	start := end.Add(-time.Duration(duration) * time.Millisecond)

	tags := map[string]string{"match": matchID}
	if tag != "" {
		tags["tag"] = tag
	}

	points := make([]*influxdb2_write.Point, 0, len(snapshots)+1)
	for i := range snapshots {
		s := &snapshots[i]
		points = append(points, influxdb2.NewPoint(MeasurementSnapshot, tags, map[string]any{
			"seq":         i,
			"time_left":   s.TimeLeft,
			"time_passed": s.TimePassed,
			"team1_score": s.Team1.Score,
			"team2_score": s.Team2.Score,
			"ball_x":      s.Ball.Location.X,
			"ball_y":      s.Ball.Location.Y,
			"ball_z":      s.Ball.Location.Z,
			"ball_speed":  s.Ball.Speed,
		}, start.Add(time.Duration(s.TimePassed)*time.Millisecond)))
	}

	resultTags := map[string]string{"winner": strconv.Itoa(int(winner))}
	for k, v := range tags {
		resultTags[k] = v
	}
	result := map[string]any{
		"duration_ms": duration,
		"snapshots":   len(snapshots),
	}
	if n := len(snapshots); n > 0 {
		result["team1_score"] = snapshots[n-1].Team1.Score
		result["team2_score"] = snapshots[n-1].Team2.Score
	}
	points = append(points, influxdb2.NewPoint(MeasurementResult, resultTags, result, end))
	return points
}
