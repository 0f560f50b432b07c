// Package reducer folds relay telemetry into a per-match snapshot and
// history, and hands finished matches to storage.
package reducer

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/rlmatch/recorder/internal/parser"
	"github.com/rlmatch/recorder/internal/router"
	"github.com/rlmatch/recorder/internal/storage"
	"github.com/rlmatch/recorder/pkg/core"
	"github.com/rlmatch/recorder/pkg/streaming"
)

// Subscriber is the part of the router the reducer registers with.
type Subscriber interface {
	On(channel, event string, h router.Handler)
}

// Uploader sends a finished recording to the match server.
type Uploader interface {
	Upload(filePath string, meta core.UploadMetadata) error
}

// Dependencies holds all dependencies for the reducer
type Dependencies struct {
	Backend       storage.Backend
	Uploader      Uploader
	ParserService parser.Service
	Logger        *slog.Logger
	Tag           string
}

// Reducer owns the active match session.
type Reducer struct {
	mu      sync.Mutex
	session *Session
	deps    Dependencies
	logger  *slog.Logger

	// mirrored for log context, readable from any goroutine
	inProgress atomic.Bool
	timePassed atomic.Int64

	ticks    metric.Int64Counter
	recorded metric.Int64Counter
	finished metric.Int64Counter
}

// New creates a reducer with an idle session.
func New(deps Dependencies) *Reducer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.ParserService == nil {
		deps.ParserService = parser.NewParser(deps.Logger)
	}
	r := &Reducer{
		session: idleSession(),
		deps:    deps,
		logger:  deps.Logger,
	}

	m := meter()
	r.ticks = r.counter(m, "reducer.ticks",
		"update_state ticks merged into the snapshot")
	r.recorded = r.counter(m, "reducer.snapshots.recorded",
		"snapshots appended to match history")
	r.finished = r.counter(m, "reducer.matches.finished",
		"matches concluded, by outcome")

	return r
}

// counter creates a counter on m, or a noop one when m rejects it.
func (r *Reducer) counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		r.logger.Warn("metric disabled", "instrument", name, "error", err)
		return noop.Int64Counter{}
	}
	return c
}

// RegisterHandlers subscribes the reducer to the relay events it consumes.
func (r *Reducer) RegisterHandlers(sub Subscriber) {
	sub.On(streaming.ChannelGame, streaming.EventInitialized, r.HandleInitialized)
	sub.On(streaming.ChannelGame, streaming.EventUpdateState, r.HandleUpdateState)
	sub.On(streaming.ChannelGame, streaming.EventClockStopped, r.HandleClockStopped)
	sub.On(streaming.ChannelGame, streaming.EventGoalScored, r.handleGoalScored)
	sub.On(streaming.ChannelGame, streaming.EventClockUpdatedSeconds, r.handleClockUpdated)
	sub.On(streaming.ChannelWS, streaming.EventClose, r.handleConnectionLost)
	sub.On(streaming.ChannelWS, streaming.EventError, r.handleConnectionLost)
}

// HandleInitialized starts a new match, discarding whatever came before.
func (r *Reducer) HandleInitialized(json.RawMessage) {
	r.mu.Lock()
	if r.session.InProgress {
		r.logger.Warn("match replaced before it concluded",
			"matchId", r.session.ID, "history", len(r.session.History))
	}
	r.session = NewSession()
	id := r.session.ID
	r.publishState()
	r.mu.Unlock()

	r.logger.Info("match initialized", "matchId", id)
}

// HandleUpdateState merges one telemetry tick.
func (r *Reducer) HandleUpdateState(data json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.session.InProgress {
		return
	}

	tick, err := r.deps.ParserService.ParseUpdateState(data)
	if err != nil {
		r.logger.Debug("tick ignored", "error", err)
		return
	}

	res := r.session.Apply(tick)
	if !res.Applied {
		r.logger.Debug("tick ignored", "players", len(tick.Players))
		return
	}
	r.ticks.Add(context.Background(), 1)
	if res.Recorded {
		r.recorded.Add(context.Background(), 1)
	}
	if len(res.Rejected) > 0 {
		r.logger.Warn("no free slot, match invalidated",
			"matchId", r.session.ID, "players", res.Rejected)
	}
	if res.ScoreUpdated {
		r.logger.Debug("score updated",
			"team1", r.session.Snapshot.Team1.Score, "team2", r.session.Snapshot.Team2.Score)
	}
	r.publishState()
}

// HandleClockStopped concludes the match when regulation or overtime
// has ended on a decisive score, then persists it.
func (r *Reducer) HandleClockStopped(json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	winner, ok := r.session.Conclude()
	if !ok {
		return
	}
	r.publishState()

	s := r.session
	if s.Snapshot.Invalidated {
		r.finished.Add(context.Background(), 1, metric.WithAttributes(outcomeDiscarded))
		r.logger.Warn("match discarded, roster was invalid",
			"matchId", s.ID, "history", len(s.History))
		s.History = nil
		return
	}

	r.logger.Info("match concluded",
		"matchId", s.ID,
		"winner", winner,
		"team1", s.Snapshot.Team1.Score,
		"team2", s.Snapshot.Team2.Score,
		"history", len(s.History))

	if err := r.persist(winner); err != nil {
		r.finished.Add(context.Background(), 1, metric.WithAttributes(outcomeFailed))
		r.logger.Error("failed to persist match", "matchId", s.ID, "error", err)
		return
	}
	r.finished.Add(context.Background(), 1, metric.WithAttributes(outcomeSaved))
	r.upload(winner)
}

func (r *Reducer) persist(winner core.TeamIndex) error {
	backend := r.deps.Backend
	if backend == nil {
		return nil
	}
	for i := range r.session.History {
		if err := backend.Append(&r.session.History[i]); err != nil {
			return err
		}
	}
	return backend.Finalize(winner)
}

func (r *Reducer) upload(winner core.TeamIndex) {
	u, ok := r.deps.Backend.(storage.Uploadable)
	if !ok || r.deps.Uploader == nil {
		return
	}
	path := u.ExportedFilePath()
	if path == "" {
		return
	}

	meta := u.ExportMetadata()
	if meta.MatchID == "" {
		meta.MatchID = r.session.ID
	}
	if meta.Tag == "" {
		meta.Tag = r.deps.Tag
	}
	meta.Winner = winner
	if meta.Duration == 0 {
		meta.Duration = time.Duration(r.session.Snapshot.TimePassed) * time.Millisecond
	}

	if err := r.deps.Uploader.Upload(path, meta); err != nil {
		r.logger.Error("failed to upload recording", "path", path, "error", err)
		return
	}
	r.logger.Info("recording uploaded", "path", path, "matchId", meta.MatchID)
}

func (r *Reducer) handleGoalScored(data json.RawMessage) {
	goal, err := r.deps.ParserService.ParseGoalScored(data)
	if err != nil {
		r.logger.Debug("goal_scored ignored", "error", err)
		return
	}
	r.logger.Info("goal scored",
		"scorer", goal.Scorer.Name,
		"team", int(goal.Scorer.TeamNum),
		"speed", goal.GoalSpeed)
}

func (r *Reducer) handleClockUpdated(json.RawMessage) {
	snap := r.Snapshot()
	r.logger.Debug("clock updated",
		"timeLeft", snap.TimeLeft,
		"team1", snap.Team1.Score,
		"team2", snap.Team2.Score)
}

func (r *Reducer) handleConnectionLost(json.RawMessage) {
	r.logger.Warn("relay connection lost", "inProgress", r.InProgress())
}

// publishState mirrors session state for Progress. Caller holds mu.
func (r *Reducer) publishState() {
	r.inProgress.Store(r.session.InProgress)
	r.timePassed.Store(r.session.Snapshot.TimePassed)
}

// Progress reports whether a match is running and its elapsed time in
// milliseconds. It never blocks on the reducer lock, so log handlers can
// call it from inside event handlers.
func (r *Reducer) Progress() (inProgress bool, timePassed int64) {
	if !r.inProgress.Load() {
		return false, 0
	}
	return true, r.timePassed.Load()
}

// Snapshot returns a copy of the current snapshot.
func (r *Reducer) Snapshot() core.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Snapshot
}

// History returns a copy of the current match history.
func (r *Reducer) History() []core.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Snapshot, len(r.session.History))
	copy(out, r.session.History)
	return out
}

// InProgress reports whether a match is being recorded.
func (r *Reducer) InProgress() bool {
	return r.inProgress.Load()
}
