package reducer

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/rlmatch/recorder/internal/parser"
	"github.com/rlmatch/recorder/pkg/core"
)

// timeStepMillis is the spacing of periodic history entries.
const timeStepMillis int64 = 1000

// Session is the state of one match, from game:initialized until the
// next initialization replaces it.
type Session struct {
	ID         string
	StartedAt  time.Time
	Snapshot   core.Snapshot
	History    []core.Snapshot
	TimeStep   int64
	InProgress bool
}

// NewSession returns a session for a freshly initialized match.
func NewSession() *Session {
	return &Session{
		ID:         uuid.NewString(),
		StartedAt:  time.Now(),
		Snapshot:   core.DefaultSnapshot(),
		InProgress: true,
	}
}

// idleSession is the state before the first initialization. Ticks are
// ignored until a match starts.
func idleSession() *Session {
	return &Session{Snapshot: core.DefaultSnapshot()}
}

// TickResult reports what a tick did to the session.
type TickResult struct {
	Applied      bool
	ScoreUpdated bool
	Recorded     bool
	Rejected     []string // identifiers that found no free slot
}

// Apply merges one update_state tick into the snapshot. Ticks without
// exactly RosterSize players are skipped without mutation.
//
// Players are visited in sorted identifier order, not payload order, so a
// player seen for the first time claims the lowest free slot of its team
// in that order. A claimed slot stays with its player for the match.
func (s *Session) Apply(tick parser.UpdateState) TickResult {
	var res TickResult
	if len(tick.Players) != core.RosterSize {
		return res
	}
	res.Applied = true

	snap := &s.Snapshot
	snap.SetClock(tick.Game.TimeMilliseconds, tick.Game.IsOT)

	score1 := int(tick.Game.Teams[parser.TeamKey1].Score)
	score2 := int(tick.Game.Teams[parser.TeamKey2].Score)
	res.ScoreUpdated = score1 != snap.Team1.Score || score2 != snap.Team2.Score
	snap.Team1.Score = score1
	snap.Team2.Score = score2

	snap.Ball = normalizeBall(tick.Game.Ball)

	// Sorted so that first-time slot claims do not depend on map order.
	for _, id := range slices.Sorted(maps.Keys(tick.Players)) {
		rec := tick.Players[id]
		idx := teamOf(rec)
		team := snap.Team(idx)

		slot := team.Slot(id)
		if slot < 0 {
			slot = team.Claim(id)
		}
		if slot < 0 {
			snap.Invalidated = true
			res.Rejected = append(res.Rejected, id)
			continue
		}

		player := &team.Players[slot]
		applyStats(player, rec)
		if rec.Location != nil {
			player.Location = normalizeLocation(*rec.Location)
			if idx == core.Team2 {
				player.Location.Mirror()
			}
		}
	}

	advanced := snap.TimePassed/timeStepMillis > s.TimeStep
	if res.ScoreUpdated || advanced {
		s.History = append(s.History, *snap)
		res.Recorded = true
	}
	if advanced {
		s.TimeStep++
	}

	return res
}

// Conclude ends the match when the clock has run out on a decisive
// score and returns the winner. It reports false when the match goes on.
func (s *Session) Conclude() (core.TeamIndex, bool) {
	snap := &s.Snapshot
	if !s.InProgress || snap.TimeLeft != 0 || snap.Team1.Score == snap.Team2.Score {
		return 0, false
	}
	s.InProgress = false
	return lo.Ternary(snap.Team1.Score > snap.Team2.Score, core.Team1, core.Team2), true
}
