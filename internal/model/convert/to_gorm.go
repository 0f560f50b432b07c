// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/rlmatch/recorder/internal/model"
	"github.com/rlmatch/recorder/pkg/core"
)

// SnapshotToModel renders s as the seq-th history entry of a match.
func SnapshotToModel(matchID string, seq int, s core.Snapshot) (model.MatchSnapshot, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return model.MatchSnapshot{}, fmt.Errorf("render snapshot %d: %w", seq, err)
	}
	return model.MatchSnapshot{
		MatchID:    matchID,
		Seq:        seq,
		TimeLeft:   s.TimeLeft,
		TimePassed: s.TimePassed,
		Team1Score: s.Team1.Score,
		Team2Score: s.Team2.Score,
		Data:       datatypes.JSON(data),
	}, nil
}

// MatchToModel builds the match row from its history. The final entry
// supplies the score line and duration.
func MatchToModel(matchID, tag string, winner core.TeamIndex, history []core.Snapshot) model.Match {
	m := model.Match{
		ID:            matchID,
		Tag:           tag,
		Winner:        int(winner),
		SnapshotCount: len(history),
	}
	if len(history) > 0 {
		last := history[len(history)-1]
		m.Team1Score = last.Team1.Score
		m.Team2Score = last.Team2.Score
		m.DurationMs = last.TimePassed
	}
	return m
}

// MatchToMetadata describes a stored match for upload.
func MatchToMetadata(m model.Match) core.UploadMetadata {
	return core.UploadMetadata{
		MatchID:  m.ID,
		Winner:   core.TeamIndex(m.Winner),
		Duration: time.Duration(m.DurationMs) * time.Millisecond,
		Tag:      m.Tag,
	}
}
