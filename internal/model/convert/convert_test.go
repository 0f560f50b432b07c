package convert

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlmatch/recorder/internal/model"
	"github.com/rlmatch/recorder/pkg/core"
)

func sampleSnapshot(passed int64, s1, s2 int) core.Snapshot {
	s := core.DefaultSnapshot()
	s.SetClock(core.RegulationLength-passed, false)
	s.Team1.Score = s1
	s.Team2.Score = s2
	s.Team1.Players[0].Name = "amy"
	s.Team1.Players[0].Location = core.Location{X: 0.5, Y: -0.25, Yaw: 0.75}
	s.Ball.Speed = 0.4
	return s
}

func TestSnapshotToModel(t *testing.T) {
	s := sampleSnapshot(61_000, 1, 2)
	s.Invalidated = true

	ms, err := SnapshotToModel("m-1", 4, s)
	require.NoError(t, err)

	assert.Equal(t, "m-1", ms.MatchID)
	assert.Equal(t, 4, ms.Seq)
	assert.Equal(t, int64(239_000), ms.TimeLeft)
	assert.Equal(t, int64(61_000), ms.TimePassed)
	assert.Equal(t, 1, ms.Team1Score)
	assert.Equal(t, 2, ms.Team2Score)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(ms.Data, &doc))
	assert.Contains(t, doc, "team1")
	assert.NotContains(t, doc, "Invalidated")
}

func TestSnapshotToCore(t *testing.T) {
	s := sampleSnapshot(1000, 0, 0)
	ms, err := SnapshotToModel("m-1", 0, s)
	require.NoError(t, err)

	got, err := SnapshotToCore(ms)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSnapshotToCore_BadData(t *testing.T) {
	_, err := SnapshotToCore(model.MatchSnapshot{MatchID: "m", Data: []byte("{")})
	assert.Error(t, err)
}

func TestMatchToModel(t *testing.T) {
	history := []core.Snapshot{sampleSnapshot(1000, 0, 0), sampleSnapshot(300_000, 3, 1)}

	m := MatchToModel("m-2", "league", core.Team1, history)
	assert.Equal(t, "m-2", m.ID)
	assert.Equal(t, "league", m.Tag)
	assert.Equal(t, 0, m.Winner)
	assert.Equal(t, 3, m.Team1Score)
	assert.Equal(t, 1, m.Team2Score)
	assert.Equal(t, int64(300_000), m.DurationMs)
	assert.Equal(t, 2, m.SnapshotCount)

	meta := MatchToMetadata(m)
	assert.Equal(t, "m-2", meta.MatchID)
	assert.Equal(t, core.Team1, meta.Winner)
	assert.Equal(t, 5*time.Minute, meta.Duration)
	assert.Equal(t, "league", meta.Tag)
}

func TestMatchToModel_EmptyHistory(t *testing.T) {
	m := MatchToModel("m-3", "", core.Team2, nil)
	assert.Equal(t, 1, m.Winner)
	assert.Zero(t, m.SnapshotCount)
	assert.Zero(t, m.DurationMs)
}

func TestMatchToRecording(t *testing.T) {
	history := []core.Snapshot{sampleSnapshot(1000, 0, 0), sampleSnapshot(2000, 1, 0)}
	m := MatchToModel("m-4", "", core.Team2, history)
	for i, s := range history {
		ms, err := SnapshotToModel(m.ID, i, s)
		require.NoError(t, err)
		m.Snapshots = append(m.Snapshots, ms)
	}

	rec, err := MatchToRecording(m)
	require.NoError(t, err)
	assert.Equal(t, core.Team2, rec.Winner)
	assert.Equal(t, history, rec.Snapshots)
}
