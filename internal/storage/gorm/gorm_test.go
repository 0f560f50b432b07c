package gormstorage

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rlmatch/recorder/internal/database"
	"github.com/rlmatch/recorder/internal/model"
	"github.com/rlmatch/recorder/internal/storage"
	"github.com/rlmatch/recorder/pkg/core"
)

// Compile-time interface check
var _ storage.Backend = (*Backend)(nil)

func newTestBackend(t *testing.T, tag string) (*Backend, *gorm.DB) {
	t.Helper()
	db, err := database.OpenSqlite("", zerolog.Nop())
	require.NoError(t, err)

	b := New(Dependencies{DB: db, Logger: zerolog.Nop(), Tag: tag})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b, db
}

func snapshotAt(passed int64, s1, s2 int) core.Snapshot {
	s := core.DefaultSnapshot()
	s.SetClock(core.RegulationLength-passed, false)
	s.Team1.Score = s1
	s.Team2.Score = s2
	return s
}

func TestInit_NoDB(t *testing.T) {
	b := New(Dependencies{Logger: zerolog.Nop()})
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestAppendBuffersUntilFinalize(t *testing.T) {
	b, db := newTestBackend(t, "")

	s := snapshotAt(1000, 0, 0)
	require.NoError(t, b.Append(&s))
	assert.Equal(t, 1, b.pending.Len())

	var count int64
	require.NoError(t, db.Model(&model.MatchSnapshot{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFinalizeStoresMatch(t *testing.T) {
	b, db := newTestBackend(t, "league")

	history := []core.Snapshot{
		snapshotAt(1000, 0, 0),
		snapshotAt(2000, 0, 1),
		snapshotAt(300_000, 2, 1),
	}
	for i := range history {
		require.NoError(t, b.Append(&history[i]))
	}
	require.NoError(t, b.Finalize(core.Team1))
	assert.Zero(t, b.pending.Len())

	last := b.LastMatch()
	require.NotEmpty(t, last.ID)

	var stored model.Match
	require.NoError(t, db.First(&stored, "id = ?", last.ID).Error)
	assert.Equal(t, "league", stored.Tag)
	assert.Equal(t, int(core.Team1), stored.Winner)
	assert.Equal(t, 2, stored.Team1Score)
	assert.Equal(t, 1, stored.Team2Score)
	assert.Equal(t, int64(300_000), stored.DurationMs)
	assert.Equal(t, 3, stored.SnapshotCount)

	var rows []model.MatchSnapshot
	require.NoError(t, db.Where("match_id = ?", last.ID).Order("seq").Find(&rows).Error)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(2000), rows[1].TimePassed)
	assert.Equal(t, 1, rows[1].Team2Score)

	rec, err := b.LoadRecording(last.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Team1, rec.Winner)
	assert.Equal(t, history, rec.Snapshots)
}

func TestFinalizeSeparatesMatches(t *testing.T) {
	b, db := newTestBackend(t, "")

	s := snapshotAt(1000, 1, 0)
	require.NoError(t, b.Append(&s))
	require.NoError(t, b.Finalize(core.Team1))
	first := b.LastMatch().ID

	require.NoError(t, b.Finalize(core.Team2))
	second := b.LastMatch().ID
	assert.NotEqual(t, first, second)

	var matches int64
	require.NoError(t, db.Model(&model.Match{}).Count(&matches).Error)
	assert.Equal(t, int64(2), matches)

	rec, err := b.LoadRecording(second)
	require.NoError(t, err)
	assert.Equal(t, core.Team2, rec.Winner)
	assert.Empty(t, rec.Snapshots)
}

func TestLoadRecording_Unknown(t *testing.T) {
	b, _ := newTestBackend(t, "")
	_, err := b.LoadRecording("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListMatches(t *testing.T) {
	b, _ := newTestBackend(t, "")

	for _, winner := range []core.TeamIndex{core.Team1, core.Team2} {
		s := snapshotAt(1000, 1, 0)
		require.NoError(t, b.Append(&s))
		require.NoError(t, b.Finalize(winner))
	}

	all, err := b.ListMatches(10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, m := range all {
		assert.Empty(t, m.Snapshots)
	}

	one, err := b.ListMatches(1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}
