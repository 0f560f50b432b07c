package parser

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	return NewParser(slog.Default())
}

func TestNewParser(t *testing.T) {
	p := NewParser(nil)
	require.NotNil(t, p)
	require.NotNil(t, p.logger)
}

func TestCount_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Count
		wantErr bool
	}{
		{"integer", "32", 32, false},
		{"zero", "0", 0, false},
		{"integral float", "3.0", 3, false},
		{"negative", "-2", -2, false},
		{"null keeps zero", "null", 0, false},
		{"fractional rejects", "10.5", 0, true},
		{"string rejects", `"3"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Count
			err := json.Unmarshal([]byte(tt.input), &c)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, c)
			}
		})
	}
}

func TestParseUpdateState_KeyedTeams(t *testing.T) {
	p := newTestParser()
	payload := `{
		"players": {
			"alpha_1": {
				"name": "alpha", "team": 0, "assists": 1, "boost": 50, "cartouches": 2,
				"demos": 0, "goals": 1, "saves": 3, "score": 250, "shots": 4,
				"speed": 1150, "touches": 9,
				"location": {"X": 2048, "Y": -3000, "Z": 17, "pitch": 0, "roll": 0, "yaw": 16384}
			},
			"bravo_2": {"name": "bravo", "team": 1, "goals": 2.0}
		},
		"game": {
			"time_milliseconds": 299000,
			"isOT": false,
			"teams": {"0": {"score": 1}, "1": {"score": 2}},
			"ball": {"location": {"X": 0, "Y": 0, "Z": 93}, "speed": 1200}
		}
	}`

	state, err := p.ParseUpdateState(json.RawMessage(payload))
	require.NoError(t, err)

	require.Len(t, state.Players, 2)
	alpha := state.Players["alpha_1"]
	assert.Equal(t, "alpha", alpha.Name)
	assert.Equal(t, Count(0), alpha.Team)
	assert.Equal(t, Count(250), alpha.Score)
	assert.Equal(t, 1150.0, alpha.Speed)
	require.NotNil(t, alpha.Location)
	assert.Equal(t, 2048.0, alpha.Location.X)
	assert.Equal(t, -3000.0, alpha.Location.Y)
	assert.Equal(t, 16384.0, alpha.Location.Yaw)

	bravo := state.Players["bravo_2"]
	assert.Equal(t, Count(1), bravo.Team)
	assert.Equal(t, Count(2), bravo.Goals)
	assert.Nil(t, bravo.Location, "absent location must stay nil")

	assert.Equal(t, int64(299000), state.Game.TimeMilliseconds)
	assert.False(t, state.Game.IsOT)
	assert.Equal(t, Count(1), state.Game.Teams[TeamKey1].Score)
	assert.Equal(t, Count(2), state.Game.Teams[TeamKey2].Score)
	assert.Equal(t, 93.0, state.Game.Ball.Location.Z)
	assert.Equal(t, 1200.0, state.Game.Ball.Speed)
}

func TestParseUpdateState_ArrayTeams(t *testing.T) {
	p := newTestParser()
	payload := `{"players": {}, "game": {"teams": [{"name": "BLUE", "score": 3}, {"name": "ORANGE", "score": 1}]}}`

	state, err := p.ParseUpdateState(json.RawMessage(payload))
	require.NoError(t, err)

	assert.Equal(t, "BLUE", state.Game.Teams[TeamKey1].Name)
	assert.Equal(t, Count(3), state.Game.Teams[TeamKey1].Score)
	assert.Equal(t, Count(1), state.Game.Teams[TeamKey2].Score)
}

func TestParseUpdateState_MissingTeam(t *testing.T) {
	p := newTestParser()
	payload := `{"players": {}, "game": {"teams": {"0": {"score": 0}}}}`

	_, err := p.ParseUpdateState(json.RawMessage(payload))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingTeam)
}

func TestParseUpdateState_Invalid(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"not json", "{oops"},
		{"players not a map", `{"players": [1,2,3], "game": {"teams": {"0": {}, "1": {}}}}`},
		{"fractional stat", `{"players": {"a": {"goals": 1.5}}, "game": {"teams": {"0": {}, "1": {}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseUpdateState(json.RawMessage(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestParseGoalScored(t *testing.T) {
	p := newTestParser()
	payload := `{"goalspeed": 98.4, "scorer": {"id": "alpha_1", "name": "alpha", "teamnum": 0}}`

	goal, err := p.ParseGoalScored(json.RawMessage(payload))
	require.NoError(t, err)
	assert.Equal(t, "alpha", goal.Scorer.Name)
	assert.Equal(t, "alpha_1", goal.Scorer.ID)
	assert.Equal(t, Count(0), goal.Scorer.TeamNum)
	assert.InDelta(t, 98.4, goal.GoalSpeed, 1e-9)

	_, err = p.ParseGoalScored(nil)
	assert.Error(t, err)
}
