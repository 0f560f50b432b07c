package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// UpdateState is the payload of game:update_state.
type UpdateState struct {
	Players map[string]PlayerRecord `json:"players"`
	Game    GameRecord              `json:"game"`
}

// PlayerRecord is one player's per-tick telemetry, keyed by identifier
// in UpdateState.Players.
type PlayerRecord struct {
	Name       string       `json:"name"`
	Team       Count        `json:"team"`
	Assists    Count        `json:"assists"`
	Boost      float64      `json:"boost"`
	Cartouches Count        `json:"cartouches"`
	Demos      Count        `json:"demos"`
	Goals      Count        `json:"goals"`
	Saves      Count        `json:"saves"`
	Score      Count        `json:"score"`
	Shots      Count        `json:"shots"`
	Speed      float64      `json:"speed"`
	Touches    Count        `json:"touches"`
	Location   *RawLocation `json:"location"`
}

// RawLocation is a car position and rotator in raw game units.
// The relay sends upper-case X/Y/Z; decoding is case-insensitive.
type RawLocation struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// GameRecord carries the clock, teams and ball of a tick.
type GameRecord struct {
	TimeMilliseconds int64       `json:"time_milliseconds"`
	IsOT             bool        `json:"isOT"`
	Teams            TeamRecords `json:"teams"`
	Ball             BallRecord  `json:"ball"`
}

// TeamRecord is one team's entry in GameRecord.Teams.
type TeamRecord struct {
	Name  string `json:"name"`
	Score Count  `json:"score"`
}

// BallRecord is the ball in raw game units.
type BallRecord struct {
	Location RawBallLocation `json:"location"`
	Speed    float64         `json:"speed"`
}

// RawBallLocation is a ball position in raw game units.
type RawBallLocation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// GoalScored is the payload of game:goal_scored.
type GoalScored struct {
	GoalSpeed float64    `json:"goalspeed"`
	Scorer    ScorerInfo `json:"scorer"`
}

// ScorerInfo identifies the player credited with a goal.
type ScorerInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	TeamNum Count  `json:"teamnum"`
}

// TeamRecords holds teams keyed "0" and "1". The relay may send them as
// an object keyed by index or as a two-element array.
type TeamRecords map[string]TeamRecord

// UnmarshalJSON accepts both the keyed and the array form.
func (t *TeamRecords) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []TeamRecord
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		out := make(TeamRecords, len(list))
		for i, rec := range list {
			out[strconv.Itoa(i)] = rec
		}
		*t = out
		return nil
	}

	var keyed map[string]TeamRecord
	if err := json.Unmarshal(trimmed, &keyed); err != nil {
		return err
	}
	*t = keyed
	return nil
}

// Count is an integer stat that the relay may serialize as a float
// ("3" or "3.0").
type Count int

// UnmarshalJSON accepts integral floats and rejects fractional values.
func (c *Count) UnmarshalJSON(data []byte) error {
	s := string(bytes.TrimSpace(data))
	if s == "null" {
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*c = Count(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("count: %q is not a number", s)
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("count: %q is not a whole number", s)
	}
	*c = Count(f)
	return nil
}
