package reducer

import (
	"github.com/rlmatch/recorder/internal/parser"
	"github.com/rlmatch/recorder/pkg/core"
)

func normalizeLocation(raw parser.RawLocation) core.Location {
	return core.Location{
		X:     raw.X / core.ArenaMaxX,
		Y:     raw.Y / core.ArenaMaxY,
		Z:     raw.Z / core.ArenaMaxZ,
		Pitch: raw.Pitch / core.AngleMax,
		Roll:  raw.Roll / core.AngleMax,
		Yaw:   raw.Yaw / core.AngleMax,
	}
}

// normalizeBall keeps the ball in team 1's frame; it is never mirrored.
func normalizeBall(raw parser.BallRecord) core.Ball {
	return core.Ball{
		Location: core.BallLocation{
			X: raw.Location.X / core.ArenaMaxX,
			Y: raw.Location.Y / core.ArenaMaxY,
			Z: raw.Location.Z / core.ArenaMaxZ,
		},
		Speed: raw.Speed / core.BallSpeedMax,
	}
}

func applyStats(slot *core.PlayerSlot, rec parser.PlayerRecord) {
	slot.Assists = int(rec.Assists)
	slot.Boost = rec.Boost / core.BoostMax
	slot.Cartouches = int(rec.Cartouches)
	slot.Demos = int(rec.Demos)
	slot.Goals = int(rec.Goals)
	slot.Saves = int(rec.Saves)
	slot.Score = int(rec.Score)
	slot.Shots = int(rec.Shots)
	slot.Speed = rec.Speed / core.CarSpeedMax
	slot.Touches = int(rec.Touches)
}

func teamOf(rec parser.PlayerRecord) core.TeamIndex {
	if rec.Team == 0 {
		return core.Team1
	}
	return core.Team2
}
