// pkg/core/snapshot.go
package core

// Unassigned marks a roster slot that no player identifier has claimed yet.
const Unassigned = "unassigned"

// Roster shape of a match. The slot table never grows past SlotsPerTeam.
const (
	SlotsPerTeam = 3
	RosterSize   = 2 * SlotsPerTeam
)

// RegulationLength is the length of a match without overtime, in milliseconds.
const RegulationLength int64 = 300_000

// Normalization maxima for raw telemetry units.
const (
	ArenaMaxX    = 4096.0
	ArenaMaxY    = 6000.0 // includes goal depth
	ArenaMaxZ    = 2044.0
	AngleMax     = 32768.0 // signed 16-bit rotator range
	BoostMax     = 100.0
	CarSpeedMax  = 2300.0
	BallSpeedMax = 6000.0
)

// TeamIndex identifies a team the way the relay does: 0 or 1.
type TeamIndex int

const (
	Team1 TeamIndex = 0
	Team2 TeamIndex = 1
)

// Location is a normalized car position and orientation.
type Location struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
	Yaw   float64 `json:"yaw"`
}

// Mirror flips a team 2 location into team 1's attacking direction.
// Yaw is rotated by half a turn and kept in [-1, 1].
func (l *Location) Mirror() {
	l.X = -l.X
	l.Y = -l.Y
	l.Yaw += 1.0
	if l.Yaw > 1.0 {
		l.Yaw -= 2.0
	}
}

// BallLocation is a normalized ball position.
type BallLocation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Ball is the shared ball state, always in team 1's frame.
type Ball struct {
	Location BallLocation `json:"location"`
	Speed    float64      `json:"speed"`
}

// PlayerSlot holds one roster position. Name stays Unassigned until a
// player identifier claims the slot, then is stable until reset.
type PlayerSlot struct {
	Name       string   `json:"name"`
	Assists    int      `json:"assists"`
	Boost      float64  `json:"boost"`
	Cartouches int      `json:"cartouches"`
	Demos      int      `json:"demos"`
	Goals      int      `json:"goals"`
	Saves      int      `json:"saves"`
	Score      int      `json:"score"`
	Shots      int      `json:"shots"`
	Speed      float64  `json:"speed"`
	Touches    int      `json:"touches"`
	Location   Location `json:"location"`
}

// TeamState is a team's score and its fixed-size slot table.
type TeamState struct {
	Score   int                      `json:"score"`
	Players [SlotsPerTeam]PlayerSlot `json:"players"`
}

// Slot returns the index of the slot bound to name, or -1.
func (t *TeamState) Slot(name string) int {
	for i := range t.Players {
		if t.Players[i].Name == name {
			return i
		}
	}
	return -1
}

// Claim binds name to the first unassigned slot and returns its index,
// or -1 when every slot is taken.
func (t *TeamState) Claim(name string) int {
	for i := range t.Players {
		if t.Players[i].Name == Unassigned {
			t.Players[i].Name = name
			return i
		}
	}
	return -1
}

// Snapshot is the canonical cached state of a match.
// Invalidated is never rendered.
type Snapshot struct {
	TimeLeft    int64     `json:"timeLeft"`
	TimePassed  int64     `json:"timePassed"`
	Ball        Ball      `json:"ball"`
	Team1       TeamState `json:"team1"`
	Team2       TeamState `json:"team2"`
	Invalidated bool      `json:"-"`
}

// DefaultSnapshot returns the state of a freshly initialized match.
func DefaultSnapshot() Snapshot {
	s := Snapshot{TimeLeft: RegulationLength}
	for i := 0; i < SlotsPerTeam; i++ {
		s.Team1.Players[i].Name = Unassigned
		s.Team2.Players[i].Name = Unassigned
	}
	return s
}

// Team returns the state of the given team.
func (s *Snapshot) Team(idx TeamIndex) *TeamState {
	if idx == Team1 {
		return &s.Team1
	}
	return &s.Team2
}

// SetClock derives both clock views from the relay's clock reading.
// Outside overtime the relay counts down; in overtime it counts up.
func (s *Snapshot) SetClock(timeMillis int64, overtime bool) {
	if overtime {
		s.TimeLeft = 0
		s.TimePassed = RegulationLength + timeMillis
		return
	}
	s.TimeLeft = timeMillis
	s.TimePassed = RegulationLength - timeMillis
}
