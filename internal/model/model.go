package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&Match{},
	&MatchSnapshot{},
}

// Match is one concluded match
type Match struct {
	ID            string          `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt     time.Time       `json:"createdAt" gorm:"autoCreateTime"`
	Tag           string          `json:"tag" gorm:"size:127;index"`
	Winner        int             `json:"winner"`
	Team1Score    int             `json:"team1Score"`
	Team2Score    int             `json:"team2Score"`
	DurationMs    int64           `json:"durationMs"`
	SnapshotCount int             `json:"snapshotCount"`
	Snapshots     []MatchSnapshot `json:"snapshots,omitempty" gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE"`
}

func (*Match) TableName() string {
	return "matches"
}

// MatchSnapshot is one history entry of a match. Data holds the full
// rendered snapshot; the clock and scores are copied out for querying.
type MatchSnapshot struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement"`
	MatchID    string         `json:"matchId" gorm:"size:36;index:idx_match_seq,priority:1"`
	Seq        int            `json:"seq" gorm:"index:idx_match_seq,priority:2"`
	TimeLeft   int64          `json:"timeLeft"`
	TimePassed int64          `json:"timePassed"`
	Team1Score int            `json:"team1Score"`
	Team2Score int            `json:"team2Score"`
	Data       datatypes.JSON `json:"data"`
}

func (*MatchSnapshot) TableName() string {
	return "match_snapshots"
}
