// pkg/core/match.go
package core

import "time"

// Recording is the document persisted for a finished match.
type Recording struct {
	Winner    TeamIndex  `json:"winner"`
	Snapshots []Snapshot `json:"snapshots"`
}

// UploadMetadata describes a recording file sent to the web frontend.
type UploadMetadata struct {
	MatchID  string
	Winner   TeamIndex
	Duration time.Duration
	Tag      string
}
