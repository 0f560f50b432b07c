package streaming

import (
	"encoding/json"

	"github.com/rlmatch/recorder/pkg/core"
)

// Relay channel and event names.
const (
	ChannelLocal   = "local"
	ChannelWS      = "ws"
	ChannelGame    = "game"
	ChannelWSRelay = "wsRelay"

	EventRegister = "register"
	EventOpen     = "open"
	EventClose    = "close"
	EventError    = "error"

	EventInitialized         = "initialized"
	EventUpdateState         = "update_state"
	EventClockStopped        = "clock_stopped"
	EventGoalScored          = "goal_scored"
	EventClockUpdatedSeconds = "clock_updated_seconds"
)

// Separator joins channel and event into the relay's compound key.
const Separator = ":"

// RelayEnvelope is the frame exchanged with the game-state relay.
// Event has the form "channel:name".
type RelayEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Message type constants of the match streaming protocol.
const (
	TypeStartMatch = "start_match"
	TypeSnapshot   = "snapshot"
	TypeEndMatch   = "end_match"
)

// Envelope wraps all messages streamed to a remote recorder.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartMatchPayload opens a streamed match.
type StartMatchPayload struct {
	MatchID string `json:"matchId"`
}

// SnapshotPayload carries one rendered snapshot of a streamed match.
type SnapshotPayload struct {
	MatchID  string         `json:"matchId"`
	Seq      int            `json:"seq"`
	Snapshot *core.Snapshot `json:"snapshot"`
}

// EndMatchPayload closes a streamed match.
type EndMatchPayload struct {
	MatchID string         `json:"matchId"`
	Winner  core.TeamIndex `json:"winner"`
}
