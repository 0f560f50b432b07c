// Package parser decodes relay event payloads into typed records.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrMissingTeam is returned when a tick lacks one of the two team entries.
var ErrMissingTeam = errors.New("missing team entry")

// Team keys used by the relay.
const (
	TeamKey1 = "0"
	TeamKey2 = "1"
)

// Service defines the interface for payload parsing.
type Service interface {
	ParseUpdateState(data json.RawMessage) (UpdateState, error)
	ParseGoalScored(data json.RawMessage) (GoalScored, error)
}

// Parser decodes relay payloads.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new Parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseUpdateState decodes a game:update_state payload. Both team
// entries must be present; roster size is not checked here.
func (p *Parser) ParseUpdateState(data json.RawMessage) (UpdateState, error) {
	var state UpdateState
	if len(data) == 0 {
		return state, fmt.Errorf("parse update_state: empty payload")
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("parse update_state: %w", err)
	}
	for _, key := range []string{TeamKey1, TeamKey2} {
		if _, ok := state.Game.Teams[key]; !ok {
			return state, fmt.Errorf("parse update_state: team %q: %w", key, ErrMissingTeam)
		}
	}
	p.logger.Debug("parsed update_state", "players", len(state.Players), "time", state.Game.TimeMilliseconds)
	return state, nil
}

// ParseGoalScored decodes a game:goal_scored payload.
func (p *Parser) ParseGoalScored(data json.RawMessage) (GoalScored, error) {
	var goal GoalScored
	if len(data) == 0 {
		return goal, fmt.Errorf("parse goal_scored: empty payload")
	}
	if err := json.Unmarshal(data, &goal); err != nil {
		return goal, fmt.Errorf("parse goal_scored: %w", err)
	}
	return goal, nil
}
