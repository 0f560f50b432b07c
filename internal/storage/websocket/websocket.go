package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rlmatch/recorder/pkg/core"
	"github.com/rlmatch/recorder/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams each snapshot to a match server as it is appended.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config

	mu      sync.Mutex
	matchID string // empty between matches
	seq     int
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("backend", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.open(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// startMatch opens a match on the server. Caller holds mu.
func (b *Backend) startMatch() error {
	id := uuid.NewString()
	data, err := marshalEnvelope(streaming.TypeStartMatch, streaming.StartMatchPayload{MatchID: id})
	if err != nil {
		return err
	}
	if err := b.conn.sendAndWait(data, streaming.TypeStartMatch, ackTimeout); err != nil {
		return err
	}
	b.conn.setReplay(data)
	b.matchID = id
	b.seq = 0
	return nil
}

// Append streams one snapshot, opening the match on first use.
func (b *Backend) Append(s *core.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.matchID == "" {
		if err := b.startMatch(); err != nil {
			return err
		}
	}

	data, err := marshalEnvelope(streaming.TypeSnapshot, streaming.SnapshotPayload{
		MatchID:  b.matchID,
		Seq:      b.seq,
		Snapshot: s,
	})
	if err != nil {
		b.abandon()
		return err
	}
	if !b.conn.send(data) {
		err := fmt.Errorf("snapshot %d of match %s dropped", b.seq, b.matchID)
		b.abandon()
		return err
	}
	b.seq++
	return nil
}

// abandon forgets the open match so the next Append starts a new one.
// Caller holds mu.
func (b *Backend) abandon() {
	b.matchID = ""
	b.seq = 0
	b.conn.setReplay(nil)
}

// Finalize closes the match and waits for the server to acknowledge it.
func (b *Backend) Finalize(winner core.TeamIndex) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.matchID == "" {
		if err := b.startMatch(); err != nil {
			return err
		}
	}

	data, err := marshalEnvelope(streaming.TypeEndMatch, streaming.EndMatchPayload{
		MatchID: b.matchID,
		Winner:  winner,
	})
	b.abandon()
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, streaming.TypeEndMatch, ackTimeout)
}
