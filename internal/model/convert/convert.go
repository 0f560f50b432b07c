package convert

import (
	"encoding/json"
	"fmt"

	"github.com/rlmatch/recorder/internal/model"
	"github.com/rlmatch/recorder/pkg/core"
)

// SnapshotToCore decodes a stored history entry.
func SnapshotToCore(ms model.MatchSnapshot) (core.Snapshot, error) {
	var s core.Snapshot
	if err := json.Unmarshal(ms.Data, &s); err != nil {
		return s, fmt.Errorf("decode snapshot %d of match %s: %w", ms.Seq, ms.MatchID, err)
	}
	return s, nil
}

// MatchToRecording rebuilds the recording document from a stored match
// with its snapshots loaded in sequence order.
func MatchToRecording(m model.Match) (core.Recording, error) {
	rec := core.Recording{
		Winner:    core.TeamIndex(m.Winner),
		Snapshots: make([]core.Snapshot, 0, len(m.Snapshots)),
	}
	for _, ms := range m.Snapshots {
		s, err := SnapshotToCore(ms)
		if err != nil {
			return rec, err
		}
		rec.Snapshots = append(rec.Snapshots, s)
	}
	return rec, nil
}
