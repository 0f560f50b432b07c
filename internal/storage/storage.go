// internal/storage/storage.go
package storage

import "github.com/rlmatch/recorder/pkg/core"

// Backend is the interface all storage implementations must satisfy.
// A match's snapshots are appended in order and then finalized with the
// winner. Backends are only called for matches that ended decisively
// with a valid stream. A failed Append or Finalize abandons the match:
// the backend drops its per-match state so the next match starts clean.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Recording
	Append(s *core.Snapshot) error
	Finalize(winner core.TeamIndex) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the web frontend.
type Uploadable interface {
	ExportedFilePath() string
	ExportMetadata() core.UploadMetadata
}
