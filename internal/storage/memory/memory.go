package memory

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rlmatch/recorder/internal/config"
	"github.com/rlmatch/recorder/pkg/core"
)

// Backend buffers a match in memory and exports it as a JSON recording
type Backend struct {
	cfg       config.MemoryConfig
	snapshots []core.Snapshot

	lastExportPath     string
	lastExportMetadata core.UploadMetadata

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// Append buffers a copy of the snapshot
func (b *Backend) Append(s *core.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots = append(b.snapshots, *s)
	return nil
}

// Finalize writes the buffered match as the next numbered recording. The
// buffer is cleared even when the export fails.
func (b *Backend) Finalize(winner core.TeamIndex) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec := core.Recording{Winner: winner, Snapshots: b.snapshots}
	b.snapshots = nil
	if rec.Snapshots == nil {
		rec.Snapshots = []core.Snapshot{}
	}

	path, n, err := b.exportJSON(rec)
	if err != nil {
		return fmt.Errorf("export recording: %w", err)
	}

	var duration time.Duration
	if count := len(rec.Snapshots); count > 0 {
		duration = time.Duration(rec.Snapshots[count-1].TimePassed) * time.Millisecond
	}

	b.lastExportPath = path
	b.lastExportMetadata = core.UploadMetadata{
		MatchID:  strconv.Itoa(n),
		Winner:   winner,
		Duration: duration,
	}
	return nil
}

// Len returns the number of buffered snapshots
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.snapshots)
}

// ExportedFilePath returns the path of the last written recording
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// ExportMetadata returns metadata about the last written recording
func (b *Backend) ExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportMetadata
}
