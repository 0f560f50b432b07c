// internal/storage/storage_test.go
package storage_test

import (
	"testing"
	"time"

	"github.com/rlmatch/recorder/internal/storage"
	"github.com/rlmatch/recorder/pkg/core"
	"github.com/stretchr/testify/assert"
)

type fileBackend struct {
	path string
}

func (f *fileBackend) ExportedFilePath() string { return f.path }

func (f *fileBackend) ExportMetadata() core.UploadMetadata {
	return core.UploadMetadata{MatchID: "1", Winner: core.Team2, Duration: 5 * time.Minute, Tag: "scrim"}
}

func TestUploadableContract(t *testing.T) {
	var u storage.Uploadable = &fileBackend{path: "recordings/1.json"}

	meta := u.ExportMetadata()
	assert.Equal(t, "recordings/1.json", u.ExportedFilePath())
	assert.Equal(t, "1", meta.MatchID)
	assert.Equal(t, core.Team2, meta.Winner)
	assert.Equal(t, 5*time.Minute, meta.Duration)
	assert.Equal(t, "scrim", meta.Tag)
}
