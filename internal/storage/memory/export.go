package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/rlmatch/recorder/pkg/core"
)

const (
	extJSON   = ".json"
	extGzJSON = ".json.gz"
)

// recordingNumber parses "<n>.json" or "<n>.json.gz" into n.
func recordingNumber(name string) (int, bool) {
	base, ok := strings.CutSuffix(name, extGzJSON)
	if !ok {
		base, ok = strings.CutSuffix(name, extJSON)
	}
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(base)
	if err != nil || n < 1 || strconv.Itoa(n) != base {
		return 0, false
	}
	return n, true
}

// nextRecordingNumber returns one past the highest recording number in
// dir, or 1 when there is none. Compressed and plain recordings share
// one sequence.
func nextRecordingNumber(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list output directory: %w", err)
	}
	numbers := lo.FilterMap(entries, func(e os.DirEntry, _ int) (int, bool) {
		if e.IsDir() {
			return 0, false
		}
		return recordingNumber(e.Name())
	})
	return lo.Max(numbers) + 1, nil
}

// exportJSON writes rec to the next numbered file in the output directory.
func (b *Backend) exportJSON(rec core.Recording) (string, int, error) {
	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	n, err := nextRecordingNumber(b.cfg.OutputDir)
	if err != nil {
		return "", 0, err
	}

	ext := extJSON
	if b.cfg.CompressOutput {
		ext = extGzJSON
	}
	outputPath := filepath.Join(b.cfg.OutputDir, strconv.Itoa(n)+ext)

	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, rec)
	} else {
		err = writeJSON(outputPath, rec)
	}
	if err != nil {
		return "", 0, err
	}
	return outputPath, n, nil
}

func writeJSON(path string, data core.Recording) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data core.Recording) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
