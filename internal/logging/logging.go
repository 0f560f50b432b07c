package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// sessionLayout stamps the session start into log file names.
const sessionLayout = "20060102_150405"

// OpenSessionLog creates dir if needed and opens the log file for a
// recorder session started at start. A file left by a session with the
// same start second is kept as <name>.old.
func OpenSessionLog(dir, appName string, start time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	path := filepath.Join(dir, appName+"."+start.Format(sessionLayout)+".log")
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, fmt.Errorf("rotate %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
