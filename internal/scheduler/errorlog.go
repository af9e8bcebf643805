package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrorLog is the append-only failure record kept across runs. Each run
// writes a header with its id, then one tab-separated line per failed item
// so a later run (or a human with grep) can replay just the failures.
type ErrorLog struct {
	mu    sync.Mutex
	file  *os.File
	runID string
}

// OpenErrorLog opens (or creates) the error log and stamps a new run header.
func OpenErrorLog(path string) (*ErrorLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create error log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}

	l := &ErrorLog{file: file, runID: uuid.NewString()}
	fmt.Fprintf(file, "# run %s %s\n", l.runID, time.Now().Format(time.RFC3339))
	return l, nil
}

// RunID returns this run's identifier.
func (l *ErrorLog) RunID() string {
	return l.runID
}

// Record appends one failure line: timestamp, source ref, reason.
func (l *ErrorLog) Record(ref string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.file, "%s\t%s\t%s\n", time.Now().Format(time.RFC3339), ref, err)
}

// Close closes the backing file.
func (l *ErrorLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
