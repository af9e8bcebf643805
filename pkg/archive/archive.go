package archive

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// linePrefix tags archive entries with the platform, matching the
// download-archive format the extraction engine itself writes.
const linePrefix = "tiktok "

// Store is the durable set of completed post identifiers. Membership is
// monotonic for the lifetime of a run: entries are only ever added.
type Store interface {
	// Contains reports whether id has already been completed.
	Contains(id string) bool
	// Add records id as completed, both in memory and on disk.
	Add(id string) error
	// Len returns the number of known identifiers.
	Len() int
	// Close releases the backing file.
	Close() error
}

// FileStore backs the archive with a single text file, one identifier per
// line. The whole file is loaded into a set at open time; Add writes
// through immediately so a crash loses at most the in-flight item.
type FileStore struct {
	mu   sync.Mutex
	ids  map[string]struct{}
	file *os.File
}

// Open loads the archive at path, creating it (and parent directories)
// when absent.
func Open(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file: %w", err)
	}

	ids := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// Accept both "tiktok <id>" and bare-id lines.
		line = strings.TrimPrefix(line, linePrefix)
		ids[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read archive file: %w", err)
	}

	// Position at the end for appends.
	if _, err := file.Seek(0, 2); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek archive file: %w", err)
	}

	return &FileStore{ids: ids, file: file}, nil
}

// Contains reports membership from the in-memory set.
func (s *FileStore) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// Add records id and appends it to the backing file. Adding an id twice is
// a no-op; the write-through happens only for new entries.
func (s *FileStore) Add(id string) error {
	if id == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return nil
	}

	if _, err := fmt.Fprintf(s.file, "%s%s\n", linePrefix, id); err != nil {
		return fmt.Errorf("failed to append archive entry: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("failed to flush archive file: %w", err)
	}

	s.ids[id] = struct{}{}
	return nil
}

// Len returns the number of identifiers loaded plus added.
func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Close closes the backing file.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// disabledStore is the no-op store used when archive tracking is off.
type disabledStore struct{}

func (disabledStore) Contains(string) bool { return false }
func (disabledStore) Add(string) error     { return nil }
func (disabledStore) Len() int             { return 0 }
func (disabledStore) Close() error         { return nil }

// Disabled returns a store that never matches and never records.
func Disabled() Store {
	return disabledStore{}
}
