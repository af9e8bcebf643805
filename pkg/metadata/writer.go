package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"tokfetch/pkg/models"
)

// Document is the aggregate metadata written once per profile per run,
// keyed by post id.
type Document struct {
	ProfileUsername string                          `json:"profile_username"`
	ExtractionDate  time.Time                       `json:"extraction_date"`
	TotalPosts      int                             `json:"total_posts"`
	Posts           map[string]*models.PostMetadata `json:"posts"`
}

// Writer collects per-item metadata during a run and serializes one JSON
// document per profile at the end. Buffering in memory and writing once
// avoids partial-file corruption from concurrent appends.
type Writer struct {
	mu      sync.Mutex
	root    string
	byUser  map[string]map[string]*models.PostMetadata
	started time.Time
}

// NewWriter creates a metadata writer rooted at the output directory.
func NewWriter(root string) *Writer {
	return &Writer{
		root:    root,
		byUser:  make(map[string]map[string]*models.PostMetadata),
		started: time.Now(),
	}
}

// Append records one item's metadata under its profile. Items without an
// id are dropped since the document is keyed by post id.
func (w *Writer) Append(username string, md *models.PostMetadata) {
	if md == nil || md.ID == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	posts, ok := w.byUser[username]
	if !ok {
		posts = make(map[string]*models.PostMetadata)
		w.byUser[username] = posts
	}
	posts[md.ID] = md
}

// Count returns the number of buffered entries for a profile.
func (w *Writer) Count(username string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.byUser[username])
}

// Flush writes one {username}_metadata.json document per profile that
// collected anything. Each file is written to a temp path first and
// renamed into place.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	usernames := make([]string, 0, len(w.byUser))
	for username := range w.byUser {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)

	for _, username := range usernames {
		posts := w.byUser[username]
		if len(posts) == 0 {
			continue
		}

		doc := Document{
			ProfileUsername: username,
			ExtractionDate:  w.started,
			TotalPosts:      len(posts),
			Posts:           posts,
		}

		dir := filepath.Join(w.root, username)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create metadata directory: %w", err)
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_metadata.json", username))
		if err := writeJSONAtomic(path, &doc); err != nil {
			return fmt.Errorf("failed to write metadata for %s: %w", username, err)
		}
	}
	return nil
}

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
