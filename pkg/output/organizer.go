package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"tokfetch/pkg/classifier"
)

// knownExtensions is the probe list for skip-existing checks: any of these
// next to the expected stem counts as already downloaded.
var knownExtensions = []string{"mp4", "webm", "mkv", "m4a", "mp3", "jpg", "jpeg"}

const maxTitleLen = 50

// Organizer derives destination paths under the output root and creates
// directories on demand. Directory creation is idempotent, so concurrent
// workers targeting the same username race harmlessly.
type Organizer struct {
	root string
}

// NewOrganizer creates the output root and returns an organizer over it.
func NewOrganizer(root string) (*Organizer, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Organizer{root: root}, nil
}

// Root returns the output root directory.
func (o *Organizer) Root() string {
	return o.root
}

// UserDir returns the per-user directory, creating it if needed.
func (o *Organizer) UserDir(username string) (string, error) {
	dir := filepath.Join(o.root, username)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create user directory: %w", err)
	}
	return dir, nil
}

// BucketDir returns the per-user bucket subdirectory used in profile mode,
// creating it if needed.
func (o *Organizer) BucketDir(username string, bucket classifier.Bucket) (string, error) {
	userDir, err := o.UserDir(username)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(userDir, bucket.Dir())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create bucket directory: %w", err)
	}
	return dir, nil
}

// BatchTemplate returns the engine output template for a batch item:
// {root}/{username}/{post_id}.%(ext)s. The extension placeholder is filled
// in by the engine once the container format is known.
func (o *Organizer) BatchTemplate(username, postID string) (string, error) {
	dir, err := o.UserDir(username)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, postID+".%(ext)s"), nil
}

// ProfileTemplate returns the engine output template for a profile item:
// {root}/{username}/{bucket}/{seq:04d}_{title}_[{post_id}].%(ext)s.
func (o *Organizer) ProfileTemplate(username string, bucket classifier.Bucket, seq int, title, postID string) (string, error) {
	dir, err := o.BucketDir(username, bucket)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%04d_%s_[%s].%%(ext)s", seq, SanitizeTitle(title), postID)
	return filepath.Join(dir, name), nil
}

// ImagePath returns the destination for a carousel image fetched directly
// over HTTP (the engine exposes no stream for these).
func (o *Organizer) ImagePath(username string, origin ImageOrigin, seq int, title, postID string) (string, error) {
	if origin == ImageOriginBatch {
		dir, err := o.UserDir(username)
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, postID+".jpg"), nil
	}

	dir, err := o.BucketDir(username, classifier.BucketImage)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%04d_%s_%s.jpg", seq, SanitizeTitle(title), postID)
	return filepath.Join(dir, name), nil
}

// ImageOrigin selects the layout an image destination follows.
type ImageOrigin int

const (
	ImageOriginBatch ImageOrigin = iota
	ImageOriginProfile
)

// ExistingFile probes the flat batch layout for any known extension next
// to {username}/{postID}.
func (o *Organizer) ExistingFile(username, postID string) (string, bool) {
	for _, ext := range knownExtensions {
		path := filepath.Join(o.root, username, fmt.Sprintf("%s.%s", postID, ext))
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// ExistingInBucket scans a profile bucket directory for a file carrying
// the post id marker, regardless of sequence prefix or title.
func (o *Organizer) ExistingInBucket(username string, bucket classifier.Bucket, postID string) (string, bool) {
	dir := filepath.Join(o.root, username, bucket.Dir())
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}

	markers := []string{fmt.Sprintf("[%s].", postID), fmt.Sprintf("_%s.", postID)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		for _, marker := range markers {
			if strings.Contains(entry.Name(), marker) {
				return filepath.Join(dir, entry.Name()), true
			}
		}
	}
	return "", false
}

// SanitizeTitle strips characters illegal in common filesystems and
// truncates overly long titles.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimSpace(b.String())
	// Truncate by runes; a byte slice could split a multi-byte character.
	if runes := []rune(cleaned); len(runes) > maxTitleLen {
		cleaned = strings.TrimSpace(string(runes[:maxTitleLen]))
	}
	if cleaned == "" {
		cleaned = "untitled"
	}
	return cleaned
}
