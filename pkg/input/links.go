package input

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	errs "tokfetch/pkg/errors"
	"tokfetch/pkg/models"
)

// ReadLinksFile parses a links file into work items. The format is the one
// the browser harvesting script produces: one fully-qualified URL per
// line. Blank lines and lines without an http(s) scheme are ignored.
// Sequence indices follow file order.
func ReadLinksFile(path string) ([]models.WorkItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open links file: %w", err)
	}
	defer file.Close()

	var items []models.WorkItem
	scanner := bufio.NewScanner(file)
	seq := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "http") {
			continue
		}
		items = append(items, models.WorkItem{
			SourceRef:     line,
			Origin:        models.OriginBatchLink,
			SequenceIndex: seq,
		})
		seq++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read links file: %w", err)
	}
	return items, nil
}

// DeriveItem extracts the owner username and post id from a post URL of
// the form https://host/@user/video/1234 (query string ignored). A URL
// that does not fit the shape is a malformed, terminal error.
func DeriveItem(rawURL string) (username, postID string, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", "", errs.Wrap(errs.KindMalformed, rawURL, fmt.Errorf("not a valid URL"))
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 || !strings.HasPrefix(parts[0], "@") {
		return "", "", errs.Wrap(errs.KindMalformed, rawURL, fmt.Errorf("unrecognized post path %q", u.Path))
	}

	username = strings.TrimPrefix(parts[0], "@")
	postID = parts[len(parts)-1]
	if username == "" || postID == "" {
		return "", "", errs.Wrap(errs.KindMalformed, rawURL, fmt.Errorf("missing username or post id"))
	}
	return username, postID, nil
}

// SanitizeUsername strips the @ prefix and surrounding whitespace.
func SanitizeUsername(username string) (string, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(username), "@")
	if cleaned == "" {
		return "", fmt.Errorf("username cannot be empty")
	}
	return cleaned, nil
}
