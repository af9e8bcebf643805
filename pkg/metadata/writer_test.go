package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokfetch/pkg/models"
)

func TestAppendAndFlush(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root)

	w.Append("alice", &models.PostMetadata{ID: "1", Title: "first", PostType: "video"})
	w.Append("alice", &models.PostMetadata{ID: "2", Title: "second", PostType: "images"})
	w.Append("alice", nil)
	w.Append("alice", &models.PostMetadata{Title: "no id"})
	assert.Equal(t, 2, w.Count("alice"))

	require.NoError(t, w.Flush())

	data, err := os.ReadFile(filepath.Join(root, "alice", "alice_metadata.json"))
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "alice", doc.ProfileUsername)
	assert.Equal(t, 2, doc.TotalPosts)
	require.Contains(t, doc.Posts, "1")
	require.Contains(t, doc.Posts, "2")
	assert.Equal(t, "first", doc.Posts["1"].Title)
	assert.False(t, doc.ExtractionDate.IsZero())
}

func TestAppendOverwritesSameID(t *testing.T) {
	w := NewWriter(t.TempDir())
	w.Append("bob", &models.PostMetadata{ID: "9", Title: "old"})
	w.Append("bob", &models.PostMetadata{ID: "9", Title: "new"})
	assert.Equal(t, 1, w.Count("bob"))
}

func TestFlushSkipsEmptyProfiles(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root)
	require.NoError(t, w.Flush())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConcurrentAppend(t *testing.T) {
	w := NewWriter(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := string(rune('a'+n)) + "-" + string(rune('0'+j%10))
				w.Append("carol", &models.PostMetadata{ID: id})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 40, w.Count("carol"), "4 workers × 10 distinct ids")
	require.NoError(t, w.Flush())
}
