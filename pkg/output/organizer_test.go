package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokfetch/pkg/classifier"
)

func newOrganizer(t *testing.T) *Organizer {
	t.Helper()
	o, err := NewOrganizer(filepath.Join(t.TempDir(), "downloads"))
	require.NoError(t, err)
	return o
}

func TestBatchTemplate(t *testing.T) {
	o := newOrganizer(t)

	tmpl, err := o.BatchTemplate("alice", "7301")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(o.Root(), "alice", "7301.%(ext)s"), tmpl)

	// The user directory is created as a side effect.
	info, err := os.Stat(filepath.Join(o.Root(), "alice"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestProfileTemplate(t *testing.T) {
	o := newOrganizer(t)

	tmpl, err := o.ProfileTemplate("bob", classifier.BucketVideo, 7, "My cool: video!", "999")
	require.NoError(t, err)

	assert.Equal(t,
		filepath.Join(o.Root(), "bob", "videos", "0007_My cool video_[999].%(ext)s"),
		tmpl)
}

func TestImagePathLayouts(t *testing.T) {
	o := newOrganizer(t)

	batch, err := o.ImagePath("alice", ImageOriginBatch, 0, "", "123")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(o.Root(), "alice", "123.jpg"), batch)

	profile, err := o.ImagePath("alice", ImageOriginProfile, 12, "slides", "456")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(o.Root(), "alice", "images", "0012_slides_456.jpg"), profile)
}

func TestExistingFileProbe(t *testing.T) {
	o := newOrganizer(t)
	dir, err := o.UserDir("carol")
	require.NoError(t, err)

	_, found := o.ExistingFile("carol", "42")
	assert.False(t, found)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "42.webm"), []byte("x"), 0644))
	path, found := o.ExistingFile("carol", "42")
	assert.True(t, found)
	assert.Equal(t, filepath.Join(dir, "42.webm"), path)
}

func TestExistingInBucket(t *testing.T) {
	o := newOrganizer(t)
	dir, err := o.BucketDir("dave", classifier.BucketVideo)
	require.NoError(t, err)

	_, found := o.ExistingInBucket("dave", classifier.BucketVideo, "555")
	assert.False(t, found)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "0003_title_[555].mp4"), []byte("x"), 0644))
	path, found := o.ExistingInBucket("dave", classifier.BucketVideo, "555")
	assert.True(t, found)
	assert.True(t, strings.HasSuffix(path, "[555].mp4"))

	// Image naming uses an underscore marker instead of brackets.
	imgDir, err := o.BucketDir("dave", classifier.BucketImage)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(imgDir, "0001_slides_777.jpg"), []byte("x"), 0644))
	_, found = o.ExistingInBucket("dave", classifier.BucketImage, "777")
	assert.True(t, found)
}

func TestSanitizeTitle(t *testing.T) {
	assert.Equal(t, "hello world", SanitizeTitle("hello, world!"))
	assert.Equal(t, "ab", SanitizeTitle(`a/b?*<>|:"\`+"\x00"))
	assert.Equal(t, "untitled", SanitizeTitle("///"))
	assert.Equal(t, "untitled", SanitizeTitle(""))

	long := strings.Repeat("a", 120)
	assert.Len(t, SanitizeTitle(long), 50)
}

func TestSanitizeTitleMultiByte(t *testing.T) {
	got := SanitizeTitle(strings.Repeat("あ", 60))
	assert.True(t, utf8.ValidString(got), "truncation must not split runes")
	assert.Equal(t, 50, utf8.RuneCountInString(got))

	short := SanitizeTitle("日本語のタイトル")
	assert.Equal(t, "日本語のタイトル", short)
}
