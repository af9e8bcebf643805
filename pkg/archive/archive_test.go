package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddThenContains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.txt")
	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	assert.False(t, store.Contains("7301234567890"))
	require.NoError(t, store.Add("7301234567890"))
	assert.True(t, store.Contains("7301234567890"))
	assert.Equal(t, 1, store.Len())
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.txt")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Add("aaa"))
	require.NoError(t, store.Add("bbb"))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.True(t, reopened.Contains("aaa"))
	assert.True(t, reopened.Contains("bbb"))
	assert.False(t, reopened.Contains("ccc"))
	assert.Equal(t, 2, reopened.Len())
}

func TestLoadsEngineFormatAndBareLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.txt")
	require.NoError(t, os.WriteFile(path, []byte("tiktok 111\n\n222\ntiktok 333\n"), 0644))

	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	assert.True(t, store.Contains("111"))
	assert.True(t, store.Contains("222"))
	assert.True(t, store.Contains("333"))
	assert.Equal(t, 3, store.Len())
}

func TestDuplicateAddIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.txt")
	store, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, store.Add("dup"))
	require.NoError(t, store.Add("dup"))
	require.NoError(t, store.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tiktok dup\n", string(data), "write-through happens once")
}

func TestConcurrentAdds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.txt")
	store, err := Open(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				id := fmt.Sprintf("id-%d-%d", worker, j)
				assert.NoError(t, store.Add(id))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 200, store.Len())
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 200, reopened.Len(), "every write-through line survives reload")
}

func TestDisabledStore(t *testing.T) {
	store := Disabled()
	require.NoError(t, store.Add("anything"))
	assert.False(t, store.Contains("anything"))
	assert.Equal(t, 0, store.Len())
	assert.NoError(t, store.Close())
}
