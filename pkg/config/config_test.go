package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "video-only", cfg.ContentType)
	assert.False(t, cfg.Watermark)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.Delay)
	assert.Equal(t, "downloads", cfg.Output.BaseDirectory)
	assert.Equal(t, 2, cfg.Download.Workers)
	assert.Equal(t, 3, cfg.Download.MaxAttempts)
	assert.Equal(t, 10*time.Minute, cfg.Download.ExtractorTimeout)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
content_type: all
watermark: true
rate_limit:
  delay: 5s
  throttle_rate: 500K
output:
  base_directory: /tmp/tok
download:
  workers: 4
  save_metadata: true
logging:
  level: debug
`), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "all", cfg.ContentType)
	assert.True(t, cfg.Watermark)
	assert.Equal(t, 5*time.Second, cfg.RateLimit.Delay)
	assert.Equal(t, "500K", cfg.RateLimit.ThrottleRate)
	assert.Equal(t, "/tmp/tok", cfg.Output.BaseDirectory)
	assert.Equal(t, 4, cfg.Download.Workers)
	assert.True(t, cfg.Download.SaveMetadata)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFileMissingExplicitPath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TOKFETCH_OUTPUT_DIR", "/srv/media")
	t.Setenv("TOKFETCH_WORKERS", "7")
	t.Setenv("TOKFETCH_CONTENT_TYPE", "audio-only")

	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	assert.Equal(t, "/srv/media", cfg.Output.BaseDirectory)
	assert.Equal(t, 7, cfg.Download.Workers)
	assert.Equal(t, "audio-only", cfg.ContentType)
}

func TestMergeFlagsPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeFlags(map[string]interface{}{
		"links":         "liked.txt",
		"workers":       5,
		"watermark":     true,
		"delay":         4 * time.Second,
		"no-rate-limit": true,
	})

	assert.Equal(t, ModeBatch, cfg.Mode)
	assert.Equal(t, "liked.txt", cfg.LinksFile)
	assert.Equal(t, 5, cfg.Download.Workers)
	assert.True(t, cfg.Watermark)
	assert.Equal(t, 4*time.Second, cfg.RateLimit.Delay)
	assert.True(t, cfg.RateLimit.Disabled)
}

func TestMergeFlagsIgnoresAbsentKeys(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeFlags(map[string]interface{}{"profile": "alice"})

	assert.Equal(t, ModeProfile, cfg.Mode)
	assert.Equal(t, 2, cfg.Download.Workers, "unset flags keep earlier values")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Mode = ModeBatch
		cfg.LinksFile = "links.txt"
		return cfg
	}

	assert.NoError(t, valid().Validate())

	t.Run("missing mode", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.ErrorContains(t, cfg.Validate(), "--links or --profile")
	})

	t.Run("batch without links file", func(t *testing.T) {
		cfg := valid()
		cfg.LinksFile = ""
		assert.ErrorContains(t, cfg.Validate(), "links file")
	})

	t.Run("profile without username", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Mode = ModeProfile
		cfg.ProfileUser = "  "
		assert.ErrorContains(t, cfg.Validate(), "username")
	})

	t.Run("bad content type", func(t *testing.T) {
		cfg := valid()
		cfg.ContentType = "gifs-only"
		assert.ErrorContains(t, cfg.Validate(), "invalid content type")
	})

	t.Run("unpaired delay range", func(t *testing.T) {
		cfg := valid()
		cfg.RateLimit.MinDelay = time.Second
		assert.ErrorContains(t, cfg.Validate(), "used together")
	})

	t.Run("inverted delay range", func(t *testing.T) {
		cfg := valid()
		cfg.RateLimit.MinDelay = 5 * time.Second
		cfg.RateLimit.MaxDelay = time.Second
		assert.ErrorContains(t, cfg.Validate(), "cannot exceed")
	})

	t.Run("bad throttle rate", func(t *testing.T) {
		cfg := valid()
		cfg.RateLimit.ThrottleRate = "fast"
		assert.ErrorContains(t, cfg.Validate(), "throttle rate")
	})

	t.Run("all violations reported", func(t *testing.T) {
		cfg := valid()
		cfg.Download.Workers = 0
		cfg.ContentType = "bogus"
		err := cfg.Validate()
		require.Error(t, err)
		assert.ErrorContains(t, err, "workers")
		assert.ErrorContains(t, err, "content type")
	})
}
