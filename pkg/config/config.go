package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tokfetch/pkg/ratelimit"
)

// Mode selects the input source for a run.
type Mode string

const (
	// ModeBatch reads URLs from a links file and dispatches concurrently.
	ModeBatch Mode = "batch"
	// ModeProfile lists a creator profile and processes it sequentially.
	ModeProfile Mode = "profile"
)

// Valid content-type filter values, matching the CLI surface.
var ValidContentTypes = []string{"all", "video-only", "audio-only", "images-only", "metadata-only"}

// Config holds all options for one run. It is immutable once Load returns.
type Config struct {
	// Mode, LinksFile and ProfileUser come from the command line only.
	Mode        Mode   `yaml:"-"`
	LinksFile   string `yaml:"-"`
	ProfileUser string `yaml:"-"`

	ContentType string `yaml:"content_type"`
	Watermark   bool   `yaml:"watermark"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Output    OutputConfig    `yaml:"output"`
	Download  DownloadConfig  `yaml:"download"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RateLimitConfig controls inter-download pacing and transfer throttling.
type RateLimitConfig struct {
	// Delay is the base inter-download delay; ±50% jitter is applied
	// unless MinDelay/MaxDelay give an explicit range.
	Delay    time.Duration `yaml:"delay"`
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
	// ThrottleRate caps transfer speed, e.g. "500K", "1M". Empty means no cap.
	ThrottleRate string `yaml:"throttle_rate"`
	// Disabled turns off all pacing. The CLI warns loudly when set.
	Disabled bool `yaml:"disabled"`
}

// OutputConfig holds output locations.
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory"`
	ErrorLog      string `yaml:"error_log"`
}

// DownloadConfig holds scheduler and retry settings.
type DownloadConfig struct {
	Workers          int           `yaml:"workers"`
	MaxDownloads     int           `yaml:"max_downloads"`
	DisableArchive   bool          `yaml:"disable_archive"`
	SkipExisting     bool          `yaml:"skip_existing"`
	SaveMetadata     bool          `yaml:"save_metadata"`
	MaxAttempts      int           `yaml:"max_attempts"`
	ExtractorTimeout time.Duration `yaml:"extractor_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns a Config with the defaults of the CLI surface.
func DefaultConfig() *Config {
	return &Config{
		ContentType: "video-only",
		Watermark:   false,
		RateLimit: RateLimitConfig{
			Delay: 2 * time.Second,
		},
		Output: OutputConfig{
			BaseDirectory: "downloads",
			ErrorLog:      filepath.Join("logs", "errors.txt"),
		},
		Download: DownloadConfig{
			Workers:          2,
			MaxAttempts:      3,
			ExtractorTimeout: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromFile overlays configuration from a YAML file. A missing default
// config file is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) findConfigFile() string {
	locations := []string{
		".tokfetch.yaml",
		".tokfetch.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "tokfetch", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".tokfetch.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// LoadFromEnv overlays configuration from environment variables.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("TOKFETCH_OUTPUT_DIR"); v != "" {
		c.Output.BaseDirectory = v
	}
	if v := os.Getenv("TOKFETCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Download.Workers = n
		}
	}
	if v := os.Getenv("TOKFETCH_THROTTLE_RATE"); v != "" {
		c.RateLimit.ThrottleRate = v
	}
	if v := os.Getenv("TOKFETCH_CONTENT_TYPE"); v != "" {
		c.ContentType = v
	}
	if v := os.Getenv("TOKFETCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// MergeFlags overlays command line flag values. Only keys present in the
// map override earlier sources.
func (c *Config) MergeFlags(flags map[string]interface{}) {
	if v, ok := flags["links"].(string); ok && v != "" {
		c.Mode = ModeBatch
		c.LinksFile = v
	}
	if v, ok := flags["profile"].(string); ok && v != "" {
		c.Mode = ModeProfile
		c.ProfileUser = v
	}
	if v, ok := flags["workers"].(int); ok && v > 0 {
		c.Download.Workers = v
	}
	if v, ok := flags["output-dir"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["content-type"].(string); ok && v != "" {
		c.ContentType = v
	}
	if v, ok := flags["watermark"].(bool); ok {
		c.Watermark = v
	}
	if v, ok := flags["max-downloads"].(int); ok && v > 0 {
		c.Download.MaxDownloads = v
	}
	if v, ok := flags["no-archive"].(bool); ok {
		c.Download.DisableArchive = v
	}
	if v, ok := flags["skip-existing"].(bool); ok {
		c.Download.SkipExisting = v
	}
	if v, ok := flags["save-metadata"].(bool); ok {
		c.Download.SaveMetadata = v
	}
	if v, ok := flags["delay"].(time.Duration); ok && v > 0 {
		c.RateLimit.Delay = v
	}
	if v, ok := flags["min-delay"].(time.Duration); ok && v > 0 {
		c.RateLimit.MinDelay = v
	}
	if v, ok := flags["max-delay"].(time.Duration); ok && v > 0 {
		c.RateLimit.MaxDelay = v
	}
	if v, ok := flags["throttle-rate"].(string); ok && v != "" {
		c.RateLimit.ThrottleRate = v
	}
	if v, ok := flags["no-rate-limit"].(bool); ok {
		c.RateLimit.Disabled = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the final configuration. All violations are reported
// together. A failed validation is fatal before any work begins.
func (c *Config) Validate() error {
	var errs []error

	switch c.Mode {
	case ModeBatch:
		if c.LinksFile == "" {
			errs = append(errs, errors.New("batch mode requires a links file"))
		}
	case ModeProfile:
		if strings.TrimSpace(c.ProfileUser) == "" {
			errs = append(errs, errors.New("profile mode requires a username"))
		}
	default:
		errs = append(errs, errors.New("either --links or --profile must be given"))
	}

	if c.Download.Workers < 1 {
		errs = append(errs, errors.New("workers must be at least 1"))
	}
	if c.Download.MaxDownloads < 0 {
		errs = append(errs, errors.New("max downloads cannot be negative"))
	}
	if c.Download.MaxAttempts < 1 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}

	if (c.RateLimit.MinDelay > 0) != (c.RateLimit.MaxDelay > 0) {
		errs = append(errs, errors.New("min-delay and max-delay must be used together"))
	}
	if c.RateLimit.MinDelay > 0 && c.RateLimit.MaxDelay > 0 && c.RateLimit.MinDelay > c.RateLimit.MaxDelay {
		errs = append(errs, errors.New("min-delay cannot exceed max-delay"))
	}
	if c.RateLimit.Delay < 0 {
		errs = append(errs, errors.New("delay cannot be negative"))
	}
	if _, err := ratelimit.ParseRate(c.RateLimit.ThrottleRate); err != nil {
		errs = append(errs, err)
	}

	if !validContentType(c.ContentType) {
		errs = append(errs, fmt.Errorf("invalid content type %q (valid: %s)",
			c.ContentType, strings.Join(ValidContentTypes, ", ")))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validContentType(s string) bool {
	for _, v := range ValidContentTypes {
		if s == v {
			return true
		}
	}
	return false
}

// Load builds the run configuration with the usual precedence:
// flags > environment (including .env) > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, err
	}
	cfg.LoadFromEnv()
	cfg.MergeFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
