package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied to fields a config file leaves empty.
const (
	DefaultWorkers            = 2
	DefaultPollInterval       = 200 * time.Millisecond
	DefaultJournalLockTimeout = 500 * time.Millisecond
	DefaultHistoryType        = "sqlite"
)

// Config represents the main configuration for lockbyte.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Batch      BatchConfig      `toml:"batch"`
	History    HistoryConfig    `toml:"history"`
	Filesystem FilesystemConfig `toml:"filesystem"`
}

// BatchConfig tunes the batch engine.
type BatchConfig struct {
	Workers            int      `toml:"workers"`
	PollInterval       Duration `toml:"poll_interval"`
	JournalLockTimeout Duration `toml:"journal_lock_timeout"`
	KeepOriginals      bool     `toml:"keep_originals"`
}

// HistoryConfig represents configuration for the run history store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type HistoryConfig struct {
	Type    string `toml:"type"`               // "sqlite", "memory" or "none"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"` // doublestar patterns skipped during directory walks
}

// Duration is a time.Duration stored as a string such as "200ms".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// NewConfig creates a new Config rooted at baseDir with default settings.
func NewConfig(baseDir string) *Config {
	cfg := &Config{BaseDir: baseDir}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.LogDir == "" && c.BaseDir != "" {
		c.LogDir = filepath.Join(c.BaseDir, "log")
	}
	if c.Batch.Workers == 0 {
		c.Batch.Workers = DefaultWorkers
	}
	if c.Batch.PollInterval.Duration == 0 {
		c.Batch.PollInterval.Duration = DefaultPollInterval
	}
	if c.Batch.JournalLockTimeout.Duration == 0 {
		c.Batch.JournalLockTimeout.Duration = DefaultJournalLockTimeout
	}
	if c.History.Type == "" {
		c.History.Type = DefaultHistoryType
	}
	if c.History.Type == "sqlite" && c.History.DataDir == "" && c.BaseDir != "" {
		c.History.DataDir = filepath.Join(c.BaseDir, "db")
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be positive, got %d", c.Batch.Workers)
	}
	if c.Batch.PollInterval.Duration <= 0 {
		return fmt.Errorf("batch.poll_interval must be positive, got %s", c.Batch.PollInterval)
	}
	if c.Batch.JournalLockTimeout.Duration <= 0 {
		return fmt.Errorf("batch.journal_lock_timeout must be positive, got %s", c.Batch.JournalLockTimeout)
	}
	switch c.History.Type {
	case "sqlite":
		if c.History.DataDir == "" {
			return fmt.Errorf("history.data_dir required for sqlite history")
		}
	case "memory", "none":
	default:
		return fmt.Errorf("unknown history type: %s", c.History.Type)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config at path, or starts from an empty Config if no file
// exists there. Defaults rooted at baseDir are applied and the result is
// validated.
func Load(path, baseDir string) (*Config, error) {
	cfg, err := ReadFromFile(path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		cfg = &Config{}
	default:
		return nil, err
	}

	if cfg.BaseDir == "" {
		cfg.BaseDir = baseDir
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
