package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir: "/home/user/.local/share/lockbyte",
		LogDir:  "/home/user/.local/share/lockbyte/log",
		Batch: BatchConfig{
			Workers:            4,
			PollInterval:       Duration{150 * time.Millisecond},
			JournalLockTimeout: Duration{2 * time.Second},
			KeepOriginals:      true,
		},
		History: HistoryConfig{Type: "sqlite", DataDir: "/home/user/.local/share/lockbyte/db"},
		Filesystem: FilesystemConfig{
			Ignore: []string{"**/.git/**", "*.tmp"},
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(buf.String(), `poll_interval = "150ms"`) {
		t.Errorf("encoded config does not store poll_interval as a duration string:\n%s", buf.String())
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Batch != original.Batch {
		t.Errorf("Batch = %+v, want %+v", got.Batch, original.Batch)
	}
	if got.History != original.History {
		t.Errorf("History = %+v, want %+v", got.History, original.History)
	}
	if len(got.Filesystem.Ignore) != 2 {
		t.Fatalf("len(Filesystem.Ignore) = %d, want 2", len(got.Filesystem.Ignore))
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/lockbyte")

	if cfg.BaseDir != "/data/lockbyte" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/lockbyte")
	}
	if cfg.LogDir != "/data/lockbyte/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/lockbyte/log")
	}
	if cfg.Batch.Workers != 2 {
		t.Errorf("Batch.Workers = %d, want 2", cfg.Batch.Workers)
	}
	if cfg.Batch.PollInterval.Duration != 200*time.Millisecond {
		t.Errorf("Batch.PollInterval = %s, want 200ms", cfg.Batch.PollInterval)
	}
	if cfg.Batch.JournalLockTimeout.Duration != 500*time.Millisecond {
		t.Errorf("Batch.JournalLockTimeout = %s, want 500ms", cfg.Batch.JournalLockTimeout)
	}
	if cfg.Batch.KeepOriginals {
		t.Error("Batch.KeepOriginals = true, want false")
	}
	if cfg.History.Type != "sqlite" || cfg.History.DataDir != "/data/lockbyte/db" {
		t.Errorf("History = %+v, want sqlite in /data/lockbyte/db", cfg.History)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "defaults", modify: func(*Config) {}},
		{name: "zero workers", modify: func(c *Config) { c.Batch.Workers = 0 }, wantErr: "batch.workers"},
		{name: "negative poll", modify: func(c *Config) { c.Batch.PollInterval.Duration = -time.Second }, wantErr: "batch.poll_interval"},
		{name: "zero lock timeout", modify: func(c *Config) { c.Batch.JournalLockTimeout.Duration = 0 }, wantErr: "batch.journal_lock_timeout"},
		{name: "sqlite without dir", modify: func(c *Config) { c.History.DataDir = "" }, wantErr: "data_dir"},
		{name: "memory history", modify: func(c *Config) { c.History = HistoryConfig{Type: "memory"} }},
		{name: "no history", modify: func(c *Config) { c.History = HistoryConfig{Type: "none"} }},
		{name: "unknown history", modify: func(c *Config) { c.History.Type = "postgres" }, wantErr: "unknown history type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/data/lockbyte")
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("Duration = %s, want 1m30s", d)
	}
	if err := d.UnmarshalText([]byte("soon")); err == nil {
		t.Error("UnmarshalText(soon) expected error")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "lockbyte.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "lockbyte.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "lockbyte.toml")
		cfg := NewConfig(dir)
		cfg.History = HistoryConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.History.Type != "memory" {
			t.Errorf("History.Type = %q, want %q", got.History.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/lockbyte.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		dir := t.TempDir()
		cfg, err := Load(filepath.Join(dir, "absent.toml"), dir)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.BaseDir != dir {
			t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, dir)
		}
		if cfg.Batch.Workers != DefaultWorkers {
			t.Errorf("Batch.Workers = %d, want %d", cfg.Batch.Workers, DefaultWorkers)
		}
	})

	t.Run("partial file keeps explicit values", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "lockbyte.toml")
		content := "[batch]\nworkers = 3\nkeep_originals = true\n\n[history]\ntype = \"none\"\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}

		cfg, err := Load(path, dir)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Batch.Workers != 3 || !cfg.Batch.KeepOriginals {
			t.Errorf("Batch = %+v, want workers=3 keep_originals=true", cfg.Batch)
		}
		if cfg.Batch.PollInterval.Duration != DefaultPollInterval {
			t.Errorf("Batch.PollInterval = %s, want default", cfg.Batch.PollInterval)
		}
		if cfg.History.Type != "none" {
			t.Errorf("History.Type = %q, want none", cfg.History.Type)
		}
	})

	t.Run("invalid file is an error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "lockbyte.toml")
		if err := os.WriteFile(path, []byte("[batch]\nworkers = -1\n"), 0644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if _, err := Load(path, dir); err == nil {
			t.Fatal("Load() expected error for negative workers")
		}
	})
}
