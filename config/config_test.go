package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Errorf("Load(\"\") = %+v, want the defaults", cfg)
	}
}

func TestLoadPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rakugaki.toml")
	err := os.WriteFile(path, []byte(`
[server]
listen-addr = "localhost:9000"

[wall]
chunk-size = 256
max-chunks = 1000

[haku]
fuel = 12345
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.ListenAddr != "localhost:9000" {
		t.Errorf("listen addr = %q, want the configured one", cfg.Server.ListenAddr)
	}
	if cfg.Wall.ChunkSize != 256 {
		t.Errorf("chunk size = %d, want 256", cfg.Wall.ChunkSize)
	}
	if cfg.Wall.MaxChunks != 1000 {
		t.Errorf("max chunks = %d, want 1000", cfg.Wall.MaxChunks)
	}
	if cfg.Haku.Fuel != 12345 {
		t.Errorf("fuel = %d, want 12345", cfg.Haku.Fuel)
	}
	// Everything not in the file keeps its default.
	if cfg.Server.DatabasePath != Default().Server.DatabasePath {
		t.Errorf("database path = %q, want the default", cfg.Server.DatabasePath)
	}
	if cfg.Wall.PaintArea != Default().Wall.PaintArea {
		t.Errorf("paint area = %d, want the default", cfg.Wall.PaintArea)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestSettings(t *testing.T) {
	cfg := Default()
	cfg.Wall.ChunkSize = 32
	cfg.Wall.MaxChunks = 77

	settings := cfg.Settings()
	if settings.ChunkSize != 32 {
		t.Errorf("chunk size = %d, want 32", settings.ChunkSize)
	}
	if settings.MaxChunks != 77 {
		t.Errorf("max chunks = %d, want 77", settings.MaxChunks)
	}
}

func TestBrokerConfig(t *testing.T) {
	cfg := Default()
	cfg.Wall.AutosaveIntervalSeconds = 30

	broker := cfg.BrokerConfig()
	if broker.AutosaveInterval != 30*time.Second {
		t.Errorf("autosave interval = %v, want 30s", broker.AutosaveInterval)
	}
	if broker.MaxSessions != cfg.Wall.MaxSessionsPerWall {
		t.Errorf("max sessions = %d, want %d", broker.MaxSessions, cfg.Wall.MaxSessionsPerWall)
	}
	if broker.BrushLimits != cfg.Haku {
		t.Errorf("brush limits = %+v, want %+v", broker.BrushLimits, cfg.Haku)
	}
}
