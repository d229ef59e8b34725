// Package config loads the server's TOML configuration.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/rakugaki/rakugaki/brush"
	"github.com/rakugaki/rakugaki/wall"
)

// Config is the whole server configuration. Every field has a default, so a
// missing or partial file is fine.
type Config struct {
	Server Server       `toml:"server"`
	Wall   Wall         `toml:"wall"`
	Haku   brush.Limits `toml:"haku"`
}

// Server configures the HTTP listener and storage paths.
type Server struct {
	ListenAddr   string `toml:"listen-addr"`
	DatabasePath string `toml:"database-path"`
}

// Wall configures wall defaults and per-wall resource limits.
type Wall struct {
	ChunkSize               int `toml:"chunk-size"`
	PaintArea               int `toml:"paint-area"`
	MaxChunks               int `toml:"max-chunks"`
	MaxSessionsPerWall      int `toml:"max-sessions-per-wall"`
	MaxPlotPoints           int `toml:"max-plot-points"`
	AutosaveIntervalSeconds int `toml:"autosave-interval-seconds"`
	ChunksPerMessage        int `toml:"chunks-per-message"`
	MaxViewportChunks       int `toml:"max-viewport-chunks"`
	SessionOutboxSize       int `toml:"session-outbox-size"`
	EncoderCacheSize        int `toml:"encoder-cache-size"`
	SaveQueueSize           int `toml:"save-queue-size"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{
			ListenAddr:   "localhost:8080",
			DatabasePath: "db",
		},
		Wall: Wall{
			ChunkSize:               168,
			PaintArea:               504,
			MaxChunks:               65536,
			MaxSessionsPerWall:      128,
			MaxPlotPoints:           64,
			AutosaveIntervalSeconds: 10,
			ChunksPerMessage:        32,
			MaxViewportChunks:       4096,
			SessionOutboxSize:       256,
			EncoderCacheSize:        1024,
			SaveQueueSize:           256,
		},
		Haku: brush.DefaultLimits(),
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Settings returns the wall settings new walls are created with.
func (c *Config) Settings() wall.Settings {
	return wall.Settings{
		ChunkSize: c.Wall.ChunkSize,
		PaintArea: c.Wall.PaintArea,
		MaxChunks: c.Wall.MaxChunks,
	}
}

// BrokerConfig returns the per-wall broker configuration.
func (c *Config) BrokerConfig() wall.BrokerConfig {
	return wall.BrokerConfig{
		MaxSessions:      c.Wall.MaxSessionsPerWall,
		MaxPlotPoints:    c.Wall.MaxPlotPoints,
		AutosaveInterval: time.Duration(c.Wall.AutosaveIntervalSeconds) * time.Second,
		EncoderCacheSize: c.Wall.EncoderCacheSize,
		OutboxSize:       c.Wall.SessionOutboxSize,
		SaveQueueSize:    c.Wall.SaveQueueSize,
		BrushLimits:      c.Haku,
	}
}
