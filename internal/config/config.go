// Package config loads server configuration from YAML, falling back to
// compiled defaults for anything not present in the file (spec.md §6).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pacarena/server/internal/room"
)

// Config is every tunable the server needs at startup, split into the
// match-simulation constants (room.Config) and the transport/ambient
// settings around them.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Match   MatchConfig   `yaml:"match"`
	Brain   BrainConfig   `yaml:"brain"`
	Mongo   MongoConfig   `yaml:"mongo"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	SQLite  SQLiteConfig  `yaml:"sqlite"`
}

// ServerConfig covers listen address and the health/REST surface.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// MatchConfig mirrors room.Config in YAML-friendly, millisecond/seconds
// form; ToRoomConfig converts it.
type MatchConfig struct {
	TickPeriodMs         int     `yaml:"tick_period_ms"`
	FrightenedDurationS  int     `yaml:"frightened_duration_s"`
	RespawnDelayS        int     `yaml:"respawn_delay_s"`
	MatchDurationS       int     `yaml:"match_duration_s"`
	CapturesToWin        int     `yaml:"captures_to_win"`
	BaseCaptureScore     int     `yaml:"base_capture_score"`
	CaptureMultiplier    float64 `yaml:"capture_multiplier"`
	DotValue             int     `yaml:"dot_value"`
	PowerPelletValue     int     `yaml:"power_pellet_value"`
	EmoteRefreshTicks    int     `yaml:"emote_refresh_ticks"`
}

// BrainConfig covers PacmanController tuning and the tabular model file.
type BrainConfig struct {
	Depth      int    `yaml:"depth"`
	ModelPath  string `yaml:"model_path"`
	UseTabular bool   `yaml:"use_tabular"`
}

// MongoConfig covers the optional aggregate-statistics sink.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// KafkaConfig covers the optional cross-instance room directory.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// SQLiteConfig covers the local room-directory replica.
type SQLiteConfig struct {
	DirectoryDBPath string `yaml:"directory_db_path"`
}

// Default returns the reference values from spec.md §6, matching
// room.DefaultConfig().
func Default() Config {
	rc := room.DefaultConfig()
	return Config{
		Server: ServerConfig{Port: 8080},
		Match: MatchConfig{
			TickPeriodMs:        int(rc.TickPeriod / time.Millisecond),
			FrightenedDurationS: int(rc.FrightenedDuration / time.Second),
			RespawnDelayS:       int(rc.RespawnDelay / time.Second),
			MatchDurationS:      int(rc.MatchDuration / time.Second),
			CapturesToWin:       rc.CapturesToWin,
			BaseCaptureScore:    rc.BaseCaptureScore,
			CaptureMultiplier:   rc.CaptureMultiplier,
			DotValue:            rc.DotValue,
			PowerPelletValue:    rc.PowerPelletValue,
			EmoteRefreshTicks:   rc.EmoteRefreshTicks,
		},
		Brain: BrainConfig{
			Depth:      rc.BrainDepth,
			ModelPath:  "",
			UseTabular: false,
		},
		Mongo:  MongoConfig{Database: "pacarena", Collection: "match_summaries"},
		SQLite: SQLiteConfig{DirectoryDBPath: "room_directory.db"},
	}
}

// ToRoomConfig converts the YAML-friendly match settings into room.Config.
func (c Config) ToRoomConfig() room.Config {
	return room.Config{
		TickPeriod:         time.Duration(c.Match.TickPeriodMs) * time.Millisecond,
		FrightenedDuration: time.Duration(c.Match.FrightenedDurationS) * time.Second,
		RespawnDelay:       time.Duration(c.Match.RespawnDelayS) * time.Second,
		MatchDuration:      time.Duration(c.Match.MatchDurationS) * time.Second,
		CapturesToWin:      c.Match.CapturesToWin,
		BaseCaptureScore:   c.Match.BaseCaptureScore,
		CaptureMultiplier:  c.Match.CaptureMultiplier,
		DotValue:           c.Match.DotValue,
		PowerPelletValue:   c.Match.PowerPelletValue,
		EmoteRefreshTicks:  c.Match.EmoteRefreshTicks,
		BrainDepth:         c.Brain.Depth,
	}
}

// Load resolves configuration in the order an explicit path, then
// ./config.yaml, then compiled defaults — mirroring vovakirdan's
// customPath -> search-path -> embedded-default loader. A partial YAML
// file is merged on top of Default() rather than replacing it, so an
// empty file still produces a fully valid configuration.
func Load(explicitPath string) (Config, error) {
	cfg := Default()

	path := explicitPath
	if path == "" {
		path = "config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if explicitPath != "" {
			return cfg, fmt.Errorf("config: failed to read %s: %w", explicitPath, err)
		}
		applyEnvOverrides(&cfg)
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides overlays the environment variables from spec.md §6 on
// top of whatever Load already resolved from YAML/defaults. Every variable
// is optional; the feature it gates just runs with its YAML/default value
// when the variable is unset.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers := strings.Split(v, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		cfg.Kafka.Brokers = brokers
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
	if v := os.Getenv("DIRECTORY_DB_PATH"); v != "" {
		cfg.SQLite.DirectoryDBPath = v
	}
	if v := os.Getenv("MODEL_PATH"); v != "" {
		cfg.Brain.ModelPath = v
		cfg.Brain.UseTabular = true
	}
}
