package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full server configuration, loaded from a TOML file on top
// of defaults().
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Game    GameConfig    `toml:"game"`
	Combat  CombatConfig  `toml:"combat"`
	Admin   AdminConfig   `toml:"admin"`
	Journal JournalConfig `toml:"journal"`
	Logging LoggingConfig `toml:"logging"`
}

type ServerConfig struct {
	Addr          string `toml:"addr"`
	ClientDir     string `toml:"client_dir"` // empty disables static serving
	PublicURL     string `toml:"public_url"` // encoded into /invite.png
	MaxConnsPerIP int    `toml:"max_conns_per_ip"`
	MaxTotalConns int    `toml:"max_total_conns"`
}

type GameConfig struct {
	TickRate       int           `toml:"tick_rate"`  // ticks per second
	MoveSpeed      float64       `toml:"move_speed"` // px/s per axis
	ArenaFile      string        `toml:"arena_file"` // empty uses the built-in layout
	SyncInterval   time.Duration `toml:"sync_interval"`
	MaxUsernameLen int           `toml:"max_username_len"`
}

type CombatConfig struct {
	FullHealth     int           `toml:"full_health"`
	DamageStep     int           `toml:"damage_step"`
	WeaponPoolSize int           `toml:"weapon_pool_size"`
	ArrowSpeed     float64       `toml:"arrow_speed"` // px/s
	ArrowLifetime  time.Duration `toml:"arrow_lifetime"`
	CountdownDelay time.Duration `toml:"countdown_delay"`
	RestartDelay   time.Duration `toml:"restart_delay"`
}

type AdminConfig struct {
	PasswordHash string        `toml:"password_hash"` // bcrypt; empty disables admin login
	JWTSecret    string        `toml:"jwt_secret"`    // hex; random per process when empty
	TokenTTL     time.Duration `toml:"token_ttl"`
}

type JournalConfig struct {
	Enabled       bool          `toml:"enabled"`
	Path          string        `toml:"path"`
	FlushInterval time.Duration `toml:"flush_interval"`
	BatchSize     int           `toml:"batch_size"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// TickDuration is the wall-clock length of one tick.
func (c GameConfig) TickDuration() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.TickRate)
}

// Load reads the TOML file at path and overlays it on the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Game.TickRate <= 0 || c.Game.TickRate > 240:
		return fmt.Errorf("%w: tick_rate must be in 1..240", ErrValidation)
	case c.Combat.FullHealth <= 0:
		return fmt.Errorf("%w: full_health must be positive", ErrValidation)
	case c.Combat.DamageStep <= 0:
		return fmt.Errorf("%w: damage_step must be positive", ErrValidation)
	case c.Combat.WeaponPoolSize <= 0:
		return fmt.Errorf("%w: weapon_pool_size must be positive", ErrValidation)
	case c.Game.MaxUsernameLen <= 0:
		return fmt.Errorf("%w: max_username_len must be positive", ErrValidation)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          ":8080",
			PublicURL:     "http://localhost:8080/",
			MaxConnsPerIP: 5,
			MaxTotalConns: 500,
		},
		Game: GameConfig{
			TickRate:       30,
			MoveSpeed:      100,
			SyncInterval:   30 * time.Second,
			MaxUsernameLen: 16,
		},
		Combat: CombatConfig{
			FullHealth:     100,
			DamageStep:     25,
			WeaponPoolSize: 5,
			ArrowSpeed:     300,
			ArrowLifetime:  2000 * time.Millisecond,
			CountdownDelay: 10 * time.Second,
			RestartDelay:   10 * time.Second,
		},
		Admin: AdminConfig{
			TokenTTL: 12 * time.Hour,
		},
		Journal: JournalConfig{
			Path:          "island.db",
			FlushInterval: 2 * time.Second,
			BatchSize:     50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
