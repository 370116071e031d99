package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeTemp(t, "island.toml", `
[game]
tick_rate = 20
sync_interval = "15s"

[combat]
damage_step = 10
arrow_lifetime = "1500ms"

[journal]
enabled = true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Game.TickRate != 20 || cfg.Game.SyncInterval != 15*time.Second {
		t.Errorf("game section not applied: %+v", cfg.Game)
	}
	if cfg.Combat.DamageStep != 10 || cfg.Combat.ArrowLifetime != 1500*time.Millisecond {
		t.Errorf("combat section not applied: %+v", cfg.Combat)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Path != "island.db" {
		t.Errorf("journal section wrong: %+v", cfg.Journal)
	}
	// untouched keys keep their defaults
	if cfg.Combat.FullHealth != 100 || cfg.Server.Addr != ":8080" || cfg.Combat.WeaponPoolSize != 5 {
		t.Errorf("defaults lost: %+v %+v", cfg.Combat, cfg.Server)
	}
	if d := cfg.Game.TickDuration(); d != 50*time.Millisecond {
		t.Errorf("expected 50ms ticks, got %v", d)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"tick":   "[game]\ntick_rate = 0\n",
		"health": "[combat]\nfull_health = -1\n",
		"pool":   "[combat]\nweapon_pool_size = 0\n",
	}
	for name, body := range cases {
		_, err := Load(writeTemp(t, name+".toml", body))
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected ErrValidation, got %v", name, err)
		}
	}

	if _, err := Load(writeTemp(t, "broken.toml", "[game\n")); err == nil {
		t.Error("malformed toml should fail")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestDefaultsMatchGameRules(t *testing.T) {
	cfg := defaults()
	if err := cfg.validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Combat.FullHealth/cfg.Combat.DamageStep != 4 {
		t.Error("a fighter should survive exactly three hits")
	}
	if cfg.Combat.CountdownDelay != 10*time.Second || cfg.Combat.RestartDelay != 10*time.Second {
		t.Error("unexpected fight delays")
	}
	if cfg.Combat.ArrowLifetime != 2*time.Second {
		t.Error("unexpected arrow lifetime")
	}
}

func TestNewLogger(t *testing.T) {
	for _, cfg := range []LoggingConfig{
		{Level: "debug", Format: "json"},
		{Level: "bogus", Format: "console"},
	} {
		logger, err := newLogger(cfg)
		if err != nil {
			t.Fatalf("%+v: %v", cfg, err)
		}
		logger.Debug("test")
	}
}
