package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := NewDefaultConfig()
	if err := cfg.Set("daemon.host", `"node.example.org"`); err != nil {
		t.Fatal(err)
	}
	if err := cfg.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Daemon.Host != "node.example.org" {
		t.Fatalf("got host %q", got.Daemon.Host)
	}
	if got.Daemon.Port != 17082 {
		t.Fatalf("got port %d", got.Daemon.Port)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Poll.Tx() != 2*time.Second {
		t.Fatalf("got tx interval %v", cfg.Poll.Tx())
	}
	if cfg.Poll.ResetCooldown() != 60*time.Second {
		t.Fatalf("got reset cooldown %v", cfg.Poll.ResetCooldown())
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("got log level %q", cfg.Log.Level)
	}
}

func TestConfigSetRejectsBadHost(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Set("daemon.host", `"has space"`); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestConfigGet(t *testing.T) {
	cfg := NewDefaultConfig()
	v, err := cfg.Get("poll.saveCooldownSeconds")
	if err != nil {
		t.Fatal(err)
	}
	if v.(int) != 10 {
		t.Fatalf("got %v", v)
	}
}
