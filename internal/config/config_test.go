package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[game]
width = 40
height = 30
turn_timeout = "90s"

[[game.slots]]
name = "ann"
civ = "china"
human = true

[network]
loop_interval = "20ms"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Game.Width != 40 || cfg.Game.Height != 30 {
		t.Errorf("map = %dx%d", cfg.Game.Width, cfg.Game.Height)
	}
	if cfg.Game.TurnTimeout != 90*time.Second {
		t.Errorf("turn_timeout = %v", cfg.Game.TurnTimeout)
	}
	if cfg.Network.LoopInterval != 20*time.Millisecond {
		t.Errorf("loop_interval = %v", cfg.Network.LoopInterval)
	}
	if len(cfg.Game.Slots) != 1 || cfg.Game.Slots[0].Civ != "china" {
		t.Errorf("slots = %+v", cfg.Game.Slots)
	}
	// untouched sections keep their defaults
	if cfg.Game.Continents != 2 || cfg.Database.Driver != "sqlite" || cfg.Network.MaxCommandsPerCycle != 16 {
		t.Errorf("defaults lost: %+v %+v", cfg.Game, cfg.Database)
	}
	if cfg.Server.StartTime == 0 {
		t.Error("StartTime not set")
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"tiny map", "[game]\nwidth = 4\n", "too small"},
		{"huge map", "[game]\nwidth = 1000\n", "too large"},
		{"no continents", "[game]\ncontinents = 0\n", "continents"},
		{"slot without civ", "[[game.slots]]\nname = \"x\"\n", "no civilization"},
		{"zero interval", "[network]\nloop_interval = \"0s\"\n", "loop_interval"},
		{"bad toml", "[game\n", "parse config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(EnvPath, "")
	if got := Path(); got != DefaultPath {
		t.Fatalf("Path() = %q", got)
	}
	t.Setenv(EnvPath, "/etc/civforge.toml")
	if got := Path(); got != "/etc/civforge.toml" {
		t.Fatalf("Path() = %q", got)
	}
}
