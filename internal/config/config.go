package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPath names the environment variable overriding the config path.
const EnvPath = "CIVFORGE_CONFIG"

const DefaultPath = "config/server.toml"

// maxMapSide mirrors world.MaxMapSide; config does not import the game packages.
const maxMapSide = 512

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Network   NetworkConfig   `toml:"network"`
	Game      GameConfig      `toml:"game"`
	Logging   LoggingConfig   `toml:"logging"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	ID        int    `toml:"id"`
	StartTime int64  // set at boot, not from config
}

type DatabaseConfig struct {
	Driver          string        `toml:"driver"` // "postgres" or "sqlite"
	DSN             string        `toml:"dsn"`
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type NetworkConfig struct {
	BindAddress         string        `toml:"bind_address"`
	LoopInterval        time.Duration `toml:"loop_interval"`
	InQueueSize         int           `toml:"in_queue_size"`
	OutQueueSize        int           `toml:"out_queue_size"`
	MaxCommandsPerCycle int           `toml:"max_commands_per_cycle"`
	WriteTimeout        time.Duration `toml:"write_timeout"`
	ReadTimeout         time.Duration `toml:"read_timeout"`
}

// SlotConfig is one lobby seat.
type SlotConfig struct {
	Name  string `toml:"name"`
	Civ   string `toml:"civ"`
	Human bool   `toml:"human"`
	AI    string `toml:"ai"` // Lua controller, "" for the default
}

type GameConfig struct {
	Width             int           `toml:"width"`
	Height            int           `toml:"height"`
	Continents        int           `toml:"continents"`
	Seed              int64         `toml:"seed"` // 0 picks a random seed at boot
	TerrainGenerator  string        `toml:"terrain_generator"`
	ResourceGenerator string        `toml:"resource_generator"`
	MinContinentTiles int           `toml:"min_continent_tiles"`
	MinStartDistance  int           `toml:"min_start_distance"`
	SettlerUnit       string        `toml:"settler_unit"`
	EscortUnit        string        `toml:"escort_unit"`
	DataDir           string        `toml:"data_dir"`
	ScriptsDir        string        `toml:"scripts_dir"`
	AutosaveTurns     int           `toml:"autosave_turns"` // 0 disables autosave
	SaveName          string        `toml:"save_name"`
	TurnTimeout       time.Duration `toml:"turn_timeout"` // 0 waits for every human
	Slots             []SlotConfig  `toml:"slots"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	CommandsPerSecond float64 `toml:"commands_per_second"`
	Burst             int     `toml:"burst"`
}

// Path returns the config file path, honoring CIVFORGE_CONFIG.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(cfg.Game.Slots) == 0 {
		cfg.Game.Slots = defaultSlots()
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

func (c *Config) validate() error {
	g := &c.Game
	if g.Width < 8 || g.Height < 8 {
		return fmt.Errorf("map %dx%d too small", g.Width, g.Height)
	}
	if g.Width > maxMapSide || g.Height > maxMapSide {
		return fmt.Errorf("map %dx%d too large, limit %d per side", g.Width, g.Height, maxMapSide)
	}
	if g.Continents < 1 {
		return fmt.Errorf("continents must be positive, got %d", g.Continents)
	}
	for i, s := range g.Slots {
		if s.Civ == "" {
			return fmt.Errorf("slot %d has no civilization", i)
		}
	}
	if c.Network.LoopInterval <= 0 {
		return fmt.Errorf("loop_interval must be positive")
	}
	if c.Network.MaxCommandsPerCycle < 1 {
		return fmt.Errorf("max_commands_per_cycle must be positive")
	}
	return nil
}

// defaultSlots is applied only when the file lists none, so file slots
// never merge into default ones.
func defaultSlots() []SlotConfig {
	return []SlotConfig{
		{Name: "player", Civ: "rome", Human: true},
		{Name: "cleopatra", Civ: "egypt"},
	}
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "civforge",
			ID:   1,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "civforge.db",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Network: NetworkConfig{
			BindAddress:         "0.0.0.0:7100",
			LoopInterval:        50 * time.Millisecond,
			InQueueSize:         128,
			OutQueueSize:        512,
			MaxCommandsPerCycle: 16,
			WriteTimeout:        10 * time.Second,
			ReadTimeout:         10 * time.Minute,
		},
		Game: GameConfig{
			Width:             80,
			Height:            50,
			Continents:        2,
			TerrainGenerator:  "continents",
			ResourceGenerator: "poisson",
			MinContinentTiles: 120,
			MinStartDistance:  8,
			SettlerUnit:       "settler",
			EscortUnit:        "warrior",
			DataDir:           "data/yaml",
			ScriptsDir:        "scripts",
			AutosaveTurns:     5,
			SaveName:          "autosave",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			CommandsPerSecond: 20,
			Burst:             40,
		},
	}
}
