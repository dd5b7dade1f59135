package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/civforge/server/internal/config"
	"github.com/civforge/server/internal/core/event"
	"github.com/civforge/server/internal/data"
	"github.com/civforge/server/internal/handler"
	"github.com/civforge/server/internal/mapgen"
	gonet "github.com/civforge/server/internal/net"
	"github.com/civforge/server/internal/net/packet"
	"github.com/civforge/server/internal/persist"
	"github.com/civforge/server/internal/scripting"
	"github.com/civforge/server/internal/system"
	"github.com/civforge/server/internal/world"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              civforge  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        turn-based strategy server         \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(id: %d)\033[0m\n\n", serverName, serverID)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	newGame := flag.Bool("new", false, "ignore the latest save and generate a new map")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Rule catalog
	printSection("catalog")
	cat, err := data.LoadCatalog(cfg.Game.DataDir)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	printStat("terrain", cat.Terrain.Count())
	printStat("units", cat.Units.Count())
	printStat("buildings", cat.Buildings.Count())
	printStat("resources", cat.Resources.Count())
	printStat("improvements", cat.Improvements.Count())
	printStat("techs", cat.Techs.Count())
	printStat("civilizations", cat.Civs.Count())
	fmt.Println()

	// 4. Save store
	printSection("database")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := persist.OpenStore(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer store.Close()
	printOK(fmt.Sprintf("%s save store ready", driverName(cfg.Database.Driver)))
	fmt.Println()

	// 5. Load or generate the game
	printSection("world")
	bus := event.NewBus()
	state, wctx, loaded, err := openGame(ctx, cfg, cat, store, bus, *newGame, log)
	if err != nil {
		return err
	}
	if loaded {
		printOK(fmt.Sprintf("resumed %q at turn %d", cfg.Game.SaveName, state.Turn))
	} else {
		printOK(fmt.Sprintf("generated %dx%d map (seed %d)", state.Grid.Width, state.Grid.Height, state.MapSeed))
	}
	printStat("players", state.Players.Len())
	printStat("cities", state.Cities.Len())
	printStat("units", state.Units.Len())
	fmt.Println()

	// 6. AI scripts
	printSection("scripting")
	ai, err := scripting.NewEngine(cfg.Game.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer ai.Close()
	printOK("Lua AI loaded")
	fmt.Println()

	// 7. Command surface
	disp := handler.NewDispatcher(&handler.Deps{State: state, Ctx: wctx, Log: log})
	lobby := handler.NewLobby(disp, log)
	lobby.SubscribeEvents(bus)
	reg := packet.NewRegistry(log)
	handler.RegisterAll(reg, lobby)

	// 8. Network
	printSection("network")
	var pktRate float64
	if cfg.RateLimit.Enabled {
		pktRate = cfg.RateLimit.CommandsPerSecond
	}
	server, err := gonet.NewServer(cfg.Network.BindAddress,
		cfg.Network.InQueueSize, cfg.Network.OutQueueSize,
		pktRate, cfg.RateLimit.Burst, log)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	server.SetTimeouts(cfg.Network.ReadTimeout, cfg.Network.WriteTimeout)
	go server.AcceptLoop()
	printOK(fmt.Sprintf("listening on %s", server.Addr()))
	fmt.Println()

	// 9. Turn machinery
	saver := persist.NewSaver(store, 4, log)
	saver.Start()
	autosave := system.NewAutosave(state, saver, cfg.Game.AutosaveTurns, cfg.Game.SaveName, log)
	sched := system.NewScheduler(disp, ai)
	if loaded {
		sched.RecomputeCities()
	}
	loop := system.NewLoop(server, reg, lobby, disp, sched, autosave, system.LoopConfig{
		Interval:    cfg.Network.LoopInterval,
		MaxPerCycle: cfg.Network.MaxCommandsPerCycle,
		TurnTimeout: cfg.Game.TurnTimeout,
	})

	printReady(fmt.Sprintf("turn %d, waiting for players", state.Turn))
	fmt.Println()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := loop.Run(sigCtx)

	log.Info("shutting down")
	server.Shutdown()
	saver.Close()
	if runErr != nil {
		return fmt.Errorf("final save: %w", runErr)
	}
	log.Info("server stopped")
	return nil
}

// openGame resumes the newest save under the configured name, or generates
// a fresh map when there is none or forceNew is set.
func openGame(ctx context.Context, cfg *config.Config, cat *data.Catalog, store persist.SaveStore, bus *event.Bus, forceNew bool, log *zap.Logger) (*world.State, *world.Context, bool, error) {
	if !forceNew {
		rec, err := store.Latest(ctx, cfg.Game.SaveName)
		switch {
		case err == nil:
			state, hdr, err := persist.Decode(rec.Data, cat)
			if err != nil {
				return nil, nil, false, fmt.Errorf("load save %s: %w", rec.ID, err)
			}
			log.Info("save loaded",
				zap.String("id", rec.ID.String()),
				zap.String("name", hdr.Name),
				zap.Int("turn", int(hdr.Turn)),
			)
			return state, world.NewContext(state.MapSeed+int64(state.Turn), bus, log), true, nil
		case errors.Is(err, persist.ErrNoSave):
		default:
			return nil, nil, false, fmt.Errorf("latest save: %w", err)
		}
	}

	settings := mapgen.FromConfig(cfg.Game)
	if settings.Seed == 0 {
		settings.Seed = time.Now().UnixNano()
	}
	wctx := world.NewContext(settings.Seed, bus, log)
	state, err := mapgen.Generate(cat, settings, wctx)
	if err != nil {
		return nil, nil, false, fmt.Errorf("generate map: %w", err)
	}
	return state, wctx, false, nil
}

func driverName(d string) string {
	if d == "" {
		return "postgres"
	}
	return d
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
