// Command engine is the session lifecycle engine's composition root: it
// wires configuration, logging, the collaborator adapters, and the
// coordinator, then runs one backtest or live session to completion (or
// until signaled to stop), following the teacher's per-service
// cmd/<service>/main.go shape (load config, init logger, construct
// dependencies, run, handle signals).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/barforge/sessionengine/internal/columnar"
	"github.com/barforge/sessionengine/internal/config"
	"github.com/barforge/sessionengine/internal/coordinator"
	"github.com/barforge/sessionengine/internal/derived"
	"github.com/barforge/sessionengine/internal/indicator"
	"github.com/barforge/sessionengine/internal/liveprovider"
	"github.com/barforge/sessionengine/internal/notify"
	"github.com/barforge/sessionengine/internal/provisioning"
	"github.com/barforge/sessionengine/internal/pubsub"
	"github.com/barforge/sessionengine/internal/store"
	"github.com/barforge/sessionengine/internal/timeservice"
	"github.com/barforge/sessionengine/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting session engine",
		logger.String("mode", cfg.Engine.Mode),
		logger.Int("symbols", len(cfg.Engine.Session.Symbols)),
	)

	coord, cleanup, err := buildCoordinator(cfg)
	if err != nil {
		logger.Fatal("Failed to build coordinator", logger.ErrorField(err))
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutting down session engine")
		coord.Stop()
		cancel()
	}()

	if err := coord.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal("Session engine stopped with error", logger.ErrorField(err))
	}

	logger.Info("Session engine stopped")
}

// buildCoordinator composes the full dependency graph described in
// SPEC_FULL.md §1 module layout: calendar, columnar/live collaborators,
// the notification bus, the session data store, and every core component
// that sits between them, ending in the coordinator itself.
func buildCoordinator(cfg *config.Config) (*coordinator.Coordinator, func(), error) {
	cal := timeservice.NewCalendar(time.UTC, nil, nil)

	st := store.New(0)

	bus, busCleanup, err := buildBus(cfg)
	if err != nil {
		return nil, nil, err
	}

	indicators := indicator.NewManager(st, cal, 500)
	generator := derived.NewGenerator(st, cal)

	var historical provisioning.HistoricalSource
	var live liveprovider.Provider

	switch cfg.Engine.Mode {
	case "live":
		if cfg.MarketData.WebSocketURL != "" {
			live = liveprovider.NewWebsocketProvider(cfg.MarketData.Provider, liveprovider.DefaultWebsocketConfig(cfg.MarketData.WebSocketURL))
		} else {
			live = liveprovider.NewMockProvider()
		}
		if err := live.Connect(context.Background()); err != nil {
			busCleanup()
			return nil, nil, fmt.Errorf("connecting live provider: %w", err)
		}
		colStore, err := columnar.NewTimescaleStore(connConfig(cfg.Database), cal)
		if err != nil {
			busCleanup()
			return nil, nil, fmt.Errorf("connecting columnar store: %w", err)
		}
		historical = colStore
	default:
		fileStore := columnar.NewFileStore(columnarRoot(cfg), cal)
		historical = fileStore
	}

	pipeline := provisioning.NewPipeline(st, historical, indicators, cal, 0)

	coordCfg, err := sessionConfig(cfg)
	if err != nil {
		busCleanup()
		return nil, nil, err
	}

	coord := coordinator.New(coordCfg, coordinator.Deps{
		Store:      st,
		Pipeline:   pipeline,
		Generator:  generator,
		Indicators: indicators,
		Calendar:   cal,
		Historical: historical,
		Live:       live,
		Bus:        bus,
	})

	return coord, busCleanup, nil
}

// buildBus selects the Redis Streams-backed bus when Redis is reachable
// and an explicit host is configured, else falls back to the in-memory
// channel bus — the same fallback the backtest composition needs so a
// single-day run never requires a Redis instance (SPEC_FULL.md §4.9).
func buildBus(cfg *config.Config) (notify.Bus, func(), error) {
	if cfg.Redis.Host == "" {
		return notify.NewChannelBus(), func() {}, nil
	}
	redisClient, err := pubsub.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-memory notification bus",
			logger.ErrorField(err))
		return notify.NewChannelBus(), func() {}, nil
	}
	return notify.NewRedisBus(redisClient), func() { redisClient.Close() }, nil
}

func columnarRoot(cfg *config.Config) string {
	if root := os.Getenv("ENGINE_COLUMNAR_ROOT"); root != "" {
		return root
	}
	return "./data/bars"
}

func connConfig(db config.DatabaseConfig) columnar.ConnConfig {
	return columnar.ConnConfig{
		Host:            db.Host,
		Port:            db.Port,
		User:            db.User,
		Password:        db.Password,
		Database:        db.Database,
		SSLMode:         db.SSLMode,
		MaxConnections:  db.MaxConnections,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
	}
}

// sessionConfig translates config.EngineConfig into coordinator.Config,
// resolving the env-parseable IndicatorSpec tokens into indicator.Config
// values.
func sessionConfig(cfg *config.Config) (coordinator.Config, error) {
	sessionIndicators, err := resolveIndicators(cfg.Engine.Session.SessionIndicators)
	if err != nil {
		return coordinator.Config{}, err
	}
	historicalIndicators, err := resolveIndicators(cfg.Engine.Session.HistoricalIndicators)
	if err != nil {
		return coordinator.Config{}, err
	}

	mode := coordinator.ModeBacktest
	if cfg.Engine.Mode == "live" {
		mode = coordinator.ModeLive
	}

	return coordinator.Config{
		Mode:            mode,
		BacktestStart:   cfg.Engine.BacktestStart,
		BacktestEnd:     cfg.Engine.BacktestEnd,
		SpeedMultiplier: cfg.Engine.SpeedMultiplier,
		Session: coordinator.SessionRequirements{
			Symbols:              cfg.Engine.Session.Symbols,
			SessionIntervals:     cfg.Engine.Session.SessionIntervals,
			HistoricalIntervals:  cfg.Engine.Session.HistoricalIntervals,
			HistoricalDays:       cfg.Engine.Session.HistoricalDays,
			SessionIndicators:    sessionIndicators,
			HistoricalIndicators: historicalIndicators,
			GapFiller: coordinator.GapFillerConfig{
				Enabled:       cfg.Engine.Session.GapFillerEnabled,
				MaxRetries:    cfg.Engine.Session.GapFillerMaxRetries,
				RetryInterval: cfg.Engine.Session.GapFillerRetryInterval,
			},
		},
		LagThreshold:  cfg.Engine.LagThreshold,
		LagCheckEvery: cfg.Engine.LagCheckEvery,
		TicksCap:      0,
	}, nil
}

func resolveIndicators(specs []config.IndicatorSpec) ([]indicator.Config, error) {
	out := make([]indicator.Config, 0, len(specs))
	for _, spec := range specs {
		cfg, err := spec.Resolve()
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}
