// Command engineapi runs the same session composition as cmd/engine but
// additionally mounts the strategy-facing read API (internal/api) and the
// WebSocket push gateway (internal/wsgateway) over the in-process session
// store, following the teacher's cmd/api and cmd/ws_gateway main.go shape
// (load config, init logger, build router, graceful shutdown).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/barforge/sessionengine/internal/api"
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
	"github.com/barforge/sessionengine/internal/wsgateway"
	"github.com/barforge/sessionengine/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

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

	logger.Info("Starting session engine API service",
		logger.String("port", fmt.Sprintf("%d", cfg.API.Port)),
		logger.Int("rate_limit_rps", cfg.API.RateLimitRPS),
	)

	coord, sessionStore, bus, cleanup, err := buildCoordinator(cfg)
	if err != nil {
		logger.Fatal("Failed to build coordinator", logger.ErrorField(err))
	}
	defer cleanup()

	auth := wsgateway.NewAuthManager(cfg.WSGateway.JWTSecret)
	hub := wsgateway.NewHub(cfg.WSGateway, bus, "engineapi")
	if err := hub.Start(); err != nil {
		logger.Fatal("Failed to start WebSocket hub", logger.ErrorField(err))
	}
	defer hub.Stop()

	router := buildRouter(cfg, sessionStore, hub, auth)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: router,
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		logger.Info("Starting session engine", logger.String("mode", cfg.Engine.Mode))
		if err := coord.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("Session engine stopped with error", logger.ErrorField(err))
		}
	}()

	go func() {
		logger.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start HTTP server", logger.ErrorField(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down session engine API service")

	coord.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down HTTP server", logger.ErrorField(err))
	}

	logger.Info("Session engine API service stopped")
}

// buildRouter wires the read-only session API, the WebSocket upgrade
// endpoint, and the liveness/metrics endpoints behind the same middleware
// chain the teacher's REST API service used.
func buildRouter(cfg *config.Config, st *store.Store, hub *wsgateway.Hub, auth *wsgateway.AuthManager) http.Handler {
	sessionHandler := api.NewSessionHandler(st)
	healthHandler := api.NewHealthHandler(st)

	router := mux.NewRouter()

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/symbols", sessionHandler.ListSymbols).Methods("GET")
	v1.HandleFunc("/symbols/{symbol}", sessionHandler.GetSymbol).Methods("GET")
	v1.HandleFunc("/symbols/{symbol}/bars/{interval}", sessionHandler.GetBars).Methods("GET")
	v1.HandleFunc("/symbols/{symbol}/indicators", sessionHandler.GetIndicators).Methods("GET")
	v1.HandleFunc("/symbols/{symbol}/indicators/{key}", sessionHandler.GetIndicatorValue).Methods("GET")

	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(hub, auth, w, r, cfg.WSGateway.MaxConnections)
	})

	router.HandleFunc("/health", healthHandler.Health).Methods("GET")

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !st.SessionActive() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	router.HandleFunc("/live", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	})

	router.Handle("/metrics", promhttp.Handler())

	middlewares := api.ChainMiddleware(
		api.CORSMiddleware(),
		api.LoggingMiddleware(),
		api.ErrorHandlingMiddleware(),
		api.AuthMiddleware(cfg.API.JWTSecret),
		api.RateLimitMiddleware(cfg.API.RateLimitRPS),
	)

	return middlewares(router)
}

// handleWebSocket upgrades /ws connections and registers them with hub,
// following the teacher's cmd/ws_gateway/main.go connection handshake.
func handleWebSocket(hub *wsgateway.Hub, auth *wsgateway.AuthManager, w http.ResponseWriter, r *http.Request, maxConnections int) {
	stats := hub.GetStats()
	if maxConnections > 0 && int(stats.ConnectionsActive) >= maxConnections {
		http.Error(w, "Max connections reached", http.StatusServiceUnavailable)
		return
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			authHeader = "Bearer " + token
		}
	}

	userID := "default"
	if authHeader != "" {
		tokenString, err := auth.ExtractTokenFromHeader(authHeader)
		if err == nil {
			if resolved, err := auth.ValidateToken(tokenString); err == nil {
				userID = resolved
			} else {
				http.Error(w, "Invalid authentication token", http.StatusUnauthorized)
				return
			}
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade connection", logger.ErrorField(err))
		return
	}

	connectionID := uuid.New().String()
	hub.Register(wsgateway.NewConnection(connectionID, userID, conn))

	logger.Info("WebSocket connection established",
		logger.String("connection_id", connectionID),
		logger.String("user_id", userID),
		logger.String("remote_addr", r.RemoteAddr),
	)
}

// buildCoordinator composes the same dependency graph as cmd/engine's
// composition root, additionally returning the session store and
// notification bus so the API/WS surface can be mounted over them
// in-process.
func buildCoordinator(cfg *config.Config) (*coordinator.Coordinator, *store.Store, notify.Bus, func(), error) {
	cal := timeservice.NewCalendar(time.UTC, nil, nil)

	st := store.New(0)

	bus, busCleanup, err := buildBus(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
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
			return nil, nil, nil, nil, fmt.Errorf("connecting live provider: %w", err)
		}
		colStore, err := columnar.NewTimescaleStore(connConfig(cfg.Database), cal)
		if err != nil {
			busCleanup()
			return nil, nil, nil, nil, fmt.Errorf("connecting columnar store: %w", err)
		}
		historical = colStore
	default:
		historical = columnar.NewFileStore(columnarRoot(), cal)
	}

	pipeline := provisioning.NewPipeline(st, historical, indicators, cal, 0)

	coordCfg, err := sessionConfig(cfg)
	if err != nil {
		busCleanup()
		return nil, nil, nil, nil, err
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

	return coord, st, bus, busCleanup, nil
}

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

func columnarRoot() string {
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
