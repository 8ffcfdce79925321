package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/barforge/sessionengine/internal/indicator"
	"github.com/barforge/sessionengine/internal/interval"
	"github.com/barforge/sessionengine/internal/store"
)

// Config holds all configuration for the application
type Config struct {
	// Common
	Environment string
	LogLevel    string

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market Data
	MarketData MarketDataConfig

	// Services
	WSGateway WSGatewayConfig
	API       APIConfig

	// Engine is the session lifecycle engine's own configuration: mode,
	// backtest window, session data requirements, lag watchdog.
	Engine EngineConfig
}

// EngineConfig configures the session coordinator's day loop: which mode
// it runs in, the backtest window and playback speed, the declared
// session data requirements, and the lag watchdog thresholds.
type EngineConfig struct {
	Mode            string // "backtest" or "live"
	BacktestStart   time.Time
	BacktestEnd     time.Time
	SpeedMultiplier float64

	Session SessionDataConfig

	LagThreshold  time.Duration
	LagCheckEvery int

	// WarmupMultiplier is how many multiples of an indicator's period get
	// replayed from history before it is considered warmed up.
	WarmupMultiplier int
}

// SessionDataConfig is the per-session data requirement declaration
// (symbols, intervals, indicators, gap filler) applied uniformly to every
// symbol provisioned with source=config.
type SessionDataConfig struct {
	Symbols []string

	SessionIntervals    []string
	HistoricalIntervals []string
	HistoricalDays      int

	SessionIndicators    []IndicatorSpec
	HistoricalIndicators []IndicatorSpec

	GapFillerEnabled       bool
	GapFillerMaxRetries    int
	GapFillerRetryInterval time.Duration
}

// IndicatorSpec is the env-parseable form of one indicator registration:
// "name:period:interval:type", e.g. "sma:20:5m:trend". Period may be
// omitted for period-less indicators ("vwap::1m:volume").
type IndicatorSpec struct {
	Name     string
	Period   int
	Interval string
	Type     string
}

// Resolve converts the env-parseable spec into an indicator.Config, parsing
// Interval into an interval.Interval and Type into a store.IndicatorType.
func (s IndicatorSpec) Resolve() (indicator.Config, error) {
	iv, err := interval.Parse(s.Interval)
	if err != nil {
		return indicator.Config{}, fmt.Errorf("indicator %q: %w", s.Name, err)
	}
	return indicator.Config{
		Name:     s.Name,
		Period:   s.Period,
		Interval: iv,
		Type:     store.IndicatorType(s.Type),
	}, nil
}

// DatabaseConfig holds TimescaleDB configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// MarketDataConfig holds market data provider configuration
type MarketDataConfig struct {
	Provider     string // "alpaca", "polygon", etc.
	APIKey       string
	APISecret    string
	BaseURL      string
	WebSocketURL string
	Symbols      []string
}

// WSGatewayConfig holds WebSocket gateway configuration
type WSGatewayConfig struct {
	Port            int
	HealthCheckPort int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	PingInterval    time.Duration
	MaxConnections  int
	JWTSecret       string
}

// APIConfig holds REST API configuration
type APIConfig struct {
	Port            int
	HealthCheckPort int
	JWTSecret       string
	JWTExpiry       time.Duration
	RateLimitRPS    int
}

// Load loads configuration from environment variables
// It automatically loads .env file if it exists in the current directory or parent directories
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "stock_scanner"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		MarketData: MarketDataConfig{
			Provider:     getEnv("MARKET_DATA_PROVIDER", "alpaca"),
			APIKey:       getEnv("MARKET_DATA_API_KEY", ""),
			APISecret:    getEnv("MARKET_DATA_API_SECRET", ""),
			BaseURL:      getEnv("MARKET_DATA_BASE_URL", ""),
			WebSocketURL: getEnv("MARKET_DATA_WS_URL", ""),
			Symbols:      getEnvAsStringSlice("MARKET_DATA_SYMBOLS", []string{}),
		},
		WSGateway: WSGatewayConfig{
			Port:            getEnvAsInt("WS_GATEWAY_PORT", 8088),
			HealthCheckPort: getEnvAsInt("WS_GATEWAY_HEALTH_PORT", 8089),
			ReadTimeout:     getEnvAsDuration("WS_GATEWAY_READ_TIMEOUT", 60*time.Second),
			WriteTimeout:    getEnvAsDuration("WS_GATEWAY_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:    getEnvAsDuration("WS_GATEWAY_PING_INTERVAL", 30*time.Second),
			MaxConnections:  getEnvAsInt("WS_GATEWAY_MAX_CONNECTIONS", 1000),
			JWTSecret:       getEnv("WS_GATEWAY_JWT_SECRET", ""),
		},
		API: APIConfig{
			Port:            getEnvAsInt("API_PORT", 8090),
			HealthCheckPort: getEnvAsInt("API_HEALTH_PORT", 8091),
			JWTSecret:       getEnv("API_JWT_SECRET", ""),
			JWTExpiry:       getEnvAsDuration("API_JWT_EXPIRY", 24*time.Hour),
			RateLimitRPS:    getEnvAsInt("API_RATE_LIMIT_RPS", 100),
		},
		Engine: EngineConfig{
			Mode:            getEnv("ENGINE_MODE", "backtest"),
			BacktestStart:   getEnvAsDate("ENGINE_BACKTEST_START", time.Time{}),
			BacktestEnd:     getEnvAsDate("ENGINE_BACKTEST_END", time.Time{}),
			SpeedMultiplier: getEnvAsFloat("ENGINE_SPEED_MULTIPLIER", 60),
			Session: SessionDataConfig{
				Symbols:                getEnvAsStringSlice("ENGINE_SYMBOLS", []string{}),
				SessionIntervals:       getEnvAsStringSlice("ENGINE_SESSION_INTERVALS", []string{"1m"}),
				HistoricalIntervals:    getEnvAsStringSlice("ENGINE_HISTORICAL_INTERVALS", []string{}),
				HistoricalDays:         getEnvAsInt("ENGINE_HISTORICAL_DAYS", 20),
				SessionIndicators:      getEnvAsIndicatorSlice("ENGINE_SESSION_INDICATORS", nil),
				HistoricalIndicators:   getEnvAsIndicatorSlice("ENGINE_HISTORICAL_INDICATORS", nil),
				GapFillerEnabled:       getEnvAsBool("ENGINE_GAP_FILLER_ENABLED", true),
				GapFillerMaxRetries:    getEnvAsInt("ENGINE_GAP_FILLER_MAX_RETRIES", 3),
				GapFillerRetryInterval: getEnvAsDuration("ENGINE_GAP_FILLER_RETRY_INTERVAL", 5*time.Second),
			},
			LagThreshold:     getEnvAsDuration("ENGINE_LAG_THRESHOLD", 30*time.Second),
			LagCheckEvery:    getEnvAsInt("ENGINE_LAG_CHECK_EVERY", 50),
			WarmupMultiplier: getEnvAsInt("ENGINE_WARMUP_MULTIPLIER", 2),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if len(c.MarketData.Symbols) == 0 && len(c.Engine.Session.Symbols) == 0 {
		return fmt.Errorf("MARKET_DATA_SYMBOLS or ENGINE_SYMBOLS must contain at least one symbol")
	}
	if c.Engine.Mode == "live" && c.MarketData.APIKey == "" && c.MarketData.WebSocketURL == "" {
		return fmt.Errorf("MARKET_DATA_API_KEY or MARKET_DATA_WS_URL is required in live mode")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// getEnvAsDate parses a "2006-01-02" date in UTC; an empty or malformed
// value falls back to defaultValue (typically the zero time, meaning
// "unbounded" to the caller).
func getEnvAsDate(key string, defaultValue time.Time) time.Time {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return defaultValue
	}
	return t
}

// getEnvAsIndicatorSlice parses a comma-separated list of
// "name:period:interval:type" tokens into IndicatorSpecs. A malformed
// token is skipped rather than failing the whole list.
func getEnvAsIndicatorSlice(key string, defaultValue []IndicatorSpec) []IndicatorSpec {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var specs []IndicatorSpec
	for _, tok := range strings.Split(value, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		fields := strings.Split(tok, ":")
		if len(fields) != 4 {
			continue
		}
		period, _ := strconv.Atoi(fields[1])
		specs = append(specs, IndicatorSpec{
			Name:     fields[0],
			Period:   period,
			Interval: fields[2],
			Type:     fields[3],
		})
	}
	if len(specs) == 0 {
		return defaultValue
	}
	return specs
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if value == "" {
		return defaultValue
	}
	// Split by comma and trim spaces
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
