package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// AgentCredentials holds per-agent CLOB API credentials. Agents without a
// private key still trade virtually; only real execution is skipped.
type AgentCredentials struct {
	AgentID    string
	PrivateKey string
	Funder     string // proxy wallet funding the orders; empty for EOA signing
	APIKey     string
	Secret     string
	Passphrase string
}

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Venue endpoints
	DataAPIURL   string
	GammaAPIURL  string
	ClobAPIURL   string
	StreamWSURL  string
	PolygonWSURL string

	// Ingestion
	PollInterval   time.Duration
	PollTimeout    time.Duration
	PollLookback   time.Duration
	PollPageLimit  int
	PollRateLimit  float64 // activity API requests per second, across all donors
	StreamEnabled  bool
	OnchainEnabled bool

	// WebSocket
	WSDialTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSMessageBufferSize     int

	// Copy engine
	ExecutionMode      string  // "virtual" or "live"
	PositionBaseUSD    float64 // base copied position size
	PositionJitterUSD  float64 // uniform random addition so orders are not perfectly uniform
	MinAgentBalanceUSD float64
	EntryLockGrace     time.Duration
	PreExecutedTTL     time.Duration
	TokenCacheTTL      time.Duration
	StartingBalanceUSD float64

	// Resolution poller
	ResolutionInterval time.Duration
	ResolutionTimeout  time.Duration

	// Equity snapshots / balance sync
	EquityInterval    time.Duration
	BalanceSyncFast   time.Duration
	BalanceSyncSettle time.Duration

	// Roster
	DonorsFile string
	Agents     []AgentCredentials

	// Storage
	StorageMode  string // "postgres" or "memory"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// MaxAgents is the number of BOT_<n>_* credential slots scanned from env.
const MaxAgents = 5

// defaultAgentIDs maps each BOT_<n> slot to its agent id.
var defaultAgentIDs = [MaxAgents]string{"claude", "chatgpt", "gemini", "grok", "deepseek"}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Venue endpoint defaults
		DataAPIURL:   getEnvOrDefault("POLYMARKET_DATA_API_URL", "https://data-api.polymarket.com"),
		GammaAPIURL:  getEnvOrDefault("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		ClobAPIURL:   getEnvOrDefault("POLYMARKET_CLOB_API_URL", "https://clob.polymarket.com"),
		StreamWSURL:  getEnvOrDefault("POLYMARKET_STREAM_WS_URL", "wss://ws-live-data.polymarket.com"),
		PolygonWSURL: getEnvOrDefault("POLYGON_WSS_URL", "wss://polygon-bor-rpc.publicnode.com"),

		// Ingestion defaults
		PollInterval:   getDurationOrDefault("POLL_INTERVAL", 3*time.Second),
		PollTimeout:    getDurationOrDefault("POLL_TIMEOUT", 12*time.Second),
		PollLookback:   getDurationOrDefault("POLL_LOOKBACK", 30*time.Second),
		PollPageLimit:  getIntOrDefault("POLL_PAGE_LIMIT", 100),
		PollRateLimit:  getFloat64OrDefault("POLL_RATE_LIMIT", 10.0),
		StreamEnabled:  getBoolOrDefault("STREAM_ENABLED", true),
		OnchainEnabled: getBoolOrDefault("ONCHAIN_ENABLED", true),

		// WebSocket defaults
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSMessageBufferSize:     getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", 1000),

		// Copy engine defaults
		ExecutionMode:      getEnvOrDefault("EXECUTION_MODE", "virtual"),
		PositionBaseUSD:    getFloat64OrDefault("POSITION_BASE_USD", 1.10),
		PositionJitterUSD:  getFloat64OrDefault("POSITION_JITTER_USD", 0.20),
		MinAgentBalanceUSD: getFloat64OrDefault("MIN_AGENT_BALANCE_USD", 1.0),
		EntryLockGrace:     getDurationOrDefault("ENTRY_LOCK_GRACE", 5*time.Second),
		PreExecutedTTL:     getDurationOrDefault("PRE_EXECUTED_TTL", 60*time.Second),
		TokenCacheTTL:      getDurationOrDefault("TOKEN_CACHE_TTL", time.Hour),
		StartingBalanceUSD: getFloat64OrDefault("STARTING_BALANCE_USD", 1000.0),

		// Resolution defaults
		ResolutionInterval: getDurationOrDefault("RESOLUTION_INTERVAL", 15*time.Second),
		ResolutionTimeout:  getDurationOrDefault("RESOLUTION_TIMEOUT", 8*time.Second),

		// Equity / balance sync defaults
		EquityInterval:    getDurationOrDefault("EQUITY_INTERVAL", time.Minute),
		BalanceSyncFast:   getDurationOrDefault("BALANCE_SYNC_FAST", 4*time.Second),
		BalanceSyncSettle: getDurationOrDefault("BALANCE_SYNC_SETTLE", 15*time.Second),

		// Roster defaults
		DonorsFile: getEnvOrDefault("DONORS_FILE", "donors.json"),
		Agents:     loadAgentCredentials(),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "memory"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "polyfive"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "polyfive123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "polyfive_arena"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// loadAgentCredentials scans the BOT_1..BOT_5 env slots. Per-agent CLOB
// keys fall back to the shared CLOB_API_KEY/SECRET/PASSPHRASE.
func loadAgentCredentials() []AgentCredentials {
	agents := make([]AgentCredentials, 0, MaxAgents)
	for i := 1; i <= MaxAgents; i++ {
		prefix := fmt.Sprintf("BOT_%d_", i)
		agents = append(agents, AgentCredentials{
			AgentID:    getEnvOrDefault(prefix+"AGENT_ID", defaultAgentIDs[i-1]),
			PrivateKey: os.Getenv(prefix + "PKEY"),
			Funder:     os.Getenv(prefix + "FUNDER"),
			APIKey:     getEnvOrDefault(prefix+"CLOB_API_KEY", os.Getenv("CLOB_API_KEY")),
			Secret:     getEnvOrDefault(prefix+"CLOB_SECRET", os.Getenv("CLOB_SECRET")),
			Passphrase: getEnvOrDefault(prefix+"CLOB_PASSPHRASE", os.Getenv("CLOB_PASSPHRASE")),
		})
	}
	return agents
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.DataAPIURL == "" {
		return fmt.Errorf("POLYMARKET_DATA_API_URL cannot be empty")
	}

	if c.GammaAPIURL == "" {
		return fmt.Errorf("POLYMARKET_GAMMA_API_URL cannot be empty")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}

	if c.PositionBaseUSD <= 0 {
		return fmt.Errorf("POSITION_BASE_USD must be positive, got %f", c.PositionBaseUSD)
	}

	if c.ExecutionMode != "virtual" && c.ExecutionMode != "live" {
		return fmt.Errorf("EXECUTION_MODE must be 'virtual' or 'live', got %q", c.ExecutionMode)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "memory" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'memory', got %q", c.StorageMode)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
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
