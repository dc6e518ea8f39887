// shared/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// CommonConfig holds configuration fields that are shared across multiple services.
type CommonConfig struct {
	RedisEnabled            bool          `env:"REDIS_ENABLED" envDefault:"true"`
	RedisAddrs              []string      `env:"REDIS_ADDRS" envSeparator:"," envDefault:"redis:6379"`
	RedisPassword           string        `env:"REDIS_PASSWORD"`
	RedisCluster            bool          `env:"REDIS_CLUSTER" envDefault:"false"`
	HeartbeatInterval       time.Duration `env:"SERVICE_HEARTBEAT_INTERVAL" envDefault:"5s"`
	HeartbeatTTL            time.Duration `env:"SERVICE_HEARTBEAT_TTL" envDefault:"15s"`
	RegistryCleanupInterval time.Duration `env:"SERVICE_REGISTRY_CLEANUP_INTERVAL" envDefault:"30s"`
	ServiceIP               string        `env:"POD_IP" envDefault:"0.0.0.0"`
	ServicePort             int           // derived from the service listen address
}

// QRConfig is the key material for printed scan codes. Shared by the hunt
// service and the qrgen CLI.
type QRConfig struct {
	QRKey         string `env:"HUNT_QR_KEY"`
	QRIV          string `env:"HUNT_QR_IV"`
	PublicBaseURL string `env:"HUNT_PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
}

// HuntServiceConfig holds configuration specific to the hunt-service.
type HuntServiceConfig struct {
	CommonConfig
	QRConfig

	ListenAddr     string        `env:"HUNT_SERVICE_LISTEN_ADDR" envDefault:":8080"`
	RequestTimeout time.Duration `env:"HUNT_REQUEST_TIMEOUT" envDefault:"5s"`
	LogDevelopment bool          `env:"HUNT_LOG_DEV" envDefault:"false"`

	// Storage is "mongo" or "memory". The memory backend is for local runs only.
	Storage                  string `env:"HUNT_STORAGE" envDefault:"mongo"`
	MongoDBConnStr           string `env:"MONGODB_CONN_STR" envDefault:"mongodb://mongodb-service:27017"`
	MongoDBDatabase          string `env:"MONGODB_DATABASE" envDefault:"livesearch"`
	MongoDBTeamCollection    string `env:"MONGODB_TEAM_COLLECTION" envDefault:"teams"`
	MongoDBCounterCollection string `env:"MONGODB_COUNTER_COLLECTION" envDefault:"counters"`

	CostMode  string `env:"HUNT_COST_MODE" envDefault:"table"`
	CostTable []int  `env:"HUNT_COST_TABLE" envSeparator:"," envDefault:"50,100,150,200,250,300,350,400"`
	CostStep  int    `env:"HUNT_COST_STEP" envDefault:"50"`
	CostFixed int    `env:"HUNT_COST_FIXED" envDefault:"100"`

	DefaultRoute []string `env:"HUNT_DEFAULT_ROUTE" envSeparator:","`

	RecoverySecret string  `env:"HUNT_RECOVERY_SECRET"`
	RecoveryRate   float64 `env:"HUNT_RECOVERY_RATE" envDefault:"0.2"`
	RecoveryBurst  int     `env:"HUNT_RECOVERY_BURST" envDefault:"3"`

	LeaderboardRefreshInterval time.Duration `env:"HUNT_LEADERBOARD_REFRESH_INTERVAL" envDefault:"5s"`
	LeaderboardCacheTTL        time.Duration `env:"HUNT_LEADERBOARD_CACHE_TTL" envDefault:"15s"`
	RecentActivityLimit        int           `env:"HUNT_RECENT_ACTIVITY_LIMIT" envDefault:"10"`
}

// loadDotEnv reads a .env file when one is present. A missing file is not an error.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// LoadCommonConfig loads common configuration from environment variables.
func LoadCommonConfig() (CommonConfig, error) {
	cfg := CommonConfig{}
	if err := loadDotEnv(); err != nil {
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadQRConfig loads the scan code key material and validates it.
func LoadQRConfig() (QRConfig, error) {
	cfg := QRConfig{}
	if err := loadDotEnv(); err != nil {
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks key and IV lengths when a key is configured.
func (c QRConfig) Validate() error {
	if c.QRKey == "" && c.QRIV == "" {
		return nil
	}
	switch len(c.QRKey) {
	case 16, 24, 32:
	default:
		return fmt.Errorf("HUNT_QR_KEY must be 16, 24 or 32 bytes (got %d)", len(c.QRKey))
	}
	if len(c.QRIV) != 16 {
		return fmt.Errorf("HUNT_QR_IV must be 16 bytes (got %d)", len(c.QRIV))
	}
	return nil
}

// Enabled reports whether scan code key material is configured.
func (c QRConfig) Enabled() bool {
	return c.QRKey != ""
}

// LoadHuntServiceConfig loads configuration for the hunt-service.
func LoadHuntServiceConfig() (*HuntServiceConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &HuntServiceConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	var err error
	cfg.ServicePort, err = extractPort(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to extract port from HUNT_SERVICE_LISTEN_ADDR '%s': %w", cfg.ListenAddr, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *HuntServiceConfig) Validate() error {
	switch c.Storage {
	case "mongo", "memory":
	default:
		return fmt.Errorf("HUNT_STORAGE must be mongo or memory (got %q)", c.Storage)
	}

	switch c.CostMode {
	case "table":
		if len(c.CostTable) == 0 {
			return fmt.Errorf("HUNT_COST_TABLE must not be empty when HUNT_COST_MODE=table")
		}
	case "linear":
		if c.CostStep <= 0 {
			return fmt.Errorf("HUNT_COST_STEP must be positive (got %d)", c.CostStep)
		}
	case "fixed":
	default:
		return fmt.Errorf("HUNT_COST_MODE must be table, linear or fixed (got %q)", c.CostMode)
	}

	for i, n := range c.DefaultRoute {
		c.DefaultRoute[i] = strings.TrimSpace(n)
	}

	if c.RecoveryRate <= 0 || c.RecoveryBurst <= 0 {
		return fmt.Errorf("HUNT_RECOVERY_RATE and HUNT_RECOVERY_BURST must be positive")
	}
	if c.RecentActivityLimit <= 0 {
		return fmt.Errorf("HUNT_RECENT_ACTIVITY_LIMIT must be positive (got %d)", c.RecentActivityLimit)
	}
	if c.RedisEnabled && len(c.RedisAddrs) == 0 {
		return fmt.Errorf("REDIS_ADDRS must list at least one address")
	}
	return c.QRConfig.Validate()
}

// extractPort extracts the numeric port from a listen address (e.g., ":8082" -> 8082, "0.0.0.0:8082" -> 8082)
func extractPort(listenAddr string) (int, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		if strings.HasPrefix(listenAddr, ":") {
			portStr = strings.TrimPrefix(listenAddr, ":")
		} else {
			return 0, fmt.Errorf("invalid ListenAddr format for port extraction: %w", err)
		}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port number '%s': %w", portStr, err)
	}
	return port, nil
}
