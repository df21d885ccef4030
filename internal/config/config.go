// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Monitoring loop
	MonitoringInterval time.Duration // Time between full roster scans
	AccountDelay       time.Duration // Pause between accounts within a scan
	CycleBackoff       time.Duration // Pause after a failed scan before retrying

	// Bank of Anthos downstream services
	BalanceAPIAddr     string
	HistoryAPIAddr     string
	UserserviceAPIAddr string
	LocalRoutingNum    string
	HTTPTimeout        time.Duration

	// Token issuance
	JWTKeyPath string // RS256 private key; empty or unreadable = unauthenticated mode

	// AI analysis
	GeminiModel string
	AITimeout   time.Duration

	// Risk thresholds
	LargeTxThreshold     float64 // Single transaction amount that counts as large
	VelocityThreshold    float64 // Gross volume across the transaction window
	FrequencyThreshold   int     // Transaction count that counts as high frequency
	HighBalanceThreshold float64

	// Alerting
	AlertLevel string // Minimum risk level that produces an alert

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint; empty = tracing disabled
}

// Defaults match the Bank of Anthos in-cluster service names.
const (
	DefaultPort               = "8080"
	DefaultEnv                = "development"
	DefaultLogLevel           = "info"
	DefaultBalanceAPIAddr     = "http://balancereader:8080"
	DefaultHistoryAPIAddr     = "http://transactionhistory:8080"
	DefaultUserserviceAddr    = "http://userservice:8080"
	DefaultLocalRoutingNum    = "883745000"
	DefaultGeminiModel        = "gemini-1.5-pro"
	DefaultJWTKeyPath         = "/var/secrets/jwt/jwtRS256.key"
	DefaultMonitoringInterval = 30 * time.Second
	DefaultAccountDelay       = 2 * time.Second
	DefaultCycleBackoff       = 10 * time.Second
	DefaultHTTPTimeout        = 10 * time.Second
	DefaultAITimeout          = 30 * time.Second
	DefaultAlertLevel         = "MEDIUM"

	DefaultLargeTxThreshold     = 5000
	DefaultVelocityThreshold    = 50000
	DefaultFrequencyThreshold   = 15
	DefaultHighBalanceThreshold = 100000
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", DefaultPort),
		Env:                  getEnv("ENV", DefaultEnv),
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		MonitoringInterval:   getEnvSeconds("MONITORING_INTERVAL", DefaultMonitoringInterval),
		AccountDelay:         getEnvSeconds("ACCOUNT_DELAY", DefaultAccountDelay),
		CycleBackoff:         getEnvSeconds("CYCLE_BACKOFF", DefaultCycleBackoff),
		BalanceAPIAddr:       getEnv("BALANCE_API_ADDR", DefaultBalanceAPIAddr),
		HistoryAPIAddr:       getEnv("HISTORY_API_ADDR", DefaultHistoryAPIAddr),
		UserserviceAPIAddr:   getEnv("USERSERVICE_API_ADDR", DefaultUserserviceAddr),
		LocalRoutingNum:      getEnv("LOCAL_ROUTING_NUM", DefaultLocalRoutingNum),
		HTTPTimeout:          getEnvSeconds("HTTP_TIMEOUT", DefaultHTTPTimeout),
		JWTKeyPath:           getEnv("JWT_KEY_PATH", DefaultJWTKeyPath),
		GeminiModel:          getEnv("GEMINI_MODEL", DefaultGeminiModel),
		AITimeout:            getEnvSeconds("AI_TIMEOUT", DefaultAITimeout),
		LargeTxThreshold:     getEnvFloat("LARGE_TX_THRESHOLD", DefaultLargeTxThreshold),
		VelocityThreshold:    getEnvFloat("VELOCITY_THRESHOLD", DefaultVelocityThreshold),
		FrequencyThreshold:   int(getEnvInt64("FREQUENCY_THRESHOLD", DefaultFrequencyThreshold)),
		HighBalanceThreshold: getEnvFloat("HIGH_BALANCE_THRESHOLD", DefaultHighBalanceThreshold),
		AlertLevel:           getEnv("ALERT_LEVEL", DefaultAlertLevel),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.MonitoringInterval <= 0 {
		return fmt.Errorf("MONITORING_INTERVAL must be positive")
	}
	if c.BalanceAPIAddr == "" {
		return fmt.Errorf("BALANCE_API_ADDR is required")
	}
	if c.HistoryAPIAddr == "" {
		return fmt.Errorf("HISTORY_API_ADDR is required")
	}
	if c.LargeTxThreshold <= 0 {
		return fmt.Errorf("LARGE_TX_THRESHOLD must be positive")
	}
	if c.VelocityThreshold <= 0 {
		return fmt.Errorf("VELOCITY_THRESHOLD must be positive")
	}
	if c.FrequencyThreshold <= 0 {
		return fmt.Errorf("FREQUENCY_THRESHOLD must be positive")
	}
	switch c.AlertLevel {
	case "LOW", "MEDIUM", "HIGH", "CRITICAL":
	default:
		return fmt.Errorf("ALERT_LEVEL must be one of LOW, MEDIUM, HIGH, CRITICAL")
	}
	return nil
}

// AIEnabled reports whether a Gemini backend is configured. The genai client
// reads the same variables, so this only gates whether we construct one.
func (c *Config) AIEnabled() bool {
	return os.Getenv("GOOGLE_API_KEY") != "" || os.Getenv("GEMINI_API_KEY") != ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvSeconds reads an integer number of seconds, matching how the
// deployment manifests express intervals.
func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil && i > 0 {
			return time.Duration(i) * time.Second
		}
	}
	return defaultValue
}
