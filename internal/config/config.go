// Package config loads process configuration from environment variables,
// the same getEnv*/fail-fast convention the rest of the engine's ambient
// stack follows.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every section of process configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Engine   EngineConfig
	Logging  LoggingConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SecurityConfig holds the process's security-sensitive secrets.
// JWTSecret and CredentialCipherKey must be explicitly set; Load fails fast
// rather than running with a default JWT secret or a mis-sized cipher key.
type SecurityConfig struct {
	JWTSecret            string
	JWTAccessTTL         time.Duration
	JWTRefreshTTL        time.Duration
	CredentialCipherKey  string // process secret the cryptoutil.CredentialCipher derives its AES key from
	CredentialCipherSalt string
	SessionTimeout       time.Duration
}

// EngineConfig tunes the per-user engine activities and process-wide
// maintenance scheduler.
type EngineConfig struct {
	DefaultBrokerID            string
	PositionPollInterval       time.Duration
	PricePollInterval          time.Duration
	PriceStreamReconnectDelay  time.Duration
	RulesRefreshInterval       time.Duration
	MaxConsecutiveAuthFailures int
	SessionSweepInterval       time.Duration
	TradeLogSweepInterval      time.Duration
	HealthCheckInterval        time.Duration
	TradeLogRetention          time.Duration
	DefaultTimeZone            string
}

// LoggingConfig configures applog.
type LoggingConfig struct {
	Level  string
	Format string
}

// Load populates Config from the environment, applying documented
// defaults where a variable is unset and failing fast when a
// security-sensitive value is missing or malformed.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("SERVER_USE_HTTPS", false),
			CertFile: getEnv("SERVER_CERT_FILE", ""),
			KeyFile:  getEnv("SERVER_KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "exitengine"),
			User:            getEnv("DB_USER", "exitengine"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Security: SecurityConfig{
			JWTSecret:            getEnv("JWT_SECRET", ""),
			JWTAccessTTL:         getEnvAsDuration("JWT_ACCESS_TTL", 15*time.Minute),
			JWTRefreshTTL:        getEnvAsDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
			CredentialCipherKey:  getEnv("CREDENTIAL_CIPHER_KEY", ""),
			CredentialCipherSalt: getEnv("CREDENTIAL_CIPHER_SALT", "exitengine-credential-salt"),
			SessionTimeout:       getEnvAsDuration("SESSION_TIMEOUT", 24*time.Hour),
		},
		Engine: EngineConfig{
			DefaultBrokerID:            getEnv("ENGINE_DEFAULT_BROKER", "kite"),
			PositionPollInterval:       getEnvAsDuration("ENGINE_POSITION_POLL_INTERVAL", 1500*time.Millisecond),
			PricePollInterval:          getEnvAsDuration("ENGINE_PRICE_POLL_INTERVAL", time.Second),
			PriceStreamReconnectDelay:  getEnvAsDuration("ENGINE_PRICE_STREAM_RECONNECT_DELAY", 5*time.Second),
			RulesRefreshInterval:       getEnvAsDuration("ENGINE_RULES_REFRESH_INTERVAL", time.Second),
			MaxConsecutiveAuthFailures: getEnvAsInt("ENGINE_MAX_CONSECUTIVE_AUTH_FAILURES", 3),
			SessionSweepInterval:       getEnvAsDuration("ENGINE_SESSION_SWEEP_INTERVAL", time.Hour),
			TradeLogSweepInterval:      getEnvAsDuration("ENGINE_TRADE_LOG_SWEEP_INTERVAL", 24*time.Hour),
			HealthCheckInterval:        getEnvAsDuration("ENGINE_HEALTH_CHECK_INTERVAL", 5*time.Minute),
			TradeLogRetention:          getEnvAsDuration("ENGINE_TRADE_LOG_RETENTION", 90*24*time.Hour),
			DefaultTimeZone:            getEnv("ENGINE_DEFAULT_TIME_ZONE", "Asia/Kolkata"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Security.JWTSecret == "" {
		return nil, fmt.Errorf("config: JWT_SECRET must be set")
	}
	if cfg.Security.CredentialCipherKey == "" {
		return nil, fmt.Errorf("config: CREDENTIAL_CIPHER_KEY must be set")
	}
	if len(cfg.Security.CredentialCipherKey) < 16 {
		return nil, fmt.Errorf("config: CREDENTIAL_CIPHER_KEY must be at least 16 bytes, got %d", len(cfg.Security.CredentialCipherKey))
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
