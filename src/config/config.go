package config

import (
	"errors"
	"fmt"
	"os"

	"portfolio-stream/src/models"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when a key is absent from the YAML file.
const (
	DefaultQuoteIntervalSeconds     = 10
	DefaultPortfolioIntervalSeconds = 60
	DefaultCacheTTLSeconds          = 300
	DefaultFetchTimeoutSeconds      = 5
	DefaultSendBuffer               = 256
	DefaultMaxMessageBytes          = 1024 * 1024
	DefaultMessagesPerSecond        = 20
	DefaultMessageBurst             = 40
	DefaultTokenTTLMinutes          = 60
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// secrets are the values that may be overridden from the environment (or a
// .env file) so they never need to live in the YAML file.
type secrets struct {
	JWTSecret          string `env:"JWT_SECRET"`
	LegacySecretKey    string `env:"SECRET_KEY"`
	FMPAPIKey          string `env:"FMP_API_KEY"`
	DBConnectionString string `env:"DB_CONNECTION_STRING"`
	Port               int    `env:"PORT"`
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from a YAML file, applying
// environment overrides and defaults before validating.
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a Config from raw YAML.
func Parse(data []byte) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	if err := config.applyEnv(); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// LoadDotEnv loads variables from the given .env files. A missing file is not
// an error.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv() error {
	var s secrets
	if err := env.Parse(&s); err != nil {
		return err
	}

	if s.JWTSecret != "" {
		c.Auth.JWTSecret = s.JWTSecret
	} else if s.LegacySecretKey != "" {
		c.Auth.JWTSecret = s.LegacySecretKey
	}
	if s.FMPAPIKey != "" {
		c.Quotes.APIKey = s.FMPAPIKey
	}
	if s.DBConnectionString != "" {
		c.Storage.DBConnectionString = s.DBConnectionString
	}
	if s.Port != 0 {
		c.Port = s.Port
	}
	return nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Auth.TokenTTLMinutes == 0 {
		c.Auth.TokenTTLMinutes = DefaultTokenTTLMinutes
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 10
	}
	if c.Quotes.Provider == "" {
		c.Quotes.Provider = "fmp"
	}
	if c.Quotes.CacheTTLSeconds == 0 {
		c.Quotes.CacheTTLSeconds = DefaultCacheTTLSeconds
	}
	if c.Quotes.ClosedMarketTTLSeconds == 0 {
		c.Quotes.ClosedMarketTTLSeconds = c.Quotes.CacheTTLSeconds
	}
	if c.Quotes.FetchTimeoutSeconds == 0 {
		c.Quotes.FetchTimeoutSeconds = DefaultFetchTimeoutSeconds
	}

	st := &c.Stream
	if st.QuoteIntervalSeconds == 0 {
		st.QuoteIntervalSeconds = DefaultQuoteIntervalSeconds
	}
	if st.PortfolioIntervalSeconds == 0 {
		st.PortfolioIntervalSeconds = DefaultPortfolioIntervalSeconds
	}
	if st.SendBuffer == 0 {
		st.SendBuffer = DefaultSendBuffer
	}
	if st.MaxMessageBytes == 0 {
		st.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if st.MessagesPerSecond == 0 {
		st.MessagesPerSecond = DefaultMessagesPerSecond
	}
	if st.MessageBurst == 0 {
		st.MessageBurst = DefaultMessageBurst
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Server
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid gRPC port number: %d", c.GrpcPort)
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret cannot be empty (set auth.jwt_secret or JWT_SECRET)")
	}

	// Storage
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}

	// Network
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Quotes
	switch c.Quotes.Provider {
	case "fmp", "yahoo", "mock":
	default:
		return fmt.Errorf("unsupported quote provider: %s", c.Quotes.Provider)
	}
	if c.Quotes.CacheTTLSeconds < 0 || c.Quotes.ClosedMarketTTLSeconds < 0 {
		return fmt.Errorf("quote cache ttl cannot be negative")
	}
	if c.Quotes.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("quote fetch timeout must be greater than 0")
	}

	// Stream
	if c.Stream.QuoteIntervalSeconds <= 0 || c.Stream.PortfolioIntervalSeconds <= 0 {
		return fmt.Errorf("update intervals must be greater than 0")
	}
	if c.Stream.SendBuffer <= 0 {
		return fmt.Errorf("send buffer must be greater than 0")
	}
	if c.Stream.MessagesPerSecond <= 0 || c.Stream.MessageBurst <= 0 {
		return fmt.Errorf("message rate limit must be greater than 0")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
