package models

// MConfig Structure
type MConfig struct {
	Name           string         `yaml:"name"`
	Host           string         `yaml:"host"`
	Port           int            `yaml:"port"`
	LogLevel       string         `yaml:"log_level"`
	GrpcHost       string         `yaml:"grpc_host"`
	GrpcPort       int            `yaml:"grpc_port"`
	AllowedOrigins []string       `yaml:"allowed_origins"`
	Auth           MAuthConfig    `yaml:"auth"`
	Storage        MStorageConfig `yaml:"storage"`
	Network        MNetworkConfig `yaml:"network"`
	Quotes         MQuotesConfig  `yaml:"quotes"`
	Stream         MStreamConfig  `yaml:"stream"`
}

type MAuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret"`
	Issuer          string `yaml:"issuer"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
	Schema             string `yaml:"schema"`
}

type MNetworkConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout"`
	MaxRetries     int      `yaml:"retries"`
	UserAgent      string   `yaml:"user_agent"`
}

type MQuotesConfig struct {
	Provider               string `yaml:"provider"` // "fmp", "yahoo" or "mock"
	BaseURL                string `yaml:"base_url"`
	APIKey                 string `yaml:"api_key"`
	CacheTTLSeconds        int    `yaml:"cache_ttl_seconds"`
	ClosedMarketTTLSeconds int    `yaml:"closed_market_ttl_seconds"`
	FetchTimeoutSeconds    int    `yaml:"fetch_timeout_seconds"`
	MockFallback           *bool  `yaml:"mock_fallback"`
}

// MockFallbackEnabled defaults to true when the key is absent.
func (q MQuotesConfig) MockFallbackEnabled() bool {
	return q.MockFallback == nil || *q.MockFallback
}

type MStreamConfig struct {
	QuoteIntervalSeconds     int     `yaml:"quote_interval_seconds"`
	PortfolioIntervalSeconds int     `yaml:"portfolio_interval_seconds"`
	SendBuffer               int     `yaml:"send_buffer"`
	MaxMessageBytes          int64   `yaml:"max_message_bytes"`
	MessagesPerSecond        float64 `yaml:"messages_per_second"`
	MessageBurst             int     `yaml:"message_burst"`
}
