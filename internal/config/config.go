package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"moonpulse/internal/domain"
)

const (
	defaultPort            = 8080
	defaultTrendmoonURL    = "https://api.trendmoon.ai"
	defaultManifestURL     = "http://localhost:3000/.well-known/ai-plugin.json"
	defaultOpenAIModel     = "gpt-4o"
	defaultMCPHTTPPort     = 8090
	defaultMCPTimeoutSecs  = 60
	defaultUpstreamTimeout = 30
)

type Config struct {
	Port int

	TrendmoonBaseURL      string
	TrendmoonAPIKey       string
	TrendmoonTimeoutSecs  int
	TrendmoonRateLimitMin int

	ToolManifestURL         string
	ToolManifestEnabled     bool
	ToolManifestRefreshSecs int
	ToolManifestStrict      bool

	CredentialCheckEnabled bool
	CredentialCheckTTLSecs int

	RedisURL string

	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITemperature float64

	AnalysisWindows     []domain.Window
	DefaultLookbackDays int

	TelegramBotToken string

	MCPTransport          string
	MCPHTTPEnabled        bool
	MCPHTTPBind           string
	MCPHTTPPort           int
	MCPRequestTimeoutSecs int
}

func Load() *Config {
	cfg := &Config{
		TrendmoonAPIKey:  os.Getenv("TRENDMOON_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		RedisURL:         strings.TrimSpace(os.Getenv("REDIS_URL")),
	}

	if cfg.TrendmoonAPIKey == "" {
		log.Println("Warning: TRENDMOON_API_KEY not set, upstream calls will fail")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, social trend summaries will be disabled")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, credential checks will be cached in memory")
	}

	cfg.Port = positiveInt("PORT", defaultPort)

	cfg.TrendmoonBaseURL = strings.TrimRight(stringOr("TRENDMOON_BASE_URL", defaultTrendmoonURL), "/")
	cfg.TrendmoonTimeoutSecs = positiveInt("TRENDMOON_TIMEOUT_SECS", defaultUpstreamTimeout)
	cfg.TrendmoonRateLimitMin = positiveInt("TRENDMOON_RATE_LIMIT_PER_MIN", 60)

	cfg.ToolManifestURL = stringOr("TOOL_MANIFEST_URL", stringOr("MCP_SERVER_URL", defaultManifestURL))
	cfg.ToolManifestEnabled = boolOr("TOOL_MANIFEST_ENABLED", true)
	cfg.ToolManifestRefreshSecs = positiveInt("TOOL_MANIFEST_REFRESH_SECS", 900)
	cfg.ToolManifestStrict = boolOr("TOOL_MANIFEST_STRICT", false)

	cfg.CredentialCheckEnabled = boolOr("CREDENTIAL_CHECK_ENABLED", true)
	cfg.CredentialCheckTTLSecs = positiveInt("CREDENTIAL_CHECK_TTL_SECS", 300)

	cfg.OpenAIModel = stringOr("OPENAI_MODEL", defaultOpenAIModel)
	cfg.OpenAITemperature = 1
	if v := strings.TrimSpace(os.Getenv("OPENAI_TEMPERATURE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 2 {
			cfg.OpenAITemperature = f
		}
	}

	cfg.AnalysisWindows = domain.ParseWindows(os.Getenv("ANALYSIS_WINDOWS"))
	cfg.DefaultLookbackDays = positiveInt("DEFAULT_LOOKBACK_DAYS", domain.DefaultLookbackDays)

	cfg.MCPTransport = strings.ToLower(stringOr("MCP_TRANSPORT", "stdio"))
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}
	cfg.MCPHTTPEnabled = boolOr("MCP_HTTP_ENABLED", false)
	cfg.MCPHTTPBind = stringOr("MCP_HTTP_BIND", "127.0.0.1")
	cfg.MCPHTTPPort = positiveInt("MCP_HTTP_PORT", defaultMCPHTTPPort)
	cfg.MCPRequestTimeoutSecs = positiveInt("MCP_REQUEST_TIMEOUT_SECS", defaultMCPTimeoutSecs)

	return cfg
}

func (c *Config) TrendmoonTimeout() time.Duration {
	return time.Duration(c.TrendmoonTimeoutSecs) * time.Second
}

func (c *Config) CredentialCheckTTL() time.Duration {
	return time.Duration(c.CredentialCheckTTLSecs) * time.Second
}

func (c *Config) ToolManifestRefresh() time.Duration {
	return time.Duration(c.ToolManifestRefreshSecs) * time.Second
}

func (c *Config) MCPRequestTimeout() time.Duration {
	return time.Duration(c.MCPRequestTimeoutSecs) * time.Second
}

func stringOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// positiveInt falls back to def for unset, malformed, or non-positive values.
func positiveInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
	}
	return def
}

func boolOr(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
