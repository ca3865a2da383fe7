package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	OpenAI      OpenAIConfig      `yaml:"openai" mapstructure:"openai"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Enrichment  EnrichmentConfig  `yaml:"enrichment" mapstructure:"enrichment"`
	Vendors     VendorsConfig     `yaml:"vendors" mapstructure:"vendors"`
	Credentials CredentialsConfig `yaml:"credentials" mapstructure:"credentials"`
	Report      ReportConfig      `yaml:"report" mapstructure:"report"`
	SMTP        SMTPConfig        `yaml:"smtp" mapstructure:"smtp"`
	Archive     ArchiveConfig     `yaml:"archive" mapstructure:"archive"`
	Webhooks    WebhooksConfig    `yaml:"webhooks" mapstructure:"webhooks"`
	RateLimit   RateLimitConfig   `yaml:"ratelimit" mapstructure:"ratelimit"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins   []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// LLMConfig configures report generation calls. Token budgets are per tier.
type LLMConfig struct {
	Provider          string  `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	EnhancedMaxTokens int     `yaml:"enhanced_max_tokens" mapstructure:"enhanced_max_tokens"`
	BIMaxTokens       int     `yaml:"bi_max_tokens" mapstructure:"bi_max_tokens"`
}

// Timeout returns the LLM call budget.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// EnrichmentConfig configures the vendor aggregator.
type EnrichmentConfig struct {
	DefaultProviders  []string `yaml:"default_providers" mapstructure:"default_providers"`
	Parallel          bool     `yaml:"parallel" mapstructure:"parallel"`
	WeightsFile       string   `yaml:"weights_file" mapstructure:"weights_file"`
	VendorTimeoutSecs int      `yaml:"vendor_timeout_secs" mapstructure:"vendor_timeout_secs"`
	RetryAttempts     int      `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	BreakerThreshold  int      `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs  int      `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	PhoneRegion       string   `yaml:"phone_region" mapstructure:"phone_region"`
}

// VendorConfig is the endpoint and bootstrap key of one enrichment vendor.
// Keys stored in the credentials table take precedence.
type VendorConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ClayConfig adds the table webhook Clay posts lookups to.
type ClayConfig struct {
	VendorConfig `yaml:",inline" mapstructure:",squash"`
	WebhookURL   string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CallbackURL  string `yaml:"callback_url" mapstructure:"callback_url"`
}

// VendorsConfig groups the enrichment vendors.
type VendorsConfig struct {
	Hunter   VendorConfig `yaml:"hunter" mapstructure:"hunter"`
	Apollo   VendorConfig `yaml:"apollo" mapstructure:"apollo"`
	ZoomInfo VendorConfig `yaml:"zoominfo" mapstructure:"zoominfo"`
	Clay     ClayConfig   `yaml:"clay" mapstructure:"clay"`
}

// CredentialsConfig configures the encrypted credential store.
type CredentialsConfig struct {
	EncryptionKey string `yaml:"encryption_key" mapstructure:"encryption_key"`
	CacheTTLSecs  int    `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// Key decodes the hex encryption key. An empty key returns nil.
func (c CredentialsConfig) Key() ([]byte, error) {
	if c.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, eris.Wrap(err, "config: decode credentials.encryption_key")
	}
	if len(key) != 32 {
		return nil, eris.Errorf("config: credentials.encryption_key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// ReportConfig configures report generation.
type ReportConfig struct {
	AutoEnrich   bool   `yaml:"auto_enrich" mapstructure:"auto_enrich"`
	DashboardURL string `yaml:"dashboard_url" mapstructure:"dashboard_url"`
}

// SMTPConfig configures the report-ready email. An empty host disables email.
type SMTPConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	From     string `yaml:"from" mapstructure:"from"`
	FromName string `yaml:"from_name" mapstructure:"from_name"`
}

// ArchiveConfig configures HTML report archiving. An empty endpoint disables it.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// WebhooksConfig holds inbound webhook signing secrets.
type WebhooksConfig struct {
	ClaySecret string `yaml:"clay_secret" mapstructure:"clay_secret"`
}

// RateLimitConfig configures the per-IP token bucket on the API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OFFMARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to "" so AutomaticEnv can see the keys.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.read_timeout_secs", 30)
	v.SetDefault("server.write_timeout_secs", 120)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.timeout_secs", 60)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.enhanced_max_tokens", 2000)
	v.SetDefault("llm.bi_max_tokens", 4000)
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("enrichment.default_providers", []string{"hunter", "apollo"})
	v.SetDefault("enrichment.parallel", false)
	v.SetDefault("enrichment.weights_file", "")
	v.SetDefault("enrichment.vendor_timeout_secs", 15)
	v.SetDefault("enrichment.retry_attempts", 2)
	v.SetDefault("enrichment.breaker_threshold", 5)
	v.SetDefault("enrichment.breaker_reset_secs", 60)
	v.SetDefault("enrichment.phone_region", "US")
	v.SetDefault("vendors.hunter.key", "")
	v.SetDefault("vendors.hunter.base_url", "https://api.hunter.io/v2")
	v.SetDefault("vendors.apollo.key", "")
	v.SetDefault("vendors.apollo.base_url", "https://api.apollo.io/api/v1")
	v.SetDefault("vendors.zoominfo.key", "")
	v.SetDefault("vendors.zoominfo.base_url", "https://api.zoominfo.com")
	v.SetDefault("vendors.clay.key", "")
	v.SetDefault("vendors.clay.webhook_url", "")
	v.SetDefault("vendors.clay.callback_url", "")
	v.SetDefault("credentials.encryption_key", "")
	v.SetDefault("credentials.cache_ttl_secs", 300)
	v.SetDefault("report.auto_enrich", true)
	v.SetDefault("report.dashboard_url", "http://localhost:3000")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "reports@exitschool.com")
	v.SetDefault("smtp.from_name", "Exit School Off-Market")
	v.SetDefault("archive.endpoint", "")
	v.SetDefault("archive.access_key", "")
	v.SetDefault("archive.secret_key", "")
	v.SetDefault("archive.bucket", "offmarket-reports")
	v.SetDefault("archive.use_ssl", true)
	v.SetDefault("webhooks.clay_secret", "")
	v.SetDefault("ratelimit.requests_per_second", 5.0)
	v.SetDefault("ratelimit.burst", 10)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs. Modes: serve, enrich,
// report, migrate. All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string
	require := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	switch c.Store.Driver {
	case "postgres":
		require(c.Store.DatabaseURL != "", "store.database_url is required")
	case "sqlite":
		require(c.Store.DatabaseURL != "", "store.database_url is required (sqlite path)")
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be postgres or sqlite", c.Store.Driver))
	}
	if _, err := c.Credentials.Key(); err != nil {
		errs = append(errs, err.Error())
	}

	switch mode {
	case "migrate", "enrich":
	case "serve", "report":
		switch c.LLM.Provider {
		case "openai", "anthropic":
		default:
			errs = append(errs, fmt.Sprintf("llm.provider %q must be openai or anthropic", c.LLM.Provider))
		}
		require(c.LLM.EnhancedMaxTokens > 0 && c.LLM.BIMaxTokens > 0, "llm token budgets must be > 0")
		require(c.LLM.Temperature >= 0 && c.LLM.Temperature <= 2, "llm.temperature must be between 0 and 2")
		if mode == "serve" {
			require(c.Server.Port > 0, "server.port must be > 0")
			require(c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst > 0, "ratelimit values must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
