package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Bitrix    BitrixConfig    `yaml:"bitrix" mapstructure:"bitrix"`
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings for the AI research provider.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxSearches int    `yaml:"max_searches" mapstructure:"max_searches"`
}

// BitrixConfig holds the Bitrix24 inbound webhook settings.
type BitrixConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// CrawlConfig configures the site crawler.
type CrawlConfig struct {
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"`
	MaxDepth int `yaml:"max_depth" mapstructure:"max_depth"`
	DelayMS  int `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// SearchConfig configures website discovery via web search.
type SearchConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// HTTPConfig configures the shared outbound HTTP client.
type HTTPConfig struct {
	UserAgent       string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts     int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	HostRatePerSec  float64 `yaml:"host_rate_per_sec" mapstructure:"host_rate_per_sec"`
	HostBurst       int     `yaml:"host_burst" mapstructure:"host_burst"`
	ProviderTimeout int     `yaml:"provider_timeout_secs" mapstructure:"provider_timeout_secs"`
}

// ProvidersConfig points at the provider plan file.
type ProvidersConfig struct {
	PlanPath string `yaml:"plan_path" mapstructure:"plan_path"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentCompanies int `yaml:"max_concurrent_companies" mapstructure:"max_concurrent_companies"`
}

// ServerConfig configures the dashboard API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("B2B")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "b2b-intel.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_companies", 5)
	v.SetDefault("crawl.max_pages", 10)
	v.SetDefault("crawl.max_depth", 2)
	v.SetDefault("crawl.delay_ms", 500)
	v.SetDefault("search.base_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("search.max_results", 10)
	v.SetDefault("http.timeout_secs", 8)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.host_rate_per_sec", 2)
	v.SetDefault("http.host_burst", 2)
	v.SetDefault("http.provider_timeout_secs", 120)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.max_searches", 5)
	v.SetDefault("providers.plan_path", "")

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

// Validate checks the settings a given command mode depends on. Collected
// problems are reported together so an operator fixes them in one round.
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(cond bool, msg string) {
		if cond {
			problems = append(problems, msg)
		}
	}

	check(c.Store.Driver != "sqlite" && c.Store.Driver != "postgres",
		"store.driver must be sqlite or postgres")
	check(c.Store.DatabaseURL == "", "store.database_url is required")
	check(c.Batch.MaxConcurrentCompanies < 1 || c.Batch.MaxConcurrentCompanies > 50,
		"batch.max_concurrent_companies must be between 1 and 50")

	switch mode {
	case "migrate", "ingest", "score", "reset", "crawl":
		// Store settings only.
	case "enrich", "batch":
		check(c.Anthropic.Key == "", "anthropic.key is required")
	case "sync":
		check(c.Bitrix.WebhookURL == "", "bitrix.webhook_url is required")
	case "serve":
		check(c.Server.Port <= 0, "server.port must be > 0")
		check(c.Anthropic.Key == "", "anthropic.key is required")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
