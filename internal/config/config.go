package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spendsense/finance-api/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	OpenRouter OpenRouterConfig `yaml:"openrouter" mapstructure:"openrouter"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Failover   FailoverConfig   `yaml:"failover" mapstructure:"failover"`
	Extract    ExtractConfig    `yaml:"extract" mapstructure:"extract"`
	Rates      RatesConfig      `yaml:"rates" mapstructure:"rates"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the snapshot persistence backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string            `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// OpenRouterConfig holds the OpenRouter API settings and model rosters.
type OpenRouterConfig struct {
	Key          string   `yaml:"key" mapstructure:"key"`
	BaseURL      string   `yaml:"base_url" mapstructure:"base_url"`
	TextModels   []string `yaml:"text_models" mapstructure:"text_models"`
	VisionModels []string `yaml:"vision_models" mapstructure:"vision_models"`
	RateLimitRPS float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// AnthropicConfig holds the optional paid-fallback backend settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// FailoverConfig tunes the orchestrator timeouts.
type FailoverConfig struct {
	AttemptTimeoutSecs int `yaml:"attempt_timeout_secs" mapstructure:"attempt_timeout_secs"`
	VisionTimeoutSecs  int `yaml:"vision_timeout_secs" mapstructure:"vision_timeout_secs"`
	CollectTimeoutSecs int `yaml:"collect_timeout_secs" mapstructure:"collect_timeout_secs"`
	RateLimitPauseMS   int `yaml:"rate_limit_pause_ms" mapstructure:"rate_limit_pause_ms"`
}

// ExtractConfig configures the receipt extraction pipeline.
type ExtractConfig struct {
	EasyOCRPath          string `yaml:"easyocr_path" mapstructure:"easyocr_path"`
	TesseractPath        string `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	OCRSpaceKey          string `yaml:"ocrspace_key" mapstructure:"ocrspace_key"`
	CategoriesPath       string `yaml:"categories_path" mapstructure:"categories_path"`
	RefinementOverwrites bool   `yaml:"refinement_overwrites" mapstructure:"refinement_overwrites"`
	MaxConcurrentParses  int    `yaml:"max_concurrent_parses" mapstructure:"max_concurrent_parses"`
}

// RatesConfig configures the rate cache manager and its sources.
type RatesConfig struct {
	WindowHours       int    `yaml:"window_hours" mapstructure:"window_hours"`
	GoldPriceEndpoint string `yaml:"goldprice_endpoint" mapstructure:"goldprice_endpoint"`
	MetalsKey         string `yaml:"metals_key" mapstructure:"metals_key"`
	MetalsEndpoint    string `yaml:"metals_endpoint" mapstructure:"metals_endpoint"`
	CurrencyEndpoint  string `yaml:"currency_endpoint" mapstructure:"currency_endpoint"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AttemptTimeout returns the per-attempt timeout as a duration.
func (c FailoverConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutSecs) * time.Second
}

// VisionTimeout returns the vision-attempt timeout as a duration.
func (c FailoverConfig) VisionTimeout() time.Duration {
	return time.Duration(c.VisionTimeoutSecs) * time.Second
}

// CollectTimeout returns the collect-mode attempt timeout as a duration.
func (c FailoverConfig) CollectTimeout() time.Duration {
	return time.Duration(c.CollectTimeoutSecs) * time.Second
}

// RateLimitPause returns the post-429 pause as a duration.
func (c FailoverConfig) RateLimitPause() time.Duration {
	return time.Duration(c.RateLimitPauseMS) * time.Millisecond
}

// Window returns the cache staleness window as a duration.
func (c RatesConfig) Window() time.Duration {
	return time.Duration(c.WindowHours) * time.Hour
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FINANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "finance.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.rate_limit_rps", 2)
	v.SetDefault("failover.attempt_timeout_secs", 15)
	v.SetDefault("failover.vision_timeout_secs", 45)
	v.SetDefault("failover.collect_timeout_secs", 30)
	v.SetDefault("failover.rate_limit_pause_ms", 500)
	v.SetDefault("extract.easyocr_path", "easyocr")
	v.SetDefault("extract.tesseract_path", "tesseract")
	v.SetDefault("extract.refinement_overwrites", true)
	v.SetDefault("extract.max_concurrent_parses", 4)
	v.SetDefault("rates.window_hours", 12)

	// Credentials default empty so AutomaticEnv can populate them without
	// a config file present.
	v.SetDefault("openrouter.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("extract.ocrspace_key", "")
	v.SetDefault("rates.metals_key", "")
	v.SetDefault("store.database_url", "")

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
