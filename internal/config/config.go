package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hindsightlab/hindsight/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig              `mapstructure:"server"`
	Feed       FeedConfig                `mapstructure:"feed"`
	Cache      CacheConfig               `mapstructure:"cache"`
	Backtest   BacktestConfig            `mapstructure:"backtest"`
	Strategies map[string]StrategyConfig `mapstructure:"strategies"`
	Report     ReportConfig              `mapstructure:"report"`
	LLM        LLMConfig                 `mapstructure:"llm"`
	Metrics    MetricsConfig             `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	APIKey      string `mapstructure:"api_key"`
	JobTTLHours int    `mapstructure:"job_ttl_hours"`
	MaxJobs     int    `mapstructure:"max_jobs"`
}

// FeedConfig holds exchange data feed settings.
type FeedConfig struct {
	Provider   string  `mapstructure:"provider"` // "binance"
	BaseURL    string  `mapstructure:"base_url"` // optional endpoint override
	APIKey     string  `mapstructure:"api_key"`
	APISecret  string  `mapstructure:"api_secret"`
	Quote      string  `mapstructure:"quote"`    // quote asset for pair discovery
	TopN       int     `mapstructure:"top_n"`    // pairs ranked by quote volume
	Interval   string  `mapstructure:"interval"` // "1m", "5m", ...
	RateLimit  float64 `mapstructure:"rate_limit"`
	Burst      int     `mapstructure:"burst"`
	MaxRetries int     `mapstructure:"max_retries"`
}

// CacheConfig holds the local bar cache settings.
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// BacktestConfig holds simulation knobs. Zero values mean the engine
// defaults: capital 1.0, all-in sizing, no fees, no slippage, horizon
// trades included.
type BacktestConfig struct {
	InitialCapital       float64 `mapstructure:"initial_capital"`
	PositionFraction     float64 `mapstructure:"position_fraction"`
	FeeRate              float64 `mapstructure:"fee_rate"`
	SlippageRate         float64 `mapstructure:"slippage_rate"`
	ExcludeHorizonTrades bool    `mapstructure:"exclude_horizon_trades"`
	Workers              int     `mapstructure:"workers"`
}

type StrategyConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Params  map[string]any `mapstructure:"params"`
}

// ReportConfig holds artifact output settings.
type ReportConfig struct {
	Dir     string   `mapstructure:"dir"`
	Storage string   `mapstructure:"storage"` // "localfs" or "s3"
	S3      S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

type LLMConfig struct {
	Provider string       `mapstructure:"provider"`
	Claude   ClaudeConfig `mapstructure:"claude"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
	Ollama   OllamaConfig `mapstructure:"ollama"`
}

type ClaudeConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type OllamaConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from file
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			JobTTLHours: 1,
			MaxJobs:     100,
		},
		Feed: FeedConfig{
			Provider:   "binance",
			Quote:      "BTC",
			TopN:       10,
			Interval:   "1m",
			RateLimit:  10,
			Burst:      20,
			MaxRetries: 3,
		},
		Cache: CacheConfig{
			Dir: "data",
		},
		Backtest: BacktestConfig{
			InitialCapital:   1.0,
			PositionFraction: 1.0,
		},
		Report: ReportConfig{
			Dir:     "results",
			Storage: "localfs",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	// Feed validation
	if c.Feed.TopN < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("top_n cannot be negative, got %d", c.Feed.TopN))
	}
	if c.Feed.RateLimit < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("rate_limit cannot be negative, got %f", c.Feed.RateLimit))
	}
	if c.Feed.Interval != "" && core.Interval(c.Feed.Interval).Duration() == 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unrecognized interval %q", c.Feed.Interval))
	}

	// Backtest validation
	if c.Backtest.InitialCapital < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("initial_capital cannot be negative, got %f", c.Backtest.InitialCapital))
	}
	if c.Backtest.PositionFraction < 0 || c.Backtest.PositionFraction > 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("position_fraction must be between 0 and 1, got %f", c.Backtest.PositionFraction))
	}
	if c.Backtest.FeeRate < 0 || c.Backtest.FeeRate >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("fee_rate must be in [0, 1), got %f", c.Backtest.FeeRate))
	}
	if c.Backtest.SlippageRate < 0 || c.Backtest.SlippageRate >= 1 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("slippage_rate must be in [0, 1), got %f", c.Backtest.SlippageRate))
	}

	// Report validation
	switch c.Report.Storage {
	case "", "localfs":
	case "s3":
		if c.Report.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("s3 bucket required when report storage is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown report storage %q", c.Report.Storage))
	}

	// LLM validation - if provider set, check config exists
	if c.LLM.Provider != "" {
		switch c.LLM.Provider {
		case "claude":
			if c.LLM.Claude.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("claude api_key required when provider is claude"))
			}
		case "openai":
			if c.LLM.OpenAI.APIKey == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("openai api_key required when provider is openai"))
			}
		case "ollama":
			if c.LLM.Ollama.Endpoint == "" {
				return core.WrapError(core.ErrConfigMissing,
					fmt.Errorf("ollama endpoint required when provider is ollama"))
			}
		}
	}

	return nil
}
