// Package config loads pricewise settings from defaults, an optional config
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/pricewise/internal/fingerprint"
	"github.com/FranksOps/pricewise/internal/logging"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PRICEWISE_SEARCH_PROVIDER.
const EnvPrefix = "PRICEWISE"

// Providers and backends accepted by Validate.
var (
	SearchProviders = []string{"serper", "google"}
	FetchProviders  = []string{"firecrawl", "direct"}
	StorageBackends = []string{"none", "sqlite", "postgres", "csv", "json"}
	LogFormats      = []string{"text", "json"}
	UserAgentOrders = []string{"sequential", "random"}
)

// ErrRequired marks a setting that must not be empty.
var ErrRequired = errors.New("config: value is required")

type PredictorConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SearchConfig struct {
	Provider   string        `mapstructure:"provider"`
	APIKey     string        `mapstructure:"api_key"`
	Endpoint   string        `mapstructure:"endpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Suffix     string        `mapstructure:"suffix"`
	MaxResults int           `mapstructure:"max_results"`
}

// FetchConfig covers the content fetcher and the direct HTTP transport,
// which the google search provider shares.
type FetchConfig struct {
	Provider      string        `mapstructure:"provider"`
	APIKey        string        `mapstructure:"api_key"`
	Endpoint      string        `mapstructure:"endpoint"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Concurrency   int           `mapstructure:"concurrency"`
	IncludeChrome bool          `mapstructure:"include_chrome"`

	Fingerprint      string        `mapstructure:"fingerprint"`
	UserAgents       []string      `mapstructure:"user_agents"`
	UserAgentOrder   string        `mapstructure:"user_agent_order"`
	Proxies          []string      `mapstructure:"proxies"`
	ProxyFile        string        `mapstructure:"proxy_file"`
	ProxyMaxFailures int           `mapstructure:"proxy_max_failures"`
	ProxyCooldown    time.Duration `mapstructure:"proxy_cooldown"`
	RateLimit        float64       `mapstructure:"rate_limit"`
	Jitter           float64       `mapstructure:"jitter"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
	RespectRobots    bool          `mapstructure:"respect_robots"`
	RobotsAgent      string        `mapstructure:"robots_agent"`
}

type PipelineConfig struct {
	SearchRequiresPrediction bool `mapstructure:"search_requires_prediction"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	// DSN is a file path for sqlite, csv and json, a connection string for postgres.
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

// Config is the full application configuration.
type Config struct {
	Predictor PredictorConfig `mapstructure:"predictor"`
	Search    SearchConfig    `mapstructure:"search"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("predictor.url", "")
	v.SetDefault("predictor.timeout", 120*time.Second)

	v.SetDefault("search.provider", "serper")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.endpoint", "")
	v.SetDefault("search.timeout", 15*time.Second)
	v.SetDefault("search.suffix", "price buy online")
	v.SetDefault("search.max_results", 5)

	v.SetDefault("fetch.provider", "firecrawl")
	v.SetDefault("fetch.api_key", "")
	v.SetDefault("fetch.endpoint", "")
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.concurrency", 5)
	v.SetDefault("fetch.include_chrome", false)
	v.SetDefault("fetch.fingerprint", "chrome")
	v.SetDefault("fetch.user_agents", []string{})
	v.SetDefault("fetch.user_agent_order", "random")
	v.SetDefault("fetch.proxies", []string{})
	v.SetDefault("fetch.proxy_file", "")
	v.SetDefault("fetch.proxy_max_failures", 3)
	v.SetDefault("fetch.proxy_cooldown", 5*time.Minute)
	v.SetDefault("fetch.rate_limit", 2.0)
	v.SetDefault("fetch.jitter", 0.2)
	v.SetDefault("fetch.max_body_bytes", 4<<20)
	v.SetDefault("fetch.respect_robots", true)
	v.SetDefault("fetch.robots_agent", "pricewise")

	v.SetDefault("pipeline.search_requires_prediction", false)

	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.dsn", "pricewise.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.port", 0)
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply. The service-specific variables MODAL_URL,
// SERPER_API_KEY and FIRECRAWL_API_KEY are honoured as fallbacks.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("predictor.url", EnvPrefix+"_PREDICTOR_URL", "MODAL_URL")
	_ = v.BindEnv("search.api_key", EnvPrefix+"_SEARCH_API_KEY", "SERPER_API_KEY")
	_ = v.BindEnv("fetch.api_key", EnvPrefix+"_FETCH_API_KEY", "FIRECRAWL_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

func oneOf(field, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("config: %s %q is not one of %s", field, value, strings.Join(allowed, ", "))
}

// Validate checks the settings needed to build a pipeline.
func (c *Config) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	required := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			add(fmt.Errorf("%w: %s", ErrRequired, field))
		}
	}
	positive := func(field string, d time.Duration) {
		if d <= 0 {
			add(fmt.Errorf("config: %s must be positive, got %s", field, d))
		}
	}

	required("predictor.url", c.Predictor.URL)
	positive("predictor.timeout", c.Predictor.Timeout)

	add(oneOf("search.provider", c.Search.Provider, SearchProviders))
	if c.Search.Provider == "serper" {
		required("search.api_key", c.Search.APIKey)
	}
	positive("search.timeout", c.Search.Timeout)
	if c.Search.MaxResults < 1 || c.Search.MaxResults > 5 {
		add(fmt.Errorf("config: search.max_results must be between 1 and 5, got %d", c.Search.MaxResults))
	}

	add(oneOf("fetch.provider", c.Fetch.Provider, FetchProviders))
	if c.Fetch.Provider == "firecrawl" {
		required("fetch.api_key", c.Fetch.APIKey)
	}
	positive("fetch.timeout", c.Fetch.Timeout)
	if c.Fetch.Concurrency < 1 {
		add(fmt.Errorf("config: fetch.concurrency must be at least 1, got %d", c.Fetch.Concurrency))
	}
	if _, err := fingerprint.ParseProfile(c.Fetch.Fingerprint); err != nil {
		add(fmt.Errorf("config: fetch.fingerprint: %w", err))
	}
	add(oneOf("fetch.user_agent_order", c.Fetch.UserAgentOrder, UserAgentOrders))
	if c.Fetch.RateLimit < 0 || c.Fetch.Jitter < 0 {
		add(errors.New("config: fetch.rate_limit and fetch.jitter must not be negative"))
	}

	add(oneOf("storage.backend", c.Storage.Backend, StorageBackends))
	if c.Storage.Backend != "none" {
		required("storage.dsn", c.Storage.DSN)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		add(err)
	}
	add(oneOf("log.format", c.Log.Format, LogFormats))
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		add(fmt.Errorf("config: metrics.port %d out of range", c.Metrics.Port))
	}

	return errors.Join(errs...)
}
