package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Browser  BrowserConfig  `yaml:"browser"`
	Storage  StorageConfig  `yaml:"storage"`
	Download DownloadConfig `yaml:"download"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Notifier NotifierConfig `yaml:"notifier"`
	TikTok   TikTokConfig   `yaml:"tiktok"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"3000"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"`
}

// BrowserConfig holds the shared browser session configuration.
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" envconfig:"BROWSER_HEADLESS" default:"true"`
	ExecutablePath    string        `yaml:"executable_path" envconfig:"BROWSER_EXECUTABLE_PATH"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" envconfig:"BROWSER_NAVIGATION_TIMEOUT" default:"30s"`
	UserAgent         string        `yaml:"user_agent" envconfig:"BROWSER_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"`
}

// StorageConfig holds temporary media storage configuration.
type StorageConfig struct {
	TempPath string `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH" default:"/tmp/reelscope"`
}

// DownloadConfig holds media download configuration.
type DownloadConfig struct {
	Timeout       time.Duration `yaml:"timeout" envconfig:"DOWNLOAD_TIMEOUT" default:"2m"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"DOWNLOAD_RETRY_DELAY" default:"2s"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" envconfig:"DOWNLOAD_MAX_RETRY_DELAY" default:"15s"`
	UserAgent     string        `yaml:"user_agent" envconfig:"DOWNLOAD_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
}

// AnalysisConfig holds the AI vision service configuration.
type AnalysisConfig struct {
	APIKey  string        `yaml:"api_key" envconfig:"ANALYSIS_API_KEY"`
	BaseURL string        `yaml:"base_url" envconfig:"ANALYSIS_BASE_URL" default:"https://api.x.ai/v1"`
	Model   string        `yaml:"model" envconfig:"ANALYSIS_MODEL" default:"grok-2-vision"`
	Timeout time.Duration `yaml:"timeout" envconfig:"ANALYSIS_TIMEOUT" default:"120s"`
}

// NotifierConfig holds the content API callback configuration.
type NotifierConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"NOTIFIER_BASE_URL"`
	APIKey  string        `yaml:"api_key" envconfig:"NOTIFIER_API_KEY"`
	Timeout time.Duration `yaml:"timeout" envconfig:"NOTIFIER_TIMEOUT" default:"10s"`
	Workers int           `yaml:"workers" envconfig:"NOTIFIER_WORKERS" default:"2"`
}

// TikTokConfig holds the external post-downloader API configuration.
type TikTokConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"TIKTOK_BASE_URL" default:"https://www.tikwm.com"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIKTOK_TIMEOUT" default:"30s"`
}

// CacheConfig holds result cache configuration.
type CacheConfig struct {
	AnalysisTTL   time.Duration `yaml:"analysis_ttl" envconfig:"CACHE_ANALYSIS_TTL" default:"2h"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"CACHE_SWEEP_INTERVAL" default:"10m"`
	SQLitePath    string        `yaml:"sqlite_path" envconfig:"CACHE_SQLITE_PATH"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Analysis.APIKey == "" {
		return fmt.Errorf("ANALYSIS_API_KEY is required")
	}
	if c.Notifier.BaseURL == "" {
		return fmt.Errorf("NOTIFIER_BASE_URL is required")
	}
	if c.Storage.TempPath == "" {
		return fmt.Errorf("STORAGE_TEMP_PATH is required")
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser navigation timeout must be positive")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
