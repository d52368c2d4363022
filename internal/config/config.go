package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Worker    WorkerConfig    `yaml:"worker"`
	Session   SessionConfig   `yaml:"session"`
	Download  DownloadConfig  `yaml:"download"`
	YTDLP     YTDLPConfig     `yaml:"ytdlp"`
	TikWM     TikWMConfig     `yaml:"tikwm"`
	Translate TranslateConfig `yaml:"translate"`
	Log       LogConfig       `yaml:"log"`
}

// TelegramConfig holds bot transport configuration.
type TelegramConfig struct {
	Token       string `yaml:"token" envconfig:"BOT_TOKEN"`
	PollTimeout int    `yaml:"poll_timeout" envconfig:"TELEGRAM_POLL_TIMEOUT" default:"30"`
	Debug       bool   `yaml:"debug" envconfig:"TELEGRAM_DEBUG" default:"false"`
}

// ServerConfig holds the health HTTP server configuration.
type ServerConfig struct {
	Enabled      bool          `yaml:"enabled" envconfig:"SERVER_ENABLED" default:"true"`
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"9848"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
}

// StorageConfig holds temporary artifact storage configuration.
type StorageConfig struct {
	TempPath     string `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH" default:"/tmp/clipgrab"`
	MinFreeBytes int64  `yaml:"min_free_bytes" envconfig:"STORAGE_MIN_FREE_BYTES" default:"268435456"` // 256MB
}

// WorkerConfig holds worker pool configuration.
type WorkerConfig struct {
	Count     int `yaml:"count" envconfig:"WORKER_COUNT" default:"4"`
	QueueSize int `yaml:"queue_size" envconfig:"WORKER_QUEUE_SIZE" default:"64"`
}

// SessionConfig holds session store configuration.
// An IdleTTL of zero keeps sessions for the process lifetime.
type SessionConfig struct {
	IdleTTL       time.Duration `yaml:"idle_ttl" envconfig:"SESSION_IDLE_TTL" default:"0s"`
	PruneInterval time.Duration `yaml:"prune_interval" envconfig:"SESSION_PRUNE_INTERVAL" default:"10m"`
}

// DownloadConfig holds HTTP download configuration.
type DownloadConfig struct {
	Timeout       time.Duration `yaml:"timeout" envconfig:"DOWNLOAD_TIMEOUT" default:"30s"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"DOWNLOAD_READ_TIMEOUT" default:"60s"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"DOWNLOAD_RETRY_DELAY" default:"2s"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" envconfig:"DOWNLOAD_MAX_RETRY_DELAY" default:"20s"`
	MaxAttempts   int           `yaml:"max_attempts" envconfig:"DOWNLOAD_MAX_ATTEMPTS" default:"3"`
	MaxPageBytes  int64         `yaml:"max_page_bytes" envconfig:"DOWNLOAD_MAX_PAGE_BYTES" default:"4194304"` // 4MB
	UserAgent     string        `yaml:"user_agent" envconfig:"DOWNLOAD_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
}

// YTDLPConfig holds the yt-dlp extractor configuration.
type YTDLPConfig struct {
	Path    string        `yaml:"path" envconfig:"YTDLP_PATH" default:"yt-dlp"`
	Format  string        `yaml:"format" envconfig:"YTDLP_FORMAT" default:"best[ext=mp4][height<=720]/best[ext=mp4]/mp4"`
	Timeout time.Duration `yaml:"timeout" envconfig:"YTDLP_TIMEOUT" default:"5m"`
}

// TikWMConfig holds the watermark-free lookup API configuration.
type TikWMConfig struct {
	Enabled bool          `yaml:"enabled" envconfig:"TIKWM_ENABLED" default:"true"`
	BaseURL string        `yaml:"base_url" envconfig:"TIKWM_BASE_URL" default:"https://www.tikwm.com"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIKWM_TIMEOUT" default:"20s"`
}

// TranslateConfig holds caption translation configuration.
type TranslateConfig struct {
	Enabled      bool          `yaml:"enabled" envconfig:"TRANSLATE_ENABLED" default:"true"`
	BaseURL      string        `yaml:"base_url" envconfig:"TRANSLATE_BASE_URL" default:"https://translate.googleapis.com"`
	SourceLocale string        `yaml:"source_locale" envconfig:"TRANSLATE_SOURCE" default:"auto"`
	TargetLocale string        `yaml:"target_locale" envconfig:"TRANSLATE_TARGET" default:"id"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"TRANSLATE_TIMEOUT" default:"15s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level" envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that structural configuration values are usable.
func (c *Config) Validate() error {
	if c.Storage.TempPath == "" {
		return fmt.Errorf("STORAGE_TEMP_PATH is required")
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive")
	}
	if c.Worker.QueueSize < 0 {
		return fmt.Errorf("WORKER_QUEUE_SIZE cannot be negative")
	}
	if c.Session.IdleTTL < 0 {
		return fmt.Errorf("SESSION_IDLE_TTL cannot be negative")
	}
	if c.Session.IdleTTL > 0 && c.Session.PruneInterval <= 0 {
		return fmt.Errorf("SESSION_PRUNE_INTERVAL must be positive when SESSION_IDLE_TTL is set")
	}
	if c.YTDLP.Path == "" {
		return fmt.Errorf("YTDLP_PATH is required")
	}
	if c.TikWM.Enabled && c.TikWM.BaseURL == "" {
		return fmt.Errorf("TIKWM_BASE_URL is required when TIKWM_ENABLED is set")
	}
	if c.Translate.Enabled && c.Translate.TargetLocale == "" {
		return fmt.Errorf("TRANSLATE_TARGET is required when TRANSLATE_ENABLED is set")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ValidateTelegram checks the settings needed by the Telegram transport.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown LOG_LEVEL %q", level)
	}
}
