package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	Env            string `mapstructure:"app_env"`
	LogLevel       string `mapstructure:"log_level"`
	TargetsFile    string `mapstructure:"targets_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	FetchIntervalSeconds int64         `mapstructure:"fetch_interval"`
	FetchInterval        time.Duration `mapstructure:"-"`
	TimeoutSeconds       float64       `mapstructure:"timeout_seconds"`
	Timeout              time.Duration `mapstructure:"-"`

	FollowRedirects bool   `mapstructure:"follow_redirects"`
	StealthyHeaders bool   `mapstructure:"stealthy_headers"`
	KeepComments    bool   `mapstructure:"keep_comments"`
	Proxy           string `mapstructure:"proxy"`
	Debug           bool   `mapstructure:"debug"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	StorageTTLSeconds      int64         `mapstructure:"storage_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	StorageTTL             time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`
}

// envFile is read before the environment; missing files are ignored.
var envFile = "configs/.env"

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load(envFile)

	v := viper.New()

	v.SetDefault("app_name", "samvad-fetcher")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("targets_file", "./configs/targets.yaml")
	v.SetDefault("publishers_file", "")
	v.SetDefault("fetch_interval", 0) // seconds, 0 runs a single pass
	v.SetDefault("timeout_seconds", 10.0) // fractional seconds allowed
	v.SetDefault("follow_redirects", true)
	v.SetDefault("stealthy_headers", true)
	v.SetDefault("keep_comments", false)
	v.SetDefault("proxy", "")
	v.SetDefault("debug", false)
	v.SetDefault("storage_type", "none")
	v.SetDefault("bbolt_path", "./data/fetches.db")
	v.SetDefault("storage_ttl_seconds", int64(time.Hour/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((6*time.Hour)/time.Second))

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.FetchIntervalSeconds < 0 {
		return nil, fmt.Errorf("invalid fetch_interval (must be zero or positive seconds)")
	}
	cfg.FetchInterval = time.Duration(cfg.FetchIntervalSeconds) * time.Second

	if cfg.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid timeout_seconds (must be positive seconds)")
	}
	cfg.Timeout = time.Duration(cfg.TimeoutSeconds * float64(time.Second))

	if cfg.StorageTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	return &cfg, nil
}
