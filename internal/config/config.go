// Package config provides Viper-based configuration management for Russet,
// following the pack's cobra+viper CLI convention: flags, then a config
// file, then built-in defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is Russet's complete runtime configuration.
type Config struct {
	DBFile            string            `mapstructure:"db_file"`
	ListenAddress     string            `mapstructure:"listen_address"`
	Pepper            string            `mapstructure:"pepper"`
	FeedCheckInterval FeedCheckInterval `mapstructure:"feed_check_interval"`
	DisableLogins     bool              `mapstructure:"disable_logins"`
	RateLimiting      RateLimiting      `mapstructure:"rate_limiting"`
}

// FeedCheckInterval bounds how often a feed may be polled.
type FeedCheckInterval struct {
	Min     time.Duration `mapstructure:"min"`
	Default time.Duration `mapstructure:"default"`
	Max     time.Duration `mapstructure:"max"`
}

// RateLimiting caps concurrent in-flight requests.
type RateLimiting struct {
	GlobalConcurrentLimit int64 `mapstructure:"global_concurrent_limit"`
	LoginConcurrentLimit  int64 `mapstructure:"login_concurrent_limit"`
}

// Load reads configuration from environment variables prefixed RUSSET_,
// cfgFile (if set), and built-in defaults, in that precedence — cobra
// binds command-line flags over this via viper.BindPFlag before Load runs.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("russet")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/russet")
	}

	v.SetEnvPrefix("RUSSET")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db_file", "/tmp/russet-db.sqlite")
	v.SetDefault("listen_address", "127.0.0.1:9892")
	v.SetDefault("pepper", "change-me-this-is-an-insecure-placeholder-pepper")
	v.SetDefault("feed_check_interval.min", 5*time.Minute)
	v.SetDefault("feed_check_interval.default", time.Hour)
	v.SetDefault("feed_check_interval.max", 24*time.Hour)
	v.SetDefault("disable_logins", false)
	v.SetDefault("rate_limiting.global_concurrent_limit", 1024)
	v.SetDefault("rate_limiting.login_concurrent_limit", 4)
}

func validate(cfg *Config) error {
	if cfg.ListenAddress == "" {
		return fmt.Errorf("listen_address must not be empty")
	}
	b := cfg.FeedCheckInterval
	if b.Min <= 0 || b.Default <= 0 || b.Max <= 0 {
		return fmt.Errorf("feed_check_interval bounds must be positive")
	}
	if !(b.Min <= b.Default && b.Default <= b.Max) {
		return fmt.Errorf("feed_check_interval must satisfy min <= default <= max")
	}
	if cfg.RateLimiting.GlobalConcurrentLimit <= 0 {
		return fmt.Errorf("rate_limiting.global_concurrent_limit must be positive")
	}
	if cfg.RateLimiting.LoginConcurrentLimit <= 0 {
		return fmt.Errorf("rate_limiting.login_concurrent_limit must be positive")
	}
	return nil
}
