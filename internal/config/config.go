// Package config handles configuration loading and validation for
// rxminer.
package config

import (
	"fmt"
	"runtime"

	"github.com/spf13/viper"
)

// Config holds the effective miner configuration. Values come from
// config.json in the working directory, overridden by CLI flags.
type Config struct {
	Pool      string    `mapstructure:"pool"`
	Wallet    string    `mapstructure:"wallet"`
	Worker    string    `mapstructure:"worker"`
	Password  string    `mapstructure:"password"`
	UserAgent string    `mapstructure:"useragent"`
	Threads   int       `mapstructure:"threads"`
	Debug     bool      `mapstructure:"debug"`
	LogFile   bool      `mapstructure:"logfile"`
	API       APIConfig `mapstructure:"api"`
}

// APIConfig defines the local stats API settings
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bind    string `mapstructure:"bind"`
}

// LogFileName is where log output goes when logfile is enabled
const LogFileName = "miner.log"

// Load reads config.json (if present) merged over defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RXMINER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("pool", "xmr-eu1.nanopool.org:14444")
	v.SetDefault("worker", "worker1")
	v.SetDefault("password", "x")
	v.SetDefault("useragent", "MoneroMiner/1.0.0")
	v.SetDefault("threads", defaultThreads())
	v.SetDefault("debug", false)
	v.SetDefault("logfile", false)

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.bind", "127.0.0.1:8080")
}

func defaultThreads() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.Wallet == "" {
		return fmt.Errorf("wallet address is required")
	}

	if c.Threads < 1 {
		return fmt.Errorf("threads must be at least 1")
	}

	if c.Pool == "" {
		return fmt.Errorf("pool address is required")
	}

	if c.API.Enabled && c.API.Bind == "" {
		return fmt.Errorf("api.bind is required when the API is enabled")
	}

	return nil
}
