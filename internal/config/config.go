// Package config loads tabsh settings from defaults, a YAML file, TABSH_*
// environment variables and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "TABSH"

// Config holds every tunable of the shell.
type Config struct {
	Prompt       string   `mapstructure:"prompt"`
	HistoryFile  string   `mapstructure:"history_file"`
	HistoryLimit int      `mapstructure:"history_limit"`
	HeadRows     int      `mapstructure:"head_rows"`
	ChunkSize    int      `mapstructure:"chunk_size"`
	Describe     Describe `mapstructure:"describe"`
	Log          Log      `mapstructure:"log"`
	Metrics      Metrics  `mapstructure:"metrics"`
}

// Describe configures the statistics engine.
type Describe struct {
	Percentiles []int `mapstructure:"percentiles"`
}

// Log configures the logger.
type Log struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
	File     string `mapstructure:"file"`
}

// Metrics configures the prometheus endpoint. An empty Addr disables it.
type Metrics struct {
	Addr string `mapstructure:"addr"`
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.HeadRows <= 0 {
		return fmt.Errorf("head_rows must be positive, got %d", c.HeadRows)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative, got %d", c.HistoryLimit)
	}
	for _, p := range c.Describe.Percentiles {
		if p < 0 || p > 100 {
			return fmt.Errorf("describe.percentiles: %d is outside 0..100", p)
		}
	}
	return nil
}

// setDefaults registers default values on v.
func setDefaults(v *viper.Viper) {
	v.SetDefault("prompt", "tabsh> ")
	v.SetDefault("history_file", defaultHistoryFile())
	v.SetDefault("history_limit", 1024)
	v.SetDefault("head_rows", 10)
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("describe.percentiles", []int{25, 75})
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("metrics.addr", "")
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tabsh_history"
	}
	return filepath.Join(home, ".tabsh_history")
}

// Load reads configuration. configFile may be empty, in which case
// $HOME/.tabsh.yaml is used when present. flags may be nil; otherwise every
// flag whose name matches a key (with "-" in place of "_" or ".") overrides it.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(".tabsh")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, key := range v.AllKeys() {
			flagName := strings.NewReplacer("_", "-", ".", "-").Replace(key)
			if f := flags.Lookup(flagName); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flagName, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
