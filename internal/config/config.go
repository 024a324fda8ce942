// Package config loads rentledger settings from defaults, an optional config
// file, a .env file and RENTLEDGER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Mode    string        `mapstructure:"mode"`
	DB      DBConfig      `mapstructure:"db"`
	Server  ServerConfig  `mapstructure:"server"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	URL  string `mapstructure:"url"` // used by client commands
}

type LedgerConfig struct {
	CashAccount string `mapstructure:"cash_account"`
}

// KafkaConfig enables event publishing when Brokers is non-empty.
type KafkaConfig struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

const envPrefix = "RENTLEDGER"

// Load reads configuration. An explicit path (or RENTLEDGER_CONFIG) must
// exist; otherwise rentledger.yaml is looked up in the working directory
// and ~/.config/rentledger and skipped when absent.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("mode", "release")
	v.SetDefault("db.path", "rentledger.db")
	v.SetDefault("server.addr", ":8888")
	v.SetDefault("server.url", "http://localhost:8888")
	v.SetDefault("ledger.cash_account", "1000")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "rentledger")
	v.SetDefault("metrics.enabled", true)

	if path == "" {
		path = os.Getenv(envPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rentledger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "rentledger"))
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Kafka.Brokers = splitBrokers(c.Kafka.Brokers)
	return c, nil
}

// splitBrokers accepts both list values and a single comma-separated string.
func splitBrokers(in []string) []string {
	var out []string
	for _, b := range in {
		for _, part := range strings.Split(b, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
