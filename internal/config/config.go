// Package config loads service configuration from fedipay.yaml with
// FEDIPAY_* environment overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Federation struct {
	ID         string `mapstructure:"id"`
	ClientdURL string `mapstructure:"clientd_url"`
}

type XMPP struct {
	Address    string `mapstructure:"address"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	ChatServer string `mapstructure:"chat_server"`
}

type Config struct {
	Domain     string `mapstructure:"domain"`
	Port       int    `mapstructure:"port"`
	ListenAddr string `mapstructure:"listen_addr"`
	DBPath     string `mapstructure:"db_path"`
	LogLevel   string `mapstructure:"log_level"`

	MinSendableMsat uint64 `mapstructure:"min_sendable_msat"`
	MaxSendableMsat uint64 `mapstructure:"max_sendable_msat"`

	NostrSecretKey string   `mapstructure:"nostr_secret_key"`
	Relays         []string `mapstructure:"relays"`

	ClientdPassword string       `mapstructure:"clientd_password"`
	Federations     []Federation `mapstructure:"federations"`

	XMPP XMPP `mapstructure:"xmpp"`
}

// Load reads the config file at path, or fedipay.yaml in the working
// directory when path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fedipay")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FEDIPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", 8080)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("db_path", "fedipay.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("min_sendable_msat", 1000)
	v.SetDefault("max_sendable_msat", 1_000_000_000)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if c.NostrSecretKey == "" {
		return fmt.Errorf("nostr_secret_key is required")
	}
	if len(c.Relays) == 0 {
		return fmt.Errorf("at least one relay is required")
	}
	if len(c.Federations) == 0 {
		return fmt.Errorf("at least one federation is required")
	}
	for i, fed := range c.Federations {
		if fed.ID == "" || fed.ClientdURL == "" {
			return fmt.Errorf("federation %d: id and clientd_url are required", i)
		}
	}
	return nil
}
