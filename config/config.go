// Package config loads service configuration from file, environment, and
// defaults, in that order of increasing precedence for env overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP     HTTP     `mapstructure:"http"`
	Log      Log      `mapstructure:"log"`
	Store    Store    `mapstructure:"store"`
	Bus      Bus      `mapstructure:"bus"`
	Delivery Delivery `mapstructure:"delivery"`
}

type HTTP struct {
	Addr string `mapstructure:"addr"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

type Store struct {
	// Kind selects the backing store: "postgres" or "memory".
	Kind   string `mapstructure:"kind"`
	DSN    string `mapstructure:"dsn"`
	Schema string `mapstructure:"schema"`
}

type Bus struct {
	// Kind selects the message-created transport: "channel" (in-process)
	// or "amqp".
	Kind    string `mapstructure:"kind"`
	AMQPURL string `mapstructure:"amqp_url"`
}

type Delivery struct {
	// HeartbeatInterval is the per-connection ping period.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	// SendTimeout bounds each individual push attempt.
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	// MailboxSize is the per-channel event buffer; a full mailbox drops.
	MailboxSize int `mapstructure:"mailbox_size"`
}

// Default returns the configuration used when no file or environment
// overrides are present. Tests build on it directly.
func Default() *Config {
	return &Config{
		HTTP:  HTTP{Addr: ":8086"},
		Log:   Log{Level: "info"},
		Store: Store{Kind: "postgres", Schema: "portal"},
		Bus:   Bus{Kind: "channel"},
		Delivery: Delivery{
			HeartbeatInterval: 30 * time.Second,
			SendTimeout:       500 * time.Millisecond,
			MailboxSize:       256,
		},
	}
}

// LoadConfig reads the optional config file, applies CHAT_* environment
// overrides, and starts watching the file for changes. Connection-lifetime
// knobs apply to connections opened after a reload.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("http.addr", def.HTTP.Addr)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("store.kind", def.Store.Kind)
	v.SetDefault("store.dsn", def.Store.DSN)
	v.SetDefault("store.schema", def.Store.Schema)
	v.SetDefault("bus.kind", def.Bus.Kind)
	v.SetDefault("bus.amqp_url", def.Bus.AMQPURL)
	v.SetDefault("delivery.heartbeat_interval", def.Delivery.HeartbeatInterval)
	v.SetDefault("delivery.send_timeout", def.Delivery.SendTimeout)
	v.SetDefault("delivery.mailbox_size", def.Delivery.MailboxSize)

	v.SetEnvPrefix("CHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/chat-delivery")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
		// No file is fine: defaults + env carry the service.
	} else {
		v.OnConfigChange(func(e fsnotify.Event) {
			slog.Info("configuration file changed", "file", e.Name, "op", e.Op.String())
		})
		v.WatchConfig()
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Store.Kind == "postgres" && c.Store.DSN == "" {
		return errors.New("config: store.dsn is required for the postgres store")
	}
	if c.Bus.Kind == "amqp" && c.Bus.AMQPURL == "" {
		return errors.New("config: bus.amqp_url is required for the amqp bus")
	}
	if c.Delivery.HeartbeatInterval <= 0 {
		return errors.New("config: delivery.heartbeat_interval must be positive")
	}
	return nil
}
