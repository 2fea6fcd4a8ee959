// Package config loads the leakhunt configuration from defaults, an optional
// YAML file and LEAKHUNT_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/flashbots/leakhunt/discord"
	"github.com/flashbots/leakhunt/hunt"
	"github.com/flashbots/leakhunt/services"
)

// EnvPrefix prefixes every environment override, e.g. LEAKHUNT_DISCORD_TOKEN.
const EnvPrefix = "LEAKHUNT"

type AppConfig struct {
	Discord DiscordConfig `mapstructure:"discord" yaml:"discord"`
	Proxy   ProxyConfig   `mapstructure:"proxy" yaml:"proxy"`
	Hunt    HuntConfig    `mapstructure:"hunt" yaml:"hunt"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type DiscordConfig struct {
	Token string `mapstructure:"token" yaml:"token"`
	// ListenerToken watches the leak channel from a second account.
	ListenerToken string `mapstructure:"listener_token" yaml:"listener_token"`
	Bot           bool   `mapstructure:"bot" yaml:"bot"`
	WebhookName   string `mapstructure:"webhook_name" yaml:"webhook_name"`
}

type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Scheme  string `mapstructure:"scheme" yaml:"scheme"`
	Host    string `mapstructure:"host" yaml:"host"`
	Port    int    `mapstructure:"port" yaml:"port"`
}

// URL returns the proxy endpoint, or "" when the proxy is disabled.
func (p ProxyConfig) URL() string {
	if !p.Enabled {
		return ""
	}
	return discord.ProxyURL(p.Scheme, p.Host, p.Port)
}

type HuntConfig struct {
	GuildID        string        `mapstructure:"guild_id" yaml:"guild_id"`
	RoleIDs        []string      `mapstructure:"role_ids" yaml:"role_ids"`
	LeakChannelID  string        `mapstructure:"leak_channel_id" yaml:"leak_channel_id"`
	ProbeChannelID string        `mapstructure:"probe_channel_id" yaml:"probe_channel_id"`
	WebhookURL     string        `mapstructure:"webhook_url" yaml:"webhook_url"`
	ProbeTemplate  string        `mapstructure:"probe_template" yaml:"probe_template"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	SettleDelay    time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

type ServerConfig struct {
	ListenAddr               string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	EnablePprof              bool          `mapstructure:"enable_pprof" yaml:"enable_pprof"`
	AllowedOrigins           []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	DrainDuration            time.Duration `mapstructure:"drain_duration" yaml:"drain_duration"`
	GracefulShutdownDuration time.Duration `mapstructure:"graceful_shutdown_duration" yaml:"graceful_shutdown_duration"`
	ReadTimeout              time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
}

type StoreConfig struct {
	// Driver is one of memory, sqlite or postgres.
	Driver     string                  `mapstructure:"driver" yaml:"driver"`
	SQLitePath string                  `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	Postgres   services.PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// Default returns the configuration used when nothing else is set.
func Default() *AppConfig {
	return &AppConfig{
		Proxy: ProxyConfig{Scheme: "http", Host: "127.0.0.1", Port: 7897},
		Hunt: HuntConfig{
			ProbeTemplate:  "leak check {nonce}",
			TimeoutSeconds: 10,
			SettleDelay:    hunt.DefaultSettleDelay,
		},
		Server: ServerConfig{
			ListenAddr:               "127.0.0.1:8080",
			DrainDuration:            time.Second,
			GracefulShutdownDuration: 30 * time.Second,
			ReadTimeout:              30 * time.Second,
		},
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "leakhunt.db",
			Postgres:   services.PostgresConfig{Host: "127.0.0.1", Port: 5432, User: "postgres", Database: "leakhunt", SSLMode: "disable"},
		},
		Log: LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.listener_token", "")
	v.SetDefault("discord.bot", false)
	v.SetDefault("discord.webhook_name", "")

	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.scheme", d.Proxy.Scheme)
	v.SetDefault("proxy.host", d.Proxy.Host)
	v.SetDefault("proxy.port", d.Proxy.Port)

	v.SetDefault("hunt.guild_id", "")
	v.SetDefault("hunt.role_ids", []string{})
	v.SetDefault("hunt.leak_channel_id", "")
	v.SetDefault("hunt.probe_channel_id", "")
	v.SetDefault("hunt.webhook_url", "")
	v.SetDefault("hunt.probe_template", d.Hunt.ProbeTemplate)
	v.SetDefault("hunt.timeout_seconds", d.Hunt.TimeoutSeconds)
	v.SetDefault("hunt.settle_delay", d.Hunt.SettleDelay)

	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.enable_pprof", false)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.drain_duration", d.Server.DrainDuration)
	v.SetDefault("server.graceful_shutdown_duration", d.Server.GracefulShutdownDuration)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.sqlite_path", d.Store.SQLitePath)
	v.SetDefault("store.postgres.host", d.Store.Postgres.Host)
	v.SetDefault("store.postgres.port", d.Store.Postgres.Port)
	v.SetDefault("store.postgres.user", d.Store.Postgres.User)
	v.SetDefault("store.postgres.password", "")
	v.SetDefault("store.postgres.database", d.Store.Postgres.Database)
	v.SetDefault("store.postgres.sslmode", d.Store.Postgres.SSLMode)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", false)
}

// Load reads the configuration. An empty path searches ./leakhunt.yaml and
// $HOME/.config/leakhunt/leakhunt.yaml and tolerates their absence; an
// explicit path must exist.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("leakhunt")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/leakhunt")
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	// Comma separated lists from the environment arrive as a single element.
	cfg.Hunt.RoleIDs = splitList(cfg.Hunt.RoleIDs)
	cfg.Server.AllowedOrigins = splitList(cfg.Server.AllowedOrigins)
	return &cfg, nil
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// SessionDefaults maps the hunt section onto a session config without
// validating it. Start requests fill in whatever it leaves empty.
func (c *AppConfig) SessionDefaults(platform hunt.Platform) hunt.SessionConfig {
	return hunt.SessionConfig{
		Platform:       platform,
		GuildID:        c.Hunt.GuildID,
		RoleIDs:        c.Hunt.RoleIDs,
		LeakChannelID:  c.Hunt.LeakChannelID,
		ProbeChannelID: c.Hunt.ProbeChannelID,
		WebhookURL:     c.Hunt.WebhookURL,
		ProbeTemplate:  c.Hunt.ProbeTemplate,
		ObserveTimeout: hunt.TimeoutFromSeconds(c.Hunt.TimeoutSeconds),
		SettleDelay:    c.Hunt.SettleDelay,
		ProxyURL:       c.Proxy.URL(),
	}
}

// SessionConfig builds a validated session configuration for platform.
func (c *AppConfig) SessionConfig(platform hunt.Platform) (hunt.SessionConfig, error) {
	cfg := c.SessionDefaults(platform)
	if err := cfg.Validate(); err != nil {
		return hunt.SessionConfig{}, err
	}
	return cfg, nil
}

// DiscordClientConfig returns the transport settings.
func (c *AppConfig) DiscordClientConfig(log *slog.Logger) discord.Config {
	return discord.Config{
		Token:         c.Discord.Token,
		ListenerToken: c.Discord.ListenerToken,
		Bot:           c.Discord.Bot,
		ProxyURL:      c.Proxy.URL(),
		WebhookName:   c.Discord.WebhookName,
		Log:           log,
	}
}
