// Package config loads chama settings from TOML, .env and the environment.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/juju/errors"
)

// Config holds all chama configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Upstream   UpstreamConfig   `toml:"upstream"`
	Client     ClientConfig     `toml:"client"`
	Notify     NotifyConfig     `toml:"notify"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// ServerConfig controls the browser-facing proxy.
type ServerConfig struct {
	Addr         string `toml:"addr"`
	Production   bool   `toml:"production"`
	CookieName   string `toml:"cookie_name"`
	EventsBuffer int    `toml:"events_buffer"`
}

// UpstreamConfig points at the backend API.
type UpstreamConfig struct {
	BaseURL    string `toml:"base_url"`
	SocketURL  string `toml:"socket_url,omitempty"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// ClientConfig is used by CLI commands and the dashboard to reach the proxy.
type ClientConfig struct {
	PortalURL  string `toml:"portal_url"`
	CookieFile string `toml:"cookie_file,omitempty"`
}

// NotifyConfig controls the notification listener.
type NotifyConfig struct {
	Record         bool   `toml:"record"`
	DBPath         string `toml:"db_path,omitempty"`
	ReconnectDelay int    `toml:"reconnect_delay_ms"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:3000",
			CookieName:   "chama_session",
			EventsBuffer: 200,
		},
		Upstream: UpstreamConfig{
			BaseURL:    "http://127.0.0.1:5000/api",
			TimeoutSec: 10,
		},
		Client: ClientConfig{
			PortalURL: "http://127.0.0.1:3000",
		},
		Notify: NotifyConfig{
			ReconnectDelay: 1000,
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "chama")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "chama")
}

// Path returns the full path to the config file.
func Path() string {
	if p := os.Getenv("CHAMA_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
// A .env file in the working directory is loaded first so its values
// feed the environment overrides.
func Load() (Config, error) {
	_ = godotenv.Load()
	return LoadFile(Path())
}

// LoadFile reads config from path and applies environment overrides.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the local user
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return cfg, errors.Annotate(err, "reading config")
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Annotate(err, "parsing config")
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CHAMA_API_URL"); v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v := os.Getenv("CHAMA_SOCKET_URL"); v != "" {
		cfg.Upstream.SocketURL = v
	}
	if v := os.Getenv("CHAMA_PORTAL_URL"); v != "" {
		cfg.Client.PortalURL = v
	}
	if v := os.Getenv("CHAMA_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if strings.EqualFold(os.Getenv("CHAMA_ENV"), "production") {
		cfg.Server.Production = true
	}
}

// Save writes the config to disk.
func Save(cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(Path()), 0o750); err != nil {
		return errors.Annotate(err, "creating config dir")
	}

	f, err := os.OpenFile(Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.Annotate(err, "creating config file")
	}
	defer func() { _ = f.Close() }()

	return errors.Trace(toml.NewEncoder(f).Encode(cfg))
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// SocketEndpoint returns the notification socket URL. When unset it is
// derived from the API base URL: same host, ws scheme, /socket path.
func (u UpstreamConfig) SocketEndpoint() string {
	if u.SocketURL != "" {
		return u.SocketURL
	}
	parsed, err := url.Parse(u.BaseURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	scheme := "ws"
	if parsed.Scheme == "https" {
		scheme = "wss"
	}
	return scheme + "://" + parsed.Host + "/socket"
}

// Timeout returns the upstream request timeout.
func (u UpstreamConfig) Timeout() time.Duration {
	if u.TimeoutSec <= 0 {
		return 10 * time.Second
	}
	return time.Duration(u.TimeoutSec) * time.Second
}

// CookieJarPath returns where CLI sessions are persisted.
func (c ClientConfig) CookieJarPath() string {
	if c.CookieFile != "" {
		return c.CookieFile
	}
	return filepath.Join(Dir(), "cookies")
}

// NotificationDBPath returns the sqlite file for the notification log.
func (n NotifyConfig) NotificationDBPath() string {
	if n.DBPath != "" {
		return n.DBPath
	}
	return filepath.Join(Dir(), "notifications.db")
}

// ReconnectDelayDuration returns the base delay between socket reconnects.
func (n NotifyConfig) ReconnectDelayDuration() time.Duration {
	if n.ReconnectDelay <= 0 {
		return time.Second
	}
	return time.Duration(n.ReconnectDelay) * time.Millisecond
}
