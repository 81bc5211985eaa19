package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFile_MissingReturnsDefaults(t *testing.T) {
	t.Setenv("CHAMA_API_URL", "")
	t.Setenv("CHAMA_ENV", "")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.CookieName != "chama_session" {
		t.Errorf("CookieName = %q", cfg.Server.CookieName)
	}
	if cfg.Server.Production {
		t.Error("Production should default to false")
	}
	if cfg.Upstream.Timeout() != 10*time.Second {
		t.Errorf("Timeout = %s", cfg.Upstream.Timeout())
	}
}

func TestLoadFile_TOMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[server]
addr = "0.0.0.0:8080"
cookie_name = "sid"

[upstream]
base_url = "https://api.example.com/api"
timeout_sec = 3
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CHAMA_API_URL", "")
	t.Setenv("CHAMA_ENV", "Production")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:8080" || cfg.Server.CookieName != "sid" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if !cfg.Server.Production {
		t.Error("CHAMA_ENV=production should enable secure cookies")
	}
	if cfg.Upstream.Timeout() != 3*time.Second {
		t.Errorf("Timeout = %s", cfg.Upstream.Timeout())
	}
	// Unset keys keep their defaults.
	if cfg.Server.EventsBuffer != 200 {
		t.Errorf("EventsBuffer = %d", cfg.Server.EventsBuffer)
	}

	t.Setenv("CHAMA_API_URL", "http://override:5000/api")
	cfg, err = LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Upstream.BaseURL != "http://override:5000/api" {
		t.Errorf("BaseURL = %q", cfg.Upstream.BaseURL)
	}
}

func TestLoadFile_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[server\naddr="), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("CHAMA_CONFIG", filepath.Join(t.TempDir(), "sub", "config.toml"))
	t.Setenv("CHAMA_API_URL", "")
	t.Setenv("CHAMA_ENV", "")

	if Exists() {
		t.Fatal("config should not exist yet")
	}
	cfg := DefaultConfig()
	cfg.Appearance.Theme = "catppuccin-mocha"
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !Exists() {
		t.Fatal("config should exist after Save")
	}
	got, err := LoadFile(Path())
	if err != nil {
		t.Fatal(err)
	}
	if got.Appearance.Theme != "catppuccin-mocha" {
		t.Errorf("Theme = %q", got.Appearance.Theme)
	}
}

func TestSocketEndpoint(t *testing.T) {
	tests := []struct {
		cfg  UpstreamConfig
		want string
	}{
		{UpstreamConfig{BaseURL: "http://127.0.0.1:5000/api"}, "ws://127.0.0.1:5000/socket"},
		{UpstreamConfig{BaseURL: "https://api.chama.example/api"}, "wss://api.chama.example/socket"},
		{UpstreamConfig{BaseURL: "http://x/api", SocketURL: "ws://sock:9000/rt"}, "ws://sock:9000/rt"},
		{UpstreamConfig{BaseURL: "not a url"}, ""},
	}
	for _, tt := range tests {
		if got := tt.cfg.SocketEndpoint(); got != tt.want {
			t.Errorf("SocketEndpoint(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}
