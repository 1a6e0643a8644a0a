package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/chattrigger/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:  config.ServerConfig{LogLevel: config.LogInfo},
		Session: config.SessionConfig{ID: "bot"},
	}
	d := config.Diff(cfg, cfg)
	if d.Changed() {
		t.Errorf("expected no changes, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level alone must not require a restart, got %v", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := &config.Config{
		Server:  config.ServerConfig{ListenAddr: ":8080"},
		Session: config.SessionConfig{ID: "bot"},
		Store:   config.StoreConfig{Backend: config.StoreFile, Dir: "data"},
		Gateway: config.GatewayConfig{URL: "ws://a"},
	}
	new := &config.Config{
		Server:  config.ServerConfig{ListenAddr: ":9090"},
		Session: config.SessionConfig{ID: "bot"},
		Store:   config.StoreConfig{Backend: config.StoreSQLite, SQLitePath: "x.db"},
		Gateway: config.GatewayConfig{URL: "ws://a"},
		Discord: config.DiscordConfig{Token: "t"},
	}
	d := config.Diff(old, new)
	want := []string{"server", "store", "discord"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired: got %v, want %v", d.RestartRequired, want)
	}
	if d.LogLevelChanged {
		t.Error("expected LogLevelChanged=false")
	}
}
