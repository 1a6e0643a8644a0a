package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/chattrigger/internal/config"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader("session:\n  id: bot-1\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Store.Backend != config.StoreFile {
		t.Errorf("store.backend: got %q, want %q", cfg.Store.Backend, config.StoreFile)
	}
	if cfg.Store.Dir != "data" {
		t.Errorf("store.dir: got %q, want %q", cfg.Store.Dir, "data")
	}
	if cfg.Telemetry.ServiceName != "chattrigger" {
		t.Errorf("telemetry.service_name: got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
session:
  id: bot-1
store:
  backend: sqlite
  sqlite_path: /var/lib/chattrigger/triggers.db
discord:
  token: abc
  guild_id: "123"
  admin_role_id: "456"
telemetry:
  service_name: triggers-eu
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Store.Backend != config.StoreSQLite || cfg.Store.SQLitePath == "" {
		t.Errorf("store: got %+v", cfg.Store)
	}
	if cfg.Discord.AdminRoleID != "456" || cfg.Discord.GuildID != "123" {
		t.Errorf("discord: got %+v", cfg.Discord)
	}
	if cfg.Gateway.URL != "" {
		t.Errorf("gateway.url: got %q, want empty", cfg.Gateway.URL)
	}
	if cfg.Telemetry.ServiceName != "triggers-eu" {
		t.Errorf("telemetry.service_name: got %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("session:\n  id: bot\n  colour: blue\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoadFromReader_ExpandsEnv(t *testing.T) {
	t.Setenv("CHATTRIGGER_TEST_TOKEN", "secret-token")
	cfg, err := config.LoadFromReader(strings.NewReader(`
session:
  id: bot
discord:
  token: ${CHATTRIGGER_TEST_TOKEN}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Discord.Token != "secret-token" {
		t.Errorf("discord.token: got %q, want %q", cfg.Discord.Token, "secret-token")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{
			name:    "missing session",
			yaml:    "store:\n  backend: memory\n",
			wantErr: []string{"session.id"},
		},
		{
			name:    "session with separator",
			yaml:    "session:\n  id: a/b\n",
			wantErr: []string{"session.id"},
		},
		{
			name:    "bad log level",
			yaml:    "server:\n  log_level: loud\nsession:\n  id: bot\n",
			wantErr: []string{"server.log_level"},
		},
		{
			name:    "unknown backend",
			yaml:    "session:\n  id: bot\nstore:\n  backend: redis\n",
			wantErr: []string{"store.backend"},
		},
		{
			name:    "postgres without dsn",
			yaml:    "session:\n  id: bot\nstore:\n  backend: postgres\n",
			wantErr: []string{"store.postgres_dsn"},
		},
		{
			name:    "sqlite without path",
			yaml:    "session:\n  id: bot\nstore:\n  backend: sqlite\n",
			wantErr: []string{"store.sqlite_path"},
		},
		{
			name:    "http gateway url",
			yaml:    "session:\n  id: bot\ngateway:\n  url: http://example.com\n",
			wantErr: []string{"gateway.url"},
		},
		{
			name:    "two transports",
			yaml:    "session:\n  id: bot\ndiscord:\n  token: abc\ngateway:\n  url: wss://example.com\n",
			wantErr: []string{"discord.token and gateway.url"},
		},
		{
			name: "valid gateway",
			yaml: "session:\n  id: bot\ngateway:\n  url: wss://example.com/ws\n  token: gw\n",
		},
		{
			name:    "multiple errors",
			yaml:    "server:\n  log_level: loud\nstore:\n  backend: postgres\n",
			wantErr: []string{"server.log_level", "session.id", "store.postgres_dsn"},
		},
		{
			name: "valid memory store",
			yaml: "session:\n  id: bot\nstore:\n  backend: memory\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error should mention %q, got: %v", want, err)
				}
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("CHATTRIGGER_TEST_DOTENV=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHATTRIGGER_TEST_DOTENV", "")
	os.Unsetenv("CHATTRIGGER_TEST_DOTENV")

	if err := config.LoadEnv(filepath.Join(dir, "missing.env"), envPath); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("CHATTRIGGER_TEST_DOTENV"); got != "from-file" {
		t.Errorf("env: got %q, want %q", got, "from-file")
	}
}

func TestLoadEnv_KeepsExisting(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("CHATTRIGGER_TEST_KEEP=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHATTRIGGER_TEST_KEEP", "from-env")

	if err := config.LoadEnv(envPath); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("CHATTRIGGER_TEST_KEEP"); got != "from-env" {
		t.Errorf("env: got %q, want %q", got, "from-env")
	}
}
