package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/chattrigger/internal/triggerstore"
)

// LoadEnv loads KEY=VALUE pairs from the given dotenv files into the process
// environment. Variables that are already set are left untouched. Missing
// files are skipped so that a .env file stays optional.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load env %q: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references
// against the process environment, applies defaults, and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if err := triggerstore.ValidateName(cfg.Session.ID); err != nil {
		errs = append(errs, fmt.Errorf("session.id: %w", err))
	}

	switch cfg.Store.Backend {
	case "", StoreMemory:
	case StoreFile:
		if cfg.Store.Dir == "" {
			errs = append(errs, errors.New("store.dir is required when backend is file"))
		}
	case StorePostgres:
		if cfg.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required when backend is postgres"))
		}
	case StoreSQLite:
		if cfg.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path is required when backend is sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: file, postgres, sqlite, memory", cfg.Store.Backend))
	}

	if cfg.Gateway.URL != "" && !strings.HasPrefix(cfg.Gateway.URL, "ws://") && !strings.HasPrefix(cfg.Gateway.URL, "wss://") {
		errs = append(errs, fmt.Errorf("gateway.url %q must use the ws or wss scheme", cfg.Gateway.URL))
	}

	switch {
	case cfg.Discord.Token != "" && cfg.Gateway.URL != "":
		errs = append(errs, errors.New("discord.token and gateway.url are mutually exclusive; a session uses one transport"))
	case cfg.Discord.Token == "" && cfg.Gateway.URL == "":
		slog.Warn("no transport configured; running dry, outbound messages are only logged")
	}
	if cfg.Discord.AdminRoleID != "" && cfg.Discord.Token == "" {
		slog.Warn("discord.admin_role_id is set but discord.token is empty; ignoring")
	}

	return errors.Join(errs...)
}

// parseBytes is the watcher's entry point: same as [LoadFromReader] over an
// in-memory buffer.
func parseBytes(data []byte) (*Config, error) {
	return LoadFromReader(bytes.NewReader(data))
}
