// Package config provides the configuration schema, loader, and file watcher
// for the chattrigger daemon.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// StoreBackend selects where trigger records are persisted.
type StoreBackend string

const (
	// StoreFile keeps one JSON file per trigger below [StoreConfig.Dir].
	StoreFile StoreBackend = "file"

	// StorePostgres keeps records in a PostgreSQL table.
	StorePostgres StoreBackend = "postgres"

	// StoreSQLite keeps records in an embedded SQLite database.
	StoreSQLite StoreBackend = "sqlite"

	// StoreMemory keeps records in process memory only. Useful for dry runs.
	StoreMemory StoreBackend = "memory"
)

// IsValid reports whether b is a recognised store backend.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreFile, StorePostgres, StoreSQLite, StoreMemory:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Store     StoreConfig     `yaml:"store"`
	Discord   DiscordConfig   `yaml:"discord"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds admin HTTP and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the admin HTTP server (e.g., ":8080").
	// Empty disables the admin server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Defaults to info.
	LogLevel LogLevel `yaml:"log_level"`
}

// SessionConfig identifies the bot account whose triggers are loaded.
type SessionConfig struct {
	// ID is the session identifier. It scopes every stored trigger record.
	ID string `yaml:"id"`
}

// StoreConfig selects and configures the trigger store backend.
type StoreConfig struct {
	// Backend is one of file, postgres, sqlite, memory. Defaults to file.
	Backend StoreBackend `yaml:"backend"`

	// Dir is the root directory for the file backend. Defaults to "data".
	Dir string `yaml:"dir"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`
}

// DiscordConfig configures the Discord transport. An empty Token disables it.
type DiscordConfig struct {
	Token string `yaml:"token"`

	// GuildID restricts slash command registration to one guild. Empty
	// registers the commands globally.
	GuildID string `yaml:"guild_id"`

	// AdminRoleID is the role allowed to run /trigger commands. Empty allows
	// everyone.
	AdminRoleID string `yaml:"admin_role_id"`
}

// GatewayConfig configures the websocket chat gateway transport. An empty URL
// disables it.
type GatewayConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// TelemetryConfig configures OpenTelemetry resource attributes.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Store.Backend == "" {
		c.Store.Backend = StoreFile
	}
	if c.Store.Backend == StoreFile && c.Store.Dir == "" {
		c.Store.Dir = "data"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "chattrigger"
	}
}
