package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"

	"awful/internal/dbclient"
	"awful/internal/schema"
	"awful/internal/storage"
	"awful/internal/tenant"
)

// Config is the configuration of an awful deployment.
type Config struct {
	Database   DatabaseConfig      `toml:"database"`
	Cache      CacheConfig         `toml:"cache"`
	HTTP       HTTPConfig          `toml:"http"`
	Logging    LoggingConfig       `toml:"logging"`
	Metrics    MetricsConfig       `toml:"metrics"`
	Sweeper    SweeperConfig       `toml:"sweeper"`
	Importer   ImporterConfig      `toml:"importer"`
	BlockTypes []schema.Definition `toml:"block_types"`
}

// DatabaseConfig says where the block tables live.
type DatabaseConfig struct {
	// Driver is "sqlite", "mysql" or "postgres".
	Driver   string `toml:"driver"`
	Path     string `toml:"path"`
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"ssl_mode"`

	TablePrefix   string    `toml:"table_prefix"`
	PrimaryTenant tenant.ID `toml:"primary_tenant"`

	// Hosts maps owner columns (post_id, term_id, ...) to the host table
	// whose rows own them. Blocks are deleted with their host row.
	Hosts map[string]HostTable `toml:"hosts"`
}

// HostTable names a host table and its key column, without prefix.
type HostTable struct {
	Table  string `toml:"table"`
	Column string `toml:"column"`
}

// CacheConfig selects the object cache backend.
type CacheConfig struct {
	// Backend is "memory" or "mongo".
	Backend    string `toml:"backend"`
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// HTTPConfig configures the form submission endpoint.
type HTTPConfig struct {
	ListenAddr   string   `toml:"listen_addr"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `toml:"level"`

	// Format is the log output format ("text" or "json").
	Format string `toml:"format"`

	// Output is "stdout", "stderr", or a file path.
	Output string `toml:"output"`
}

// MetricsConfig contains Prometheus settings. Metrics are served by the HTTP
// server under /metrics.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// SweeperConfig schedules orphan block collection.
type SweeperConfig struct {
	Enabled bool `toml:"enabled"`
	// Schedule is a standard five-field cron expression.
	Schedule string      `toml:"schedule"`
	Tenants  []tenant.ID `toml:"tenants"`
	// Timeout bounds one sweep of one tenant.
	Timeout Duration `toml:"timeout"`
}

// ImporterConfig configures the drop-directory importer.
type ImporterConfig struct {
	Enabled bool      `toml:"enabled"`
	Dir     string    `toml:"dir"`
	Tenant  tenant.ID `toml:"tenant"`
}

// Duration is a wrapper around time.Duration for TOML unmarshaling.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:        dbclient.DriverSQLite,
			Path:          "data/awful.db",
			TablePrefix:   "wp_",
			PrimaryTenant: 1,
			Hosts:         map[string]HostTable{},
		},
		Cache: CacheConfig{
			Backend:    "memory",
			Database:   "awful",
			Collection: "object_cache",
		},
		HTTP: HTTPConfig{
			ListenAddr:   ":8080",
			ReadTimeout:  Duration(15 * time.Second),
			WriteTimeout: Duration(15 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "awful",
		},
		Sweeper: SweeperConfig{
			Enabled:  false,
			Schedule: "0 3 * * *",
			Tenants:  []tenant.ID{1},
			Timeout:  Duration(10 * time.Minute),
		},
		Importer: ImporterConfig{
			Enabled: false,
			Dir:     "data/inbox",
			Tenant:  1,
		},
		BlockTypes: DefaultBlockTypes(),
	}
}

// LoadConfig loads configuration from a TOML file.
// Missing values are filled with defaults. A file that declares any
// [[block_types]] replaces the default block types entirely.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg.BlockTypes = nil
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if len(cfg.BlockTypes) == 0 {
		cfg.BlockTypes = DefaultBlockTypes()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validation errors.
var (
	ErrInvalidDriver          = errors.New("driver must be one of: sqlite, mysql, postgres")
	ErrEmptyDatabasePath      = errors.New("sqlite path cannot be empty")
	ErrEmptyDatabaseHost      = errors.New("host or dsn is required for networked drivers")
	ErrInvalidPrimaryTenant   = errors.New("primary_tenant must be positive")
	ErrInvalidCacheBackend    = errors.New("cache backend must be 'memory' or 'mongo'")
	ErrEmptyCacheURI          = errors.New("cache uri cannot be empty for the mongo backend")
	ErrEmptyCacheCollection   = errors.New("cache collection cannot be empty for the mongo backend")
	ErrEmptyListenAddr        = errors.New("http listen_addr cannot be empty")
	ErrInvalidHTTPTimeout     = errors.New("http timeouts must be positive")
	ErrEmptyMetricsNamespace  = errors.New("metrics namespace cannot be empty when enabled")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat       = errors.New("log format must be 'text' or 'json'")
	ErrEmptyLogOutput         = errors.New("log output cannot be empty")
	ErrNoSweeperTenants       = errors.New("sweeper needs at least one tenant when enabled")
	ErrInvalidSweeperTimeout  = errors.New("sweeper timeout must be positive")
	ErrEmptyImporterDir       = errors.New("importer dir cannot be empty when enabled")
	ErrInvalidImporterTenant  = errors.New("importer tenant must be positive")
	ErrNoBlockTypes           = errors.New("at least one block type is required")
	ErrIncompleteHostMapping  = errors.New("host table and column are both required")
	ErrUnknownHostOwnerColumn = errors.New("hosts may only name post_id, term_id, comment_id or user_id")
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}
	if err := c.Sweeper.Validate(); err != nil {
		return fmt.Errorf("sweeper config: %w", err)
	}
	if err := c.Importer.Validate(); err != nil {
		return fmt.Errorf("importer config: %w", err)
	}
	if len(c.BlockTypes) == 0 {
		return fmt.Errorf("config: %w", ErrNoBlockTypes)
	}
	if _, err := schema.Build(c.BlockTypes); err != nil {
		return fmt.Errorf("block types: %w", err)
	}
	return nil
}

// Validate checks the database configuration for errors.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case dbclient.DriverSQLite:
		if c.Path == "" && c.DSN == "" {
			return ErrEmptyDatabasePath
		}
	case dbclient.DriverMySQL, dbclient.DriverPostgres:
		if c.Host == "" && c.DSN == "" {
			return ErrEmptyDatabaseHost
		}
	default:
		return ErrInvalidDriver
	}
	if c.PrimaryTenant <= 0 {
		return ErrInvalidPrimaryTenant
	}
	for col, host := range c.Hosts {
		switch col {
		case storage.ColumnPost, storage.ColumnTerm, storage.ColumnComment, storage.ColumnUser:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownHostOwnerColumn, col)
		}
		if host.Table == "" || host.Column == "" {
			return fmt.Errorf("%s: %w", col, ErrIncompleteHostMapping)
		}
	}
	return nil
}

// Settings returns the connection settings for dbclient.Open.
func (c *DatabaseConfig) Settings() dbclient.Settings {
	path := c.Path
	if c.Driver == dbclient.DriverSQLite && c.DSN != "" {
		path = c.DSN
	}
	return dbclient.Settings{
		Driver:   c.Driver,
		Path:     path,
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		Database: c.Database,
		SSLMode:  c.SSLMode,
		DSN:      c.DSN,
	}
}

// HostRefs converts the host mapping for storage.Options.
func (c *DatabaseConfig) HostRefs() map[string]storage.HostRef {
	out := make(map[string]storage.HostRef, len(c.Hosts))
	for col, h := range c.Hosts {
		out[col] = storage.HostRef{Table: h.Table, Column: h.Column}
	}
	return out
}

// Validate checks the cache configuration for errors.
func (c *CacheConfig) Validate() error {
	switch c.Backend {
	case "memory":
	case "mongo":
		if c.URI == "" {
			return ErrEmptyCacheURI
		}
		if c.Collection == "" {
			return ErrEmptyCacheCollection
		}
	default:
		return ErrInvalidCacheBackend
	}
	return nil
}

// Validate checks the HTTP configuration for errors.
func (c *HTTPConfig) Validate() error {
	if c.ListenAddr == "" {
		return ErrEmptyListenAddr
	}
	if c.ReadTimeout.Duration() <= 0 || c.WriteTimeout.Duration() <= 0 {
		return ErrInvalidHTTPTimeout
	}
	return nil
}

// Validate checks the logging configuration for errors.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return ErrInvalidLogLevel
	}

	switch c.Format {
	case "text", "json":
		// Valid formats
	default:
		return ErrInvalidLogFormat
	}

	if c.Output == "" {
		return ErrEmptyLogOutput
	}

	return nil
}

// Validate checks the metrics configuration for errors.
func (c *MetricsConfig) Validate() error {
	if c.Enabled && c.Namespace == "" {
		return ErrEmptyMetricsNamespace
	}
	return nil
}

// Validate checks the sweeper configuration for errors.
func (c *SweeperConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("schedule %q: %w", c.Schedule, err)
	}
	if len(c.Tenants) == 0 {
		return ErrNoSweeperTenants
	}
	if c.Timeout.Duration() <= 0 {
		return ErrInvalidSweeperTimeout
	}
	return nil
}

// Validate checks the importer configuration for errors.
func (c *ImporterConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Dir == "" {
		return ErrEmptyImporterDir
	}
	if c.Tenant <= 0 {
		return ErrInvalidImporterTenant
	}
	return nil
}

// WriteConfigFile writes the configuration to a TOML file.
func WriteConfigFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return nil
}
