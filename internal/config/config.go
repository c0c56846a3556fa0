package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minutespa/minutespa/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "minutespa.json"

	// YAMLConfigFileName is the name of the YAML configuration file.
	YAMLConfigFileName = "minutespa.yaml"

	// EnvMedium overrides State.Medium when set.
	EnvMedium = "MINUTESPA_MEDIUM"

	// DefaultPort is the default key/value server port.
	DefaultPort = 3100

	// DefaultHost is the default key/value server host.
	DefaultHost = "localhost"

	// DefaultStoreID is the store used when none is given.
	DefaultStoreID = "main"

	// DefaultTimeout bounds each medium operation.
	DefaultTimeout = "5s"

	// DefaultSQLitePath is the database file used by the sqlite medium.
	DefaultSQLitePath = "minutespa.db"
)

// Medium kinds.
const (
	MediumNone   = "none"
	MediumMemory = "memory"
	MediumSQLite = "sqlite"
	MediumS3     = "s3"
	MediumRemote = "remote"
)

var mediumKinds = []string{MediumNone, MediumMemory, MediumSQLite, MediumS3, MediumRemote}

// Config represents the complete minutespa configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// State configures the state buses and their persistent medium.
	State StateConfig `json:"state" yaml:"state"`

	// Server configures the key/value server.
	Server ServerConfig `json:"server" yaml:"server"`

	// Log configures logging.
	Log LogConfig `json:"log" yaml:"log"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// StateConfig configures the state buses.
type StateConfig struct {
	// StoreID is the default store for CLI commands.
	StoreID string `json:"storeId,omitempty" yaml:"storeId,omitempty"`

	// Medium selects the persistent medium: none, memory, sqlite, s3 or remote.
	Medium string `json:"medium,omitempty" yaml:"medium,omitempty"`

	// Timeout bounds each medium operation (e.g. "5s").
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// CacheSize wraps the medium in an LRU read cache of this many keys.
	// Zero disables the cache.
	CacheSize int `json:"cacheSize,omitempty" yaml:"cacheSize,omitempty"`

	SQLite SQLiteConfig `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	S3     S3Config     `json:"s3,omitempty" yaml:"s3,omitempty"`
	Remote RemoteConfig `json:"remote,omitempty" yaml:"remote,omitempty"`
}

// SQLiteConfig configures the sqlite medium.
type SQLiteConfig struct {
	// Path is the database file, relative to the config directory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Table is the table name (default "minutespa_state").
	Table string `json:"table,omitempty" yaml:"table,omitempty"`
}

// S3Config configures the S3 medium. Credentials come from the standard
// AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN variables.
type S3Config struct {
	Bucket   string `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// PathStyle forces path-style addressing (for MinIO and similar).
	PathStyle bool `json:"pathStyle,omitempty" yaml:"pathStyle,omitempty"`
}

// RemoteConfig configures the remote medium.
type RemoteConfig struct {
	// URL is the base URL of a minutespa key/value server.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// ServerConfig configures the key/value server.
type ServerConfig struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`

	// Metrics exposes /metrics.
	Metrics bool `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// AllowedOrigins lists origins accepted for websocket feeds. Empty
	// means same-origin only; "*" accepts any origin.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" yaml:"allowedOrigins,omitempty"`

	// ShutdownTimeout bounds graceful shutdown (e.g. "10s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty" yaml:"shutdownTimeout,omitempty"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		State: StateConfig{
			StoreID: DefaultStoreID,
			Medium:  MediumMemory,
			Timeout: DefaultTimeout,
			SQLite:  SQLiteConfig{Path: DefaultSQLitePath},
		},
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			Metrics:         true,
			ShutdownTimeout: "10s",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for minutespa.json, then minutespa.yaml.
func Load(dir string) (*Config, error) {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName, "minutespa.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("M200").
		WithDetail("No minutespa.json or minutespa.yaml found in " + dir).
		WithSuggestion("Run 'minutespa config init' to create one")
}

// LoadFile reads configuration from the specified file path. Files ending
// in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("M200").
				WithDetail("No config found at " + path).
				WithSuggestion("Run 'minutespa config init' to create one")
		}
		return nil, errors.New("M201").Wrap(err)
	}

	cfg := New()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("M201").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that the file is valid " + formatName(path))
	}

	cfg.configPath = path
	cfg.applyDefaults()
	cfg.applyEnv()

	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func formatName(path string) string {
	if isYAML(path) {
		return "YAML"
	}
	return "JSON"
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, as YAML when the
// path ends in .yaml or .yml.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("M201").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("M201").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.State.StoreID == "" {
		c.State.StoreID = DefaultStoreID
	}
	if c.State.Medium == "" {
		c.State.Medium = MediumMemory
	}
	if c.State.Timeout == "" {
		c.State.Timeout = DefaultTimeout
	}
	if c.State.SQLite.Path == "" {
		c.State.SQLite.Path = DefaultSQLitePath
	}

	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) applyEnv() {
	if m := os.Getenv(EnvMedium); m != "" {
		c.State.Medium = strings.ToLower(strings.TrimSpace(m))
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !validMedium(c.State.Medium) {
		return errors.New("M201").
			WithDetailf("Unknown medium %q", c.State.Medium).
			WithSuggestion("Use one of: " + strings.Join(mediumKinds, ", "))
	}
	switch c.State.Medium {
	case MediumS3:
		if c.State.S3.Bucket == "" {
			return errors.New("M201").WithDetail("state.s3.bucket is required for the s3 medium")
		}
	case MediumRemote:
		if c.State.Remote.URL == "" {
			return errors.New("M201").WithDetail("state.remote.url is required for the remote medium")
		}
	}
	if c.State.CacheSize < 0 {
		return errors.New("M201").WithDetail("state.cacheSize must not be negative")
	}
	if _, err := time.ParseDuration(c.State.Timeout); err != nil {
		return errors.New("M201").WithDetailf("state.timeout: %v", err)
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		return errors.New("M201").WithDetailf("server.shutdownTimeout: %v", err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("M201").
			WithDetail("Port must be between 0 and 65535")
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return errors.New("M201").WithDetailf("Unknown log level %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("M201").WithDetailf("Unknown log format %q", c.Log.Format)
	}
	return nil
}

func validMedium(kind string) bool {
	for _, k := range mediumKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Address returns the listen address for the key/value server.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// URL returns the base URL of the key/value server.
func (c *Config) URL() string {
	return "http://" + c.Address()
}

// Timeout returns the per-operation medium timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.State.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultTimeout)
	}
	return d
}

// ShutdownTimeout returns the graceful shutdown bound.
func (c *Config) ShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// SQLitePath returns the absolute path to the sqlite database.
func (c *Config) SQLitePath() string {
	path := c.State.SQLite.Path
	if path == "" {
		path = DefaultSQLitePath
	}
	if filepath.IsAbs(path) || path == ":memory:" {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Logger builds a logger from the Log section.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName, "minutespa.yml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing a config file, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("M200").
				WithDetail("No minutespa config found in " + startDir + " or any parent directory").
				WithSuggestion("Run 'minutespa config init' to create one")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or its nearest parent with a config file. Without one, defaults are
// returned with the environment override applied.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		if errors.Is(err, "M200") {
			cfg := New()
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	return Load(root)
}
