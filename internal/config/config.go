package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/dbfs/dbfs/pkg/types"
)

// Configuration represents the complete application configuration.
type Configuration struct {
	Global  GlobalConfig        `yaml:"global"`
	Mount   MountConfig         `yaml:"mount"`
	Query   QueryConfig         `yaml:"query"`
	Metrics MetricsConfig       `yaml:"metrics"`
	Servers []types.ServerEntry `yaml:"servers"`
}

// GlobalConfig represents global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
	Verbose  bool   `yaml:"verbose"`

	// LogMaxSizeMB bounds the live log file before rotation; zero
	// disables rotation. LogMaxBackups caps retained rotated files.
	LogMaxSizeMB  int `yaml:"log_max_size_mb"`
	LogMaxBackups int `yaml:"log_max_backups"`
}

// MountConfig represents mount-related settings.
type MountConfig struct {
	// MountPoint is where the virtual tree is exposed.
	MountPoint string `yaml:"mount_point"`

	// DumpPath is the backing store root. The virtual tree mirrors
	// this directory 1:1.
	DumpPath string `yaml:"dump_path"`

	// Foreground keeps the process attached to the terminal instead of
	// daemonizing after a successful mount.
	Foreground bool `yaml:"foreground"`

	AllowOther bool   `yaml:"allow_other"`
	FSName     string `yaml:"fsname"`
	Debug      bool   `yaml:"debug"`
}

// QueryConfig represents remote query execution settings.
type QueryConfig struct {
	// LoginTimeout bounds connection establishment.
	LoginTimeout time.Duration `yaml:"login_timeout"`

	// ResponseTimeout bounds a single query round trip.
	ResponseTimeout time.Duration `yaml:"response_timeout"`

	// Database is the catalog queried for system views.
	Database string `yaml:"database"`

	// VerifyOnStartup pings every configured server before mounting.
	VerifyOnStartup bool `yaml:"verify_on_startup"`
}

// MetricsConfig represents metrics exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// NewDefault returns a configuration with sensible defaults.
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:      "INFO",
			LogFile:       "",
			Verbose:       false,
			LogMaxSizeMB:  64,
			LogMaxBackups: 4,
		},
		Mount: MountConfig{
			Foreground: false,
			AllowOther: false,
			FSName:     "dbfs",
		},
		Query: QueryConfig{
			LoginTimeout:    3 * time.Second,
			ResponseTimeout: 5 * time.Second,
			Database:        "master",
			VerifyOnStartup: false,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    8080,
			Path:    "/metrics",
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration overrides from environment variables.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("DBFS_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("DBFS_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("DBFS_VERBOSE"); val != "" {
		c.Global.Verbose = strings.ToLower(val) == "true"
	}
	if val := os.Getenv("DBFS_DUMP_PATH"); val != "" {
		c.Mount.DumpPath = val
	}
	if val := os.Getenv("DBFS_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			c.Metrics.Port = port
		}
	}
	if val := os.Getenv("DBFS_LOGIN_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Query.LoginTimeout = duration
		}
	}
	if val := os.Getenv("DBFS_RESPONSE_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Query.ResponseTimeout = duration
		}
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file.
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ValidateServers validates the server list alone. Commands that never
// mount, like connectivity checks, use this instead of Validate.
func (c *Configuration) ValidateServers() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("at least one server must be configured")
	}
	seen := make(map[string]bool, len(c.Servers))
	for i := range c.Servers {
		server := &c.Servers[i]
		if server.Name == "" {
			return fmt.Errorf("server %d: name is required", i)
		}
		if strings.ContainsAny(server.Name, "/\\") {
			return fmt.Errorf("server %q: name cannot contain path separators", server.Name)
		}
		if server.Name == "." || server.Name == ".." {
			return fmt.Errorf("server %q: name is reserved", server.Name)
		}
		if server.Hostname == "" {
			return fmt.Errorf("server %q: hostname is required", server.Name)
		}
		if server.Username == "" {
			return fmt.Errorf("server %q: username is required", server.Name)
		}
		if seen[server.Name] {
			return fmt.Errorf("server %q: duplicate name", server.Name)
		}
		seen[server.Name] = true
	}
	return nil
}

// Validate validates the configuration.
func (c *Configuration) Validate() error {
	if c.Mount.MountPoint == "" {
		return fmt.Errorf("mount_point is required")
	}
	if c.Mount.DumpPath == "" {
		return fmt.Errorf("dump_path is required")
	}
	if c.Mount.MountPoint == c.Mount.DumpPath {
		return fmt.Errorf("mount_point and dump_path cannot be the same directory")
	}

	if c.Query.LoginTimeout <= 0 {
		return fmt.Errorf("login_timeout must be greater than 0")
	}
	if c.Query.ResponseTimeout <= 0 {
		return fmt.Errorf("response_timeout must be greater than 0")
	}
	if c.Query.Database == "" {
		return fmt.Errorf("query database is required")
	}

	if err := c.ValidateServers(); err != nil {
		return err
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.ToUpper(c.Global.LogLevel) == level {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}

	return nil
}
