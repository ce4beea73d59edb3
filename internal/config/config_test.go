package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbfs/dbfs/pkg/types"
)

func validConfig() *Configuration {
	cfg := NewDefault()
	cfg.Mount.MountPoint = "/mnt/dbfs"
	cfg.Mount.DumpPath = "/var/lib/dbfs/dump"
	cfg.Servers = []types.ServerEntry{
		{Name: "prod", Hostname: "db.example.com", Username: "sa", Password: "secret", Version: 16},
	}
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := NewDefault()

	assert.Equal(t, 3*time.Second, cfg.Query.LoginTimeout)
	assert.Equal(t, 5*time.Second, cfg.Query.ResponseTimeout)
	assert.Equal(t, "master", cfg.Query.Database)
	assert.Equal(t, "dbfs", cfg.Mount.FSName)
	assert.Equal(t, "INFO", cfg.Global.LogLevel)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Configuration)
	}{
		{"missing mount point", func(c *Configuration) { c.Mount.MountPoint = "" }},
		{"missing dump path", func(c *Configuration) { c.Mount.DumpPath = "" }},
		{"same mount and dump", func(c *Configuration) { c.Mount.DumpPath = c.Mount.MountPoint }},
		{"zero login timeout", func(c *Configuration) { c.Query.LoginTimeout = 0 }},
		{"zero response timeout", func(c *Configuration) { c.Query.ResponseTimeout = 0 }},
		{"no servers", func(c *Configuration) { c.Servers = nil }},
		{"unnamed server", func(c *Configuration) { c.Servers[0].Name = "" }},
		{"separator in name", func(c *Configuration) { c.Servers[0].Name = "a/b" }},
		{"reserved name", func(c *Configuration) { c.Servers[0].Name = ".." }},
		{"missing hostname", func(c *Configuration) { c.Servers[0].Hostname = "" }},
		{"missing username", func(c *Configuration) { c.Servers[0].Username = "" }},
		{"duplicate server", func(c *Configuration) {
			c.Servers = append(c.Servers, c.Servers[0])
		}},
		{"bad log level", func(c *Configuration) { c.Global.LogLevel = "LOUD" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateServersWithoutMountSettings(t *testing.T) {
	cfg := NewDefault()
	cfg.Servers = []types.ServerEntry{
		{Name: "prod", Hostname: "db.example.com", Username: "sa"},
	}

	assert.NoError(t, cfg.ValidateServers())
	assert.Error(t, cfg.Validate())

	cfg.Servers[0].Hostname = ""
	assert.Error(t, cfg.ValidateServers())
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dbfs.yaml")

	cfg := validConfig()
	cfg.Servers[0].CustomQueriesPath = "/etc/dbfs/queries"
	require.NoError(t, cfg.SaveToFile(path))

	loaded := NewDefault()
	require.NoError(t, loaded.LoadFromFile(path))

	assert.Equal(t, cfg.Mount.MountPoint, loaded.Mount.MountPoint)
	assert.Equal(t, cfg.Query.LoginTimeout, loaded.Query.LoginTimeout)
	require.Len(t, loaded.Servers, 1)
	assert.Equal(t, "prod", loaded.Servers[0].Name)
	assert.Equal(t, "/etc/dbfs/queries", loaded.Servers[0].CustomQueriesPath)
	assert.True(t, loaded.Servers[0].SupportsJSON())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DBFS_LOG_LEVEL", "DEBUG")
	t.Setenv("DBFS_DUMP_PATH", "/tmp/dump")
	t.Setenv("DBFS_LOGIN_TIMEOUT", "7s")

	cfg := NewDefault()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "DEBUG", cfg.Global.LogLevel)
	assert.Equal(t, "/tmp/dump", cfg.Mount.DumpPath)
	assert.Equal(t, 7*time.Second, cfg.Query.LoginTimeout)
}
