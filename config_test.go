package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgFile := filepath.Join(t.TempDir(), "liteferry.toml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0644))
	return cfgFile
}

func TestLoadConfig(t *testing.T) {
	cfgFile := writeConfig(t, `
dry_run = true
auto_increment = true
batch_size = 250

[source]
path = "data/app.db"

[target]
dialect = "mariadb"
host = "db.internal"
port = 3307
user = "migrator"
password = "secret"
database = "app"
charset = "utf8mb4"
collation = "utf8mb4_bin"

[type_mapping]
integer_as_bigint = true

[hooks]
before_data = ["pre.sql"]
after_data = []
after_all = ["post.sql"]
`)
	dir := filepath.Dir(cfgFile)

	cfg, err := loadConfig(cfgFile)
	require.NoError(t, err)
	require.NoError(t, cfg.validate())

	assert.Equal(t, filepath.Join(dir, "data/app.db"), cfg.Source.Path)
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.AutoIncrement)
	assert.Equal(t, 250, cfg.BatchSize)
	assert.Equal(t, TargetConfig{
		Dialect:   "mariadb",
		Host:      "db.internal",
		Port:      3307,
		User:      "migrator",
		Password:  "secret",
		Database:  "app",
		Charset:   "utf8mb4",
		Collation: "utf8mb4_bin",
	}, cfg.Target)
	assert.True(t, cfg.TypeMapping.IntegerAsBigint)
	assert.Equal(t, []string{"pre.sql"}, cfg.Hooks.BeforeData)
	assert.Equal(t, []string{"post.sql"}, cfg.Hooks.AfterAll)
	assert.Equal(t, dir, cfg.configDir)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfgFile := writeConfig(t, `
[source]
path = "/tmp/app.db"

[target]
password = "pw"
database = "app"
`)
	cfg, err := loadConfig(cfgFile)
	require.NoError(t, err)
	require.NoError(t, cfg.validate())

	assert.Equal(t, "mariadb", cfg.Target.Dialect)
	assert.Equal(t, "127.0.0.1", cfg.Target.Host)
	assert.Equal(t, 3306, cfg.Target.Port)
	assert.Equal(t, "root", cfg.Target.User)
	assert.Equal(t, "utf8mb4", cfg.Target.Charset)
	assert.Equal(t, "utf8mb4_unicode_ci", cfg.Target.Collation)
	assert.Equal(t, defaultBatchSize, cfg.BatchSize)
	assert.False(t, cfg.DryRun)
	assert.False(t, cfg.AutoIncrement)
	assert.False(t, cfg.TypeMapping.IntegerAsBigint)
}

func TestLoadConfig_Postgres(t *testing.T) {
	cfgFile := writeConfig(t, `
[source]
path = "/tmp/app.db"

[target]
dialect = "postgres"
password = "pw"
database = "app"
`)
	cfg, err := loadConfig(cfgFile)
	require.NoError(t, err)
	require.NoError(t, cfg.validate())

	assert.Equal(t, 5432, cfg.Target.Port)
	assert.Empty(t, cfg.Target.Charset)
	assert.Empty(t, cfg.Target.Collation)
}

func TestLoadConfig_CustomCharsetClearsDefaultCollation(t *testing.T) {
	cfgFile := writeConfig(t, `
[source]
path = "/tmp/app.db"

[target]
password = "pw"
database = "app"
charset = "latin1"
`)
	cfg, err := loadConfig(cfgFile)
	require.NoError(t, err)
	assert.Empty(t, cfg.Target.Collation)
}

func TestLoadConfig_UnknownKeys(t *testing.T) {
	cfgFile := writeConfig(t, `
workers = 4

[source]
path = "/tmp/app.db"
`)
	_, err := loadConfig(cfgFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MigrationConfig)
		want   string
	}{
		{"missing source", func(c *MigrationConfig) { c.Source.Path = " " }, "source.path"},
		{"memory source", func(c *MigrationConfig) { c.Source.Path = ":memory:" }, ":memory:"},
		{"missing database", func(c *MigrationConfig) { c.Target.Database = "" }, "target.database"},
		{"missing password", func(c *MigrationConfig) { c.Target.Password = "" }, "target.password"},
		{"bad dialect", func(c *MigrationConfig) { c.Target.Dialect = "oracle" }, "unsupported target dialect"},
		{"bad port", func(c *MigrationConfig) { c.Target.Port = 70000 }, "target.port"},
		{"negative batch", func(c *MigrationConfig) { c.BatchSize = -1 }, "batch_size"},
		{"charset on postgres", func(c *MigrationConfig) {
			c.Target.Dialect = "postgres"
			c.Target.Charset = "latin1"
		}, "MariaDB-only"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Source.Path = "/tmp/app.db"
			cfg.Target.Database = "app"
			cfg.Target.Password = "pw"
			tt.mutate(&cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_DryRunNeedsNoPassword(t *testing.T) {
	cfg := defaultConfig()
	cfg.Source.Path = "/tmp/app.db"
	cfg.Target.Database = "app"
	cfg.DryRun = true
	assert.NoError(t, cfg.validate())
}

func TestBuildConfig_FlagsOverrideFile(t *testing.T) {
	cfgFile := writeConfig(t, `
batch_size = 100

[source]
path = "/tmp/app.db"

[target]
host = "file-host"
password = "pw"
database = "from_file"
`)
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--database", "from_flag", "--dry-run", "--auto-increment"}))
	opts := defaultConfig()
	opts.Target.Database = "from_flag"
	opts.DryRun = true
	opts.AutoIncrement = true

	cfg, err := buildConfig(cmd, cfgFile, opts)
	require.NoError(t, err)

	assert.Equal(t, "from_flag", cfg.Target.Database)
	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.AutoIncrement)
	// Flags left unset keep the file values.
	assert.Equal(t, "file-host", cfg.Target.Host)
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestBuildConfig_FlagsOnly(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--sqlite", "/tmp/app.db", "--database", "app", "--target", "postgres", "--password", "pw"}))
	opts := defaultConfig()
	opts.Source.Path = "/tmp/app.db"
	opts.Target.Database = "app"
	opts.Target.Dialect = "postgres"
	opts.Target.Password = "pw"

	cfg, err := buildConfig(cmd, "", opts)
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Target.Port)
}

func TestResolvePath(t *testing.T) {
	cfg := &MigrationConfig{configDir: "/home/user/migrations"}

	assert.Equal(t, "/home/user/migrations/cleanup.sql", cfg.resolvePath("cleanup.sql"))
	assert.Equal(t, "/absolute/path.sql", cfg.resolvePath("/absolute/path.sql"))
}
