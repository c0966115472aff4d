package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const defaultBatchSize = 500

// MigrationConfig holds the full migration configuration. It is read from
// an optional TOML file and then overridden by explicitly set CLI flags.
type MigrationConfig struct {
	Source        SourceConfig      `toml:"source"`
	Target        TargetConfig      `toml:"target"`
	DryRun        bool              `toml:"dry_run"`
	AutoIncrement bool              `toml:"auto_increment"`
	BatchSize     int               `toml:"batch_size"`
	TypeMapping   TypeMappingConfig `toml:"type_mapping"`
	Hooks         HooksConfig       `toml:"hooks"`

	// configDir is the directory containing the TOML file, used to resolve relative paths.
	configDir string
}

// SourceConfig locates the SQLite database file.
type SourceConfig struct {
	Path string `toml:"path"`
}

// TargetConfig describes the target server and the database to create.
type TargetConfig struct {
	Dialect   string `toml:"dialect"` // "mariadb" or "postgres"
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	User      string `toml:"user"`
	Password  string `toml:"password"`
	Database  string `toml:"database"`
	Charset   string `toml:"charset"`   // MariaDB only
	Collation string `toml:"collation"` // MariaDB only
}

type HooksConfig struct {
	BeforeData []string `toml:"before_data"`
	AfterData  []string `toml:"after_data"`
	AfterAll   []string `toml:"after_all"`
}

// TypeMappingConfig controls type coercions.
type TypeMappingConfig struct {
	IntegerAsBigint bool `toml:"integer_as_bigint"`
}

func defaultConfig() MigrationConfig {
	return MigrationConfig{
		Target: TargetConfig{
			Dialect:   "mariadb",
			Host:      "127.0.0.1",
			User:      "root",
			Charset:   "utf8mb4",
			Collation: "utf8mb4_unicode_ci",
		},
		BatchSize: defaultBatchSize,
		configDir: ".",
	}
}

// loadConfig reads a TOML config file and returns a MigrationConfig with
// defaults applied. The result is not validated; call validate after flag
// overrides have been merged.
func loadConfig(path string) (*MigrationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg.configDir = filepath.Dir(absPath)

	if !md.IsDefined("target", "collation") && md.IsDefined("target", "charset") && cfg.Target.Charset != "utf8mb4" {
		// The default collation belongs to utf8mb4; let the server pick one
		// for any other charset.
		cfg.Target.Collation = ""
	}
	if cfg.Source.Path != "" {
		cfg.Source.Path = cfg.resolvePath(cfg.Source.Path)
	}
	return &cfg, nil
}

// validate normalizes and checks a merged configuration.
func (c *MigrationConfig) validate() error {
	c.Source.Path = strings.TrimSpace(c.Source.Path)
	if c.Source.Path == "" {
		return fmt.Errorf("source.path is required (--sqlite)")
	}
	if c.Source.Path == ":memory:" {
		return fmt.Errorf("source.path must be a database file, not :memory:")
	}

	c.Target.Dialect = strings.ToLower(strings.TrimSpace(c.Target.Dialect))
	if c.Target.Dialect == "" {
		c.Target.Dialect = "mariadb"
	}
	dialect, err := newTargetDialect(c.Target.Dialect)
	if err != nil {
		return err
	}

	c.Target.Database = strings.TrimSpace(c.Target.Database)
	if c.Target.Database == "" {
		return fmt.Errorf("target.database is required (--database)")
	}
	if c.Target.Host == "" {
		c.Target.Host = "127.0.0.1"
	}
	if c.Target.Port == 0 {
		c.Target.Port = dialect.DefaultPort()
	}
	if c.Target.Port < 0 || c.Target.Port > 65535 {
		return fmt.Errorf("target.port must be between 1 and 65535")
	}
	if c.Target.Password == "" && !c.DryRun {
		return fmt.Errorf("target.password is required unless dry_run is set (--password)")
	}

	// Charset and collation are MariaDB-only options.
	if c.Target.Dialect == "postgres" {
		if c.Target.Charset != "" && c.Target.Charset != "utf8mb4" {
			return fmt.Errorf("target.charset is a MariaDB-only option")
		}
		c.Target.Charset = ""
		c.Target.Collation = ""
	} else if c.Target.Charset == "" {
		c.Target.Charset = "utf8mb4"
	}

	if c.BatchSize == 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	return nil
}

// resolvePath resolves a path relative to the config file directory.
func (c *MigrationConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}
