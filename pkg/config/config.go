// Package config loads the engine settings from a JSON file and keeps them
// current while the process runs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cursordb/pkg/dberror"
	"cursordb/pkg/logging"
)

// Isolation selects how reads lock rows.
type Isolation string

const (
	// ReadCommitted reads committed versions without taking read locks.
	ReadCommitted Isolation = "READ_COMMITTED"
	// RepeatableRead takes read locks on every row read by a connection.
	RepeatableRead Isolation = "REPEATABLE_READ"
)

// Config holds every tunable of a database instance.
type Config struct {
	DataDir    string         `json:"data_dir"`
	AutoCommit bool           `json:"auto_commit"`
	Isolation  Isolation      `json:"isolation"`
	Logging    logging.Config `json:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DataDir:    "data",
		AutoCommit: true,
		Isolation:  ReadCommitted,
		Logging: logging.Config{
			Level:  logging.LevelInfo,
			Format: "text",
		},
	}
}

// Load reads a JSON config file. Fields missing from the file keep their
// default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, dberror.IOFailure("LoadConfig", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, dberror.InvalidArgument("config %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field values and normalizes the data directory.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return dberror.InvalidArgument("data_dir must not be empty")
	}
	c.DataDir = filepath.Clean(c.DataDir)

	switch c.Isolation {
	case "":
		c.Isolation = ReadCommitted
	case ReadCommitted, RepeatableRead:
	default:
		return dberror.InvalidArgument("unknown isolation level %q", c.Isolation)
	}

	if !c.Logging.Level.Valid() {
		return dberror.InvalidArgument("unknown log level %q", c.Logging.Level)
	}
	if f := c.Logging.Format; f != "" && f != "json" && f != "text" {
		return dberror.InvalidArgument("unknown log format %q", f)
	}
	return nil
}

// String renders the config for startup logs.
func (c Config) String() string {
	return fmt.Sprintf("data_dir=%s auto_commit=%t isolation=%s log_level=%s",
		c.DataDir, c.AutoCommit, c.Isolation, c.Logging.Level)
}
