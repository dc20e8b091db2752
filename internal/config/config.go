// Package config loads dobby settings from defaults, an optional YAML file,
// .env files, DOBBY_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bfatoms/sqlite3-opfs-sample/internal/bridge"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/schema"
	"github.com/bfatoms/sqlite3-opfs-sample/internal/store"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "DOBBY"

// DefaultName is the storage identifier used when none is configured.
const DefaultName = "dobby.sqlite"

// Config is the resolved configuration.
type Config struct {
	// Name is the storage identifier; ":memory:" selects a transient database.
	Name string `mapstructure:"name"`
	// Debug echoes service status and logs every statement sent.
	Debug bool `mapstructure:"debug"`
	// Driver is store.DriverMattn or store.DriverModernc.
	Driver string `mapstructure:"driver"`
	// Schema is a CUE schema file; empty selects the built-in schema.
	Schema string `mapstructure:"schema"`
	// BoundReads sends read values as bound parameters.
	BoundReads bool `mapstructure:"bound_reads"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit YAML config file. When empty, dobby.yaml is looked
	// up in the working directory and a missing file is not an error.
	File string
	// EnvFiles are loaded into the environment before it is read. Missing
	// files are skipped. Variables already set are not overridden.
	EnvFiles []string
	// Flags, when set, override everything else. Flag names use dashes
	// ("bound-reads", "log-level").
	Flags *pflag.FlagSet
}

// flagKeys maps flag names to config keys where they differ.
var flagKeys = map[string]string{
	"bound-reads": "bound_reads",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	for _, path := range opts.EnvFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	v := viper.New()
	v.SetDefault("name", DefaultName)
	v.SetDefault("debug", false)
	v.SetDefault("driver", store.DriverMattn)
	v.SetDefault("schema", "")
	v.SetDefault("bound_reads", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("dobby")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if opts.Flags != nil {
		var bindErr error
		opts.Flags.VisitAll(func(f *pflag.Flag) {
			key, ok := flagKeys[f.Name]
			if !ok {
				key = f.Name
			}
			if !isKnownKey(key) {
				return
			}
			if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
				bindErr = err
			}
		})
		if bindErr != nil {
			return nil, fmt.Errorf("bind flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isKnownKey(key string) bool {
	switch key {
	case "name", "debug", "driver", "schema", "bound_reads", "log.level", "log.format":
		return true
	}
	return false
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Driver {
	case store.DriverMattn, store.DriverModernc:
	default:
		return fmt.Errorf("config: unknown driver %q (want %q or %q)", c.Driver, store.DriverMattn, store.DriverModernc)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q (want text or json)", c.Log.Format)
	}
	return nil
}

// Level parses Log.Level. Debug mode lowers it to debug.
func (c *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	if c.Debug && lvl > slog.LevelDebug {
		lvl = slog.LevelDebug
	}
	return lvl, nil
}

// Bridge returns the execution-context configuration, compiling the schema
// file if one is set.
func (c *Config) Bridge() (bridge.Config, error) {
	bc := bridge.Config{
		Name:   c.Name,
		Debug:  c.Debug,
		Driver: c.Driver,
	}
	if c.Schema != "" {
		sc, err := schema.LoadFile(c.Schema)
		if err != nil {
			return bridge.Config{}, err
		}
		bc.Schema = sc
	}
	return bc, nil
}
