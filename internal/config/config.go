package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// EnvPrefix prefixes environment overrides: BINDBRIDGE_LOG_LEVEL sets
	// log_level.
	EnvPrefix = "BINDBRIDGE_"

	// DefaultFile is read from the working directory when no file is given.
	DefaultFile = "bindbridge.yaml"

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "console"
	DefaultModule    = "bindbridge"
)

// Config holds CLI settings.
type Config struct {
	LogLevel    string `koanf:"log_level"`
	LogFormat   string `koanf:"log_format"`
	Manifest    string `koanf:"manifest"`
	ModuleName  string `koanf:"module_name"`
	KeepGoing   bool   `koanf:"keep_going"`
	Interactive bool   `koanf:"interactive"`

	// File is the config file that was read, if any.
	File string `koanf:"-"`
}

// Load merges, lowest to highest precedence: defaults, the config file,
// BINDBRIDGE_ environment variables and explicitly set flags. Flag names
// map to keys with dashes replaced by underscores.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"log_level":   DefaultLogLevel,
		"log_format":  DefaultLogFormat,
		"module_name": DefaultModule,
		"keep_going":  false,
		"interactive": false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findConfigFile returns the explicit path, or DefaultFile when it exists.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return DefaultFile
	}
	return ""
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format: unknown format %q (want console or json)", c.LogFormat)
	}
	if c.ModuleName == "" {
		return fmt.Errorf("module_name cannot be empty")
	}
	return nil
}

// Logger builds the zap logger the settings describe. Console output is
// zap's development encoder; json is the production one.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if c.LogFormat == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}
