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
)

// Default settings applied before any file, env, or flag overrides.
const (
	DefaultMaxWorkers      = 4
	DefaultRowLimit        = 10000
	DefaultPageSize        = 1000
	DefaultMemoryThreshold = 0.8
)

// findConfigFile finds the config file to use.
// Priority: explicit path > queryroute.yaml > queryroute.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat("queryroute.yaml"); err == nil {
		return "queryroute.yaml"
	}
	if _, err := os.Stat("queryroute.yml"); err == nil {
		return "queryroute.yml"
	}
	return ""
}

// Load builds the configuration by layering, in increasing priority:
// built-in defaults, the YAML config file, QUERYROUTE_* environment
// variables, and explicitly-set CLI flags.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"executor.max_workers":   DefaultMaxWorkers,
		"executor.row_limit":     DefaultRowLimit,
		"batch.page_size":        DefaultPageSize,
		"batch.memory_threshold": DefaultMemoryThreshold,
		"verbose":                false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Load config file
	if configFile := findConfigFile(cfgFile); configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// 3. Load environment variables (QUERYROUTE_ prefix)
	// Double underscore separates nesting levels so snake_case keys survive:
	// QUERYROUTE_EXECUTOR__MAX_WORKERS -> executor.max_workers
	if err := k.Load(env.Provider("QUERYROUTE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "QUERYROUTE_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			switch f.Name {
			case "catalog":
				return "catalog_path", posflag.FlagVal(flags, f)
			case "workers":
				return "executor.max_workers", posflag.FlagVal(flags, f)
			case "row-limit":
				return "executor.row_limit", posflag.FlagVal(flags, f)
			case "timeout":
				return "executor.timeout_seconds", posflag.FlagVal(flags, f)
			case "verbose":
				return "verbose", posflag.FlagVal(flags, f)
			}
			return "", nil
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
