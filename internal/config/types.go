// Package config defines the configuration types for queryroute and the
// koanf-based loader that populates them from defaults, YAML files,
// environment variables, and CLI flags.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kongusen/AutoReportAI-sub000/internal/adapter"
	"github.com/kongusen/AutoReportAI-sub000/internal/catalog"
)

// Config is the root configuration.
type Config struct {
	// CatalogPath is the SQLite file used to persist introspected schemas.
	// Empty disables the persistent catalog cache.
	CatalogPath string `koanf:"catalog_path"`

	Executor ExecutorConfig `koanf:"executor"`
	Batch    BatchConfig    `koanf:"batch"`

	// Sources lists the data sources the router may query.
	Sources []SourceConfig `koanf:"sources"`

	Verbose bool `koanf:"verbose"`
}

// ExecutorConfig tunes the cross-source executor.
type ExecutorConfig struct {
	MaxWorkers int `koanf:"max_workers"`
	RowLimit   int `koanf:"row_limit"`
	// TimeoutSeconds bounds a single routed query end to end. Zero means
	// no deadline.
	TimeoutSeconds int `koanf:"timeout_seconds"`
}

// BatchConfig tunes the paginated batch runner.
type BatchConfig struct {
	PageSize        int     `koanf:"page_size"`
	MemoryThreshold float64 `koanf:"memory_threshold"`
}

// SourceConfig describes a single data source connection.
type SourceConfig struct {
	ID       string            `koanf:"id"`
	Name     string            `koanf:"name"`
	Type     string            `koanf:"type"`
	Path     string            `koanf:"path"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	Username string            `koanf:"username"`
	Password string            `koanf:"password"`
	Schema   string            `koanf:"schema"`
	Options  map[string]string `koanf:"options"`
}

// Deadline returns the configured executor timeout as a duration.
func (c *Config) Deadline() time.Duration {
	return time.Duration(c.Executor.TimeoutSeconds) * time.Second
}

// Source converts a SourceConfig into a catalog source entry.
func (s SourceConfig) Source() catalog.Source {
	name := s.Name
	if name == "" {
		name = s.ID
	}
	return catalog.Source{
		ID:   s.ID,
		Name: name,
		Conn: adapter.Config{
			Type:     s.Type,
			Path:     s.Path,
			Host:     s.Host,
			Port:     s.Port,
			Database: s.Database,
			Username: s.Username,
			Password: s.Password,
			Schema:   s.Schema,
			Options:  s.Options,
		},
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate source id %q", i, src.ID)
		}
		seen[src.ID] = true
		if !adapter.IsRegistered(src.Type) {
			return fmt.Errorf("source %q: unsupported type %q (available: %v)",
				src.ID, src.Type, adapter.ListTypes())
		}
	}
	if c.Batch.MemoryThreshold < 0 || c.Batch.MemoryThreshold > 1 {
		return fmt.Errorf("batch.memory_threshold must be in [0,1], got %v", c.Batch.MemoryThreshold)
	}
	return nil
}

// Registry builds a catalog registry holding every configured source.
func (c *Config) Registry(logger *slog.Logger) *catalog.Registry {
	reg := catalog.NewRegistry(logger)
	for _, src := range c.Sources {
		reg.AddSource(src.Source())
	}
	return reg
}
