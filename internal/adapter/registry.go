package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Factory builds an adapter instance. A nil logger means discard.
type Factory func(*slog.Logger) Adapter

var (
	typesMu sync.RWMutex
	types   = make(map[string]Factory)
)

// Register makes a source type available to New. Builtin adapters register
// themselves in init; tests may register additional types at any point.
func Register(name string, factory Factory) {
	typesMu.Lock()
	defer typesMu.Unlock()
	types[name] = factory
}

// New builds the adapter for cfg.Type. The returned adapter is not yet
// connected.
func New(cfg Config, logger *slog.Logger) (Adapter, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("source type not specified")
	}

	typesMu.RLock()
	factory, ok := types[cfg.Type]
	typesMu.RUnlock()
	if !ok {
		return nil, &UnknownSourceTypeError{Type: cfg.Type, Available: ListTypes()}
	}
	return factory(logger), nil
}

// ListTypes returns the registered source type names, sorted.
func ListTypes() []string {
	typesMu.RLock()
	defer typesMu.RUnlock()

	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether name is a known source type.
func IsRegistered(name string) bool {
	typesMu.RLock()
	defer typesMu.RUnlock()
	_, ok := types[name]
	return ok
}

// UnknownSourceTypeError reports a source configured with a type no adapter
// was registered for.
type UnknownSourceTypeError struct {
	Type      string
	Available []string
}

func (e *UnknownSourceTypeError) Error() string {
	return fmt.Sprintf("unknown source type %q (registered: %s)",
		e.Type, strings.Join(e.Available, ", "))
}
