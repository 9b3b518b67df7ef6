// Package commands implements the queryroute subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kongusen/AutoReportAI-sub000/internal/catalog"
	"github.com/kongusen/AutoReportAI-sub000/internal/config"
	"github.com/kongusen/AutoReportAI-sub000/internal/router"
)

// Deps holds the shared objects commands operate on. The root command
// builds one after loading configuration and stores it in the command
// context.
type Deps struct {
	Config   *config.Config
	Registry *catalog.Registry
	Router   *router.Router
	Store    *catalog.Store // nil when no catalog_path is configured
	Logger   *slog.Logger
}

type depsKey struct{}

// WithDeps returns a context carrying the command dependencies.
func WithDeps(ctx context.Context, d *Deps) context.Context {
	return context.WithValue(ctx, depsKey{}, d)
}

// DepsFrom extracts the command dependencies from the command context.
func DepsFrom(cmd *cobra.Command) (*Deps, error) {
	d, ok := cmd.Context().Value(depsKey{}).(*Deps)
	if !ok || d == nil {
		return nil, fmt.Errorf("command dependencies not initialized")
	}
	return d, nil
}
