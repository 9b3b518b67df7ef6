package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kongusen/AutoReportAI-sub000/internal/catalog"
)

// NewSourcesCommand creates the sources command and its subcommands.
func NewSourcesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List configured data sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := DepsFrom(cmd)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"ID", "Name", "Type", "Tables"})
			for _, src := range d.Registry.Sources() {
				t.AppendRow(table.Row{src.ID, src.Name, src.Conn.Type, len(d.Registry.Tables(src.ID))})
			}
			t.Render()
			return nil
		},
	}

	cmd.AddCommand(newDiscoverCommand())
	return cmd
}

// newDiscoverCommand creates the sources discover subcommand.
func newDiscoverCommand() *cobra.Command {
	var (
		sourceID  string
		namesOnly bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Introspect source schemas and refresh the catalog",
		Long: `Connect to each configured source (or a single one with --source),
introspect its tables and columns, and store the schemas in the
catalog. With a catalog_path configured the schemas are also persisted
so later runs can skip live introspection.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := DepsFrom(cmd)
			if err != nil {
				return err
			}

			sources := d.Registry.Sources()
			if sourceID != "" {
				src, ok := d.Registry.Source(sourceID)
				if !ok {
					return fmt.Errorf("source %q not registered", sourceID)
				}
				sources = []catalog.Source{src}
			}

			intro := catalog.NewIntrospector(d.Logger)
			for _, src := range sources {
				ad, err := d.Registry.Open(cmd.Context(), src.ID)
				if err != nil {
					return fmt.Errorf("source %s: %w", src.ID, err)
				}
				tables, err := intro.Discover(cmd.Context(), ad, src.ID, namesOnly)
				_ = ad.Close()
				if err != nil {
					return fmt.Errorf("source %s: %w", src.ID, err)
				}

				d.Registry.SetTables(src.ID, tables)
				if d.Store != nil {
					if err := d.Store.SaveTables(src.ID, tables); err != nil {
						return fmt.Errorf("persisting catalog for %s: %w", src.ID, err)
					}
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: discovered %d table(s)\n", src.ID, len(tables))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceID, "source", "s", "", "Discover a single source")
	cmd.Flags().BoolVar(&namesOnly, "names-only", false, "Record table names without column metadata")

	return cmd
}
