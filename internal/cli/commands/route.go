package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kongusen/AutoReportAI-sub000/internal/router"
)

// nowFunc is swappable in tests.
var nowFunc = time.Now

// NewRouteCommand creates the route command.
func NewRouteCommand() *cobra.Command {
	var (
		sourceID      string
		tables        []string
		namesOnly     bool
		format        string
		maxCandidates int
		showStats     bool
	)

	cmd := &cobra.Command{
		Use:   "route <request>",
		Short: "Route a natural-language request to SQL and execute it",
		Long: `Analyze a natural-language request, match it against the catalog,
plan and generate SQL, and execute it across the configured sources.

The request may span multiple sources; partial results are returned as
long as at least one generated task succeeds.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := DepsFrom(cmd)
			if err != nil {
				return err
			}

			opts := router.Options{
				NamesOnly:     namesOnly,
				Tables:        tables,
				MaxCandidates: maxCandidates,
				RowLimit:      d.Config.Executor.RowLimit,
			}
			if dl := d.Config.Deadline(); dl > 0 {
				opts.Deadline = nowFunc().Add(dl)
			}

			res, err := d.Router.Route(cmd.Context(), args[0], sourceID, opts)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if !res.Success {
				_, _ = fmt.Fprintln(w, "query failed:")
				for _, e := range res.Errors {
					_, _ = fmt.Fprintf(w, "  - %s\n", e)
				}
				return fmt.Errorf("all generated tasks failed")
			}

			if err := renderResultSet(w, res.Data, format); err != nil {
				return err
			}
			if len(res.Errors) > 0 {
				_, _ = fmt.Fprintf(w, "partial result; %d task(s) failed:\n", len(res.Errors))
				for _, e := range res.Errors {
					_, _ = fmt.Fprintf(w, "  - %s\n", e)
				}
			}
			if showStats {
				printStats(w, res.Stats, res.Elapsed.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceID, "source", "s", "", "Primary source ID to route against")
	cmd.Flags().StringSliceVar(&tables, "tables", nil, "Restrict matching to these tables")
	cmd.Flags().BoolVar(&namesOnly, "names-only", false, "Skip column introspection on live discovery")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|json|csv|md)")
	cmd.Flags().IntVar(&maxCandidates, "max-candidates", 0, "Maximum table candidates to consider")
	cmd.Flags().BoolVar(&showStats, "stats", false, "Print execution statistics")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

func printStats(w io.Writer, stats map[string]any, elapsed string) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("stats:\n")
	fmt.Fprintf(&b, "  elapsed: %s\n", elapsed)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %v\n", k, stats[k])
	}
	_, _ = w.Write([]byte(b.String()))
}
