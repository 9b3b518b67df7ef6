package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kongusen/AutoReportAI-sub000/internal/etl"
	"github.com/kongusen/AutoReportAI-sub000/internal/router"
)

// NewETLCommand creates the etl command.
func NewETLCommand() *cobra.Command {
	var (
		sourceID string
		tableArg string
		category string
		format   string
		planOnly bool
	)

	cmd := &cobra.Command{
		Use:   "etl <description>",
		Short: "Plan and execute a declarative ETL requirement",
		Long: `Convert a requirement description into ETL instructions for a single
table, validate the instructions against the live schema, and execute
them. The result carries a confidence score that degrades on empty or
partially-missing data.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := DepsFrom(cmd)
			if err != nil {
				return err
			}

			req := etl.Requirement{
				Category:    etl.Category(category),
				Description: args[0],
				Table:       tableArg,
			}

			instr, err := d.Router.PlanETL(cmd.Context(), req, sourceID)
			if err != nil {
				return fmt.Errorf("planning failed: %w", err)
			}

			w := cmd.OutOrStdout()
			if planOnly {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(instr)
			}

			var opts router.Options
			if dl := d.Config.Deadline(); dl > 0 {
				opts.Deadline = nowFunc().Add(dl)
			}
			data, err := d.Router.ExecuteETL(cmd.Context(), instr, sourceID, opts)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"value":          data.Value,
					"confidence":     data.Confidence,
					"rows_processed": data.RowsProcessed,
					"query":          data.Query,
					"metadata":       data.Metadata,
				})
			default:
				_, _ = fmt.Fprintf(w, "value: %v\n", data.Value)
				_, _ = fmt.Fprintf(w, "confidence: %.2f\n", data.Confidence)
				_, _ = fmt.Fprintf(w, "rows processed: %d\n", data.RowsProcessed)
				_, _ = fmt.Fprintf(w, "query: %s\n", data.Query)
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&sourceID, "source", "s", "", "Source ID to execute against")
	cmd.Flags().StringVarP(&tableArg, "table", "T", "", "Target table")
	cmd.Flags().StringVarP(&category, "category", "c", string(etl.CategoryStatistical),
		"Requirement category (statistical|chart|period|region)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text|json)")
	cmd.Flags().BoolVar(&planOnly, "plan", false, "Print the planned instructions without executing")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}
