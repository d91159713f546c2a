package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/campusinsight/sheetsql"
	"github.com/campusinsight/sheetsql/internal/config"
)

func newReportCommand() *cobra.Command {
	var (
		granularity string
		format      string
		list        bool
	)

	cmd := &cobra.Command{
		Use:   "report [name]",
		Short: "Resolve a named report against the store",
		Long: `Resolves a report by name: a table or view of that name, then a dynamic report
that locates its columns by role, then a fixed query over the base table.`,
		Example: `  sheetsql report visa_breakdown
  sheetsql report offer_expiry_surge --granularity day --format json
  sheetsql report --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfig(ctx)
			if err != nil {
				return err
			}

			db, err := sheetsql.OpenStore(cfg.Store.Path, cfg.Store.LockTimeout)
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			resolver := sheetsql.NewResolver(db, sheetsql.ResolverConfig{DefaultTable: cfg.Store.DefaultTable},
				sheetsql.WithResolverLogger(config.GetLogger(ctx)))

			if list {
				for _, name := range resolver.ListViews() {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			if len(args) == 0 {
				return fmt.Errorf("report name is required")
			}

			g, err := sheetsql.ParseGranularity(granularity)
			if err != nil {
				return err
			}
			result, err := resolver.Resolve(ctx, args[0], sheetsql.WithGranularity(g))
			if err != nil {
				return err
			}
			return renderResult(cmd.OutOrStdout(), result, format)
		},
	}

	cmd.Flags().StringVar(&granularity, "granularity", "month", "time bucket for time-series reports (day|month)")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json|csv)")
	cmd.Flags().BoolVar(&list, "list", false, "list known report names")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json", "csv"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func renderResult(w io.Writer, result *sheetsql.Result, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "csv":
		return renderCSV(w, result)
	case "table", "":
		return renderTable(w, result)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func renderTable(w io.Writer, result *sheetsql.Result) error {
	if len(result.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(result.Columns))
	for i, col := range result.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, values := range result.Rows {
		row := make(table.Row, len(values))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows, %s)\n", len(result.Rows), result.Source)
	return nil
}

func renderCSV(w io.Writer, result *sheetsql.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(result.Columns); err != nil {
		return err
	}
	for _, values := range result.Rows {
		record := make([]string, len(values))
		for i, v := range values {
			if v != nil {
				record[i] = fmt.Sprint(v)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}
