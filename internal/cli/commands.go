//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of TradeFlow.
//
// TradeFlow is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TradeFlow is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with TradeFlow. If not, see https://www.gnu.org/licenses/.

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aaronlmathis/tradeflow"
	"github.com/aaronlmathis/tradeflow/anomaly"
	"github.com/aaronlmathis/tradeflow/config"
	"github.com/aaronlmathis/tradeflow/core"
	"github.com/aaronlmathis/tradeflow/filter"
	"github.com/aaronlmathis/tradeflow/metrics"
	"github.com/aaronlmathis/tradeflow/types"
	"github.com/aaronlmathis/tradeflow/validators"
)

func newInspectCommand(a *app) *cobra.Command {
	var limit int
	var required []string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Preview the normalized table and its data quality",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rel, view, err := a.view(ctx)
			if err != nil {
				return err
			}
			if len(required) > 0 {
				if view, err = requireValues(ctx, view, required); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rows: %d (of %d)\n", view.Len(), rel.Len())
			fmt.Fprintf(out, "Columns: %s\n\n", strings.Join(view.Columns(), ", "))
			printTable(out, view.Columns(), view.Rows(), limit)

			report, err := validators.TradeValidator(a.cfg.Schema.Required).Evaluate(ctx, rel)
			if err != nil {
				return err
			}
			if report.Passed() {
				fmt.Fprintln(out, "\nData quality: no issues")
				return nil
			}
			fmt.Fprintf(out, "\nData quality: %d issues\n", report.TotalIssues)
			for _, issue := range report.Issues {
				fmt.Fprintf(out, "  - %s\n", issue)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of rows to preview (0 for all)")
	cmd.Flags().StringSliceVar(&required, "require", nil, "only preview rows with a value in these columns")
	return cmd
}

func newOptionsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "options [column...]",
		Short: "List the selectable values of filter columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			rel, err := a.ingest(cmd.Context())
			if err != nil {
				return err
			}
			columns := args
			if len(columns) == 0 {
				columns = []string{core.ColumnState, core.ColumnYear, core.ColumnMonth, core.ColumnQuarter}
			}
			options := filter.Options(rel, columns...)
			out := cmd.OutOrStdout()
			for _, col := range columns {
				values := make([]string, len(options[col]))
				for i, v := range options[col] {
					values[i] = core.ValueKey(v)
				}
				fmt.Fprintf(out, "%s: %s\n", col, strings.Join(values, ", "))
			}
			return nil
		},
	}
}

func newKPIsCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "kpis",
		Short: "Compute total quantity, distinct states and growth rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, view, err := a.view(cmd.Context())
			if err != nil {
				return err
			}
			method, err := metrics.ParseMoMMethod(a.cfg.Metrics.MoMMethod)
			if err != nil {
				return err
			}
			kpis, err := metrics.Compute(cmd.Context(), view, metrics.WithMoMMethod(method))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, kpis)
			}
			fmt.Fprintf(out, "Total quantity:  %.2f\n", kpis.TotalQuantity)
			fmt.Fprintf(out, "Distinct states: %d\n", kpis.DistinctStates)
			fmt.Fprintf(out, "YoY growth:      %.2f%%\n", kpis.YoYGrowth)
			fmt.Fprintf(out, "MoM growth:      %.2f%%\n", kpis.MoMGrowth)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newBreakdownCommand(a *app) *cobra.Command {
	var by, statName, order string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Quantity by state, quarter or calendar period",
		Long: `Quantity by state, quarter or calendar period. --stat picks the statistic
(sum by default) and --sort value lists the largest groups first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			stat, err := metrics.ParseStat(statName)
			if err != nil {
				return err
			}
			options := []metrics.Option{metrics.WithStat(stat)}
			switch strings.ToLower(order) {
			case "key":
			case "value":
				options = append(options, metrics.WithSortByValue())
			default:
				return fmt.Errorf("unknown sort order %q (want key or value)", order)
			}

			_, view, err := a.view(ctx)
			if err != nil {
				return err
			}

			var result interface{}
			var rows [][]string
			label := "State"
			switch strings.ToLower(by) {
			case "state", "quarter":
				compute := metrics.QuantityByState
				if strings.EqualFold(by, "quarter") {
					compute = metrics.QuantityByQuarter
					label = "Quarter"
				}
				groups, err := compute(ctx, view, options...)
				if err != nil {
					return err
				}
				result = groups
				for _, g := range groups {
					rows = append(rows, []string{core.ValueKey(g.Key), formatStat(stat, g.Quantity)})
				}
			case "period":
				periods, err := metrics.QuantityByPeriod(ctx, view, options...)
				if err != nil {
					return err
				}
				result = periods
				label = "Period"
				for _, p := range periods {
					rows = append(rows, []string{p.Period.String(), formatStat(stat, p.Quantity)})
				}
			default:
				return fmt.Errorf("unknown breakdown %q (want state, quarter or period)", by)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, result)
			}
			heading := "Quantity"
			if stat != metrics.StatSum {
				heading = fmt.Sprintf("Quantity (%s)", stat)
			}
			table := newTable(out, []string{label, heading})
			table.AppendBulk(rows)
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", "state", "state, quarter or period")
	cmd.Flags().StringVar(&statName, "stat", "sum", "sum, avg, min, max or count")
	cmd.Flags().StringVar(&order, "sort", "key", "key or value")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func formatStat(stat metrics.Stat, v float64) string {
	if stat == metrics.StatCount {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func newAnomaliesCommand(a *app) *cobra.Command {
	var methodName, column string
	var all bool
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Flag unusual values with zscore, iqr or isolation_forest",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, view, err := a.view(ctx)
			if err != nil {
				return err
			}
			if methodName == "" {
				methodName = a.cfg.Anomaly.Method
			}
			if column == "" {
				column = a.cfg.Anomaly.Column
			}
			method, err := anomaly.ParseMethod(methodName)
			if err != nil {
				return err
			}

			annotated, err := anomaly.Detect(ctx, view, column, method, anomalyParams(a.cfg.Anomaly))
			if err != nil {
				return err
			}

			rows := annotated.Rows()
			if !all {
				flagged := rows[:0:0]
				for i, flag := range anomaly.Flags(annotated) {
					if flag {
						flagged = append(flagged, rows[i])
					}
				}
				rows = flagged
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d of %d rows flagged by %s on %s\n\n", countTrue(anomaly.Flags(annotated)), annotated.Len(), method, column)
			printTable(out, annotated.Columns(), rows, 0)
			return nil
		},
	}
	cmd.Flags().StringVar(&methodName, "method", "", "zscore, iqr or isolation_forest (default from config)")
	cmd.Flags().StringVar(&column, "column", "", "numeric column to inspect (default from config)")
	cmd.Flags().BoolVar(&all, "all", false, "print every row, not only flagged ones")
	return cmd
}

func newExportCommand(a *app) *cobra.Command {
	var formatName, dest string
	var withAnomalies bool
	var columns, renames []string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered table to a file, S3, PostgreSQL or MongoDB",
		Long: `Write the filtered table. --out accepts a file path, s3://bucket/key,
postgres://user@host/db?table=name or mongodb://host/db?collection=name.
The format defaults to the file extension, or to the database kind.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			location, err := types.ParseLocation(dest)
			if err != nil {
				return err
			}
			format, err := exportFormat(formatName, location)
			if err != nil {
				return err
			}
			if s3loc, ok := location.(types.S3Location); ok {
				s3loc.Region = a.cfg.S3.Region
				s3loc.Profile = a.cfg.S3.Profile
				s3loc.Endpoint = a.cfg.S3.Endpoint
				s3loc.PathStyle = a.cfg.S3.PathStyle
				location = s3loc
			}

			_, view, err := a.view(ctx)
			if err != nil {
				return err
			}
			if withAnomalies {
				method, err := anomaly.ParseMethod(a.cfg.Anomaly.Method)
				if err != nil {
					return err
				}
				view, err = anomaly.Detect(ctx, view, a.cfg.Anomaly.Column, method, anomalyParams(a.cfg.Anomaly))
				if err != nil {
					return err
				}
			}

			mapping, err := parseRenames(renames)
			if err != nil {
				return err
			}
			options := []tradeflow.Option{
				tradeflow.WithLogger(a.log),
				tradeflow.WithColumns(columns...),
				tradeflow.WithRenames(mapping),
			}
			header, err := tradeflow.ExportColumns(view, options...)
			if err != nil {
				return err
			}

			sink, err := location.NewSink(ctx, format, header)
			if err != nil {
				return err
			}
			n, err := tradeflow.Export(ctx, view, sink, options...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows as %s to %s\n", n, format, dest)
			return nil
		},
	}
	cmd.Flags().StringVar(&formatName, "format", "", "csv, json, xlsx, parquet, postgres or mongo")
	cmd.Flags().StringVar(&dest, "out", "", "destination path or URL")
	cmd.Flags().BoolVar(&withAnomalies, "anomalies", false, "add the is_anomaly column using the configured detector")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "export only these columns, in this order")
	cmd.Flags().StringArrayVar(&renames, "rename", nil, "rename an exported column as old=new (repeatable)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// parseRenames turns old=new pairs into a rename mapping.
func parseRenames(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	mapping := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		from, to, ok := strings.Cut(pair, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid rename %q: expected old=new", pair)
		}
		mapping[from] = to
	}
	return mapping, nil
}

// exportFormat resolves the explicit format, or infers it from the destination.
func exportFormat(name string, location types.OutputLocation) (types.OutputFormat, error) {
	if name != "" {
		return types.ParseOutputFormat(name)
	}
	switch loc := location.(type) {
	case types.PostgresLocation:
		return types.FormatPostgres, nil
	case types.MongoLocation:
		return types.FormatMongo, nil
	case types.S3Location:
		if f, ok := types.FormatFromPath(loc.Key); ok {
			return f, nil
		}
	case types.FileLocation:
		if f, ok := types.FormatFromPath(loc.Path); ok {
			return f, nil
		}
	}
	return 0, fmt.Errorf("cannot infer export format; pass --format")
}

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or show TradeFlow configuration",
	}

	var path string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(config.Default(), path); err != nil {
				return err
			}
			where := path
			if where == "" {
				where = "~/.tradeflow/config.yaml"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", where)
			return nil
		},
	}
	initCmd.Flags().StringVar(&path, "path", "", "output path (default ~/.tradeflow/config.yaml)")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

// newTable returns a table that prints headers and cells verbatim.
func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	return table
}

// printTable writes rows as a table; limit 0 prints all rows.
func printTable(w io.Writer, columns []string, rows []core.Record, limit int) {
	table := newTable(w, columns)
	for i, row := range rows {
		if limit > 0 && i >= limit {
			break
		}
		cells := make([]string, len(columns))
		for j, col := range columns {
			cells[j] = core.ValueKey(row[col])
		}
		table.Append(cells)
	}
	table.Render()
	if limit > 0 && len(rows) > limit {
		fmt.Fprintf(w, "... %d more rows\n", len(rows)-limit)
	}
}

func countTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
