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

package tradeflow

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aaronlmathis/tradeflow/config"
	"github.com/aaronlmathis/tradeflow/core"
	"github.com/aaronlmathis/tradeflow/filter"
	"github.com/aaronlmathis/tradeflow/logger"
	"github.com/aaronlmathis/tradeflow/metrics"
	"github.com/aaronlmathis/tradeflow/readers"
	"github.com/aaronlmathis/tradeflow/writers"
)

const scenarioCSV = "Month,Quanity,Year,Consignee State,Consignee,Exporter\n" +
	"sept,\"1,200 Kgs\",2023,CA,Acme,Globex\n" +
	"Oct,800,2024,NY,Beta,Initech\n"

func csvInput(data string) readers.Input {
	return readers.Input{Name: "trades.csv", Body: strings.NewReader(data)}
}

func observedLogger(level zapcore.Level) (logger.Logger, *observer.ObservedLogs) {
	obs, logs := observer.New(level)
	return logger.New(zap.New(obs)), logs
}

// TestIngest_Scenario tests normalization, cleaning and derivation end to end
func TestIngest_Scenario(t *testing.T) {
	ctx := context.Background()
	rel, err := Ingest(ctx, core.NewGrant("analyst"), csvInput(scenarioCSV))
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"Month", "Quantity", "Year", "State", "Consignee", "Exporter", "Quarter"},
		rel.Columns())
	assert.Equal(t, []interface{}{"Sep", "Oct"}, rel.Values(core.ColumnMonth))
	assert.Equal(t, []interface{}{"Q3", "Q4"}, rel.Values(core.ColumnQuarter))
	assert.Equal(t, []interface{}{1200.0, 800.0}, rel.Values(core.ColumnQuantity))
	assert.Equal(t, []interface{}{2023, 2024}, rel.Values(core.ColumnYear))

	kpis, err := metrics.Compute(ctx, rel)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, kpis.TotalQuantity)
	assert.Equal(t, 2, kpis.DistinctStates)
	assert.InDelta(t, -33.33, kpis.YoYGrowth, 0.01)
}

// TestIngest_Unauthenticated tests that the zero grant is rejected before any I/O
func TestIngest_Unauthenticated(t *testing.T) {
	rel, err := Ingest(context.Background(), core.Grant{}, csvInput(scenarioCSV))
	assert.Nil(t, rel)
	assert.ErrorIs(t, err, core.ErrUnauthenticated)
}

// TestIngest_NoSource tests that an empty input is an unsupported format
func TestIngest_NoSource(t *testing.T) {
	_, err := Ingest(context.Background(), core.NewGrant("analyst"), readers.Input{})
	var unsupported *core.UnsupportedFormatError
	assert.True(t, errors.As(err, &unsupported))
}

// TestIngest_MissingStateFatal tests the default missing-column policy
func TestIngest_MissingStateFatal(t *testing.T) {
	data := "Month,Quantity,Year,Consignee,Exporter\nJan,5,2024,Acme,Globex\n"

	rel, err := Ingest(context.Background(), core.NewGrant("analyst"), csvInput(data))
	assert.Nil(t, rel)

	var missing *core.MissingColumnError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "State", missing.Column)
}

// TestIngest_MissingStateWarn tests that the warn policy ingests and logs
func TestIngest_MissingStateWarn(t *testing.T) {
	data := "Month,Quantity,Year,Consignee,Exporter\nJan,5,2024,Acme,Globex\n"
	cfg := config.Default()
	cfg.Schema.MissingPolicy = "warn"
	log, logs := observedLogger(zapcore.WarnLevel)

	rel, err := Ingest(context.Background(), core.NewGrant("analyst"), csvInput(data),
		WithConfig(cfg), WithLogger(log))
	require.NoError(t, err)
	assert.Equal(t, 1, rel.Len())
	assert.False(t, rel.HasColumn(core.ColumnState))
	assert.Equal(t, 1, logs.FilterMessageSnippet("required columns missing").Len())
}

// TestIngest_SkipsMalformedRows tests that corrupt rows are logged and skipped
func TestIngest_SkipsMalformedRows(t *testing.T) {
	data := scenarioCSV + "Nov,5,2024,TX,Acme,Globex,extra\nDec,7,2024,TX,Acme,Globex\n"
	log, logs := observedLogger(zapcore.WarnLevel)

	rel, err := Ingest(context.Background(), core.NewGrant("analyst"), csvInput(data), WithLogger(log))
	require.NoError(t, err)
	assert.Equal(t, 3, rel.Len())
	assert.Equal(t, "Dec", rel.Row(2)[core.ColumnMonth])
	assert.Equal(t, 1, logs.FilterMessageSnippet("skipping malformed row").Len())
}

// TestIngest_CellDefects tests that bad cells are repaired rather than rejected
func TestIngest_CellDefects(t *testing.T) {
	data := "Month,Quantity,Year,State,Consignee,Exporter\nsomething,n/a,20x4,CA,Acme,Globex\n"

	rel, err := Ingest(context.Background(), core.NewGrant("analyst"), csvInput(data))
	require.NoError(t, err)
	require.Equal(t, 1, rel.Len())

	row := rel.Row(0)
	assert.Equal(t, 0.0, row[core.ColumnQuantity])
	assert.Nil(t, row[core.ColumnYear])
	assert.Equal(t, "Something", row[core.ColumnMonth])
	assert.Nil(t, row[core.ColumnQuarter])
}

// TestIngest_SpreadsheetLink tests fetching a shared link through its export URL
func TestIngest_SpreadsheetLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/spreadsheets/d/abc123/export", r.URL.Path)
		assert.Equal(t, "csv", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(scenarioCSV))
	}))
	defer srv.Close()

	rel, err := Ingest(context.Background(), core.NewGrant("analyst"),
		readers.Input{URL: "https://docs.google.com/spreadsheets/d/abc123/edit"},
		WithSourceOptions(readers.WithSpreadsheetHost(srv.URL)))
	require.NoError(t, err)
	assert.Equal(t, 2, rel.Len())
}

// TestIngest_FetchFailure tests that an unreachable link is a fetch error
func TestIngest_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Ingest(context.Background(), core.NewGrant("analyst"),
		readers.Input{URL: "https://docs.google.com/spreadsheets/d/abc123/edit"},
		WithSourceOptions(readers.WithSpreadsheetHost(srv.URL)))
	var fetchErr *core.SourceFetchError
	assert.True(t, errors.As(err, &fetchErr))
}

// TestExport_FilteredView tests that a view is exported in row and column order
func TestExport_FilteredView(t *testing.T) {
	ctx := context.Background()
	rel, err := Ingest(ctx, core.NewGrant("analyst"), csvInput(scenarioCSV))
	require.NoError(t, err)

	view, err := filter.Apply(ctx, rel, filter.Spec{core.ColumnState: filter.Constraint{"NY"}})
	require.NoError(t, err)

	sink := writers.NewRelationWriter(view.Columns())
	n, err := Export(ctx, view, sink)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	out := sink.Relation()
	assert.Equal(t, rel.Columns(), out.Columns())
	assert.Equal(t, "Oct", out.Row(0)[core.ColumnMonth])
}

// TestExport_ColumnsAndRenames tests selecting, ordering and renaming exported columns
func TestExport_ColumnsAndRenames(t *testing.T) {
	ctx := context.Background()
	rel, err := Ingest(ctx, core.NewGrant("analyst"), csvInput(scenarioCSV))
	require.NoError(t, err)

	options := []Option{
		WithColumns(core.ColumnState, core.ColumnQuantity),
		WithRenames(map[string]string{core.ColumnQuantity: "Kgs"}),
	}
	header, err := ExportColumns(rel, options...)
	require.NoError(t, err)
	assert.Equal(t, []string{"State", "Kgs"}, header)

	sink := writers.NewRelationWriter(header)
	n, err := Export(ctx, rel, sink, options...)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, []interface{}{1200.0, 800.0}, sink.Relation().Values("Kgs"))
	assert.Equal(t, header, sink.Relation().Columns())

	_, err = ExportColumns(rel, WithColumns("Port"))
	assert.ErrorContains(t, err, "unknown export column")
	_, err = ExportColumns(rel, WithColumns(core.ColumnState), WithRenames(map[string]string{core.ColumnYear: "Yr"}))
	assert.ErrorContains(t, err, "not an exported column")
	_, err = ExportColumns(rel, WithRenames(map[string]string{core.ColumnYear: core.ColumnState}))
	assert.ErrorContains(t, err, "duplicate export column")
}

type bufferCloser struct {
	bytes.Buffer
}

func (b *bufferCloser) Close() error { return nil }

// TestIngest_ReimportParquetExport tests that an exported view ingests back unchanged
func TestIngest_ReimportParquetExport(t *testing.T) {
	ctx := context.Background()
	rel, err := Ingest(ctx, core.NewGrant("analyst"), csvInput(scenarioCSV))
	require.NoError(t, err)

	buf := &bufferCloser{}
	sink, err := writers.NewParquetWriter(buf, writers.WithFieldOrder(rel.Columns()))
	require.NoError(t, err)
	_, err = Export(ctx, rel, sink)
	require.NoError(t, err)

	again, err := Ingest(ctx, core.NewGrant("analyst"),
		readers.Input{Name: "trades.parquet", Body: bytes.NewReader(buf.Bytes())})
	require.NoError(t, err)

	assert.Equal(t, rel.Columns(), again.Columns())
	for _, col := range rel.Columns() {
		assert.Equal(t, rel.Values(col), again.Values(col), "column %s", col)
	}
}
