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

package readers

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/aaronlmathis/tradeflow/core"
)

// This file implements source dispatch: picking the right reader for an uploaded file,
// a shared spreadsheet link or an object-store link.

// TabularSource is a DataSource that knows its header.
type TabularSource interface {
	core.DataSource
	core.Headed
}

// Input names exactly one ingestion source. When Body is set the file wins and URL is ignored.
type Input struct {
	Name string    // uploaded file name; its extension selects the reader
	Body io.Reader // uploaded file contents
	URL  string    // shared spreadsheet link or s3://bucket/key
}

// Label returns a short description of the input for logs.
func (in Input) Label() string {
	if in.Body != nil {
		return in.Name
	}
	return in.URL
}

// SourceOptions configures Open.
type SourceOptions struct {
	CSV             []ReaderOptionCSV
	HTTP            []ReaderOptionHTTP
	S3              []ReaderOptionS3
	SpreadsheetHost string
}

// SourceOption is a functional option for Open.
type SourceOption func(*SourceOptions)

func WithCSVOptions(options ...ReaderOptionCSV) SourceOption {
	return func(o *SourceOptions) { o.CSV = append(o.CSV, options...) }
}

func WithHTTPOptions(options ...ReaderOptionHTTP) SourceOption {
	return func(o *SourceOptions) { o.HTTP = append(o.HTTP, options...) }
}

func WithS3Options(options ...ReaderOptionS3) SourceOption {
	return func(o *SourceOptions) { o.S3 = append(o.S3, options...) }
}

// WithSpreadsheetHost overrides the host export links are rewritten to.
func WithSpreadsheetHost(host string) SourceOption {
	return func(o *SourceOptions) { o.SpreadsheetHost = host }
}

// Open returns a reader for in. Cells are returned as raw strings.
//
// Errors: no source or an unknown extension gives *core.UnsupportedFormatError; a link of
// unrecognized shape *core.InvalidSourceError; a failed or unparseable download
// *core.SourceFetchError.
func Open(ctx context.Context, in Input, options ...SourceOption) (TabularSource, error) {
	opts := SourceOptions{SpreadsheetHost: DefaultSpreadsheetHost}
	for _, option := range options {
		option(&opts)
	}
	csvOpts := append([]ReaderOptionCSV{WithCSVInferTypes(false)}, opts.CSV...)

	if in.Body != nil {
		return openByExtension(in.Name, in.Body, csvOpts...)
	}

	link := strings.TrimSpace(in.URL)
	if link == "" {
		return nil, &core.UnsupportedFormatError{}
	}

	if strings.HasPrefix(strings.ToLower(link), "s3://") {
		s3Opts := append([]ReaderOptionS3{WithS3CSVOptions(csvOpts...)}, opts.S3...)
		return NewS3Reader(ctx, link, s3Opts...)
	}

	exportURL, err := SpreadsheetExportURL(link, opts.SpreadsheetHost)
	if err != nil {
		return nil, err
	}
	httpOpts := append([]ReaderOptionHTTP{WithHTTPCSVOptions(csvOpts...)}, opts.HTTP...)
	hr, err := NewHTTPReader(exportURL, httpOpts...)
	if err != nil {
		return nil, &core.SourceFetchError{URL: link, Op: "configure", Err: err}
	}
	if err := hr.Fetch(ctx); err != nil {
		return nil, &core.SourceFetchError{URL: link, Op: "fetch", Err: err}
	}
	return hr, nil
}

type fileFormat int

const (
	formatCSV fileFormat = iota
	formatXLSX
	formatXLS
	formatParquet
	formatJSON
)

func formatOf(name string) (fileFormat, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return formatCSV, nil
	case ".xlsx":
		return formatXLSX, nil
	case ".xls":
		return formatXLS, nil
	case ".parquet":
		return formatParquet, nil
	case ".jsonl", ".ndjson", ".json":
		return formatJSON, nil
	default:
		return 0, &core.UnsupportedFormatError{Name: name}
	}
}

// openByExtension creates the appropriate reader based on file extension
func openByExtension(name string, body io.Reader, csvOpts ...ReaderOptionCSV) (TabularSource, error) {
	format, err := formatOf(name)
	if err != nil {
		return nil, err
	}

	switch format {
	case formatXLSX:
		return NewXLSXReader(body)
	case formatXLS:
		return NewXLSReader(body)
	case formatParquet:
		return NewParquetReader(body)
	}

	rc, ok := body.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(body)
	}
	if format == formatJSON {
		return NewJSONReader(rc)
	}
	return NewCSVReader(rc, csvOpts...)
}
