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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/tradeflow/core"
)

// Package readers provides implementations of core.DataSource for the supported ingestion sources.
//
// This file implements a permissive CSV reader: malformed rows surface as *core.ParseError
// and the reader stays usable, so a pipeline running with SkipErrors drops just those rows.

// CSVReaderError wraps structured error information for the CSV reader.
type CSVReaderError struct {
	Op  string
	Err error
}

func (e *CSVReaderError) Error() string {
	return fmt.Sprintf("csv reader %s: %v", e.Op, e.Err)
}

func (e *CSVReaderError) Unwrap() error {
	return e.Err
}

// CSVReaderStats holds statistics about the CSV reader's performance.
type CSVReaderStats struct {
	RecordsRead     int64
	RowsSkipped     int64
	Encoding        string
	ReadDuration    time.Duration
	LastReadTime    time.Time
	NullValueCounts map[string]int64
}

// CSVReaderOptions configures the CSV reader.
type CSVReaderOptions struct {
	Comma            rune
	Comment          rune
	LazyQuotes       bool
	TrimLeadingSpace bool
	HasHeaders       bool
	InferTypes       bool
	DetectEncoding   bool
}

// ReaderOptionCSV allows functional customization of CSVReader.
type ReaderOptionCSV func(*CSVReaderOptions)

func WithCSVComma(r rune) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.Comma = r }
}

func WithCSVHasHeaders(hasHeaders bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.HasHeaders = hasHeaders }
}

func WithCSVTrimSpace(trim bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.TrimLeadingSpace = trim }
}

func WithCSVLazyQuotes(lazy bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.LazyQuotes = lazy }
}

// WithCSVInferTypes toggles int/float/bool inference. When off, every non-empty cell is
// returned as the raw string.
func WithCSVInferTypes(infer bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.InferTypes = infer }
}

// WithCSVDetectEncoding toggles byte-order-mark and Windows-1252 detection.
func WithCSVDetectEncoding(detect bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.DetectEncoding = detect }
}

// CSVReader implements core.DataSource and core.Headed for CSV input.
type CSVReader struct {
	reader  *csv.Reader
	headers []string
	closer  io.Closer
	stats   CSVReaderStats
	opts    CSVReaderOptions
	done    bool
}

// NewCSVReader creates a CSVReader with default or overridden options.
// The header row is consumed immediately. Input with no rows at all yields a reader
// with no columns whose first Read returns io.EOF.
func NewCSVReader(r io.ReadCloser, options ...ReaderOptionCSV) (*CSVReader, error) {
	opts := CSVReaderOptions{
		Comma:            ',',
		HasHeaders:       true,
		TrimLeadingSpace: true,
		InferTypes:       true,
		DetectEncoding:   true,
	}

	for _, opt := range options {
		opt(&opts)
	}

	reader := &CSVReader{
		closer: r,
		opts:   opts,
		stats:  CSVReaderStats{NullValueCounts: make(map[string]int64), Encoding: "utf-8"},
	}

	var src io.Reader = r
	if opts.DetectEncoding {
		decoded, enc, err := decodeText(r)
		if err != nil {
			return nil, &CSVReaderError{Op: "detect_encoding", Err: err}
		}
		src = decoded
		reader.stats.Encoding = enc
	}

	csvReader := csv.NewReader(src)
	csvReader.Comma = opts.Comma
	csvReader.Comment = opts.Comment
	csvReader.LazyQuotes = opts.LazyQuotes
	csvReader.TrimLeadingSpace = opts.TrimLeadingSpace
	// the field count is pinned to the header width once the header is read
	csvReader.FieldsPerRecord = 0
	csvReader.ReuseRecord = false
	reader.reader = csvReader

	if opts.HasHeaders {
		headers, err := csvReader.Read()
		if err != nil {
			if err == io.EOF {
				reader.done = true
				return reader, nil
			}
			return nil, &CSVReaderError{Op: "read_headers", Err: err}
		}
		reader.headers = uniqueHeaders(headers)
	}

	return reader, nil
}

// Columns returns the header labels in file order.
func (c *CSVReader) Columns() []string {
	cols := make([]string, len(c.headers))
	copy(cols, c.headers)
	return cols
}

// Read implements the core.DataSource interface. A malformed row returns a
// *core.ParseError; the next call continues with the following row.
func (c *CSVReader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()

	select {
	case <-ctx.Done():
		return nil, &CSVReaderError{Op: "read", Err: ctx.Err()}
	default:
	}

	if c.done {
		return nil, io.EOF
	}

	record, err := c.reader.Read()
	if err != nil {
		if err == io.EOF {
			c.done = true
			return nil, io.EOF
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			c.stats.RowsSkipped++
			return nil, &core.ParseError{Line: parseErr.Line, Err: parseErr.Err}
		}
		return nil, &CSVReaderError{Op: "read_record", Err: err}
	}

	res := make(core.Record, len(record))
	for i, val := range record {
		var key string
		if i < len(c.headers) {
			key = c.headers[i]
		} else {
			key = "col_" + strconv.Itoa(i)
		}
		if strings.TrimSpace(val) == "" {
			c.stats.NullValueCounts[key]++
			res[key] = nil
			continue
		}
		if c.opts.InferTypes {
			res[key] = parseValue(val)
		} else {
			res[key] = val
		}
	}

	c.stats.RecordsRead++
	c.stats.LastReadTime = time.Now()
	c.stats.ReadDuration += time.Since(start)

	return res, nil
}

// Close implements the core.DataSource interface.
func (c *CSVReader) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Stats returns CSV reader performance stats.
func (c *CSVReader) Stats() CSVReaderStats {
	return c.stats
}

// parseValue attempts to infer int, float, bool, or fallback to string.
func parseValue(value string) interface{} {
	value = strings.TrimSpace(value)

	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return value
}
