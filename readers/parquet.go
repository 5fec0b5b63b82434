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
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet/file"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/tradeflow/core"
)

// ParquetReaderError provides structured error information for parquet reader operations
type ParquetReaderError struct {
	Op  string // Operation that failed (e.g., "read", "load_batch", "open_file", "schema")
	Err error  // Underlying error
}

func (e *ParquetReaderError) Error() string {
	return fmt.Sprintf("parquet reader %s: %v", e.Op, e.Err)
}

func (e *ParquetReaderError) Unwrap() error {
	return e.Err
}

// ParquetReaderStats holds statistics about the Parquet reader's performance
type ParquetReaderStats struct {
	RecordsRead     int64
	BatchesRead     int64
	BytesRead       int64
	ReadDuration    time.Duration
	LastReadTime    time.Time
	NullValueCounts map[string]int64
}

// ParquetReaderOptions configures the Parquet reader.
type ParquetReaderOptions struct {
	BatchSize int64
	Columns   []string
}

// ReaderOptionParquet represents a configuration function
type ReaderOptionParquet func(*ParquetReaderOptions)

func WithParquetBatchSize(size int64) ReaderOptionParquet {
	return func(opts *ParquetReaderOptions) {
		opts.BatchSize = size
	}
}

// WithParquetColumns projects the file onto columns, in that order.
func WithParquetColumns(columns ...string) ReaderOptionParquet {
	return func(opts *ParquetReaderOptions) {
		opts.Columns = append([]string(nil), columns...)
	}
}

// ParquetReader implements core.DataSource and core.Headed for Parquet files,
// including the ones written by the parquet export. Cells are rendered as strings
// so the normalization path treats them like CSV cells; nulls stay nil.
type ParquetReader struct {
	recordReader    pqarrow.RecordReader
	currentBatch    arrow.Record
	currentBatchIdx int
	headers         []string
	stats           ParquetReaderStats
}

// NewParquetReader loads r into memory and prepares an Arrow RecordReader over it.
// Parquet needs random access, so uploads and object bodies are buffered first.
func NewParquetReader(r io.Reader, options ...ReaderOptionParquet) (*ParquetReader, error) {
	opts := ParquetReaderOptions{BatchSize: 1000}
	for _, option := range options {
		option(&opts)
	}
	if opts.BatchSize <= 0 {
		return nil, &ParquetReaderError{Op: "options", Err: fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParquetReaderError{Op: "read_input", Err: err}
	}

	parquetReader, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParquetReaderError{Op: "create_reader", Err: err}
	}

	arrowReader, err := pqarrow.NewFileReader(parquetReader,
		pqarrow.ArrowReadProperties{BatchSize: opts.BatchSize}, memory.NewGoAllocator())
	if err != nil {
		parquetReader.Close()
		return nil, &ParquetReaderError{Op: "create_arrow_reader", Err: err}
	}

	schema, err := arrowReader.Schema()
	if err != nil {
		parquetReader.Close()
		return nil, &ParquetReaderError{Op: "get_schema", Err: err}
	}

	var colIndices []int
	for _, name := range opts.Columns {
		indices := schema.FieldIndices(name)
		if len(indices) == 0 {
			parquetReader.Close()
			return nil, &ParquetReaderError{Op: "column_projection", Err: fmt.Errorf("column %q not found in schema", name)}
		}
		colIndices = append(colIndices, indices[0])
	}

	recordReader, err := arrowReader.GetRecordReader(context.Background(), colIndices, nil)
	if err != nil {
		parquetReader.Close()
		return nil, &ParquetReaderError{Op: "create_record_reader", Err: err}
	}

	fields := recordReader.Schema().Fields()
	headers := make([]string, len(fields))
	for i, field := range fields {
		headers[i] = field.Name
	}

	return &ParquetReader{
		recordReader: recordReader,
		headers:      headers,
		stats:        ParquetReaderStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// Columns returns the field names in schema (or projection) order.
func (p *ParquetReader) Columns() []string {
	return append([]string(nil), p.headers...)
}

// Read returns the next row or io.EOF.
func (p *ParquetReader) Read(ctx context.Context) (core.Record, error) {
	startTime := time.Now()
	defer func() {
		p.stats.ReadDuration += time.Since(startTime)
		p.stats.LastReadTime = time.Now()
	}()

	if err := ctx.Err(); err != nil {
		return nil, &ParquetReaderError{Op: "read", Err: err}
	}

	for p.currentBatch == nil || p.currentBatchIdx >= int(p.currentBatch.NumRows()) {
		if err := p.loadNextBatch(); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, &ParquetReaderError{Op: "load_batch", Err: err}
		}
	}

	result := make(core.Record, len(p.headers))
	for i, name := range p.headers {
		result[name] = p.cell(p.currentBatch.Column(i), p.currentBatchIdx, name)
	}
	p.currentBatchIdx++
	p.stats.RecordsRead++
	return result, nil
}

// loadNextBatch swaps in the next record batch. Empty batches are skipped by the caller's loop.
func (p *ParquetReader) loadNextBatch() error {
	if p.recordReader == nil {
		return io.EOF
	}
	if p.currentBatch != nil {
		p.currentBatch.Release()
		p.currentBatch = nil
	}

	rec, err := p.recordReader.Read()
	if err != nil {
		return err
	}
	if rec == nil {
		return io.EOF
	}
	rec.Retain()
	p.currentBatch = rec
	p.currentBatchIdx = 0
	p.stats.BatchesRead++

	for i := 0; i < int(rec.NumCols()); i++ {
		switch rec.Column(i).DataType().ID() {
		case arrow.BOOL, arrow.INT8, arrow.UINT8:
			p.stats.BytesRead += rec.NumRows()
		case arrow.INT16, arrow.UINT16:
			p.stats.BytesRead += rec.NumRows() * 2
		case arrow.INT32, arrow.UINT32, arrow.FLOAT32:
			p.stats.BytesRead += rec.NumRows() * 4
		case arrow.STRING, arrow.BINARY:
			p.stats.BytesRead += rec.NumRows() * 32
		default:
			p.stats.BytesRead += rec.NumRows() * 8
		}
	}
	return nil
}

// cell renders one value as the string a CSV cell would hold, counting nulls.
func (p *ParquetReader) cell(col arrow.Array, rowIdx int, fieldName string) interface{} {
	if col.IsNull(rowIdx) {
		p.stats.NullValueCounts[fieldName]++
		return nil
	}

	switch arr := col.(type) {
	case *array.Boolean:
		return strconv.FormatBool(arr.Value(rowIdx))
	case *array.Int8:
		return strconv.FormatInt(int64(arr.Value(rowIdx)), 10)
	case *array.Int16:
		return strconv.FormatInt(int64(arr.Value(rowIdx)), 10)
	case *array.Int32:
		return strconv.FormatInt(int64(arr.Value(rowIdx)), 10)
	case *array.Int64:
		return strconv.FormatInt(arr.Value(rowIdx), 10)
	case *array.Uint32:
		return strconv.FormatUint(uint64(arr.Value(rowIdx)), 10)
	case *array.Uint64:
		return strconv.FormatUint(arr.Value(rowIdx), 10)
	case *array.Float32:
		return strconv.FormatFloat(float64(arr.Value(rowIdx)), 'f', -1, 32)
	case *array.Float64:
		return strconv.FormatFloat(arr.Value(rowIdx), 'f', -1, 64)
	case *array.String:
		return arr.Value(rowIdx)
	case *array.Binary:
		return string(arr.Value(rowIdx))
	default:
		return fmt.Sprintf("%v", col.GetOneForMarshal(rowIdx))
	}
}

// Close releases the current batch and the record reader.
func (p *ParquetReader) Close() error {
	if p.currentBatch != nil {
		p.currentBatch.Release()
		p.currentBatch = nil
	}
	if p.recordReader != nil {
		p.recordReader.Release()
		p.recordReader = nil
	}
	return nil
}

// Stats returns statistics about the Parquet reader's performance.
func (p *ParquetReader) Stats() ParquetReaderStats {
	statsCopy := p.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(p.stats.NullValueCounts))
	for k, v := range p.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}
