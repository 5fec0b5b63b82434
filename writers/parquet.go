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

package writers

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/tradeflow/core"
)

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "schema", "write_batch", "close_writer")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Number of records to buffer before writing
	Compression  compress.Compression // Compression algorithm
	FieldOrder   []string             // Explicit field ordering
	RowGroupSize int64                // Maximum rows per row group
	Metadata     map[string]string    // Schema metadata
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of records to buffer before writing a batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithFieldOrder sets the explicit field ordering for the Parquet schema.
func WithFieldOrder(fields []string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.FieldOrder = append([]string(nil), fields...)
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// WithMetadata sets schema metadata for the Parquet file.
func WithMetadata(metadata map[string]string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		if opts.Metadata == nil {
			opts.Metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			opts.Metadata[k] = v
		}
	}
}

// ParquetWriter implements core.DataSink for Parquet output.
//
// The schema is inferred when the first batch is flushed: each column takes the type
// of its first non-missing value in that batch (int as int64, float64, bool, anything
// else as string). Columns with no value in the first batch are strings.
type ParquetWriter struct {
	sink         io.Writer
	writer       *pqarrow.FileWriter
	schema       *arrow.Schema
	fieldOrder   []string
	recordBuffer []core.Record
	builders     []array.Builder
	allocator    memory.Allocator
	opts         ParquetWriterOptions
	stats        WriterStats
	closed       bool
	errorState   bool
	mu           sync.Mutex
}

// NewParquetWriter creates a Parquet writer over w. Closing the writer closes w.
func NewParquetWriter(w io.WriteCloser, options ...WriterOption) (*ParquetWriter, error) {
	opts := ParquetWriterOptions{
		BatchSize:    1000,
		RowGroupSize: 10000,
		Compression:  compress.Codecs.Snappy,
	}
	for _, option := range options {
		option(&opts)
	}
	if opts.BatchSize <= 0 {
		return nil, &ParquetWriterError{Op: "options", Err: fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)}
	}

	return &ParquetWriter{
		sink:         w,
		fieldOrder:   opts.FieldOrder,
		recordBuffer: make([]core.Record, 0, opts.BatchSize),
		allocator:    memory.NewGoAllocator(),
		opts:         opts,
		stats:        WriterStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	statsCopy := p.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(p.stats.NullValueCounts))
	for k, v := range p.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}

// Write implements the core.DataSink interface.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	if err := ctx.Err(); err != nil {
		return &ParquetWriterError{Op: "write", Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	if p.errorState {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	if p.fieldOrder == nil {
		p.fieldOrder = sortedKeys(record)
	}

	p.recordBuffer = append(p.recordBuffer, record)
	p.stats.RecordsWritten++

	if int64(len(p.recordBuffer)) >= p.opts.BatchSize {
		if err := p.flushBatch(); err != nil {
			p.errorState = true
			return err
		}
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (p *ParquetWriter) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushBatch()
}

// Close implements the core.DataSink interface. A writer that never saw a record
// but has a field order writes an empty file with string columns.
func (p *ParquetWriter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.flushBatch(); err != nil {
		return err
	}
	if p.writer == nil {
		if len(p.fieldOrder) == 0 {
			if closer, ok := p.sink.(io.Closer); ok {
				return closer.Close()
			}
			return nil
		}
		if err := p.initializeSchema(nil); err != nil {
			return err
		}
	}

	for _, builder := range p.builders {
		builder.Release()
	}
	p.builders = nil

	if err := p.writer.Close(); err != nil {
		return &ParquetWriterError{Op: "close_writer", Err: err}
	}
	p.writer = nil
	return nil
}

// initializeSchema builds the Arrow schema and file writer from the first batch.
func (p *ParquetWriter) initializeSchema(batch []core.Record) error {
	fields := make([]arrow.Field, len(p.fieldOrder))
	for i, name := range p.fieldOrder {
		dataType := arrow.DataType(arrow.BinaryTypes.String)
		for _, record := range batch {
			if v := record[name]; !core.IsMissing(v) {
				dataType = inferArrowType(v)
				break
			}
		}
		fields[i] = arrow.Field{Name: name, Type: dataType, Nullable: true}
	}

	var md *arrow.Metadata
	if len(p.opts.Metadata) > 0 {
		m := arrow.MetadataFrom(p.opts.Metadata)
		md = &m
	}
	p.schema = arrow.NewSchema(fields, md)

	props := parquet.NewWriterProperties(
		parquet.WithCompression(p.opts.Compression),
		parquet.WithMaxRowGroupLength(p.opts.RowGroupSize),
	)
	writer, err := pqarrow.NewFileWriter(p.schema, p.sink, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return &ParquetWriterError{Op: "create_writer", Err: err}
	}
	p.writer = writer

	p.builders = make([]array.Builder, len(fields))
	for i, f := range fields {
		p.builders[i] = array.NewBuilder(p.allocator, f.Type)
	}
	return nil
}

// inferArrowType maps a Go value to the Arrow type used for its column.
func inferArrowType(value interface{}) arrow.DataType {
	switch value.(type) {
	case bool:
		return arrow.FixedWidthTypes.Boolean
	case int, int8, int16, int32, int64:
		return arrow.PrimitiveTypes.Int64
	case float32, float64:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

// flushBatch writes the buffered records as one Arrow record batch (must hold mutex).
func (p *ParquetWriter) flushBatch() error {
	if len(p.recordBuffer) == 0 {
		return nil
	}
	start := time.Now()

	if p.writer == nil {
		if err := p.initializeSchema(p.recordBuffer); err != nil {
			return err
		}
	}

	for _, record := range p.recordBuffer {
		for i, name := range p.fieldOrder {
			value := record[name]
			if core.IsMissing(value) || !p.appendValue(p.builders[i], value) {
				p.builders[i].AppendNull()
				p.stats.NullValueCounts[name]++
			}
		}
	}

	arrays := make([]arrow.Array, len(p.builders))
	for i, builder := range p.builders {
		arrays[i] = builder.NewArray()
	}
	rec := array.NewRecord(p.schema, arrays, int64(len(p.recordBuffer)))
	for _, arr := range arrays {
		arr.Release()
	}
	defer rec.Release()

	if err := p.writer.Write(rec); err != nil {
		return &ParquetWriterError{Op: "write_batch", Err: err}
	}

	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(start)
	p.stats.LastFlushTime = time.Now()
	p.recordBuffer = p.recordBuffer[:0]
	return nil
}

// appendValue appends value to builder, reporting false when the value does not
// fit the column type.
func (p *ParquetWriter) appendValue(builder array.Builder, value interface{}) bool {
	switch b := builder.(type) {
	case *array.BooleanBuilder:
		v, ok := value.(bool)
		if ok {
			b.Append(v)
		}
		return ok
	case *array.Int64Builder:
		switch v := value.(type) {
		case int:
			b.Append(int64(v))
		case int8:
			b.Append(int64(v))
		case int16:
			b.Append(int64(v))
		case int32:
			b.Append(int64(v))
		case int64:
			b.Append(v)
		default:
			return false
		}
		return true
	case *array.Float64Builder:
		if _, isBool := value.(bool); isBool {
			return false
		}
		if _, isString := value.(string); isString {
			return false
		}
		f, ok := core.ToFloat64(value)
		if ok {
			b.Append(f)
		}
		return ok
	case *array.StringBuilder:
		b.Append(core.ValueKey(value))
		return true
	}
	return false
}
