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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/aaronlmathis/tradeflow/core"
)

// JSONWriterError wraps JSON-specific write errors with context.
type JSONWriterError struct {
	Op  string
	Err error
}

func (e *JSONWriterError) Error() string {
	return fmt.Sprintf("json writer %s: %v", e.Op, e.Err)
}

func (e *JSONWriterError) Unwrap() error {
	return e.Err
}

// JSONWriterStats holds JSON write statistics.
type JSONWriterStats struct {
	RecordsWritten  int64
	BytesWritten    int64
	FlushCount      int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// JSONWriterOptions configures JSON lines output.
type JSONWriterOptions struct {
	BatchSize    int
	FlushOnWrite bool
	Headers      []string
}

// WriterOptionJSON is a functional option.
type WriterOptionJSON func(*JSONWriterOptions)

// WithJSONBatchSize flushes after every size records.
func WithJSONBatchSize(size int) WriterOptionJSON {
	return func(opts *JSONWriterOptions) {
		opts.BatchSize = size
	}
}

// WithFlushOnWrite flushes after every record.
func WithFlushOnWrite(flush bool) WriterOptionJSON {
	return func(opts *JSONWriterOptions) {
		opts.FlushOnWrite = flush
	}
}

// WithJSONHeaders fixes the key order of each object. Keys outside headers are dropped.
func WithJSONHeaders(headers []string) WriterOptionJSON {
	return func(opts *JSONWriterOptions) {
		opts.Headers = append([]string(nil), headers...)
	}
}

// JSONWriter implements DataSink for line-delimited JSON.
type JSONWriter struct {
	buf        *bufio.Writer
	closer     io.Closer
	options    JSONWriterOptions
	pending    int
	stats      JSONWriterStats
	errorState bool
	mu         sync.Mutex
}

// NewJSONWriter creates a new JSON writer for line-delimited JSON output
func NewJSONWriter(w io.WriteCloser, opts ...WriterOptionJSON) *JSONWriter {
	var options JSONWriterOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &JSONWriter{
		buf:     bufio.NewWriter(w),
		closer:  w,
		options: options,
		stats:   JSONWriterStats{NullValueCounts: make(map[string]int64)},
	}
}

// Write implements the DataSink interface
func (j *JSONWriter) Write(ctx context.Context, record core.Record) error {
	if err := ctx.Err(); err != nil {
		return &JSONWriterError{Op: "write", Err: err}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.errorState {
		return &JSONWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}

	keys := j.options.Headers
	if len(keys) == 0 {
		keys = make([]string, 0, len(record))
		for k := range record {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}

	line, err := marshalOrdered(keys, record)
	if err != nil {
		return &JSONWriterError{Op: "marshal", Err: err}
	}
	for _, k := range keys {
		if core.IsMissing(record[k]) {
			j.stats.NullValueCounts[k]++
		}
	}

	n, err := j.buf.Write(line)
	if err != nil {
		j.errorState = true
		return &JSONWriterError{Op: "write", Err: err}
	}
	j.stats.BytesWritten += int64(n)
	j.stats.RecordsWritten++
	j.pending++

	if j.options.FlushOnWrite || (j.options.BatchSize > 0 && j.pending >= j.options.BatchSize) {
		if err := j.flushUnsafe(); err != nil {
			j.errorState = true
			return &JSONWriterError{Op: "flush_batch", Err: err}
		}
	}
	return nil
}

// marshalOrdered encodes record as one JSON object line with keys in order.
// Missing values encode as null.
func marshalOrdered(keys []string, record core.Record) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')

		v := record[k]
		if core.IsMissing(v) {
			v = nil
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal field %s: %w", k, err)
		}
		b.Write(val)
	}
	b.WriteString("}\n")
	return b.Bytes(), nil
}

func (j *JSONWriter) flushUnsafe() error {
	start := time.Now()
	if err := j.buf.Flush(); err != nil {
		return err
	}
	j.pending = 0
	j.stats.FlushCount++
	j.stats.LastFlushTime = time.Now()
	j.stats.FlushDuration += time.Since(start)
	return nil
}

// Flush implements the DataSink interface
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.flushUnsafe(); err != nil {
		j.errorState = true
		return &JSONWriterError{Op: "flush", Err: err}
	}
	return nil
}

// Close implements the DataSink interface
func (j *JSONWriter) Close() error {
	if err := j.Flush(); err != nil {
		return err
	}
	if j.closer != nil {
		if err := j.closer.Close(); err != nil {
			return &JSONWriterError{Op: "close", Err: err}
		}
	}
	return nil
}

// Stats returns write statistics.
func (j *JSONWriter) Stats() JSONWriterStats {
	j.mu.Lock()
	defer j.mu.Unlock()

	statsCopy := j.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(j.stats.NullValueCounts))
	for k, v := range j.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}
