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

	"github.com/xuri/excelize/v2"

	"github.com/aaronlmathis/tradeflow/core"
)

// XLSXWriterError wraps workbook write errors with context about the operation.
type XLSXWriterError struct {
	Op  string
	Err error
}

func (e *XLSXWriterError) Error() string {
	return fmt.Sprintf("xlsx writer %s: %v", e.Op, e.Err)
}

func (e *XLSXWriterError) Unwrap() error {
	return e.Err
}

// XLSXWriterOptions configures the workbook writer.
type XLSXWriterOptions struct {
	Sheet        string
	Headers      []string
	BoldHeader   bool
	FreezeHeader bool
}

// WriterOptionXLSX is a functional option for XLSXWriterOptions.
type WriterOptionXLSX func(*XLSXWriterOptions)

// WithSheetName names the single output sheet.
func WithSheetName(name string) WriterOptionXLSX {
	return func(o *XLSXWriterOptions) { o.Sheet = name }
}

// WithXLSXHeaders fixes the column order.
func WithXLSXHeaders(headers []string) WriterOptionXLSX {
	return func(o *XLSXWriterOptions) { o.Headers = append([]string(nil), headers...) }
}

// WithHeaderStyle toggles a bold, frozen header row.
func WithHeaderStyle(enabled bool) WriterOptionXLSX {
	return func(o *XLSXWriterOptions) {
		o.BoldHeader = enabled
		o.FreezeHeader = enabled
	}
}

// XLSXWriter implements core.DataSink for Excel workbooks. Rows are streamed into one
// sheet and the workbook is serialized to the underlying writer on Close.
type XLSXWriter struct {
	w          io.WriteCloser
	file       *excelize.File
	stream     *excelize.StreamWriter
	opts       XLSXWriterOptions
	headers    []string
	row        int
	records    int64
	closed     bool
	errorState bool
	mu         sync.Mutex
}

// NewXLSXWriter creates a workbook writer over w.
func NewXLSXWriter(w io.WriteCloser, options ...WriterOptionXLSX) (*XLSXWriter, error) {
	opts := XLSXWriterOptions{Sheet: "Trades", BoldHeader: true, FreezeHeader: true}
	for _, option := range options {
		option(&opts)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), opts.Sheet); err != nil {
		f.Close()
		return nil, &XLSXWriterError{Op: "sheet", Err: err}
	}
	stream, err := f.NewStreamWriter(opts.Sheet)
	if err != nil {
		f.Close()
		return nil, &XLSXWriterError{Op: "stream", Err: err}
	}

	return &XLSXWriter{
		w:       w,
		file:    f,
		stream:  stream,
		opts:    opts,
		headers: opts.Headers,
		row:     1,
	}, nil
}

// RecordsWritten returns the number of data rows written.
func (x *XLSXWriter) RecordsWritten() int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.records
}

// Write implements the core.DataSink interface.
func (x *XLSXWriter) Write(ctx context.Context, record core.Record) error {
	if err := ctx.Err(); err != nil {
		return &XLSXWriterError{Op: "write", Err: err}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return &XLSXWriterError{Op: "write", Err: fmt.Errorf("writer is closed")}
	}
	if x.errorState {
		return &XLSXWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}
	if x.headers == nil {
		x.headers = sortedKeys(record)
	}
	if err := x.writeHeaderUnsafe(); err != nil {
		x.errorState = true
		return err
	}

	values := make([]interface{}, len(x.headers))
	for i, h := range x.headers {
		values[i] = xlsxValue(record[h])
	}
	if err := x.setRowUnsafe(values); err != nil {
		x.errorState = true
		return err
	}
	x.records++
	return nil
}

// Flush is a no-op; the workbook is only complete once closed.
func (x *XLSXWriter) Flush() error {
	return nil
}

// Close finishes the sheet, writes the workbook and closes the underlying writer.
func (x *XLSXWriter) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true
	defer x.file.Close()

	if err := x.writeHeaderUnsafe(); err != nil {
		return err
	}
	if err := x.stream.Flush(); err != nil {
		return &XLSXWriterError{Op: "flush", Err: err}
	}
	if _, err := x.file.WriteTo(x.w); err != nil {
		return &XLSXWriterError{Op: "write_workbook", Err: err}
	}
	if err := x.w.Close(); err != nil {
		return &XLSXWriterError{Op: "close", Err: err}
	}
	return nil
}

// writeHeaderUnsafe writes the header row once (must hold mutex).
func (x *XLSXWriter) writeHeaderUnsafe() error {
	if x.row > 1 || len(x.headers) == 0 {
		return nil
	}

	if x.opts.FreezeHeader {
		if err := x.stream.SetPanes(&excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return &XLSXWriterError{Op: "panes", Err: err}
		}
	}

	styleID := 0
	if x.opts.BoldHeader {
		id, err := x.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return &XLSXWriterError{Op: "style", Err: err}
		}
		styleID = id
	}

	cells := make([]interface{}, len(x.headers))
	for i, h := range x.headers {
		cells[i] = excelize.Cell{StyleID: styleID, Value: h}
	}
	return x.setRowUnsafe(cells)
}

func (x *XLSXWriter) setRowUnsafe(values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return &XLSXWriterError{Op: "write_row", Err: err}
	}
	if err := x.stream.SetRow(cell, values); err != nil {
		return &XLSXWriterError{Op: "write_row", Err: err}
	}
	x.row++
	return nil
}

// xlsxValue keeps numbers and booleans typed and renders everything else as text.
// Missing cells are left empty.
func xlsxValue(value interface{}) interface{} {
	if core.IsMissing(value) {
		return nil
	}
	switch v := value.(type) {
	case bool, int, int64, float64, string:
		return v
	default:
		return core.ValueKey(v)
	}
}
