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
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aaronlmathis/tradeflow/core"
)

// This file implements SheetReader, the DataSource shared by the workbook readers once a
// sheet has been loaded into rows of cell strings.

// SheetReaderStats holds statistics about a sheet reader.
type SheetReaderStats struct {
	Sheet            string
	RecordsRead      int64
	BlankRowsSkipped int64
	ReadDuration     time.Duration
	LastReadTime     time.Time
	NullValueCounts  map[string]int64
}

// SheetReader implements core.DataSource and core.Headed over an in-memory sheet whose
// first row is the header.
type SheetReader struct {
	format  string
	headers []string
	rows    [][]string
	pos     int
	stats   SheetReaderStats
}

func newSheetReader(format, sheet string, rows [][]string) *SheetReader {
	sr := &SheetReader{
		format: format,
		stats:  SheetReaderStats{Sheet: sheet, NullValueCounts: make(map[string]int64)},
	}
	// leading blank rows are not a header
	for len(rows) > 0 && isBlankRow(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return sr
	}
	sr.headers = uniqueHeaders(rows[0])
	sr.rows = rows[1:]
	return sr
}

// Columns returns the header labels in sheet order.
func (s *SheetReader) Columns() []string {
	cols := make([]string, len(s.headers))
	copy(cols, s.headers)
	return cols
}

// Read implements the core.DataSource interface. Rows with no non-blank cells are skipped;
// cells past the end of a short row are missing.
func (s *SheetReader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s reader read: %w", s.format, ctx.Err())
	default:
	}

	for s.pos < len(s.rows) {
		row := s.rows[s.pos]
		s.pos++
		if isBlankRow(row) {
			s.stats.BlankRowsSkipped++
			continue
		}

		rec := make(core.Record, len(s.headers))
		for i, key := range s.headers {
			if i >= len(row) || strings.TrimSpace(row[i]) == "" {
				s.stats.NullValueCounts[key]++
				rec[key] = nil
				continue
			}
			rec[key] = row[i]
		}

		s.stats.RecordsRead++
		s.stats.LastReadTime = time.Now()
		s.stats.ReadDuration += time.Since(start)
		return rec, nil
	}
	return nil, io.EOF
}

// Close implements the core.DataSource interface. The sheet is already in memory.
func (s *SheetReader) Close() error {
	return nil
}

// Stats returns sheet reader stats.
func (s *SheetReader) Stats() SheetReaderStats {
	return s.stats
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// uniqueHeaders names blank header cells "Unnamed: i" and makes repeated labels unique.
func uniqueHeaders(raw []string) []string {
	labels := make([]string, len(raw))
	for i, h := range raw {
		if strings.TrimSpace(h) == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		labels[i] = h
	}
	return core.UniqueLabels(labels)
}
