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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tradeflow/core"
)

// Mock writer shared by the file-based sink tests
type mockWriteCloser struct {
	*strings.Builder
	closed    bool
	failWrite bool
	failClose bool
	mu        sync.Mutex
}

func (m *mockWriteCloser) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrite {
		return 0, io.ErrUnexpectedEOF
	}
	return m.Builder.Write(p)
}

func (m *mockWriteCloser) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.failClose {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (m *mockWriteCloser) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Builder.String()
}

func (m *mockWriteCloser) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func newMockWriteCloser() *mockWriteCloser {
	return &mockWriteCloser{Builder: &strings.Builder{}}
}

var tradeHeaders = []string{"Month", "Quantity", "Year", "State", "Quarter"}

func tradeRecords() []core.Record {
	return []core.Record{
		{"Month": "Sep", "Quantity": 1200.0, "Year": 2023, "State": "CA", "Quarter": "Q3"},
		{"Month": "Oct", "Quantity": 800.5, "Year": nil, "State": "NY, US", "Quarter": "Q4"},
	}
}

func parseCSV(t *testing.T, s string) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(s)).ReadAll()
	require.NoError(t, err)
	return rows
}

// TestCSVWriter_BasicFunctionality tests header order, formatting and close
func TestCSVWriter_BasicFunctionality(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock, WithHeaders(tradeHeaders))
	require.NoError(t, err)

	for _, r := range tradeRecords() {
		require.NoError(t, writer.Write(context.Background(), r))
	}
	require.NoError(t, writer.Close())

	rows := parseCSV(t, mock.String())
	require.Len(t, rows, 3)
	assert.Equal(t, tradeHeaders, rows[0])
	assert.Equal(t, []string{"Sep", "1200", "2023", "CA", "Q3"}, rows[1])
	assert.Equal(t, []string{"Oct", "800.5", "", "NY, US", "Q4"}, rows[2])
	assert.True(t, mock.IsClosed())
}

// TestCSVWriter_InferredHeaders tests sorted keys when no headers are given
func TestCSVWriter_InferredHeaders(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock)
	require.NoError(t, err)

	require.NoError(t, writer.Write(context.Background(), core.Record{"b": 1, "a": "x"}))
	require.NoError(t, writer.Close())

	rows := parseCSV(t, mock.String())
	assert.Equal(t, []string{"a", "b"}, rows[0])
	assert.Equal(t, []string{"x", "1"}, rows[1])
}

// TestCSVWriter_EmptyView tests that fixed headers are written without records
func TestCSVWriter_EmptyView(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock, WithHeaders(tradeHeaders))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	assert.Equal(t, [][]string{tradeHeaders}, parseCSV(t, mock.String()))
}

// TestCSVWriter_Options tests delimiter, CRLF and header suppression
func TestCSVWriter_Options(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock,
		WithHeaders([]string{"State", "Quantity"}),
		WithComma(';'),
		WithUseCRLF(true),
		WithWriteHeader(false),
	)
	require.NoError(t, err)

	require.NoError(t, writer.Write(context.Background(), core.Record{"State": "CA", "Quantity": 5.0}))
	require.NoError(t, writer.Close())
	assert.Equal(t, "CA;5\r\n", mock.String())
}

// TestCSVWriter_BatchedWrites tests that batches flush automatically
func TestCSVWriter_BatchedWrites(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock, WithHeaders([]string{"i"}), WithCSVBatchSize(2))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, writer.Write(ctx, core.Record{"i": i}))
	}
	assert.Equal(t, int64(2), writer.Stats().FlushCount)

	require.NoError(t, writer.Close())
	assert.Len(t, parseCSV(t, mock.String()), 6)
	assert.Equal(t, int64(3), writer.Stats().FlushCount)
}

// TestCSVWriter_NullValueTracking tests per-column null counts
func TestCSVWriter_NullValueTracking(t *testing.T) {
	writer, err := NewCSVWriter(newMockWriteCloser(), WithHeaders(tradeHeaders))
	require.NoError(t, err)
	for _, r := range tradeRecords() {
		require.NoError(t, writer.Write(context.Background(), r))
	}

	stats := writer.Stats()
	assert.Equal(t, int64(2), stats.RecordsWritten)
	assert.Equal(t, int64(1), stats.NullValueCounts["Year"])

	// the copy is detached
	stats.NullValueCounts["Year"] = 99
	assert.Equal(t, int64(1), writer.Stats().NullValueCounts["Year"])
}

// TestCSVWriter_ErrorHandling tests write failures and the sticky error state
func TestCSVWriter_ErrorHandling(t *testing.T) {
	mock := newMockWriteCloser()
	mock.failWrite = true
	writer, err := NewCSVWriter(mock, WithHeaders([]string{"i"}), WithCSVBatchSize(1))
	require.NoError(t, err)

	err = writer.Write(context.Background(), core.Record{"i": 1})
	require.Error(t, err)
	var csvErr *CSVWriterError
	require.True(t, errors.As(err, &csvErr))
	assert.Equal(t, "flush_batch", csvErr.Op)

	err = writer.Write(context.Background(), core.Record{"i": 2})
	require.True(t, errors.As(err, &csvErr))
	assert.Contains(t, err.Error(), "error state")

	t.Run("close failure", func(t *testing.T) {
		mock := newMockWriteCloser()
		mock.failClose = true
		writer, err := NewCSVWriter(mock)
		require.NoError(t, err)
		assert.Error(t, writer.Close())
	})

	t.Run("cancelled context", func(t *testing.T) {
		writer, err := NewCSVWriter(newMockWriteCloser())
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, writer.Write(ctx, core.Record{"i": 1}), context.Canceled)
	})
}

// TestCSVWriter_ConcurrentSafety tests concurrent writers
func TestCSVWriter_ConcurrentSafety(t *testing.T) {
	mock := newMockWriteCloser()
	writer, err := NewCSVWriter(mock, WithHeaders([]string{"g", "i"}), WithCSVBatchSize(7))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				assert.NoError(t, writer.Write(context.Background(), core.Record{"g": g, "i": fmt.Sprint(i)}))
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, writer.Close())

	assert.Len(t, parseCSV(t, mock.String()), 101)
	assert.Equal(t, int64(100), writer.Stats().RecordsWritten)
}

// BenchmarkCSVWriter_Write measures buffered writes
func BenchmarkCSVWriter_Write(b *testing.B) {
	writer, _ := NewCSVWriter(newMockWriteCloser(), WithHeaders(tradeHeaders), WithCSVBatchSize(500))
	record := tradeRecords()[0]
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = writer.Write(ctx, record)
	}
	_ = writer.Close()
}
