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
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tradeflow/core"
)

// TestJSONWriter_BasicFunctionality tests ordered keys, nulls and close
func TestJSONWriter_BasicFunctionality(t *testing.T) {
	mock := newMockWriteCloser()
	writer := NewJSONWriter(mock, WithJSONHeaders(tradeHeaders))

	for _, r := range tradeRecords() {
		require.NoError(t, writer.Write(context.Background(), r))
	}
	require.NoError(t, writer.Close())

	lines := strings.Split(strings.TrimSpace(mock.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"Month":"Sep","Quantity":1200,"Year":2023,"State":"CA","Quarter":"Q3"}`, lines[0])
	assert.Equal(t, `{"Month":"Oct","Quantity":800.5,"Year":null,"State":"NY, US","Quarter":"Q4"}`, lines[1])
	assert.True(t, mock.IsClosed())
}

// TestJSONWriter_SortedKeys tests output without fixed headers
func TestJSONWriter_SortedKeys(t *testing.T) {
	mock := newMockWriteCloser()
	writer := NewJSONWriter(mock)
	require.NoError(t, writer.Write(context.Background(), core.Record{"b": 1, "a": math.NaN()}))
	require.NoError(t, writer.Close())

	assert.Equal(t, "{\"a\":null,\"b\":1}\n", mock.String())

	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(mock.String()), &parsed))
	assert.Nil(t, parsed["a"])
	assert.Equal(t, int64(1), writer.Stats().NullValueCounts["a"])
}

// TestJSONWriter_FlushBehaviour tests deferred, batched and immediate flushing
func TestJSONWriter_FlushBehaviour(t *testing.T) {
	ctx := context.Background()

	t.Run("deferred", func(t *testing.T) {
		mock := newMockWriteCloser()
		writer := NewJSONWriter(mock)
		require.NoError(t, writer.Write(ctx, core.Record{"test": "value"}))
		assert.Empty(t, mock.String())
		require.NoError(t, writer.Flush())
		assert.Contains(t, mock.String(), `"test":"value"`)
	})

	t.Run("batched", func(t *testing.T) {
		mock := newMockWriteCloser()
		writer := NewJSONWriter(mock, WithJSONBatchSize(3))
		for i := 0; i < 5; i++ {
			require.NoError(t, writer.Write(ctx, core.Record{"id": i}))
		}
		assert.Len(t, strings.Split(strings.TrimSpace(mock.String()), "\n"), 3)
		require.NoError(t, writer.Flush())
		assert.Len(t, strings.Split(strings.TrimSpace(mock.String()), "\n"), 5)
		assert.Equal(t, int64(5), writer.Stats().RecordsWritten)
		assert.Equal(t, int64(2), writer.Stats().FlushCount)
	})

	t.Run("immediate", func(t *testing.T) {
		mock := newMockWriteCloser()
		writer := NewJSONWriter(mock, WithFlushOnWrite(true))
		require.NoError(t, writer.Write(ctx, core.Record{"test": "value"}))
		assert.Contains(t, mock.String(), `"test":"value"`)
		assert.Greater(t, writer.Stats().BytesWritten, int64(0))
	})
}

// TestJSONWriter_ErrorHandling tests error conditions
func TestJSONWriter_ErrorHandling(t *testing.T) {
	ctx := context.Background()

	t.Run("write_error", func(t *testing.T) {
		mock := newMockWriteCloser()
		mock.failWrite = true
		writer := NewJSONWriter(mock, WithFlushOnWrite(true))

		err := writer.Write(ctx, core.Record{"test": "value"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "json writer")

		err = writer.Write(ctx, core.Record{"test": "value"})
		assert.Contains(t, err.Error(), "error state")
	})

	t.Run("close_error", func(t *testing.T) {
		mock := newMockWriteCloser()
		mock.failClose = true
		writer := NewJSONWriter(mock)
		require.NoError(t, writer.Write(ctx, core.Record{"test": "value"}))
		assert.Error(t, writer.Close())
	})

	t.Run("invalid_json", func(t *testing.T) {
		writer := NewJSONWriter(newMockWriteCloser())
		err := writer.Write(ctx, core.Record{"invalid": make(chan int)})
		require.Error(t, err)
		var jsonErr *JSONWriterError
		require.True(t, errors.As(err, &jsonErr))
		assert.Equal(t, "marshal", jsonErr.Op)
	})
}

// TestJSONWriter_ConcurrentSafety tests concurrent writers
func TestJSONWriter_ConcurrentSafety(t *testing.T) {
	mock := newMockWriteCloser()
	writer := NewJSONWriter(mock, WithJSONBatchSize(5))

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				assert.NoError(t, writer.Write(context.Background(), core.Record{"g": g, "i": i}))
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, writer.Close())
	assert.Len(t, strings.Split(strings.TrimSpace(mock.String()), "\n"), 100)
}
