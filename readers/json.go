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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/aaronlmathis/tradeflow/core"
)

// JSONReaderError wraps JSON decoding errors with context.
type JSONReaderError struct {
	Op  string
	Err error
}

func (e *JSONReaderError) Error() string {
	return fmt.Sprintf("json reader %s: %v", e.Op, e.Err)
}

func (e *JSONReaderError) Unwrap() error {
	return e.Err
}

// JSONReaderStats holds JSON read statistics.
type JSONReaderStats struct {
	RecordsRead     int64
	ReadDuration    time.Duration
	NullValueCounts map[string]int64
}

// JSONReader implements core.DataSource and core.Headed for line-delimited JSON
// objects, or a single top-level array of objects. Headers are the object keys in
// first-seen order. Scalars are rendered as the text a CSV cell would hold; nested
// values keep their compact JSON text.
type JSONReader struct {
	headers []string
	rows    []core.Record
	pos     int
	closer  io.Closer
	stats   JSONReaderStats
}

// NewJSONReader decodes every object in r. A value that is not an object is an error.
func NewJSONReader(r io.ReadCloser) (*JSONReader, error) {
	start := time.Now()
	jr := &JSONReader{
		closer: r,
		stats:  JSONReaderStats{NullValueCounts: make(map[string]int64)},
	}

	br := bufio.NewReader(r)
	first, err := firstNonSpace(br)
	if err == io.EOF {
		return jr, nil
	}
	if err != nil {
		return nil, &JSONReaderError{Op: "read", Err: err}
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()
	seen := make(map[string]bool)
	add := func(keys []string, record core.Record) {
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				jr.headers = append(jr.headers, k)
			}
		}
		jr.rows = append(jr.rows, record)
	}

	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return nil, &JSONReaderError{Op: "decode", Err: err}
		}
		for dec.More() {
			keys, record, err := readObject(dec)
			if err != nil {
				return nil, &JSONReaderError{Op: "decode", Err: fmt.Errorf("object %d: %w", len(jr.rows)+1, err)}
			}
			add(keys, record)
		}
		if _, err := dec.Token(); err != nil {
			return nil, &JSONReaderError{Op: "decode", Err: err}
		}
	} else {
		for {
			keys, record, err := readObject(dec)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, &JSONReaderError{Op: "decode", Err: fmt.Errorf("object %d: %w", len(jr.rows)+1, err)}
			}
			add(keys, record)
		}
	}

	jr.stats.ReadDuration = time.Since(start)
	return jr, nil
}

// firstNonSpace peeks at the first significant byte of br without consuming it.
func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

// readObject decodes one JSON object preserving key order.
func readObject(dec *json.Decoder) ([]string, core.Record, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if tok != json.Delim('{') {
		return nil, nil, fmt.Errorf("expected an object, got %v", tok)
	}

	keys, record, err := readMembers(dec)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return keys, record, err
}

func readMembers(dec *json.Decoder) ([]string, core.Record, error) {
	var keys []string
	record := make(core.Record)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected key %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, err
		}
		if _, dup := record[key]; !dup {
			keys = append(keys, key)
		}
		record[key] = jsonCell(raw)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, record, nil
}

// jsonCell converts a raw JSON value into a cell: null is nil, strings are unquoted,
// and everything else keeps its JSON text.
func jsonCell(raw json.RawMessage) interface{} {
	raw = bytes.TrimSpace(raw)
	switch {
	case bytes.Equal(raw, []byte("null")):
		return nil
	case len(raw) > 0 && raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	case len(raw) > 0 && (raw[0] == '{' || raw[0] == '['):
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.String()
		}
	}
	return string(raw)
}

// Columns returns the object keys in first-seen order.
func (j *JSONReader) Columns() []string {
	return append([]string(nil), j.headers...)
}

// Read implements the core.DataSource interface. Keys absent from an object are nil.
func (j *JSONReader) Read(ctx context.Context) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &JSONReaderError{Op: "read", Err: err}
	}
	if j.pos >= len(j.rows) {
		return nil, io.EOF
	}
	src := j.rows[j.pos]
	j.pos++

	out := make(core.Record, len(j.headers))
	for _, h := range j.headers {
		v := src[h]
		if v == nil {
			j.stats.NullValueCounts[h]++
		}
		out[h] = v
	}
	j.stats.RecordsRead++
	return out, nil
}

// Close implements the DataSource interface
func (j *JSONReader) Close() error {
	if j.closer != nil {
		err := j.closer.Close()
		j.closer = nil
		return err
	}
	return nil
}

// Stats returns read statistics.
func (j *JSONReader) Stats() JSONReaderStats {
	statsCopy := j.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(j.stats.NullValueCounts))
	for k, v := range j.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}
