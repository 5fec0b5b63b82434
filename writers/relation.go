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
	"sync"

	"github.com/aaronlmathis/tradeflow/core"
)

// RelationWriter implements core.DataSink by collecting records into memory.
// Ingestion uses it as the terminal sink that materializes the working table.
type RelationWriter struct {
	columns []string
	rows    []core.Record
	closed  bool
	mu      sync.Mutex
}

// NewRelationWriter creates a collector for the given column order.
func NewRelationWriter(columns []string) *RelationWriter {
	return &RelationWriter{columns: append([]string(nil), columns...)}
}

// Write implements the core.DataSink interface.
func (r *RelationWriter) Write(ctx context.Context, record core.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("relation writer is closed")
	}
	r.rows = append(r.rows, record)
	return nil
}

// Flush implements the core.DataSink interface.
func (r *RelationWriter) Flush() error {
	return nil
}

// Close implements the core.DataSink interface. Relation remains usable afterwards.
func (r *RelationWriter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Relation returns the collected records as a relation.
func (r *RelationWriter) Relation() *core.Relation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return core.NewRelation(r.columns, r.rows)
}
