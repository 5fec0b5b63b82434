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
	"io"

	"github.com/aaronlmathis/tradeflow/core"
)

// RelationReader streams the rows of an in-memory relation, so a view can be pushed
// through a pipeline into any sink.
type RelationReader struct {
	rel *core.Relation
	pos int
}

// NewRelationReader creates a reader over rel.
func NewRelationReader(rel *core.Relation) *RelationReader {
	return &RelationReader{rel: rel}
}

// Columns returns the relation's columns.
func (r *RelationReader) Columns() []string {
	return r.rel.Columns()
}

// Read implements the core.DataSource interface. Records are shared with the relation.
func (r *RelationReader) Read(ctx context.Context) (core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.pos >= r.rel.Len() {
		return nil, io.EOF
	}
	rec := r.rel.Row(r.pos)
	r.pos++
	return rec, nil
}

// Close implements the core.DataSource interface.
func (r *RelationReader) Close() error {
	return nil
}
