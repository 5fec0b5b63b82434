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

package core

import "fmt"

// This file implements Relation, the ordered in-memory table produced by ingestion
// and the type every view, filter result and annotated copy is expressed in.

// Relation is an ordered sequence of records over an ordered column list.
//
// A Relation is read-only once constructed. Views derived from it share the
// underlying records, so callers must never modify a record obtained from Row or Rows.
// Operations that add data (such as anomaly annotation) return copies.
// A nil *Relation behaves as an empty relation with no columns.
type Relation struct {
	columns []string
	rows    []Record
}

// NewRelation creates a relation from columns and rows. Both slices are copied;
// the records themselves are not.
func NewRelation(columns []string, rows []Record) *Relation {
	cols := make([]string, len(columns))
	copy(cols, columns)
	rs := make([]Record, len(rows))
	copy(rs, rows)
	return &Relation{columns: cols, rows: rs}
}

// Columns returns a copy of the column labels in order.
func (r *Relation) Columns() []string {
	if r == nil {
		return nil
	}
	cols := make([]string, len(r.columns))
	copy(cols, r.columns)
	return cols
}

// HasColumn reports whether name is one of the relation's columns.
func (r *Relation) HasColumn(name string) bool {
	if r == nil {
		return false
	}
	for _, c := range r.columns {
		if c == name {
			return true
		}
	}
	return false
}

// Len returns the number of rows.
func (r *Relation) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rows)
}

// Row returns the i-th record.
func (r *Relation) Row(i int) Record {
	return r.rows[i]
}

// Rows returns the records in order. The slice is a copy; the records are shared.
func (r *Relation) Rows() []Record {
	if r == nil {
		return nil
	}
	rs := make([]Record, len(r.rows))
	copy(rs, r.rows)
	return rs
}

// Values returns the column's values in row order. Rows lacking the field yield nil.
func (r *Relation) Values(column string) []interface{} {
	if r == nil {
		return nil
	}
	values := make([]interface{}, len(r.rows))
	for i, row := range r.rows {
		values[i] = row[column]
	}
	return values
}

// Subset returns a view holding the rows at the given indices, in the given order.
func (r *Relation) Subset(indices []int) *Relation {
	rows := make([]Record, 0, len(indices))
	for _, i := range indices {
		rows = append(rows, r.rows[i])
	}
	return &Relation{columns: r.Columns(), rows: rows}
}

// WithColumn returns a copy of the relation with column appended (or replaced, if it
// already exists) holding values[i] on row i. Records are copied, so the receiver and
// any relation sharing its records are left untouched.
func (r *Relation) WithColumn(column string, values []interface{}) *Relation {
	cols := r.Columns()
	if !r.HasColumn(column) {
		cols = append(cols, column)
	}
	rows := make([]Record, r.Len())
	for i := range rows {
		rec := make(Record, len(r.rows[i])+1)
		for k, v := range r.rows[i] {
			rec[k] = v
		}
		if i < len(values) {
			rec[column] = values[i]
		} else {
			rec[column] = nil
		}
		rows[i] = rec
	}
	return &Relation{columns: cols, rows: rows}
}

// UniqueLabels suffixes repeated labels with ".1", ".2", ... in order of appearance,
// so that no two columns share a record key.
func UniqueLabels(labels []string) []string {
	out := make([]string, len(labels))
	used := make(map[string]bool, len(labels))
	counts := make(map[string]int, len(labels))
	for i, l := range labels {
		label := l
		for used[label] {
			counts[l]++
			label = fmt.Sprintf("%s.%d", l, counts[l])
		}
		used[label] = true
		out[i] = label
	}
	return out
}
