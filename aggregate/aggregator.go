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

// Package aggregate groups records and folds each group into summary values.
package aggregate

import (
	"context"

	"github.com/aaronlmathis/tradeflow/core"
)

// Aggregator folds the records of one group into a single value.
type Aggregator interface {
	// Add processes a record for aggregation.
	Add(ctx context.Context, record core.Record) error
	// Result returns the aggregated value.
	Result() (interface{}, error)
	// Reset clears the aggregator state for reuse.
	Reset()
	// Clone returns a fresh aggregator with the same configuration.
	Clone() Aggregator
}

// CountAggregator counts records.
type CountAggregator struct {
	count int
}

func (c *CountAggregator) Add(ctx context.Context, record core.Record) error {
	c.count++
	return nil
}

func (c *CountAggregator) Result() (interface{}, error) { return c.count, nil }
func (c *CountAggregator) Reset()                       { c.count = 0 }
func (c *CountAggregator) Clone() Aggregator            { return &CountAggregator{} }

// SumAggregator sums the numeric values of Field. Missing and non-numeric values are skipped.
type SumAggregator struct {
	Field string
	sum   float64
}

func (s *SumAggregator) Add(ctx context.Context, record core.Record) error {
	if num, ok := core.ToFloat64(record[s.Field]); ok {
		s.sum += num
	}
	return nil
}

func (s *SumAggregator) Result() (interface{}, error) { return s.sum, nil }
func (s *SumAggregator) Reset()                       { s.sum = 0 }
func (s *SumAggregator) Clone() Aggregator            { return &SumAggregator{Field: s.Field} }

// AvgAggregator averages the numeric values of Field; 0 when there are none.
type AvgAggregator struct {
	Field string
	sum   float64
	count int
}

func (a *AvgAggregator) Add(ctx context.Context, record core.Record) error {
	if num, ok := core.ToFloat64(record[a.Field]); ok {
		a.sum += num
		a.count++
	}
	return nil
}

func (a *AvgAggregator) Result() (interface{}, error) {
	if a.count == 0 {
		return 0.0, nil
	}
	return a.sum / float64(a.count), nil
}

func (a *AvgAggregator) Reset() {
	a.sum = 0
	a.count = 0
}

func (a *AvgAggregator) Clone() Aggregator { return &AvgAggregator{Field: a.Field} }

// MinAggregator keeps the smallest non-missing value of Field by core.CompareValues.
type MinAggregator struct {
	Field string
	min   interface{}
	set   bool
}

func (m *MinAggregator) Add(ctx context.Context, record core.Record) error {
	value := record[m.Field]
	if core.IsMissing(value) {
		return nil
	}
	if !m.set || core.CompareValues(value, m.min) < 0 {
		m.min = value
		m.set = true
	}
	return nil
}

func (m *MinAggregator) Result() (interface{}, error) { return m.min, nil }

func (m *MinAggregator) Reset() {
	m.min = nil
	m.set = false
}

func (m *MinAggregator) Clone() Aggregator { return &MinAggregator{Field: m.Field} }

// MaxAggregator keeps the largest non-missing value of Field by core.CompareValues.
type MaxAggregator struct {
	Field string
	max   interface{}
	set   bool
}

func (m *MaxAggregator) Add(ctx context.Context, record core.Record) error {
	value := record[m.Field]
	if core.IsMissing(value) {
		return nil
	}
	if !m.set || core.CompareValues(value, m.max) > 0 {
		m.max = value
		m.set = true
	}
	return nil
}

func (m *MaxAggregator) Result() (interface{}, error) { return m.max, nil }

func (m *MaxAggregator) Reset() {
	m.max = nil
	m.set = false
}

func (m *MaxAggregator) Clone() Aggregator { return &MaxAggregator{Field: m.Field} }

// DistinctAggregator counts distinct non-missing values of Field by core.ValueKey.
type DistinctAggregator struct {
	Field string
	seen  map[string]struct{}
}

func (d *DistinctAggregator) Add(ctx context.Context, record core.Record) error {
	value := record[d.Field]
	if core.IsMissing(value) {
		return nil
	}
	if d.seen == nil {
		d.seen = make(map[string]struct{})
	}
	d.seen[core.ValueKey(value)] = struct{}{}
	return nil
}

func (d *DistinctAggregator) Result() (interface{}, error) { return len(d.seen), nil }
func (d *DistinctAggregator) Reset()                       { d.seen = nil }
func (d *DistinctAggregator) Clone() Aggregator            { return &DistinctAggregator{Field: d.Field} }
