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

import "context"

// Package core defines the core types for the TradeFlow library.
//
// TradeFlow ingests trade and import records from uploaded files or shared spreadsheet links,
// normalizes them into a canonical relation, and serves filtering, KPIs and anomaly flags over it.
//
// This file contains the primary types, canonical column names and function adapters.

// Record represents a single data record in the pipeline.
// Each record is a map from field names to values. A missing cell is a nil value.
type Record map[string]interface{}

// Canonical column labels produced by schema normalization and field derivation.
const (
	ColumnState     = "State"
	ColumnQuantity  = "Quantity"
	ColumnMonth     = "Month"
	ColumnYear      = "Year"
	ColumnConsignee = "Consignee"
	ColumnExporter  = "Exporter"
	ColumnQuarter   = "Quarter"
	ColumnAnomaly   = "is_anomaly"
)

// TransformFunc is a function adapter for the Transformer interface.
// Allows ordinary functions to be used as Transformers.
type TransformFunc func(ctx context.Context, record Record) (Record, error)

// Transform implements the Transformer interface for TransformFunc.
func (f TransformFunc) Transform(ctx context.Context, record Record) (Record, error) {
	return f(ctx, record)
}

// FilterFunc is a function adapter for the Filter interface.
// Allows ordinary functions to be used as Filters.
type FilterFunc func(ctx context.Context, record Record) (bool, error)

// ShouldInclude implements the Filter interface for FilterFunc.
func (f FilterFunc) ShouldInclude(ctx context.Context, record Record) (bool, error) {
	return f(ctx, record)
}
