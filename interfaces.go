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

package tradeflow

import "github.com/aaronlmathis/tradeflow/core"

// This file re-exports the core pipeline types so that callers building a Pipeline
// only need to import the root package.

type (
	// Record is one row keyed by column label.
	Record = core.Record
	// DataSource streams records until io.EOF.
	DataSource = core.DataSource
	// DataSink receives records and is flushed and closed by the pipeline.
	DataSink = core.DataSink
	// Transformer rewrites a record.
	Transformer = core.Transformer
	// Filter decides whether a record is kept.
	Filter = core.Filter
	// TransformFunc adapts a function to Transformer.
	TransformFunc = core.TransformFunc
	// FilterFunc adapts a function to Filter.
	FilterFunc = core.FilterFunc
	// ErrorHandler decides whether a record-level error stops the pipeline.
	ErrorHandler = core.ErrorHandler
	// ErrorHandlerFunc adapts a function to ErrorHandler.
	ErrorHandlerFunc = core.ErrorHandlerFunc
	// ErrorStrategy selects record-level error handling.
	ErrorStrategy = core.ErrorStrategy
)

const (
	FailFast      = core.FailFast
	SkipErrors    = core.SkipErrors
	CollectErrors = core.CollectErrors
)
