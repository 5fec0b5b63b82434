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

package transform

import (
	"context"

	"github.com/aaronlmathis/tradeflow/core"
)

var quarters = map[string]string{
	"Jan": "Q1", "Feb": "Q1", "Mar": "Q1",
	"Apr": "Q2", "May": "Q2", "Jun": "Q2",
	"Jul": "Q3", "Aug": "Q3", "Sep": "Q3",
	"Oct": "Q4", "Nov": "Q4", "Dec": "Q4",
}

// QuarterOf returns the quarter label for a canonical month abbreviation.
func QuarterOf(month string) (string, bool) {
	q, ok := quarters[month]
	return q, ok
}

// DeriveQuarter sets Quarter from the canonical Month of each record.
// Records without a Month field pass through unchanged; unknown months get a nil Quarter.
func DeriveQuarter() core.Transformer {
	derive := AddField(core.ColumnQuarter, func(record core.Record) interface{} {
		month, _ := record[core.ColumnMonth].(string)
		if q, ok := QuarterOf(month); ok {
			return q
		}
		return nil
	})
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		if _, ok := record[core.ColumnMonth]; !ok {
			return record, nil
		}
		return derive.Transform(ctx, record)
	})
}
