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

// Package filter selects rows of a relation by column constraints.
//
// The record-level predicates in this file are core.Filter values usable in any
// streaming pipeline. The relation-level engine (Spec, Options, Apply) is in engine.go
// and is built from the same predicates.
package filter

import (
	"context"

	"github.com/aaronlmathis/tradeflow/core"
)

// NotNull creates a filter that excludes records where field is absent, nil, NaN or "".
func NotNull(field string) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		value, exists := record[field]
		if !exists || core.IsMissing(value) {
			return false, nil
		}
		if str, ok := value.(string); ok && str == "" {
			return false, nil
		}
		return true, nil
	})
}

// In creates a filter that includes records whose field value is one of values.
// Values are compared by core.ValueKey. A record lacking the field, or holding a
// missing value in it, never matches.
func In(field string, values ...interface{}) core.Filter {
	valueSet := make(map[string]bool, len(values))
	for _, v := range values {
		valueSet[core.ValueKey(v)] = true
	}

	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		value, exists := record[field]
		if !exists || core.IsMissing(value) {
			return false, nil
		}
		return valueSet[core.ValueKey(value)], nil
	})
}

// And creates a filter that requires all filters to pass. No filters passes everything.
func And(filters ...core.Filter) core.Filter {
	return core.FilterFunc(func(ctx context.Context, record core.Record) (bool, error) {
		for _, filter := range filters {
			include, err := filter.ShouldInclude(ctx, record)
			if err != nil {
				return false, err
			}
			if !include {
				return false, nil
			}
		}
		return true, nil
	})
}
