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

// Package transform provides the record transformers used by ingestion and export.
//
// Generic transformers (selection, renaming, computed fields) live in
// this file; the trade-specific cleaners are in clean.go and derive.go. Every function
// returns a core.Transformer that never mutates its input record.
package transform

import (
	"context"

	"github.com/aaronlmathis/tradeflow/core"
)

// copyRecord returns a shallow copy of record with room for extra fields.
func copyRecord(record core.Record, extra int) core.Record {
	result := make(core.Record, len(record)+extra)
	for k, v := range record {
		result[k] = v
	}
	return result
}

// Select creates a transformer that keeps only the listed fields.
// Listed fields missing from a record are left out rather than set to nil.
func Select(fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(fields))
		for _, field := range fields {
			if value, exists := record[field]; exists {
				result[field] = value
			}
		}
		return result, nil
	})
}

// Rename creates a transformer that renames fields according to mapping (old -> new).
func Rename(mapping map[string]string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(record))
		for key, value := range record {
			if newKey, exists := mapping[key]; exists {
				result[newKey] = value
			} else {
				result[key] = value
			}
		}
		return result, nil
	})
}

// AddField creates a transformer that sets field to fn(record).
func AddField(field string, fn func(core.Record) interface{}) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := copyRecord(record, 1)
		result[field] = fn(record)
		return result, nil
	})
}

// Update creates a transformer that replaces field with fn(value) when the field is present.
// Records lacking the field pass through unchanged.
func Update(field string, fn func(interface{}) interface{}) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		value, exists := record[field]
		if !exists {
			return record, nil
		}
		result := copyRecord(record, 0)
		result[field] = fn(value)
		return result, nil
	})
}
