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

package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aaronlmathis/tradeflow/core"
)

// keySep separates encoded key parts; it cannot appear in a ValueKey of trade data.
const keySep = "\x1f"

// GroupBy groups records by one or more fields and applies aggregators to each group.
type GroupBy struct {
	groupFields []string
	outputs     []string
	aggregators map[string]Aggregator
	dropMissing bool
}

// Group is one group produced by GroupBy.Process.
type Group struct {
	// Key holds the first-seen value of each group field, in field order.
	Key []interface{}
	// Values holds aggregator results by output field.
	Values map[string]interface{}
}

// Float returns the named result as a float64 (0 if absent or non-numeric).
func (g Group) Float(output string) float64 {
	f, _ := core.ToFloat64(g.Values[output])
	return f
}

// NewGroupBy creates a GroupBy over groupFields. With no fields every record falls in one group.
func NewGroupBy(groupFields ...string) *GroupBy {
	return &GroupBy{
		groupFields: groupFields,
		aggregators: make(map[string]Aggregator),
	}
}

// DropMissing excludes records whose group key has a missing value.
func (g *GroupBy) DropMissing() *GroupBy {
	g.dropMissing = true
	return g
}

// Aggregate registers aggregator under outputField.
func (g *GroupBy) Aggregate(outputField string, aggregator Aggregator) *GroupBy {
	if _, exists := g.aggregators[outputField]; !exists {
		g.outputs = append(g.outputs, outputField)
	}
	g.aggregators[outputField] = aggregator
	return g
}

// Count adds a count aggregator for the specified output field
func (g *GroupBy) Count(outputField string) *GroupBy {
	return g.Aggregate(outputField, &CountAggregator{})
}

// Sum adds a sum aggregator for the specified field
func (g *GroupBy) Sum(field, outputField string) *GroupBy {
	return g.Aggregate(outputField, &SumAggregator{Field: field})
}

// Avg adds an average aggregator for the specified field
func (g *GroupBy) Avg(field, outputField string) *GroupBy {
	return g.Aggregate(outputField, &AvgAggregator{Field: field})
}

// Min adds a minimum aggregator for the specified field
func (g *GroupBy) Min(field, outputField string) *GroupBy {
	return g.Aggregate(outputField, &MinAggregator{Field: field})
}

// Max adds a maximum aggregator for the specified field
func (g *GroupBy) Max(field, outputField string) *GroupBy {
	return g.Aggregate(outputField, &MaxAggregator{Field: field})
}

// Distinct adds a distinct-count aggregator for the specified field
func (g *GroupBy) Distinct(field, outputField string) *GroupBy {
	return g.Aggregate(outputField, &DistinctAggregator{Field: field})
}

// Process aggregates records and returns one Group per key, in order of first appearance.
// Keys compare by core.ValueKey, so 2023 and "2023" share a group.
func (g *GroupBy) Process(ctx context.Context, records []core.Record) ([]Group, error) {
	type state struct {
		key  []interface{}
		aggs map[string]Aggregator
	}
	index := make(map[string]int)
	var states []*state

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key, encoded, ok := g.buildGroupKey(record)
		if !ok {
			continue
		}

		i, exists := index[encoded]
		if !exists {
			st := &state{key: key, aggs: make(map[string]Aggregator, len(g.aggregators))}
			for out, agg := range g.aggregators {
				st.aggs[out] = agg.Clone()
			}
			i = len(states)
			index[encoded] = i
			states = append(states, st)
		}

		for _, out := range g.outputs {
			if err := states[i].aggs[out].Add(ctx, record); err != nil {
				return nil, fmt.Errorf("aggregation error for field %s: %w", out, err)
			}
		}
	}

	groups := make([]Group, 0, len(states))
	for _, st := range states {
		values := make(map[string]interface{}, len(g.outputs))
		for _, out := range g.outputs {
			v, err := st.aggs[out].Result()
			if err != nil {
				return nil, fmt.Errorf("failed to get result for field %s: %w", out, err)
			}
			values[out] = v
		}
		groups = append(groups, Group{Key: st.key, Values: values})
	}
	return groups, nil
}

func (g *GroupBy) buildGroupKey(record core.Record) ([]interface{}, string, bool) {
	key := make([]interface{}, len(g.groupFields))
	parts := make([]string, len(g.groupFields))
	for i, field := range g.groupFields {
		value := record[field]
		if g.dropMissing && core.IsMissing(value) {
			return nil, "", false
		}
		key[i] = value
		parts[i] = core.ValueKey(value)
	}
	return key, strings.Join(parts, keySep), true
}

// SortByKey orders groups by their keys, comparing parts with core.CompareValues.
func SortByKey(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		return compareKeys(groups[i].Key, groups[j].Key) < 0
	})
}

// SortByKeyText orders groups by the text form of their keys.
func SortByKeyText(groups []Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Key, groups[j].Key
		for k := range a {
			ka, kb := core.ValueKey(a[k]), core.ValueKey(b[k])
			if ka != kb {
				return ka < kb
			}
		}
		return false
	})
}

// SortByValue orders groups by a numeric output, descending.
func SortByValue(groups []Group, output string) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Float(output) > groups[j].Float(output)
	})
}

func compareKeys(a, b []interface{}) int {
	for i := range a {
		if c := core.CompareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}
