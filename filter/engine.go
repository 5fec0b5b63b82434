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

package filter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aaronlmathis/tradeflow/core"
)

// Sentinel is the type of All.
type Sentinel struct{}

func (Sentinel) String() string { return "All" }

// All is the "no constraint" choice. A Constraint containing All imposes nothing.
var All = Sentinel{}

// ErrUnknownColumn is returned when a non-trivial constraint names a column the
// relation does not have.
var ErrUnknownColumn = errors.New("unknown column")

// Constraint lists the accepted values for one column (OR semantics).
type Constraint []interface{}

// Value returns a one-element constraint.
func Value(v interface{}) Constraint {
	return Constraint{v}
}

// Trivial reports whether c imposes no restriction: it is empty or contains All.
func (c Constraint) Trivial() bool {
	if len(c) == 0 {
		return true
	}
	for _, v := range c {
		if _, ok := v.(Sentinel); ok {
			return true
		}
	}
	return false
}

// Spec maps column names to constraints (AND semantics across columns).
type Spec map[string]Constraint

// Active returns only the non-trivial constraints of spec.
func Active(spec Spec) Spec {
	out := make(Spec, len(spec))
	for col, c := range spec {
		if !c.Trivial() {
			out[col] = c
		}
	}
	return out
}

// Filter converts spec into a record filter built from In and And.
// Columns are combined in sorted order so the result is deterministic.
func (s Spec) Filter() core.Filter {
	active := Active(s)
	cols := make([]string, 0, len(active))
	for col := range active {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	filters := make([]core.Filter, 0, len(cols))
	for _, col := range cols {
		filters = append(filters, In(col, active[col]...))
	}
	return And(filters...)
}

// ParseSpec builds a Spec from "Column=v1,v2" expressions. Repeating a column
// extends its constraint; the value "All" maps to All. Empty values are rejected.
func ParseSpec(exprs []string) (Spec, error) {
	spec := make(Spec)
	for _, expr := range exprs {
		col, raw, ok := strings.Cut(expr, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid filter %q: expected Column=value[,value...]", expr)
		}
		for _, v := range strings.Split(raw, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				return nil, fmt.Errorf("invalid filter %q: empty value", expr)
			}
			if v == All.String() {
				spec[col] = append(spec[col], All)
				continue
			}
			spec[col] = append(spec[col], v)
		}
	}
	return spec, nil
}

// Options returns, per requested column, All followed by the column's distinct
// non-missing values in ascending order. A column the relation lacks yields just [All].
func Options(rel *core.Relation, columns ...string) map[string][]interface{} {
	out := make(map[string][]interface{}, len(columns))
	for _, col := range columns {
		choices := []interface{}{All}
		if !rel.HasColumn(col) {
			out[col] = choices
			continue
		}

		seen := make(map[string]bool)
		var distinct []interface{}
		for _, v := range rel.Values(col) {
			if core.IsMissing(v) {
				continue
			}
			key := core.ValueKey(v)
			if seen[key] {
				continue
			}
			seen[key] = true
			distinct = append(distinct, v)
		}
		sort.SliceStable(distinct, func(i, j int) bool {
			return core.CompareValues(distinct[i], distinct[j]) < 0
		})
		out[col] = append(choices, distinct...)
	}
	return out
}

// Apply returns the rows of rel satisfying every non-trivial constraint in spec, in
// their original order. rel is not modified. A constraint on a column rel does not
// have returns ErrUnknownColumn.
func Apply(ctx context.Context, rel *core.Relation, spec Spec) (*core.Relation, error) {
	active := Active(spec)
	for col := range active {
		if !rel.HasColumn(col) {
			return nil, fmt.Errorf("filter %s: %w", col, ErrUnknownColumn)
		}
	}

	return Where(ctx, rel, spec.Filter())
}

// Where returns the rows of rel that f includes, in their original order.
func Where(ctx context.Context, rel *core.Relation, f core.Filter) (*core.Relation, error) {
	indices := make([]int, 0, rel.Len())
	for i := 0; i < rel.Len(); i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		include, err := f.ShouldInclude(ctx, rel.Row(i))
		if err != nil {
			return nil, err
		}
		if include {
			indices = append(indices, i)
		}
	}
	return rel.Subset(indices), nil
}
