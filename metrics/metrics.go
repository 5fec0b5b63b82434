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

// Package metrics computes headline KPIs and breakdowns over a view of trade records.
package metrics

import (
	"context"
	"fmt"
	"strings"

	"github.com/aaronlmathis/tradeflow/aggregate"
	"github.com/aaronlmathis/tradeflow/core"
)

// MoMMethod selects how month-over-month growth picks its two periods.
type MoMMethod int

const (
	// MoMCalendar compares the latest (Year, Month) period with the calendar month before it.
	MoMCalendar MoMMethod = iota
	// MoMEncounter groups by Month alone and compares the last two groups in row order.
	MoMEncounter
	// MoMLexical groups by Month alone and compares the last two month names in text order.
	MoMLexical
)

var momNames = map[MoMMethod]string{
	MoMCalendar:  "calendar",
	MoMEncounter: "encounter",
	MoMLexical:   "lexical",
}

func (m MoMMethod) String() string {
	if name, ok := momNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MoMMethod(%d)", int(m))
}

// ParseMoMMethod maps "calendar", "encounter" or "lexical" to a MoMMethod.
func ParseMoMMethod(s string) (MoMMethod, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range momNames {
		if name == s {
			return m, nil
		}
	}
	return MoMCalendar, fmt.Errorf("unknown mom method %q (want calendar, encounter or lexical)", s)
}

// KPIs is the headline metric bundle for a view.
type KPIs struct {
	TotalQuantity  float64 `json:"total_quantity"`
	DistinctStates int     `json:"distinct_states"`
	YoYGrowth      float64 `json:"yoy_growth"`
	MoMGrowth      float64 `json:"mom_growth"`
}

// Options configures KPI computation and breakdowns.
type Options struct {
	MoMMethod MoMMethod
	// Stat is the per-group statistic of a breakdown.
	Stat Stat
	// SortByValue orders breakdowns by descending statistic instead of by key.
	SortByValue bool
}

// Option is a functional option for Compute and the breakdown functions.
type Option func(*Options)

// WithMoMMethod selects the month-over-month method.
func WithMoMMethod(m MoMMethod) Option {
	return func(o *Options) { o.MoMMethod = m }
}

// WithStat selects the breakdown statistic. The default is StatSum.
func WithStat(s Stat) Option {
	return func(o *Options) { o.Stat = s }
}

// WithSortByValue orders breakdowns largest first.
func WithSortByValue() Option {
	return func(o *Options) { o.SortByValue = true }
}

func buildOptions(options []Option) Options {
	opts := Options{MoMMethod: MoMCalendar, Stat: StatSum}
	for _, option := range options {
		option(&opts)
	}
	return opts
}

const (
	outQuantity = "quantity"
	outStates   = "states"
)

// Compute returns the KPI bundle for view. An empty or nil view yields all zeros.
// Growth figures are percentages; either is 0 when its earlier period is absent or 0.
func Compute(ctx context.Context, view *core.Relation, options ...Option) (KPIs, error) {
	opts := buildOptions(options)

	var k KPIs
	if view.Len() == 0 {
		return k, nil
	}
	rows := view.Rows()

	totals, err := aggregate.NewGroupBy().
		Sum(core.ColumnQuantity, outQuantity).
		Distinct(core.ColumnState, outStates).
		Process(ctx, rows)
	if err != nil {
		return KPIs{}, err
	}
	k.TotalQuantity = totals[0].Float(outQuantity)
	k.DistinctStates = totals[0].Values[outStates].(int)

	if k.YoYGrowth, err = yoy(ctx, rows); err != nil {
		return KPIs{}, err
	}

	switch opts.MoMMethod {
	case MoMEncounter, MoMLexical:
		k.MoMGrowth, err = momByMonth(ctx, rows, opts.MoMMethod == MoMLexical)
	default:
		k.MoMGrowth, err = momCalendar(ctx, rows)
	}
	if err != nil {
		return KPIs{}, err
	}
	return k, nil
}

// growth is the percentage change from prev to last, or 0 when prev is 0.
func growth(prev, last float64) float64 {
	if prev == 0 {
		return 0
	}
	return (last - prev) / prev * 100
}

func yoy(ctx context.Context, rows []core.Record) (float64, error) {
	groups, err := aggregate.NewGroupBy(core.ColumnYear).
		DropMissing().
		Sum(core.ColumnQuantity, outQuantity).
		Process(ctx, rows)
	if err != nil {
		return 0, err
	}
	if len(groups) < 2 {
		return 0, nil
	}
	aggregate.SortByKey(groups)
	n := len(groups)
	return growth(groups[n-2].Float(outQuantity), groups[n-1].Float(outQuantity)), nil
}

func momByMonth(ctx context.Context, rows []core.Record, lexical bool) (float64, error) {
	groups, err := aggregate.NewGroupBy(core.ColumnMonth).
		DropMissing().
		Sum(core.ColumnQuantity, outQuantity).
		Process(ctx, rows)
	if err != nil {
		return 0, err
	}
	if len(groups) < 2 {
		return 0, nil
	}
	if lexical {
		aggregate.SortByKeyText(groups)
	}
	n := len(groups)
	return growth(groups[n-2].Float(outQuantity), groups[n-1].Float(outQuantity)), nil
}

func momCalendar(ctx context.Context, rows []core.Record) (float64, error) {
	periods, err := Periods(ctx, rows)
	if err != nil || len(periods) == 0 {
		return 0, err
	}
	last := periods[len(periods)-1]
	want := last.Period.Previous()
	for _, p := range periods {
		if p.Period == want {
			return growth(p.Quantity, last.Quantity), nil
		}
	}
	return 0, nil
}
