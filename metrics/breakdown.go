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

package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aaronlmathis/tradeflow/aggregate"
	"github.com/aaronlmathis/tradeflow/core"
)

var monthIndex = map[string]int{
	"Jan": 1, "Feb": 2, "Mar": 3, "Apr": 4, "May": 5, "Jun": 6,
	"Jul": 7, "Aug": 8, "Sep": 9, "Oct": 10, "Nov": 11, "Dec": 12,
}

var monthNames = [...]string{"", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Breakdown is the total quantity for one key.
type Breakdown struct {
	Key      interface{} `json:"key"`
	Quantity float64     `json:"quantity"`
}

// Period is a calendar month.
type Period struct {
	Year  int
	Month int
}

// Previous returns the calendar month before p.
func (p Period) Previous() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

func (p Period) before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

func (p Period) String() string {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Sprintf("%d-%02d", p.Year, p.Month)
	}
	return fmt.Sprintf("%s %d", monthNames[p.Month], p.Year)
}

// PeriodTotal is the total quantity for one calendar month.
type PeriodTotal struct {
	Period   Period  `json:"period"`
	Quantity float64 `json:"quantity"`
}

// Stat is the statistic a breakdown reports over the Quantity of each group.
type Stat int

const (
	StatSum Stat = iota
	StatAvg
	StatMin
	StatMax
	StatCount
)

var statNames = map[Stat]string{
	StatSum:   "sum",
	StatAvg:   "avg",
	StatMin:   "min",
	StatMax:   "max",
	StatCount: "count",
}

func (s Stat) String() string {
	if name, ok := statNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Stat(%d)", int(s))
}

// ParseStat maps "sum", "avg", "min", "max" or "count" to a Stat.
func ParseStat(s string) (Stat, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for stat, name := range statNames {
		if name == s {
			return stat, nil
		}
	}
	return StatSum, fmt.Errorf("unknown statistic %q (want sum, avg, min, max or count)", s)
}

// groupBy returns a GroupBy over fields that computes stat of Quantity into outQuantity.
func groupBy(stat Stat, fields ...string) *aggregate.GroupBy {
	g := aggregate.NewGroupBy(fields...).DropMissing()
	switch stat {
	case StatAvg:
		return g.Avg(core.ColumnQuantity, outQuantity)
	case StatMin:
		return g.Min(core.ColumnQuantity, outQuantity)
	case StatMax:
		return g.Max(core.ColumnQuantity, outQuantity)
	case StatCount:
		return g.Count(outQuantity)
	default:
		return g.Sum(core.ColumnQuantity, outQuantity)
	}
}

// Periods returns quantity totals per (Year, Month) in chronological order.
// Rows without an integer Year or a canonical Month are left out.
func Periods(ctx context.Context, rows []core.Record) ([]PeriodTotal, error) {
	return periods(ctx, rows, StatSum)
}

func periods(ctx context.Context, rows []core.Record, stat Stat) ([]PeriodTotal, error) {
	groups, err := groupBy(stat, core.ColumnYear, core.ColumnMonth).Process(ctx, rows)
	if err != nil {
		return nil, err
	}

	var out []PeriodTotal
	for _, g := range groups {
		year, ok := g.Key[0].(int)
		if !ok {
			continue
		}
		month, _ := g.Key[1].(string)
		m, ok := monthIndex[month]
		if !ok {
			continue
		}
		out = append(out, PeriodTotal{Period: Period{Year: year, Month: m}, Quantity: g.Float(outQuantity)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Period.before(out[j].Period) })
	return out, nil
}

// QuantityByState returns total quantity per State, ordered by state.
// WithStat and WithSortByValue change the statistic and the order.
func QuantityByState(ctx context.Context, view *core.Relation, options ...Option) ([]Breakdown, error) {
	return breakdown(ctx, view, core.ColumnState, buildOptions(options))
}

// QuantityByQuarter returns total quantity per Quarter, ordered Q1 to Q4.
func QuantityByQuarter(ctx context.Context, view *core.Relation, options ...Option) ([]Breakdown, error) {
	return breakdown(ctx, view, core.ColumnQuarter, buildOptions(options))
}

// QuantityByPeriod returns the monthly trend of view.
func QuantityByPeriod(ctx context.Context, view *core.Relation, options ...Option) ([]PeriodTotal, error) {
	opts := buildOptions(options)
	out, err := periods(ctx, view.Rows(), opts.Stat)
	if err != nil {
		return nil, err
	}
	if opts.SortByValue {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Quantity > out[j].Quantity })
	}
	return out, nil
}

func breakdown(ctx context.Context, view *core.Relation, column string, opts Options) ([]Breakdown, error) {
	if !view.HasColumn(column) {
		return nil, nil
	}
	groups, err := groupBy(opts.Stat, column).Process(ctx, view.Rows())
	if err != nil {
		return nil, err
	}
	aggregate.SortByKey(groups)
	if opts.SortByValue {
		aggregate.SortByValue(groups, outQuantity)
	}

	out := make([]Breakdown, 0, len(groups))
	for _, g := range groups {
		out = append(out, Breakdown{Key: g.Key[0], Quantity: g.Float(outQuantity)})
	}
	return out, nil
}
