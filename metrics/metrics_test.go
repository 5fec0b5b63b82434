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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tradeflow/core"
)

var cols = []string{"Month", "Quantity", "Year", "State", "Quarter"}

func rel(rows ...core.Record) *core.Relation {
	return core.NewRelation(cols, rows)
}

func row(month string, qty float64, year int, state string) core.Record {
	return core.Record{"Month": month, "Quantity": qty, "Year": year, "State": state}
}

// TestCompute_Empty tests that an empty view yields zeros
func TestCompute_Empty(t *testing.T) {
	k, err := Compute(context.Background(), rel())
	require.NoError(t, err)
	assert.Equal(t, KPIs{}, k)

	k, err = Compute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, KPIs{}, k)
}

// TestCompute_Scenario tests totals and year-over-year growth
func TestCompute_Scenario(t *testing.T) {
	k, err := Compute(context.Background(), rel(
		row("Sep", 1200, 2023, "CA"),
		row("Oct", 800, 2024, "NY"),
	))
	require.NoError(t, err)

	assert.Equal(t, 2000.0, k.TotalQuantity)
	assert.Equal(t, 2, k.DistinctStates)
	assert.InDelta(t, -33.33, k.YoYGrowth, 0.01)
	// Sep 2024 has no rows
	assert.Equal(t, 0.0, k.MoMGrowth)
}

// TestCompute_SingleYear tests that one distinct year gives zero YoY
func TestCompute_SingleYear(t *testing.T) {
	k, err := Compute(context.Background(), rel(
		row("Jan", 100, 2023, "CA"),
		row("Feb", 150, 2023, "CA"),
		core.Record{"Month": "Mar", "Quantity": 50.0, "Year": nil, "State": nil},
	))
	require.NoError(t, err)
	assert.Equal(t, 0.0, k.YoYGrowth)
	assert.Equal(t, 300.0, k.TotalQuantity)
	assert.Equal(t, 1, k.DistinctStates)
	assert.InDelta(t, 50.0, k.MoMGrowth, 1e-9)
}

// TestCompute_YoYZeroBase tests that a zero previous year gives zero growth
func TestCompute_YoYZeroBase(t *testing.T) {
	k, err := Compute(context.Background(), rel(
		row("Jan", 0, 2022, "CA"),
		row("Jan", 100, 2023, "CA"),
	))
	require.NoError(t, err)
	assert.Equal(t, 0.0, k.YoYGrowth)
}

// TestCompute_MoMMethods tests the three month-over-month methods
func TestCompute_MoMMethods(t *testing.T) {
	view := rel(
		row("Dec", 200, 2023, "CA"),
		row("Jan", 300, 2024, "CA"),
		row("Feb", 150, 2023, "NY"),
	)
	ctx := context.Background()

	// Jan 2024 against Dec 2023
	k, err := Compute(ctx, view)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, k.MoMGrowth, 1e-9)

	// encounter order: Jan (300) then Feb (150)
	k, err = Compute(ctx, view, WithMoMMethod(MoMEncounter))
	require.NoError(t, err)
	assert.InDelta(t, -50.0, k.MoMGrowth, 1e-9)

	// text order: Dec, Feb, Jan
	k, err = Compute(ctx, view, WithMoMMethod(MoMLexical))
	require.NoError(t, err)
	assert.InDelta(t, 100.0, k.MoMGrowth, 1e-9)
}

// TestParseMoMMethod tests method parsing
func TestParseMoMMethod(t *testing.T) {
	for _, m := range []MoMMethod{MoMCalendar, MoMEncounter, MoMLexical} {
		got, err := ParseMoMMethod(" " + m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMoMMethod("weekly")
	assert.Error(t, err)
	assert.Equal(t, "MoMMethod(9)", MoMMethod(9).String())
}
