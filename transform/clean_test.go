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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tradeflow/core"
)

// TestQuantityValue tests numeric extraction from noisy quantity cells
func TestQuantityValue(t *testing.T) {
	tests := []struct {
		in   interface{}
		want float64
	}{
		{"1,200 Kgs", 1200},
		{"800", 800},
		{" 12.5 MT ", 12.5},
		{"Kgs", 0},
		{"", 0},
		{"1.2.3", 0},
		{nil, 0},
		{1500, 1500},
		{2.5, 2.5},
		{1e21, 1e21},
		{math.NaN(), 0},
		{"-40", 40},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuantityValue(tt.in), "input %#v", tt.in)
	}
}

// TestMonthValue tests canonical month spellings
func TestMonthValue(t *testing.T) {
	tests := []struct {
		in   interface{}
		want interface{}
	}{
		{"sept", "Sep"},
		{" SEPTEMBER ", "Sep"},
		{"Sep", "Sep"},
		{"oct", "Oct"},
		{"january", "Jan"},
		{"may", "May"},
		{"Smarch", "Smarch"},
		{nil, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MonthValue(tt.in), "input %#v", tt.in)
	}
}

// TestYearValue tests year coercion
func TestYearValue(t *testing.T) {
	tests := []struct {
		in   interface{}
		want interface{}
	}{
		{"2023", 2023},
		{"2023.0", 2023},
		{" 2024 ", 2024},
		{2022, 2022},
		{int64(2021), 2021},
		{2020.0, 2020},
		{2020.5, nil},
		{"FY23", nil},
		{"", nil},
		{nil, nil},
		{true, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, YearValue(tt.in), "input %#v", tt.in)
	}
}

// TestCleaners_AbsentColumn tests that missing columns are skipped silently
func TestCleaners_AbsentColumn(t *testing.T) {
	in := core.Record{"State": "CA"}
	for _, tr := range []core.Transformer{CleanQuantity(), CanonicalMonth(), CoerceYear(), DeriveQuarter()} {
		out, err := tr.Transform(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, core.Record{"State": "CA"}, out)
	}
}

// TestCleaners_Scenario tests the full cleaning chain on two upload rows
func TestCleaners_Scenario(t *testing.T) {
	rows := []core.Record{
		{"Month": "sept", "Quantity": "1,200 Kgs", "Year": "2023", "State": "CA"},
		{"Month": "Oct", "Quantity": "800", "Year": "2024", "State": "NY"},
	}
	chain := []core.Transformer{CleanQuantity(), CanonicalMonth(), CoerceYear(), DeriveQuarter()}

	var out []core.Record
	for _, row := range rows {
		rec := row
		for _, tr := range chain {
			var err error
			rec, err = tr.Transform(context.Background(), rec)
			require.NoError(t, err)
		}
		out = append(out, rec)
	}

	assert.Equal(t, "Sep", out[0]["Month"])
	assert.Equal(t, "Oct", out[1]["Month"])
	assert.Equal(t, "Q3", out[0]["Quarter"])
	assert.Equal(t, "Q4", out[1]["Quarter"])
	assert.Equal(t, 1200.0, out[0]["Quantity"])
	assert.Equal(t, 800.0, out[1]["Quantity"])
	assert.Equal(t, 2023, out[0]["Year"])

	// inputs are untouched
	assert.Equal(t, "sept", rows[0]["Month"])
}
