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

package anomaly

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tradeflow/core"
)

func quantities(values ...interface{}) *core.Relation {
	rows := make([]core.Record, len(values))
	for i, v := range values {
		rows[i] = core.Record{"State": "CA", "Quantity": v}
	}
	return core.NewRelation([]string{"State", "Quantity"}, rows)
}

// TestDetect_IQR tests the interquartile fence on a single extreme value
func TestDetect_IQR(t *testing.T) {
	view := quantities(10.0, 12.0, 11.0, 13.0, 1000.0)
	out, err := Detect(context.Background(), view, "Quantity", MethodIQR, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, []bool{false, false, false, false, true}, Flags(out))
	assert.Equal(t, []string{"State", "Quantity", "is_anomaly"}, out.Columns())

	// the input view is not annotated
	assert.False(t, view.HasColumn(core.ColumnAnomaly))
	assert.NotContains(t, view.Row(0), core.ColumnAnomaly)
}

// TestDetect_ZScore tests standardisation with both deviation flavours
func TestDetect_ZScore(t *testing.T) {
	values := make([]interface{}, 0, 21)
	for i := 0; i < 20; i++ {
		values = append(values, 10.0)
	}
	values = append(values, 100.0)
	view := quantities(values...)

	out, err := Detect(context.Background(), view, "Quantity", MethodZScore, DefaultParams())
	require.NoError(t, err)
	flags := Flags(out)
	assert.True(t, flags[20])
	for _, f := range flags[:20] {
		assert.False(t, f)
	}

	p := DefaultParams()
	p.PopulationStdDev = true
	out, err = Detect(context.Background(), view, "Quantity", MethodZScore, p)
	require.NoError(t, err)
	assert.True(t, Flags(out)[20])
}

// TestDetect_ZScoreDegenerate tests constant and tiny samples
func TestDetect_ZScoreDegenerate(t *testing.T) {
	out, err := Detect(context.Background(), quantities(5.0, 5.0, 5.0), "Quantity", MethodZScore, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false}, Flags(out))

	out, err = Detect(context.Background(), quantities(5.0), "Quantity", MethodZScore, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, Flags(out))
}

// TestDetect_Preconditions tests empty views, absent columns and bad cells
func TestDetect_Preconditions(t *testing.T) {
	ctx := context.Background()

	out, err := Detect(ctx, quantities(), "Quantity", MethodIQR, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.True(t, out.HasColumn(core.ColumnAnomaly))

	out, err = Detect(ctx, quantities(1.0, 2.0), "Weight", MethodIQR, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, Flags(out))

	out, err = Detect(ctx, quantities(10.0, nil, 12.0, "n/a", 11.0, 13.0, 1000.0), "Quantity", MethodIQR, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false, false, false, false, true}, Flags(out))
}

// TestDetect_UnknownMethod tests method validation
func TestDetect_UnknownMethod(t *testing.T) {
	_, err := Detect(context.Background(), quantities(1.0), "Quantity", Method("lof"), DefaultParams())
	require.Error(t, err)
	var unknown *UnknownMethodError
	assert.True(t, errors.As(err, &unknown))

	_, err = ParseMethod("median")
	assert.Error(t, err)

	m, err := ParseMethod(" IQR ")
	require.NoError(t, err)
	assert.Equal(t, MethodIQR, m)
}

// TestParams_Validate tests parameter bounds
func TestParams_Validate(t *testing.T) {
	p := DefaultParams()
	assert.NoError(t, p.Validate(MethodIsolationForest))

	p.Contamination = 0.6
	assert.Error(t, p.Validate(MethodIsolationForest))

	p = DefaultParams()
	p.Threshold = 0
	assert.Error(t, p.Validate(MethodZScore))

	p = DefaultParams()
	p.Multiplier = -1
	_, err := Detect(context.Background(), quantities(1.0), "Quantity", MethodIQR, p)
	assert.Error(t, err)
}

// TestQuantile tests linear interpolation between ranks
func TestQuantile(t *testing.T) {
	data := []float64{10, 11, 12, 13, 1000}
	assert.Equal(t, 11.0, quantile(data, 0.25))
	assert.Equal(t, 13.0, quantile(data, 0.75))
	assert.InDelta(t, 1.75, quantile([]float64{1, 2, 3, 4}, 0.25), 1e-12)
	assert.Equal(t, 7.0, quantile([]float64{7}, 0.75))
}
