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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tradeflow/core"
)

func sampleRelation() *core.Relation {
	cols := []string{"State", "Year", "Quantity", "Month"}
	return core.NewRelation(cols, []core.Record{
		{"State": "CA", "Year": 2023, "Quantity": 10.0, "Month": "Jan"},
		{"State": "NY", "Year": 2023, "Quantity": 20.0, "Month": "Feb"},
		{"State": "CA", "Year": 2024, "Quantity": 30.0, "Month": "Feb"},
		{"State": "TX", "Year": nil, "Quantity": 40.0, "Month": nil},
		{"State": "NY", "Year": 2024, "Quantity": 50.0, "Month": "Mar"},
	})
}

func states(rel *core.Relation) []interface{} {
	return rel.Values("State")
}

// TestApply_EmptySpec tests that an empty spec keeps every row in order
func TestApply_EmptySpec(t *testing.T) {
	rel := sampleRelation()
	out, err := Apply(context.Background(), rel, Spec{})
	require.NoError(t, err)
	assert.Equal(t, rel.Rows(), out.Rows())
	assert.Equal(t, rel.Columns(), out.Columns())

	out, err = Apply(context.Background(), rel, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Len())
}

// TestApply_Semantics tests AND across columns and OR within a constraint
func TestApply_Semantics(t *testing.T) {
	rel := sampleRelation()
	ctx := context.Background()

	out, err := Apply(ctx, rel, Spec{"State": {"CA", "NY"}})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"CA", "NY", "CA", "NY"}, states(out))

	out, err = Apply(ctx, rel, Spec{"State": {"CA", "NY"}, "Year": Value(2024)})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"CA", "NY"}, states(out))
	assert.Equal(t, []interface{}{30.0, 50.0}, out.Values("Quantity"))

	// the string form of a value matches the typed cell
	out, err = Apply(ctx, rel, Spec{"Year": {"2023"}})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())

	out, err = Apply(ctx, rel, Spec{"State": {"FL"}})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Len())
	assert.Equal(t, rel.Columns(), out.Columns())
}

// TestApply_TrivialConstraints tests All and empty constraints
func TestApply_TrivialConstraints(t *testing.T) {
	rel := sampleRelation()
	out, err := Apply(context.Background(), rel, Spec{"State": {All}, "Year": {}, "Month": {"Feb", All}})
	require.NoError(t, err)
	assert.Equal(t, 5, out.Len())
}

// TestApply_Idempotent tests that filtering a filtered view changes nothing
func TestApply_Idempotent(t *testing.T) {
	rel := sampleRelation()
	spec := Spec{"Month": {"Feb", "Mar"}}

	once, err := Apply(context.Background(), rel, spec)
	require.NoError(t, err)
	twice, err := Apply(context.Background(), once, spec)
	require.NoError(t, err)
	assert.Equal(t, once.Rows(), twice.Rows())

	// input untouched
	assert.Equal(t, 5, rel.Len())
}

// TestApply_UnknownColumn tests constraints on absent columns
func TestApply_UnknownColumn(t *testing.T) {
	_, err := Apply(context.Background(), sampleRelation(), Spec{"Exporter": {"Acme"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownColumn))

	// trivial constraints on absent columns are ignored
	_, err = Apply(context.Background(), sampleRelation(), Spec{"Exporter": {All}})
	assert.NoError(t, err)
}

// TestApply_Cancelled tests context cancellation
func TestApply_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Apply(ctx, sampleRelation(), Spec{})
	assert.ErrorIs(t, err, context.Canceled)
}

// TestOptions tests choice enumeration
func TestOptions(t *testing.T) {
	opts := Options(sampleRelation(), "State", "Year", "Month", "Exporter")

	assert.Equal(t, []interface{}{All, "CA", "NY", "TX"}, opts["State"])
	assert.Equal(t, []interface{}{All, 2023, 2024}, opts["Year"])
	assert.Equal(t, []interface{}{All, "Feb", "Jan", "Mar"}, opts["Month"])
	assert.Equal(t, []interface{}{All}, opts["Exporter"])
}

// TestOptions_SubsetInvariant tests that every offered value selects at least one row
func TestOptions_SubsetInvariant(t *testing.T) {
	rel := sampleRelation()
	for col, choices := range Options(rel, "State", "Year", "Month") {
		for _, v := range choices[1:] {
			out, err := Apply(context.Background(), rel, Spec{col: Value(v)})
			require.NoError(t, err)
			assert.NotZero(t, out.Len(), "%s=%v", col, v)
		}
	}
}

// TestActive tests dropping trivial constraints
func TestActive(t *testing.T) {
	active := Active(Spec{"State": {All}, "Year": {2023}, "Month": nil})
	assert.Equal(t, Spec{"Year": {2023}}, active)
	assert.Equal(t, "All", All.String())
}

// TestParseSpec tests parsing command-line filter expressions
func TestParseSpec(t *testing.T) {
	spec, err := ParseSpec([]string{"State=CA, NY", "Year=2023", "State=TX", "Month=All"})
	require.NoError(t, err)
	assert.Equal(t, Constraint{"CA", "NY", "TX"}, spec["State"])
	assert.Equal(t, Constraint{"2023"}, spec["Year"])
	assert.True(t, spec["Month"].Trivial())

	_, err = ParseSpec([]string{"no-equals"})
	assert.Error(t, err)
	_, err = ParseSpec([]string{"=CA"})
	assert.Error(t, err)
}

// TestParseSpec_EmptyValue tests that blank values are rejected instead of matching missing cells
func TestParseSpec_EmptyValue(t *testing.T) {
	for _, expr := range []string{"Year=", "Year= ", "State=CA,", "State=CA,,NY"} {
		_, err := ParseSpec([]string{expr})
		require.Error(t, err, expr)
		assert.Contains(t, err.Error(), "empty value")
	}

	rel := sampleRelation()
	out, err := Apply(context.Background(), rel, Spec{"Year": {""}})
	require.NoError(t, err)
	assert.Zero(t, out.Len())
}
