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

// Package anomaly flags unusual values in a numeric column of a view.
//
// Three detectors share the Detector contract: ZScore and IQR are deterministic;
// IsolationForest is model-based and reproducible for a fixed seed.
package anomaly

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/aaronlmathis/tradeflow/core"
)

// Method names a detection method.
type Method string

const (
	MethodZScore          Method = "zscore"
	MethodIQR             Method = "iqr"
	MethodIsolationForest Method = "isolation_forest"
)

// ParseMethod normalises s and checks it names a known method.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MethodZScore, MethodIQR, MethodIsolationForest:
		return m, nil
	}
	return "", &UnknownMethodError{Method: s}
}

// UnknownMethodError is returned for a method name no detector implements.
type UnknownMethodError struct {
	Method string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown anomaly method %q (want zscore, iqr or isolation_forest)", e.Method)
}

// Params tunes the detectors. Fields irrelevant to a method are ignored.
type Params struct {
	// Threshold is the |z| above which zscore flags a value.
	Threshold float64
	// PopulationStdDev switches zscore from the sample to the population deviation.
	PopulationStdDev bool
	// Multiplier is the IQR fence factor k.
	Multiplier float64
	// Contamination is the fraction of values isolation_forest flags, in (0, 0.5].
	Contamination float64
	Seed          int64
	Trees         int
	SampleSize    int
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		Threshold:     3.0,
		Multiplier:    1.5,
		Contamination: 0.05,
		Seed:          42,
		Trees:         100,
		SampleSize:    256,
	}
}

// Validate checks the parameters used by method.
func (p Params) Validate(method Method) error {
	switch method {
	case MethodZScore:
		if p.Threshold <= 0 {
			return fmt.Errorf("zscore threshold must be positive, got %v", p.Threshold)
		}
	case MethodIQR:
		if p.Multiplier < 0 {
			return fmt.Errorf("iqr multiplier must not be negative, got %v", p.Multiplier)
		}
	case MethodIsolationForest:
		if p.Contamination <= 0 || p.Contamination > 0.5 {
			return fmt.Errorf("contamination must be in (0, 0.5], got %v", p.Contamination)
		}
		if p.Trees <= 0 || p.SampleSize < 2 {
			return fmt.Errorf("isolation forest needs trees > 0 and sample size >= 2")
		}
	}
	return nil
}

// Detector flags outliers in a sample. The result has one entry per value.
type Detector interface {
	Flag(values []float64) []bool
}

// New returns the detector for method.
func New(method Method, p Params) (Detector, error) {
	if err := p.Validate(method); err != nil {
		return nil, err
	}
	switch method {
	case MethodZScore:
		return &ZScore{Threshold: p.Threshold, Population: p.PopulationStdDev}, nil
	case MethodIQR:
		return &IQR{Multiplier: p.Multiplier}, nil
	case MethodIsolationForest:
		return &IsolationForest{
			Trees:         p.Trees,
			SampleSize:    p.SampleSize,
			Contamination: p.Contamination,
			Seed:          p.Seed,
		}, nil
	}
	return nil, &UnknownMethodError{Method: string(method)}
}

// Detect returns a copy of view with a boolean is_anomaly column.
//
// An empty view or an absent column flags every row false. Cells that are missing or
// not finite numbers are flagged false and left out of the statistics.
func Detect(ctx context.Context, view *core.Relation, column string, method Method, p Params) (*core.Relation, error) {
	detector, err := New(method, p)
	if err != nil {
		return nil, err
	}

	flags := make([]interface{}, view.Len())
	for i := range flags {
		flags[i] = false
	}
	if view.Len() == 0 || !view.HasColumn(column) {
		return view.WithColumn(core.ColumnAnomaly, flags), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var values []float64
	var positions []int
	for i, cell := range view.Values(column) {
		f, ok := core.ToFloat64(cell)
		if !ok || math.IsInf(f, 0) {
			continue
		}
		values = append(values, f)
		positions = append(positions, i)
	}

	for j, flagged := range detector.Flag(values) {
		flags[positions[j]] = flagged
	}
	return view.WithColumn(core.ColumnAnomaly, flags), nil
}

// Flags extracts the is_anomaly column of an annotated view.
func Flags(view *core.Relation) []bool {
	out := make([]bool, view.Len())
	for i, v := range view.Values(core.ColumnAnomaly) {
		out[i], _ = v.(bool)
	}
	return out
}
