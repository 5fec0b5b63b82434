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
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// ZScore flags values more than Threshold standard deviations from the mean.
type ZScore struct {
	Threshold  float64
	Population bool
}

// Flag implements Detector. Fewer than two values or zero deviation flags nothing.
func (z *ZScore) Flag(values []float64) []bool {
	flags := make([]bool, len(values))
	if len(values) < 2 {
		return flags
	}
	data := stats.Float64Data(values)
	mean, err := stats.Mean(data)
	if err != nil {
		return flags
	}
	var sd float64
	if z.Population {
		sd, err = stats.StandardDeviationPopulation(data)
	} else {
		sd, err = stats.StandardDeviationSample(data)
	}
	if err != nil || sd == 0 || math.IsNaN(sd) {
		return flags
	}
	for i, v := range values {
		flags[i] = math.Abs((v-mean)/sd) > z.Threshold
	}
	return flags
}

// IQR flags values outside [Q1 - k*IQR, Q3 + k*IQR].
type IQR struct {
	Multiplier float64
}

// Flag implements Detector.
func (q *IQR) Flag(values []float64) []bool {
	flags := make([]bool, len(values))
	if len(values) == 0 {
		return flags
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	spread := q3 - q1
	lo, hi := q1-q.Multiplier*spread, q3+q.Multiplier*spread
	for i, v := range values {
		flags[i] = v < lo || v > hi
	}
	return flags
}

// quantile interpolates linearly between the closest ranks of sorted data,
// placing quantile p at position (n-1)*p.
func quantile(sorted []float64, p float64) float64 {
	pos := float64(len(sorted)-1) * p
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}
