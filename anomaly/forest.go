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
	"math/rand"
	"sort"
)

const eulerGamma = 0.5772156649015329

// IsolationForest scores values by how quickly random splits isolate them and flags
// the top Contamination fraction. A given Seed always yields the same flags.
type IsolationForest struct {
	Trees         int
	SampleSize    int
	Contamination float64
	Seed          int64
}

type isoNode struct {
	split       float64
	left, right *isoNode
	size        int
}

// Flag implements Detector. Fewer than two values, or a sample whose scores are all
// equal, flags nothing.
func (f *IsolationForest) Flag(values []float64) []bool {
	n := len(values)
	flags := make([]bool, n)
	if n < 2 {
		return flags
	}

	psi := f.SampleSize
	if psi > n {
		psi = n
	}
	limit := int(math.Ceil(math.Log2(float64(psi))))
	rng := rand.New(rand.NewSource(f.Seed))

	trees := make([]*isoNode, f.Trees)
	sample := make([]float64, psi)
	for t := range trees {
		for i, idx := range rng.Perm(n)[:psi] {
			sample[i] = values[idx]
		}
		trees[t] = buildTree(rng, append([]float64(nil), sample...), 0, limit)
	}

	norm := averagePath(psi)
	scores := make([]float64, n)
	for i, v := range values {
		var total float64
		for _, tree := range trees {
			total += pathLength(tree, v, 0)
		}
		scores[i] = math.Pow(2, -(total/float64(len(trees)))/norm)
	}

	ranked := append([]float64(nil), scores...)
	sort.Sort(sort.Reverse(sort.Float64Slice(ranked)))
	if ranked[0] == ranked[n-1] {
		return flags
	}
	k := int(math.Ceil(f.Contamination * float64(n)))
	if k < 1 {
		k = 1
	}
	cut := ranked[k-1]
	for i, s := range scores {
		flags[i] = s >= cut
	}
	return flags
}

func buildTree(rng *rand.Rand, data []float64, depth, limit int) *isoNode {
	if depth >= limit || len(data) <= 1 {
		return &isoNode{size: len(data)}
	}
	lo, hi := data[0], data[0]
	for _, v := range data[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return &isoNode{size: len(data)}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right []float64
	for _, v := range data {
		if v < split {
			left = append(left, v)
		} else {
			right = append(right, v)
		}
	}
	return &isoNode{
		split: split,
		left:  buildTree(rng, left, depth+1, limit),
		right: buildTree(rng, right, depth+1, limit),
	}
}

func pathLength(node *isoNode, v float64, depth int) float64 {
	if node.left == nil {
		return float64(depth) + averagePath(node.size)
	}
	if v < node.split {
		return pathLength(node.left, v, depth+1)
	}
	return pathLength(node.right, v, depth+1)
}

// averagePath is the mean path length of an unsuccessful search in a binary search
// tree of n nodes, used to normalise depths.
func averagePath(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	m := float64(n)
	return 2*(math.Log(m-1)+eulerGamma) - 2*(m-1)/m
}
