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

package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// This file contains value helpers shared by filtering, grouping and detection.

// ToFloat64 converts numeric values and numeric strings to float64.
// The second result is false for nil, NaN and anything non-numeric.
func ToFloat64(value interface{}) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// IsMissing reports whether value represents a missing cell.
func IsMissing(value interface{}) bool {
	if value == nil {
		return true
	}
	if f, ok := value.(float64); ok && math.IsNaN(f) {
		return true
	}
	return false
}

// ValueKey returns the canonical string form used to compare cell values across types,
// so that the int 2023, the float 2023 and the string "2023" share one key.
func ValueKey(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

// CompareValues orders two cell values: numbers numerically, strings lexically,
// and numbers before strings when the kinds differ. Returns -1, 0 or 1.
func CompareValues(a, b interface{}) int {
	af, aNum := numeric(a)
	bf, bNum := numeric(b)
	switch {
	case aNum && bNum:
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case aNum:
		return -1
	case bNum:
		return 1
	}
	as, bs := ValueKey(a), ValueKey(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}

// numeric is ToFloat64 without string parsing, so "10" sorts as text.
func numeric(value interface{}) (float64, bool) {
	if _, ok := value.(string); ok {
		return 0, false
	}
	return ToFloat64(value)
}
