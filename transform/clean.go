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
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/aaronlmathis/tradeflow/core"
)

// monthAliases folds the spellings seen in uploads onto the three-letter form.
var monthAliases = map[string]string{
	"January":   "Jan",
	"February":  "Feb",
	"March":     "Mar",
	"April":     "Apr",
	"June":      "Jun",
	"July":      "Jul",
	"August":    "Aug",
	"Sept":      "Sep",
	"September": "Sep",
	"October":   "Oct",
	"November":  "Nov",
	"December":  "Dec",
}

// QuantityValue reduces a raw quantity cell to a number.
//
// The cell is stringified (floats without exponent), every character other than a
// digit or '.' is dropped and the rest parsed. Anything that does not parse is 0,
// so "1,200 Kgs" is 1200 and "1.2.3" is 0.
func QuantityValue(value interface{}) float64 {
	var s string
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		s = core.ValueKey(v)
	}

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return f
}

// MonthValue returns the canonical spelling of a month cell, or nil for nil.
// Unrecognised text is returned trimmed and title-cased.
func MonthValue(value interface{}) interface{} {
	if core.IsMissing(value) {
		return nil
	}
	month := cases.Title(language.Und).String(strings.TrimSpace(core.ValueKey(value)))
	if alias, ok := monthAliases[month]; ok {
		return alias
	}
	return month
}

// YearValue coerces a year cell to an int, or nil when it is not a whole number.
func YearValue(value interface{}) interface{} {
	var f float64
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		parsed, ok := core.ToFloat64(v)
		if !ok {
			return nil
		}
		f = parsed
	}
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return nil
	}
	return int(f)
}

// CleanQuantity rewrites the Quantity column with QuantityValue. It never fails.
func CleanQuantity() core.Transformer {
	return Update(core.ColumnQuantity, func(v interface{}) interface{} { return QuantityValue(v) })
}

// CanonicalMonth rewrites the Month column with MonthValue.
func CanonicalMonth() core.Transformer {
	return Update(core.ColumnMonth, MonthValue)
}

// CoerceYear rewrites the Year column with YearValue.
func CoerceYear() core.Transformer {
	return Update(core.ColumnYear, YearValue)
}
