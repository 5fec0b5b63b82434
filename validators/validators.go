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

// Package validators checks the data quality of a canonical relation.
//
// Checks never fail ingestion. They produce a Report whose issues are logged as
// warnings and shown by the inspect command.
package validators

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/aaronlmathis/tradeflow/core"
	"github.com/aaronlmathis/tradeflow/logger"
)

// DataQualityValidator holds the data quality rules for a relation.
type DataQualityValidator struct {
	MinRecords      int                       // Minimum number of records expected
	MaxNullRate     float64                   // Maximum null rate per required field (0 disables)
	RequiredFields  []string                  // Fields that should be present in every record
	FieldValidators map[string]FieldValidator // Per-field validation rules
	MaxIssues       int                       // Issues kept in the report (0 keeps all)
}

// FieldValidator defines validation rules for individual fields
type FieldValidator struct {
	DataType      FieldDataType                   // Expected data type
	Pattern       *regexp.Regexp                  // Regex pattern for string fields
	MinValue      *float64                        // Minimum value (for numeric fields)
	MaxValue      *float64                        // Maximum value (for numeric fields)
	AllowedValues []interface{}                   // Whitelist of allowed values, compared by core.ValueKey
	CustomFunc    func(interface{}) (bool, error) // Custom validation function
}

// FieldDataType represents expected data types for validation
type FieldDataType string

const (
	FieldTypeString FieldDataType = "string"
	FieldTypeInt    FieldDataType = "int"
	FieldTypeFloat  FieldDataType = "float"
	FieldTypeAny    FieldDataType = "any"
)

// Issue is one data quality finding. Row is -1 for findings about a whole field.
type Issue struct {
	Field   string `json:"field"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Row < 0 {
		return fmt.Sprintf("%s: %s", i.Field, i.Message)
	}
	return fmt.Sprintf("row %d %s: %s", i.Row, i.Field, i.Message)
}

// Report summarises a validation run.
type Report struct {
	Records     int                `json:"records"`
	NullRates   map[string]float64 `json:"null_rates"`
	Issues      []Issue            `json:"issues"`
	TotalIssues int                `json:"total_issues"`
}

// Passed reports whether no issue was found.
func (r *Report) Passed() bool {
	return r.TotalIssues == 0
}

// Log writes a summary and each kept issue as warnings.
func (r *Report) Log(ctx context.Context, log logger.Logger) {
	if r.Passed() {
		log.Debugf(ctx, "data quality: %d records, no issues", r.Records)
		return
	}
	log.Warnf(ctx, "data quality: %d issues across %d records", r.TotalIssues, r.Records)
	for _, issue := range r.Issues {
		log.Warnf(ctx, "data quality: %s", issue)
	}
}

func (r *Report) add(max int, issue Issue) {
	r.TotalIssues++
	if max == 0 || len(r.Issues) < max {
		r.Issues = append(r.Issues, issue)
	}
}

// Evaluate runs every rule over rel and returns the report. It only fails on
// context cancellation.
func (dqv *DataQualityValidator) Evaluate(ctx context.Context, rel *core.Relation) (*Report, error) {
	report := &Report{Records: rel.Len(), NullRates: make(map[string]float64)}

	if report.Records < dqv.MinRecords {
		report.add(dqv.MaxIssues, Issue{Field: "*", Row: -1,
			Message: fmt.Sprintf("insufficient records: got %d, expected at least %d", report.Records, dqv.MinRecords)})
	}
	if report.Records == 0 {
		return report, nil
	}

	rows := rel.Rows()
	dqv.checkNullRates(rel, rows, report)

	fields := make([]string, 0, len(dqv.FieldValidators))
	for field := range dqv.FieldValidators {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for idx, record := range rows {
		if idx%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for _, field := range fields {
			value, exists := record[field]
			if !exists || core.IsMissing(value) {
				continue
			}
			if msg := validateSingleFieldValue(value, dqv.FieldValidators[field]); msg != "" {
				report.add(dqv.MaxIssues, Issue{Field: field, Row: idx, Message: msg})
			}
		}
	}
	return report, nil
}

// checkNullRates records the null rate of every column and flags required fields
// that are absent or too sparse.
func (dqv *DataQualityValidator) checkNullRates(rel *core.Relation, rows []core.Record, report *Report) {
	for _, col := range rel.Columns() {
		nulls := 0
		for _, record := range rows {
			if v, exists := record[col]; !exists || core.IsMissing(v) {
				nulls++
			}
		}
		report.NullRates[col] = float64(nulls) / float64(len(rows))
	}

	for _, field := range dqv.RequiredFields {
		rate, present := report.NullRates[field]
		switch {
		case !present:
			report.add(dqv.MaxIssues, Issue{Field: field, Row: -1, Message: "missing required field"})
		case dqv.MaxNullRate > 0 && rate > dqv.MaxNullRate:
			report.add(dqv.MaxIssues, Issue{Field: field, Row: -1,
				Message: fmt.Sprintf("null rate %.2f exceeds maximum %.2f", rate, dqv.MaxNullRate)})
		}
	}
}

// validateSingleFieldValue returns a description of the first rule value breaks, or "".
func validateSingleFieldValue(value interface{}, validator FieldValidator) string {
	if !validateDataType(value, validator.DataType) {
		return fmt.Sprintf("value %v has type %T, expected %s", value, value, validator.DataType)
	}

	if validator.Pattern != nil {
		if str, ok := value.(string); ok && !validator.Pattern.MatchString(str) {
			return fmt.Sprintf("value %q does not match pattern", str)
		}
	}

	if val, ok := core.ToFloat64(value); ok {
		if validator.MinValue != nil && val < *validator.MinValue {
			return fmt.Sprintf("value %v below minimum %v", value, *validator.MinValue)
		}
		if validator.MaxValue != nil && val > *validator.MaxValue {
			return fmt.Sprintf("value %v above maximum %v", value, *validator.MaxValue)
		}
	}

	if len(validator.AllowedValues) > 0 {
		key := core.ValueKey(value)
		allowed := false
		for _, a := range validator.AllowedValues {
			if core.ValueKey(a) == key {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Sprintf("value %v not in allowed values", value)
		}
	}

	if validator.CustomFunc != nil {
		valid, err := validator.CustomFunc(value)
		if err != nil {
			return fmt.Sprintf("custom validation failed: %v", err)
		}
		if !valid {
			return "failed custom validation"
		}
	}
	return ""
}

// validateDataType checks if a value matches the expected data type
func validateDataType(value interface{}, expectedType FieldDataType) bool {
	switch expectedType {
	case FieldTypeString:
		_, ok := value.(string)
		return ok
	case FieldTypeInt:
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		}
		return false
	case FieldTypeFloat:
		switch value.(type) {
		case float32, float64:
			return true
		}
		return false
	default:
		return true
	}
}

// NewDataQualityValidator creates a basic data quality validator
func NewDataQualityValidator(minRecords int, requiredFields []string, options ...DataQualityOption) *DataQualityValidator {
	dqv := &DataQualityValidator{
		MinRecords:      minRecords,
		RequiredFields:  requiredFields,
		FieldValidators: make(map[string]FieldValidator),
	}
	for _, option := range options {
		option(dqv)
	}
	return dqv
}

// DataQualityOption is a functional option for configuring DataQualityValidator
type DataQualityOption func(*DataQualityValidator)

// WithMaxNullRate sets the maximum null value rate
func WithMaxNullRate(rate float64) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.MaxNullRate = rate
	}
}

// WithMaxIssues caps the number of issues kept in a report
func WithMaxIssues(n int) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		dqv.MaxIssues = n
	}
}

// WithFieldValidator adds a field-specific validator
func WithFieldValidator(fieldName string, validator FieldValidator) DataQualityOption {
	return func(dqv *DataQualityValidator) {
		if dqv.FieldValidators == nil {
			dqv.FieldValidators = make(map[string]FieldValidator)
		}
		dqv.FieldValidators[fieldName] = validator
	}
}

// TradeValidator returns the rules applied to every ingested trade relation.
func TradeValidator(required []string) *DataQualityValidator {
	zero := 0.0
	minYear, maxYear := 1900.0, 2100.0
	months := []interface{}{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

	return NewDataQualityValidator(1, required,
		WithMaxNullRate(0.5),
		WithMaxIssues(20),
		WithFieldValidator(core.ColumnQuantity, FieldValidator{DataType: FieldTypeFloat, MinValue: &zero}),
		WithFieldValidator(core.ColumnYear, FieldValidator{DataType: FieldTypeInt, MinValue: &minYear, MaxValue: &maxYear}),
		WithFieldValidator(core.ColumnMonth, FieldValidator{DataType: FieldTypeString, AllowedValues: months}),
		WithFieldValidator(core.ColumnQuarter, FieldValidator{
			DataType: FieldTypeString, Pattern: regexp.MustCompile(`^Q[1-4]$`),
		}),
	)
}
