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
	"context"
	"errors"
	"fmt"
	"strings"
)

// Package core defines the error handling types for the TradeFlow library.
//
// This file contains error handling interfaces, strategies, function adapters,
// and the typed errors returned by ingestion.

// ErrorHandler defines how errors are handled during processing.
// Custom error handlers can be used to log, collect, or transform errors.
type ErrorHandler interface {
	// HandleError processes an error that occurred during processing.
	// Returning a non-nil error will stop the pipeline; returning nil will continue.
	HandleError(ctx context.Context, record Record, err error) error
}

// ErrorStrategy defines how to handle record-level errors in the pipeline.
type ErrorStrategy int

const (
	// FailFast stops processing on the first error encountered.
	FailFast ErrorStrategy = iota
	// SkipErrors continues processing, skipping failed records.
	SkipErrors
	// CollectErrors continues processing, collecting all errors for later inspection.
	CollectErrors
)

// ErrorHandlerFunc is a function adapter for the ErrorHandler interface.
// Allows ordinary functions to be used as error handlers.
type ErrorHandlerFunc func(ctx context.Context, record Record, err error) error

// HandleError implements the ErrorHandler interface for ErrorHandlerFunc.
func (f ErrorHandlerFunc) HandleError(ctx context.Context, record Record, err error) error {
	return f(ctx, record, err)
}

// ErrUnauthenticated is returned when an operation is invoked without a valid Grant.
var ErrUnauthenticated = errors.New("unauthenticated: a valid grant is required")

// UnsupportedFormatError is returned when no source was provided, or the provided
// file has an extension no reader recognizes.
type UnsupportedFormatError struct {
	Name string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Name == "" {
		return "unsupported format: no file or url provided"
	}
	return fmt.Sprintf("unsupported format: %q", e.Name)
}

// InvalidSourceError is returned when a URL does not match any recognized link shape.
type InvalidSourceError struct {
	URL    string
	Reason string
}

func (e *InvalidSourceError) Error() string {
	return fmt.Sprintf("invalid source %q: %s", e.URL, e.Reason)
}

// SourceFetchError is returned when a remote source is unreachable, times out,
// answers with a failure status, or returns content that cannot be parsed.
type SourceFetchError struct {
	URL string
	Op  string
	Err error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.URL, e.Op, e.Err)
}

func (e *SourceFetchError) Unwrap() error {
	return e.Err
}

// MissingColumnError is returned when required canonical columns are absent after
// schema normalization. Column names the first missing column; Missing lists all of them.
type MissingColumnError struct {
	Column  string
	Missing []string
}

func (e *MissingColumnError) Error() string {
	if len(e.Missing) > 1 {
		return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("missing required column: %s", e.Column)
}

// ParseError reports a malformed row in a delimited source. It is recoverable:
// the row is skipped and reading continues.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error on line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
