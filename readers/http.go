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

package readers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aaronlmathis/tradeflow/core"
)

// This file implements an HTTP reader that downloads a delimited export once, with a
// bounded timeout and retries, and then streams its rows through CSVReader.

// HTTPReaderError provides structured error information for HTTP reader operations
type HTTPReaderError struct {
	Op         string // Operation that failed (e.g., "request", "status_check", "parse")
	StatusCode int    // HTTP status code if applicable
	URL        string // URL being accessed when error occurred
	Err        error  // Underlying error
}

func (e *HTTPReaderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("http reader %s [%d] %s: %v", e.Op, e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("http reader %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *HTTPReaderError) Unwrap() error {
	return e.Err
}

// HTTPReaderStats holds statistics about the HTTP reader's performance
type HTTPReaderStats struct {
	RequestCount  int64         // Total HTTP requests made
	BytesRead     int64         // Total bytes read
	RetryCount    int64         // Number of retries performed
	RateLimitHits int64         // Number of 429 responses
	FetchDuration time.Duration // Time spent downloading, retries included
}

// AuthConfig defines authentication configuration
type AuthConfig struct {
	Type     string // "bearer" or "basic"
	Token    string // Bearer token
	Username string // For basic auth
	Password string // For basic auth
}

// HTTPReaderOptions configures the HTTP reader
type HTTPReaderOptions struct {
	Headers          map[string]string // Additional headers
	Auth             *AuthConfig       // Authentication configuration
	Timeout          time.Duration     // Bound on the whole download, retries included
	RetryAttempts    int               // Number of retry attempts
	RetryDelay       time.Duration     // Base delay between retries
	MaxResponseSize  int64             // Maximum response size in bytes
	ValidStatusCodes []int             // Valid HTTP status codes
	UserAgent        string            // User agent string
	CustomClient     *http.Client      // Custom HTTP client
	CSVOptions       []ReaderOptionCSV // Options for parsing the downloaded body
}

// ReaderOptionHTTP is a functional option for HTTPReaderOptions
type ReaderOptionHTTP func(*HTTPReaderOptions)

func WithHTTPHeaders(headers map[string]string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		if opts.Headers == nil {
			opts.Headers = make(map[string]string)
		}
		for k, v := range headers {
			opts.Headers[k] = v
		}
	}
}

func WithHTTPBearerToken(token string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Auth = &AuthConfig{Type: "bearer", Token: token}
	}
}

func WithHTTPBasicAuth(username, password string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Auth = &AuthConfig{Type: "basic", Username: username, Password: password}
	}
}

func WithHTTPTimeout(timeout time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.Timeout = timeout
	}
}

func WithHTTPRetries(attempts int, delay time.Duration) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.RetryAttempts = attempts
		opts.RetryDelay = delay
	}
}

func WithHTTPMaxResponseSize(n int64) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.MaxResponseSize = n
	}
}

func WithHTTPUserAgent(userAgent string) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.UserAgent = userAgent
	}
}

func WithHTTPClient(client *http.Client) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.CustomClient = client
	}
}

func WithHTTPCSVOptions(options ...ReaderOptionCSV) ReaderOptionHTTP {
	return func(opts *HTTPReaderOptions) {
		opts.CSVOptions = append(opts.CSVOptions, options...)
	}
}

// HTTPReader implements core.DataSource and core.Headed for a CSV document served over HTTP.
type HTTPReader struct {
	url    string
	client *http.Client
	opts   *HTTPReaderOptions
	stats  HTTPReaderStats
	csv    *CSVReader
}

// NewHTTPReader creates a new HTTP reader with configurable options. Nothing is fetched
// until Fetch or the first Read.
func NewHTTPReader(url string, options ...ReaderOptionHTTP) (*HTTPReader, error) {
	opts := &HTTPReaderOptions{
		Headers:          make(map[string]string),
		Timeout:          30 * time.Second,
		RetryAttempts:    2,
		RetryDelay:       500 * time.Millisecond,
		MaxResponseSize:  50 * 1024 * 1024, // 50MB
		ValidStatusCodes: []int{200},
		UserAgent:        "TradeFlow-HTTPReader/1.0",
	}

	for _, option := range options {
		option(opts)
	}
	if opts.Timeout <= 0 {
		return nil, &HTTPReaderError{Op: "configure", URL: url, Err: errors.New("timeout must be positive")}
	}

	client := opts.CustomClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &HTTPReader{url: url, client: client, opts: opts}, nil
}

// Fetch downloads and parses the document. It is a no-op after the first success.
// The whole download, retries included, is bounded by the configured timeout.
func (hr *HTTPReader) Fetch(ctx context.Context) error {
	if hr.csv != nil {
		return nil
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, hr.opts.Timeout)
	defer cancel()

	data, err := hr.executeRequestWithRetry(ctx, hr.url)
	hr.stats.FetchDuration += time.Since(start)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &HTTPReaderError{Op: "parse", URL: hr.url, Err: errors.New("empty response body")}
	}

	csvReader, err := NewCSVReader(io.NopCloser(bytes.NewReader(data)), hr.opts.CSVOptions...)
	if err != nil {
		return &HTTPReaderError{Op: "parse", URL: hr.url, Err: err}
	}
	hr.csv = csvReader
	return nil
}

// Columns returns the header of the fetched document, or nil before Fetch.
func (hr *HTTPReader) Columns() []string {
	if hr.csv == nil {
		return nil
	}
	return hr.csv.Columns()
}

// Read implements the core.DataSource interface
func (hr *HTTPReader) Read(ctx context.Context) (core.Record, error) {
	select {
	case <-ctx.Done():
		return nil, &HTTPReaderError{Op: "read", URL: hr.url, Err: ctx.Err()}
	default:
	}

	if err := hr.Fetch(ctx); err != nil {
		return nil, err
	}
	return hr.csv.Read(ctx)
}

// Close implements the core.DataSource interface
func (hr *HTTPReader) Close() error {
	return nil
}

// Stats returns HTTP reader performance statistics
func (hr *HTTPReader) Stats() HTTPReaderStats {
	return hr.stats
}

// CSVStats returns the parse statistics of the fetched document.
func (hr *HTTPReader) CSVStats() CSVReaderStats {
	if hr.csv == nil {
		return CSVReaderStats{}
	}
	return hr.csv.Stats()
}

// executeRequestWithRetry executes HTTP request with retry logic
func (hr *HTTPReader) executeRequestWithRetry(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= hr.opts.RetryAttempts; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			delay := hr.opts.RetryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &HTTPReaderError{Op: "request", URL: url, Err: ctx.Err()}
			}
			hr.stats.RetryCount++
		}

		data, err := hr.executeRequest(ctx, url)
		if err == nil {
			return data, nil
		}

		lastErr = err

		var httpErr *HTTPReaderError
		if errors.As(err, &httpErr) {
			if httpErr.StatusCode == http.StatusTooManyRequests {
				hr.stats.RateLimitHits++
				continue
			}
			if httpErr.StatusCode >= 500 {
				continue
			}
		}
		// client errors, timeouts and malformed content are final
		break
	}

	return nil, lastErr
}

// executeRequest executes a single HTTP request
func (hr *HTTPReader) executeRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &HTTPReaderError{Op: "create_request", URL: url, Err: err}
	}

	req.Header.Set("User-Agent", hr.opts.UserAgent)
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")
	for k, v := range hr.opts.Headers {
		req.Header.Set(k, v)
	}

	if hr.opts.Auth != nil {
		if err := hr.addAuthentication(req); err != nil {
			return nil, &HTTPReaderError{Op: "auth", URL: url, Err: err}
		}
	}

	hr.stats.RequestCount++
	resp, err := hr.client.Do(req)
	if err != nil {
		return nil, &HTTPReaderError{Op: "request", URL: url, Err: err}
	}
	defer resp.Body.Close()

	if !hr.isValidStatusCode(resp.StatusCode) {
		return nil, &HTTPReaderError{
			Op:         "status_check",
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	// a private sheet answers 200 with a sign-in page
	if ct := resp.Header.Get("Content-Type"); strings.Contains(strings.ToLower(ct), "text/html") {
		return nil, &HTTPReaderError{
			Op:  "parse",
			URL: url,
			Err: fmt.Errorf("received %s instead of csv; is the document shared publicly?", ct),
		}
	}

	reader := io.LimitReader(resp.Body, hr.opts.MaxResponseSize+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &HTTPReaderError{Op: "read_response", URL: url, Err: err}
	}
	if int64(len(data)) > hr.opts.MaxResponseSize {
		return nil, &HTTPReaderError{
			Op:  "read_response",
			URL: url,
			Err: fmt.Errorf("response exceeds %d bytes", hr.opts.MaxResponseSize),
		}
	}

	hr.stats.BytesRead += int64(len(data))
	return data, nil
}

// addAuthentication adds authentication to the request
func (hr *HTTPReader) addAuthentication(req *http.Request) error {
	auth := hr.opts.Auth
	switch auth.Type {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+auth.Token)
	case "basic":
		req.SetBasicAuth(auth.Username, auth.Password)
	default:
		return fmt.Errorf("unsupported auth type: %s", auth.Type)
	}
	return nil
}

// isValidStatusCode checks if the status code is considered valid
func (hr *HTTPReader) isValidStatusCode(statusCode int) bool {
	for _, validCode := range hr.opts.ValidStatusCodes {
		if statusCode == validCode {
			return true
		}
	}
	return false
}
