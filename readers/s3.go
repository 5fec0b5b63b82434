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
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/tradeflow/core"
)

// This file implements a reader for a single workbook or CSV object addressed by an
// s3://bucket/key link. The object is parsed by extension like an uploaded file.

// S3ReaderError provides structured error information for S3 reader operations
type S3ReaderError struct {
	Op  string // Operation that failed (e.g., "create_aws_config", "get_object")
	Err error  // Underlying error
}

func (e *S3ReaderError) Error() string {
	return fmt.Sprintf("s3 reader %s: %v", e.Op, e.Err)
}

func (e *S3ReaderError) Unwrap() error {
	return e.Err
}

// S3ReaderStats holds statistics about the S3 reader's performance
type S3ReaderStats struct {
	Bucket        string
	Key           string
	BytesRead     int64         // Object size as reported by S3
	FetchDuration time.Duration // Time spent in GetObject and parsing
	RecordsRead   int64
}

// S3GetObjectAPI is the subset of the S3 client used by the reader.
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ReaderOptions configures the S3 reader behavior
type S3ReaderOptions struct {
	Region         string            // AWS region
	Profile        string            // AWS profile to use
	Credentials    aws.Credentials   // Explicit credentials
	EndpointURL    string            // Custom S3 endpoint (for S3-compatible services)
	ForcePathStyle bool              // Use path-style addressing
	Client         S3GetObjectAPI    // Preconfigured client; skips config loading
	CSVOptions     []ReaderOptionCSV // Options for .csv objects
}

// ReaderOptionS3 represents a configuration function for S3Reader
type ReaderOptionS3 func(*S3ReaderOptions)

func WithS3Region(region string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Region = region
	}
}

func WithS3Profile(profile string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Profile = profile
	}
}

func WithS3Credentials(creds aws.Credentials) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Credentials = creds
	}
}

func WithS3Endpoint(endpoint string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.EndpointURL = endpoint
	}
}

func WithS3PathStyle(pathStyle bool) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.ForcePathStyle = pathStyle
	}
}

func WithS3Client(client S3GetObjectAPI) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Client = client
	}
}

func WithS3CSVOptions(options ...ReaderOptionCSV) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.CSVOptions = append(opts.CSVOptions, options...)
	}
}

// S3Reader implements core.DataSource and core.Headed for one S3 object.
type S3Reader struct {
	inner TabularSource
	stats S3ReaderStats
	mu    sync.Mutex
}

// ParseS3URL splits s3://bucket/key into its parts.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, perr := url.Parse(strings.TrimSpace(raw))
	if perr != nil || u.Scheme != "s3" {
		return "", "", &core.InvalidSourceError{URL: raw, Reason: "expected s3://bucket/key"}
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", &core.InvalidSourceError{URL: raw, Reason: "expected s3://bucket/key naming a single object"}
	}
	return bucket, key, nil
}

// NewS3Reader fetches the object named by rawURL and prepares a reader for it.
// A malformed link yields *core.InvalidSourceError, an unrecognized extension
// *core.UnsupportedFormatError, and a failed download *core.SourceFetchError.
func NewS3Reader(ctx context.Context, rawURL string, options ...ReaderOptionS3) (*S3Reader, error) {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return nil, err
	}
	if _, err := formatOf(key); err != nil {
		return nil, err
	}

	opts := S3ReaderOptions{}
	for _, option := range options {
		option(&opts)
	}

	client := opts.Client
	if client == nil {
		cfg, err := createAWSConfig(ctx, opts)
		if err != nil {
			return nil, &S3ReaderError{Op: "create_aws_config", Err: err}
		}
		client = s3.NewFromConfig(cfg, func(o *s3.Options) {
			if opts.EndpointURL != "" {
				o.BaseEndpoint = aws.String(opts.EndpointURL)
			}
			o.UsePathStyle = opts.ForcePathStyle
		})
	}

	start := time.Now()
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &core.SourceFetchError{URL: rawURL, Op: "get_object", Err: &S3ReaderError{Op: "get_object", Err: err}}
	}
	defer result.Body.Close()

	inner, err := openByExtension(key, result.Body, opts.CSVOptions...)
	if err != nil {
		return nil, &core.SourceFetchError{URL: rawURL, Op: "parse", Err: err}
	}

	stats := S3ReaderStats{Bucket: bucket, Key: key, FetchDuration: time.Since(start)}
	if result.ContentLength != nil {
		stats.BytesRead = *result.ContentLength
	}
	return &S3Reader{inner: inner, stats: stats}, nil
}

// Columns returns the object's header labels.
func (s *S3Reader) Columns() []string {
	return s.inner.Columns()
}

// Read implements the core.DataSource interface
func (s *S3Reader) Read(ctx context.Context) (core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.inner.Read(ctx)
	if err == nil {
		s.stats.RecordsRead++
	}
	return record, err
}

// Close implements the core.DataSource interface
func (s *S3Reader) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}

// Stats returns S3 reader performance statistics
func (s *S3Reader) Stats() S3ReaderStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// createAWSConfig creates AWS configuration from options
func createAWSConfig(ctx context.Context, opts S3ReaderOptions) (aws.Config, error) {
	configOpts := []func(*config.LoadOptions) error{}

	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}

	if opts.Profile != "" {
		configOpts = append(configOpts, config.WithSharedConfigProfile(opts.Profile))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, err
	}

	if opts.Credentials.AccessKeyID != "" {
		cfg.Credentials = aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(
				opts.Credentials.AccessKeyID,
				opts.Credentials.SecretAccessKey,
				opts.Credentials.SessionToken,
			),
		)
	}

	return cfg, nil
}
