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

package tradeflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aaronlmathis/tradeflow/config"
	"github.com/aaronlmathis/tradeflow/core"
	"github.com/aaronlmathis/tradeflow/logger"
	"github.com/aaronlmathis/tradeflow/readers"
	"github.com/aaronlmathis/tradeflow/schema"
	"github.com/aaronlmathis/tradeflow/transform"
	"github.com/aaronlmathis/tradeflow/validators"
	"github.com/aaronlmathis/tradeflow/writers"
)

// fetchRetryDelay is the pause between attempts at a shared spreadsheet link.
const fetchRetryDelay = 500 * time.Millisecond

// Options configures Ingest and Export.
type Options struct {
	Config        *config.Config
	Logger        logger.Logger
	SourceOptions []readers.SourceOption

	// Columns selects and orders the exported columns. Empty exports all of them.
	Columns []string
	// Renames maps exported columns to new headers.
	Renames map[string]string
}

// Option is a functional option for Ingest and Export.
type Option func(*Options)

// WithConfig sets the deployment configuration. Without it config.Default() is used.
func WithConfig(cfg *config.Config) Option {
	return func(o *Options) { o.Config = cfg }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithSourceOptions appends reader options, applied after those derived from the config.
func WithSourceOptions(options ...readers.SourceOption) Option {
	return func(o *Options) { o.SourceOptions = append(o.SourceOptions, options...) }
}

// WithColumns limits Export to columns, in that order.
func WithColumns(columns ...string) Option {
	return func(o *Options) { o.Columns = columns }
}

// WithRenames renames exported columns (old -> new).
func WithRenames(renames map[string]string) Option {
	return func(o *Options) { o.Renames = renames }
}

func buildOptions(options []Option) Options {
	opts := Options{Config: config.Default(), Logger: logger.Nop()}
	for _, option := range options {
		option(&opts)
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return opts
}

// sourceOptions maps fetch and S3 settings onto reader options.
func sourceOptions(cfg *config.Config) []readers.SourceOption {
	httpOpts := []readers.ReaderOptionHTTP{
		readers.WithHTTPTimeout(cfg.Fetch.Timeout),
		readers.WithHTTPRetries(cfg.Fetch.Retries, fetchRetryDelay),
	}
	if cfg.Fetch.UserAgent != "" {
		httpOpts = append(httpOpts, readers.WithHTTPUserAgent(cfg.Fetch.UserAgent))
	}
	if cfg.Fetch.MaxBytes > 0 {
		httpOpts = append(httpOpts, readers.WithHTTPMaxResponseSize(cfg.Fetch.MaxBytes))
	}

	var s3Opts []readers.ReaderOptionS3
	if cfg.S3.Region != "" {
		s3Opts = append(s3Opts, readers.WithS3Region(cfg.S3.Region))
	}
	if cfg.S3.Profile != "" {
		s3Opts = append(s3Opts, readers.WithS3Profile(cfg.S3.Profile))
	}
	if cfg.S3.Endpoint != "" {
		s3Opts = append(s3Opts, readers.WithS3Endpoint(cfg.S3.Endpoint))
	}
	if cfg.S3.PathStyle {
		s3Opts = append(s3Opts, readers.WithS3PathStyle(true))
	}

	return []readers.SourceOption{
		readers.WithHTTPOptions(httpOpts...),
		readers.WithS3Options(s3Opts...),
	}
}

// NewNormalizer builds the schema normalizer described by cfg.
func NewNormalizer(cfg *config.Config, l logger.Logger) (*schema.Normalizer, error) {
	policy, ok := schema.ParsePolicy(cfg.Schema.MissingPolicy)
	if !ok {
		return nil, fmt.Errorf("unknown missing-column policy %q", cfg.Schema.MissingPolicy)
	}
	return schema.NewNormalizer(
		schema.WithSynonyms(cfg.Schema.SynonymMap()),
		schema.WithRequired(cfg.Schema.Required...),
		schema.WithPolicy(policy),
		schema.WithLogger(l),
	), nil
}

// Ingest reads one source into the canonical relation.
//
// The grant must be valid or core.ErrUnauthenticated is returned before any I/O.
// Unsupported, unreachable or malformed sources and missing required columns are
// fatal and return no relation. Malformed rows are logged and skipped. Cell-level
// defects are repaired by the cleaners. The data-quality report is logged, never fatal.
func Ingest(ctx context.Context, grant core.Grant, in readers.Input, options ...Option) (*core.Relation, error) {
	if !grant.Valid() {
		return nil, core.ErrUnauthenticated
	}
	opts := buildOptions(options)
	cfg, log := opts.Config, opts.Logger

	ctx = logger.WithSubject(ctx, grant.Subject())
	ctx = logger.WithSource(ctx, in.Label())

	normalizer, err := NewNormalizer(cfg, log)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, cfg.Fetch.Timeout)
	src, err := readers.Open(fetchCtx, in, append(sourceOptions(cfg), opts.SourceOptions...)...)
	cancel()
	if err != nil {
		log.Errorf(ctx, "open source: %v", err)
		return nil, err
	}

	mapping, err := normalizer.Resolve(ctx, src.Columns())
	if err != nil {
		src.Close()
		log.Errorf(ctx, "normalize columns: %v", err)
		return nil, err
	}

	columns := mapping.Columns()
	if contains(columns, core.ColumnMonth) && !contains(columns, core.ColumnQuarter) {
		columns = append(columns, core.ColumnQuarter)
	}
	sink := writers.NewRelationWriter(columns)

	pipeline, err := NewPipeline().
		From(src).
		Transform(mapping.Transformer()).
		Transform(transform.CleanQuantity()).
		Transform(transform.CanonicalMonth()).
		Transform(transform.CoerceYear()).
		Transform(transform.DeriveQuarter()).
		To(sink).
		WithErrorStrategy(SkipErrors).
		WithErrorHandler(skipParseErrors(log)).
		WithLogger(log).
		Build()
	if err != nil {
		src.Close()
		return nil, err
	}
	if err := pipeline.Execute(ctx); err != nil {
		log.Errorf(ctx, "ingest: %v", err)
		return nil, err
	}

	rel := sink.Relation()
	stats := pipeline.Stats()
	log.Infof(ctx, "ingested %d rows over %d columns (%d malformed rows skipped)",
		rel.Len(), len(rel.Columns()), stats.RecordsSkipped)

	report, err := validators.TradeValidator(cfg.Schema.Required).Evaluate(ctx, rel)
	if err != nil {
		return nil, err
	}
	report.Log(ctx, log)

	return rel, nil
}

// skipParseErrors logs and skips malformed rows and stops on anything else.
func skipParseErrors(log logger.Logger) ErrorHandler {
	return ErrorHandlerFunc(func(ctx context.Context, record Record, err error) error {
		var parseErr *core.ParseError
		if errors.As(err, &parseErr) {
			log.Warnf(ctx, "skipping malformed row at line %d: %v", parseErr.Line, parseErr.Err)
			return nil
		}
		return err
	})
}

// ExportColumns returns the header Export writes for view: the selected columns,
// renamed. Unknown columns in WithColumns or WithRenames are an error.
func ExportColumns(view *core.Relation, options ...Option) ([]string, error) {
	opts := buildOptions(options)
	columns := view.Columns()
	if len(opts.Columns) > 0 {
		for _, col := range opts.Columns {
			if !view.HasColumn(col) {
				return nil, fmt.Errorf("unknown export column %q", col)
			}
		}
		columns = opts.Columns
	}

	out := make([]string, len(columns))
	seen := make(map[string]bool, len(columns))
	for i, col := range columns {
		out[i] = col
		if to, ok := opts.Renames[col]; ok {
			out[i] = to
		}
		if seen[out[i]] {
			return nil, fmt.Errorf("duplicate export column %q", out[i])
		}
		seen[out[i]] = true
	}
	for from := range opts.Renames {
		if !contains(columns, from) {
			return nil, fmt.Errorf("cannot rename %q: not an exported column", from)
		}
	}
	return out, nil
}

// Export streams view into sink in row and column order and closes the sink.
// WithColumns and WithRenames shape each record; size the sink with ExportColumns.
// It returns the number of records written.
func Export(ctx context.Context, view *core.Relation, sink core.DataSink, options ...Option) (int64, error) {
	opts := buildOptions(options)
	if _, err := ExportColumns(view, options...); err != nil {
		sink.Close()
		return 0, err
	}

	builder := NewPipeline().
		From(readers.NewRelationReader(view)).
		To(sink).
		WithLogger(opts.Logger)
	if len(opts.Columns) > 0 {
		builder.Transform(transform.Select(opts.Columns...))
	}
	if len(opts.Renames) > 0 {
		builder.Transform(transform.Rename(opts.Renames))
	}
	pipeline, err := builder.Build()
	if err != nil {
		return 0, err
	}
	if err := pipeline.Execute(ctx); err != nil {
		return pipeline.Stats().RecordsWritten, err
	}

	written := pipeline.Stats().RecordsWritten
	opts.Logger.Infof(ctx, "exported %d rows", written)
	return written, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
