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

// Package tradeflow ingests trade and import records into a canonical relation and
// streams views of it to export sinks.
//
// Ingest reads one uploaded file or shared link, normalizes column labels, cleans
// Quantity, Month and Year, derives Quarter and returns an immutable *core.Relation.
// The filter, metrics and anomaly packages operate on that relation; Export writes a
// view to any core.DataSink.
//
// Both directions run through Pipeline, a record-by-record builder:
//
//	p, err := tradeflow.NewPipeline().
//		From(source).
//		Transform(transform.CleanQuantity()).
//		To(sink).
//		WithErrorStrategy(tradeflow.SkipErrors).
//		Build()
//	if err != nil { return err }
//	err = p.Execute(ctx)
package tradeflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aaronlmathis/tradeflow/logger"
)

// PipelineBuilder provides a fluent API for constructing pipelines.
// Use NewPipeline() to create a new builder, then chain From, Transform, Filter, To, and configuration methods.
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a new PipelineBuilder.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			transformers: make([]Transformer, 0),
			filters:      make([]Filter, 0),
			strategy:     FailFast,
			logger:       logger.Nop(),
		},
	}
}

// From sets the DataSource for the pipeline.
func (pb *PipelineBuilder) From(source DataSource) *PipelineBuilder {
	pb.pipeline.source = source
	return pb
}

// Transform adds a Transformer to the pipeline. Transformers run in the order added.
func (pb *PipelineBuilder) Transform(transformer Transformer) *PipelineBuilder {
	pb.pipeline.transformers = append(pb.pipeline.transformers, transformer)
	return pb
}

// Filter adds a Filter to the pipeline. Filters run after all transformers.
func (pb *PipelineBuilder) Filter(filter Filter) *PipelineBuilder {
	pb.pipeline.filters = append(pb.pipeline.filters, filter)
	return pb
}

// To sets the DataSink for the pipeline.
func (pb *PipelineBuilder) To(sink DataSink) *PipelineBuilder {
	pb.pipeline.sink = sink
	return pb
}

// WithErrorStrategy sets the error handling strategy for the pipeline.
func (pb *PipelineBuilder) WithErrorStrategy(strategy ErrorStrategy) *PipelineBuilder {
	pb.pipeline.strategy = strategy
	return pb
}

// WithErrorHandler sets a custom error handler for the pipeline.
func (pb *PipelineBuilder) WithErrorHandler(handler ErrorHandler) *PipelineBuilder {
	pb.pipeline.errorHandler = handler
	return pb
}

// WithLogger sets the logger used for the run summary.
func (pb *PipelineBuilder) WithLogger(l logger.Logger) *PipelineBuilder {
	if l != nil {
		pb.pipeline.logger = l
	}
	return pb
}

// Build validates and constructs the Pipeline from the builder.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	if pb.pipeline.source == nil {
		return nil, fmt.Errorf("pipeline requires a data source")
	}
	if pb.pipeline.sink == nil {
		return nil, fmt.Errorf("pipeline requires a data sink")
	}
	return pb.pipeline, nil
}

// PipelineStats counts what happened to records during Execute.
type PipelineStats struct {
	RecordsRead     int64
	RecordsWritten  int64
	RecordsFiltered int64
	RecordsSkipped  int64
	Duration        time.Duration
}

// Pipeline streams records from a DataSource through transformers and filters into a DataSink.
// A Pipeline runs once; the source and sink are closed when Execute returns.
type Pipeline struct {
	transformers []Transformer
	filters      []Filter
	source       DataSource
	sink         DataSink
	strategy     ErrorStrategy
	errorHandler ErrorHandler
	logger       logger.Logger
	stats        PipelineStats
	errors       []error
}

// Execute runs the pipeline, processing all records from source to sink.
//
// Error handling is governed by the configured ErrorStrategy and ErrorHandler. Errors
// from flushing or closing the sink are returned when nothing failed earlier, since
// some sinks only deliver their output on Close.
func (p *Pipeline) Execute(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if p.source != nil {
			p.source.Close()
		}
		if p.sink != nil {
			flushErr := p.sink.Flush()
			closeErr := p.sink.Close()
			if err == nil {
				err = errors.Join(flushErr, closeErr)
			}
		}
		p.stats.Duration = time.Since(start)
		p.logger.Debugf(ctx, "pipeline finished: read=%d written=%d filtered=%d skipped=%d in %s",
			p.stats.RecordsRead, p.stats.RecordsWritten, p.stats.RecordsFiltered, p.stats.RecordsSkipped, p.stats.Duration)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		record, err := p.source.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if err := p.handleError(ctx, record, err); err != nil {
				return err
			}
			continue
		}
		p.stats.RecordsRead++

		if len(record) == 0 {
			continue
		}

		transformedRecord, err := p.applyTransformations(ctx, record)
		if err != nil {
			if err := p.handleError(ctx, record, err); err != nil {
				return err
			}
			continue
		}
		if len(transformedRecord) == 0 {
			continue
		}

		shouldInclude, err := p.applyFilters(ctx, transformedRecord)
		if err != nil {
			if err := p.handleError(ctx, record, err); err != nil {
				return err
			}
			continue
		}
		if !shouldInclude {
			p.stats.RecordsFiltered++
			continue
		}

		if err := p.sink.Write(ctx, transformedRecord); err != nil {
			if err := p.handleError(ctx, transformedRecord, err); err != nil {
				return err
			}
			continue
		}
		p.stats.RecordsWritten++
	}

	return nil
}

// Stats returns the counters of the last Execute.
func (p *Pipeline) Stats() PipelineStats {
	return p.stats
}

// Errors returns the record-level errors gathered under CollectErrors.
func (p *Pipeline) Errors() []error {
	return append([]error(nil), p.errors...)
}

// applyFilters applies all configured filters to a record.
func (p *Pipeline) applyFilters(ctx context.Context, record Record) (bool, error) {
	for _, filter := range p.filters {
		include, err := filter.ShouldInclude(ctx, record)
		if err != nil {
			return false, err
		}
		if !include {
			return false, nil
		}
	}
	return true, nil
}

// applyTransformations applies all configured transformers to a record in sequence.
func (p *Pipeline) applyTransformations(ctx context.Context, record Record) (Record, error) {
	current := record
	for _, transformer := range p.transformers {
		transformed, err := transformer.Transform(ctx, current)
		if err != nil {
			return nil, err
		}
		current = transformed
	}
	return current, nil
}

// handleError applies the error strategy. A nil return means the record is skipped.
func (p *Pipeline) handleError(ctx context.Context, record Record, err error) error {
	switch p.strategy {
	case FailFast:
		return err
	case SkipErrors, CollectErrors:
		if p.errorHandler != nil {
			if herr := p.errorHandler.HandleError(ctx, record, err); herr != nil {
				return herr
			}
		}
		if p.strategy == CollectErrors {
			p.errors = append(p.errors, err)
		}
		p.stats.RecordsSkipped++
		return nil
	default:
		return err
	}
}
