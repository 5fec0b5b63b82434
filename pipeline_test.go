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
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tradeflow/core"
	"github.com/aaronlmathis/tradeflow/readers"
	"github.com/aaronlmathis/tradeflow/writers"
)

// scriptedSource replays records and errors in order
type scriptedSource struct {
	steps  []interface{}
	pos    int
	closed bool
}

func (s *scriptedSource) Read(ctx context.Context) (Record, error) {
	if s.pos >= len(s.steps) {
		return nil, io.EOF
	}
	step := s.steps[s.pos]
	s.pos++
	if err, ok := step.(error); ok {
		return nil, err
	}
	return step.(Record), nil
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

// failingSink fails on Close, like an upload that is rejected
type failingSink struct {
	*writers.RelationWriter
}

func (f failingSink) Close() error { return errors.New("upload rejected") }

// TestPipelineBuilder_Validation tests that source and sink are required
func TestPipelineBuilder_Validation(t *testing.T) {
	_, err := NewPipeline().To(writers.NewRelationWriter(nil)).Build()
	assert.Error(t, err)

	_, err = NewPipeline().From(&scriptedSource{}).Build()
	assert.Error(t, err)
}

// TestPipeline_TransformAndFilter tests ordering of transformers and filters
func TestPipeline_TransformAndFilter(t *testing.T) {
	src := &scriptedSource{steps: []interface{}{
		Record{"State": "CA", "Quantity": 1.0},
		Record{"State": "NY", "Quantity": 2.0},
		Record{"State": "CA", "Quantity": 3.0},
	}}
	sink := writers.NewRelationWriter([]string{"State", "Quantity"})

	p, err := NewPipeline().
		From(src).
		Transform(TransformFunc(func(ctx context.Context, r Record) (Record, error) {
			out := Record{"State": r["State"], "Quantity": r["Quantity"].(float64) * 10}
			return out, nil
		})).
		Filter(FilterFunc(func(ctx context.Context, r Record) (bool, error) {
			return r["State"] == "CA", nil
		})).
		To(sink).
		Build()
	require.NoError(t, err)
	require.NoError(t, p.Execute(context.Background()))

	assert.True(t, src.closed)
	assert.Equal(t, []interface{}{10.0, 30.0}, sink.Relation().Values("Quantity"))

	stats := p.Stats()
	assert.Equal(t, int64(3), stats.RecordsRead)
	assert.Equal(t, int64(2), stats.RecordsWritten)
	assert.Equal(t, int64(1), stats.RecordsFiltered)
}

// TestPipeline_ErrorStrategies tests fail-fast, skip and collect behaviour
func TestPipeline_ErrorStrategies(t *testing.T) {
	parseErr := &core.ParseError{Line: 3, Err: errors.New("wrong number of fields")}
	steps := func() []interface{} {
		return []interface{}{Record{"a": 1}, parseErr, Record{"a": 2}}
	}

	t.Run("fail fast", func(t *testing.T) {
		p, err := NewPipeline().From(&scriptedSource{steps: steps()}).To(writers.NewRelationWriter(nil)).Build()
		require.NoError(t, err)
		assert.ErrorIs(t, p.Execute(context.Background()), parseErr)
	})

	t.Run("skip", func(t *testing.T) {
		sink := writers.NewRelationWriter([]string{"a"})
		p, err := NewPipeline().From(&scriptedSource{steps: steps()}).To(sink).
			WithErrorStrategy(SkipErrors).Build()
		require.NoError(t, err)
		require.NoError(t, p.Execute(context.Background()))
		assert.Equal(t, 2, sink.Relation().Len())
		assert.Equal(t, int64(1), p.Stats().RecordsSkipped)
		assert.Empty(t, p.Errors())
	})

	t.Run("collect", func(t *testing.T) {
		p, err := NewPipeline().From(&scriptedSource{steps: steps()}).To(writers.NewRelationWriter(nil)).
			WithErrorStrategy(CollectErrors).Build()
		require.NoError(t, err)
		require.NoError(t, p.Execute(context.Background()))
		require.Len(t, p.Errors(), 1)
		assert.ErrorIs(t, p.Errors()[0], parseErr)
	})

	t.Run("handler stops", func(t *testing.T) {
		stop := errors.New("stop")
		p, err := NewPipeline().From(&scriptedSource{steps: steps()}).To(writers.NewRelationWriter(nil)).
			WithErrorStrategy(SkipErrors).
			WithErrorHandler(ErrorHandlerFunc(func(ctx context.Context, r Record, err error) error { return stop })).
			Build()
		require.NoError(t, err)
		assert.ErrorIs(t, p.Execute(context.Background()), stop)
	})
}

// TestPipeline_SinkCloseError tests that close failures surface from Execute
func TestPipeline_SinkCloseError(t *testing.T) {
	rel := core.NewRelation([]string{"a"}, []core.Record{{"a": 1}})
	p, err := NewPipeline().
		From(readers.NewRelationReader(rel)).
		To(failingSink{writers.NewRelationWriter([]string{"a"})}).
		Build()
	require.NoError(t, err)

	err = p.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload rejected")
}

// TestPipeline_Cancellation tests that a cancelled context stops the run
func TestPipeline_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := NewPipeline().From(&scriptedSource{steps: []interface{}{Record{"a": 1}}}).
		To(writers.NewRelationWriter(nil)).Build()
	require.NoError(t, err)
	assert.ErrorIs(t, p.Execute(ctx), context.Canceled)
}
