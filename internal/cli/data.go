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

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"

	"github.com/aaronlmathis/tradeflow"
	"github.com/aaronlmathis/tradeflow/anomaly"
	"github.com/aaronlmathis/tradeflow/config"
	"github.com/aaronlmathis/tradeflow/core"
	"github.com/aaronlmathis/tradeflow/filter"
	"github.com/aaronlmathis/tradeflow/readers"
)

// grant issues the capability for the local operator. Running the CLI is the
// authentication step.
func grant() core.Grant {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return core.NewGrant(u.Username)
	}
	if name := os.Getenv("USER"); name != "" {
		return core.NewGrant(name)
	}
	return core.NewGrant("cli")
}

// ingest reads the source named by --file or --url.
func (a *app) ingest(ctx context.Context) (*core.Relation, error) {
	in := readers.Input{URL: a.url}
	if a.file != "" {
		f, err := os.Open(a.file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = readers.Input{Name: filepath.Base(a.file), Body: f}
	}
	return tradeflow.Ingest(ctx, grant(), in, tradeflow.WithConfig(a.cfg), tradeflow.WithLogger(a.log))
}

// view ingests and applies the --filter expressions.
func (a *app) view(ctx context.Context) (*core.Relation, *core.Relation, error) {
	rel, err := a.ingest(ctx)
	if err != nil {
		return nil, nil, err
	}
	spec, err := filter.ParseSpec(a.filters)
	if err != nil {
		return nil, nil, err
	}
	view, err := filter.Apply(ctx, rel, spec)
	if err != nil {
		return nil, nil, err
	}
	if active := filter.Active(spec); len(active) > 0 {
		a.log.Debugf(ctx, "filters kept %d of %d rows", view.Len(), rel.Len())
	}
	return rel, view, nil
}

// requireValues keeps the rows of view that have a value in every column.
func requireValues(ctx context.Context, view *core.Relation, columns []string) (*core.Relation, error) {
	filters := make([]core.Filter, 0, len(columns))
	for _, col := range columns {
		if !view.HasColumn(col) {
			return nil, fmt.Errorf("require %s: %w", col, filter.ErrUnknownColumn)
		}
		filters = append(filters, filter.NotNull(col))
	}
	return filter.Where(ctx, view, filter.And(filters...))
}

// anomalyParams maps the anomaly settings onto detector parameters.
func anomalyParams(cfg config.AnomalyConfig) anomaly.Params {
	p := anomaly.DefaultParams()
	p.Threshold = cfg.Threshold
	p.Multiplier = cfg.Multiplier
	p.Contamination = cfg.Contamination
	p.Seed = cfg.Seed
	p.PopulationStdDev = cfg.PopulationStdDev
	return p
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
