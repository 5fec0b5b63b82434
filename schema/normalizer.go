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

// Package schema maps raw column labels onto the canonical column set.
//
// Labels are trimmed and title-cased, then looked up in a single synonym table.
// Required columns are checked after mapping under a configurable policy.
package schema

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/aaronlmathis/tradeflow/core"
	"github.com/aaronlmathis/tradeflow/logger"
)

// DefaultSynonyms maps cleaned labels seen in the wild onto canonical labels.
// Matching is exact and case-sensitive, after CleanLabel.
var DefaultSynonyms = map[string]string{
	"Consignee State": core.ColumnState,
	"Quanity":         core.ColumnQuantity,
	"Job No.":         "Job_Number",
}

// DefaultRequired lists the canonical columns every source must provide.
var DefaultRequired = []string{
	core.ColumnMonth,
	core.ColumnYear,
	core.ColumnConsignee,
	core.ColumnExporter,
	core.ColumnState,
	core.ColumnQuantity,
}

// Policy decides what happens when required columns are missing.
type Policy int

const (
	// PolicyFatal rejects the source with *core.MissingColumnError.
	PolicyFatal Policy = iota
	// PolicyWarn logs the missing columns and continues.
	PolicyWarn
)

// ParsePolicy maps "fatal" and "warn" to a Policy.
func ParsePolicy(s string) (Policy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fatal":
		return PolicyFatal, true
	case "warn":
		return PolicyWarn, true
	}
	return PolicyFatal, false
}

func (p Policy) String() string {
	if p == PolicyWarn {
		return "warn"
	}
	return "fatal"
}

// CleanLabel trims surrounding whitespace and title-cases each run of letters:
// the first letter of a run is upper-cased and the rest lower-cased. So " month "
// becomes "Month", "consignee_state" becomes "Consignee_State" and "o'neil"
// becomes "O'Neil".
func CleanLabel(label string) string {
	label = strings.TrimSpace(label)
	// a Caser is stateful and must not be shared between goroutines
	title := cases.Title(language.Und)

	var b strings.Builder
	b.Grow(len(label))
	start := -1
	for i, r := range label {
		if unicode.IsLetter(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			b.WriteString(title.String(label[start:i]))
			start = -1
		}
		_, size := utf8.DecodeRuneInString(label[i:])
		b.WriteString(label[i : i+size])
	}
	if start >= 0 {
		b.WriteString(title.String(label[start:]))
	}
	return b.String()
}

// Options configures a Normalizer.
type Options struct {
	Synonyms map[string]string
	Required []string
	Policy   Policy
	Logger   logger.Logger
}

// Option is a functional option for Normalizer.
type Option func(*Options)

// WithSynonyms adds entries to the synonym table, overriding defaults with the same key.
func WithSynonyms(synonyms map[string]string) Option {
	return func(o *Options) {
		for k, v := range synonyms {
			o.Synonyms[k] = v
		}
	}
}

// WithRequired replaces the required column list.
func WithRequired(columns ...string) Option {
	return func(o *Options) {
		o.Required = append([]string(nil), columns...)
	}
}

// WithPolicy sets the missing-column policy.
func WithPolicy(p Policy) Option {
	return func(o *Options) { o.Policy = p }
}

// WithLogger sets the logger used for warnings.
func WithLogger(l logger.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Normalizer resolves raw headers to canonical labels.
type Normalizer struct {
	opts Options
}

// NewNormalizer creates a Normalizer with the default synonym table, the default
// required columns and PolicyFatal.
func NewNormalizer(options ...Option) *Normalizer {
	opts := Options{
		Synonyms: make(map[string]string, len(DefaultSynonyms)),
		Required: append([]string(nil), DefaultRequired...),
		Policy:   PolicyFatal,
		Logger:   logger.Nop(),
	}
	for k, v := range DefaultSynonyms {
		opts.Synonyms[k] = v
	}
	for _, option := range options {
		option(&opts)
	}
	return &Normalizer{opts: opts}
}

// Canonical returns the canonical label for one raw label.
func (n *Normalizer) Canonical(raw string) string {
	cleaned := CleanLabel(raw)
	if canonical, ok := n.opts.Synonyms[cleaned]; ok {
		return canonical
	}
	return cleaned
}

// Resolve maps headers to canonical labels and checks the required columns.
//
// When two headers reduce to the same label the first keeps it and later ones are
// suffixed ".1", ".2", ... Under PolicyFatal a missing required column returns
// *core.MissingColumnError and a nil Mapping; under PolicyWarn it is logged and the
// Mapping is returned with Missing populated.
func (n *Normalizer) Resolve(ctx context.Context, headers []string) (*Mapping, error) {
	labels := make([]string, len(headers))
	for i, h := range headers {
		labels[i] = n.Canonical(h)
	}
	labels = core.UniqueLabels(labels)

	m := &Mapping{
		raw:       append([]string(nil), headers...),
		canonical: labels,
		byRaw:     make(map[string]string, len(headers)),
	}
	for i, h := range headers {
		m.byRaw[h] = labels[i]
	}

	present := make(map[string]bool, len(labels))
	for _, l := range labels {
		present[l] = true
	}
	for _, req := range n.opts.Required {
		if !present[req] {
			m.Missing = append(m.Missing, req)
		}
	}

	if len(m.Missing) > 0 {
		if n.opts.Policy == PolicyFatal {
			return nil, &core.MissingColumnError{Column: m.Missing[0], Missing: m.Missing}
		}
		n.opts.Logger.Warnf(ctx, "required columns missing, continuing: %s", strings.Join(m.Missing, ", "))
	}
	return m, nil
}

// Mapping is the result of resolving a header.
type Mapping struct {
	raw       []string
	canonical []string
	byRaw     map[string]string
	// Missing lists required columns absent from the source (warn policy only).
	Missing []string
}

// Columns returns the canonical labels in source order.
func (m *Mapping) Columns() []string {
	return append([]string(nil), m.canonical...)
}

// Renamed reports the raw labels whose canonical form differs, keyed by raw label.
func (m *Mapping) Renamed() map[string]string {
	out := make(map[string]string)
	for raw, canonical := range m.byRaw {
		if raw != canonical {
			out[raw] = canonical
		}
	}
	return out
}

// Transformer returns a transformer that rekeys raw records to canonical labels.
// Every mapped column is present in the output; cells absent from the input are nil.
func (m *Mapping) Transformer() core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		out := make(core.Record, len(m.raw))
		for i, raw := range m.raw {
			out[m.canonical[i]] = record[raw]
		}
		return out, nil
	})
}
