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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_FileOverridesDefaults tests YAML loading on top of defaults
func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradeflow.yaml")
	content := `
log_level: debug
fetch:
  timeout: 5s
schema:
  missing_policy: warn
  synonyms:
    - from: Consignee Name
      to: Consignee
metrics:
  mom_method: lexical
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "warn", cfg.Schema.MissingPolicy)
	assert.Equal(t, "lexical", cfg.Metrics.MoMMethod)
	assert.Equal(t, "Consignee", cfg.Schema.SynonymMap()["Consignee Name"])

	// untouched keys keep their defaults
	assert.Equal(t, 2, cfg.Fetch.Retries)
	assert.Equal(t, "iqr", cfg.Anomaly.Method)
	assert.Equal(t, int64(42), cfg.Anomaly.Seed)
	assert.Equal(t, []string{"Month", "Year", "Consignee", "Exporter", "State", "Quantity"}, cfg.Schema.Required)
}

// TestLoad_EnvOverrides tests TRADEFLOW_ prefixed environment overrides
func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradeflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	t.Setenv("TRADEFLOW_ANOMALY_METHOD", "zscore")
	t.Setenv("TRADEFLOW_FETCH_TIMEOUT", "12s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "zscore", cfg.Anomaly.Method)
	assert.Equal(t, 12*time.Second, cfg.Fetch.Timeout)
}

// TestLoad_MissingExplicitFile tests that an explicit path must exist
func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// TestLoad_InvalidValues tests validation on load
func TestLoad_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tradeflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schema:\n  missing_policy: ignore\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing_policy")
}

// TestValidate tests each validated field
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"timeout", func(c *Config) { c.Fetch.Timeout = 0 }, "fetch.timeout"},
		{"retries", func(c *Config) { c.Fetch.Retries = -1 }, "fetch.retries"},
		{"mom", func(c *Config) { c.Metrics.MoMMethod = "weekly" }, "mom_method"},
		{"method", func(c *Config) { c.Anomaly.Method = "dbscan" }, "anomaly.method"},
		{"threshold", func(c *Config) { c.Anomaly.Threshold = 0 }, "threshold"},
		{"multiplier", func(c *Config) { c.Anomaly.Multiplier = -1 }, "multiplier"},
		{"contamination", func(c *Config) { c.Anomaly.Contamination = 0.7 }, "contamination"},
		{"synonym", func(c *Config) { c.Schema.Synonyms = []Synonym{{From: "Qty"}} }, "schema.synonyms[0].to is required"},
		{"policy", func(c *Config) { c.Schema.MissingPolicy = "ignore" }, "schema.missing_policy must be one of fatal, warn"},
		{"max bytes", func(c *Config) { c.Fetch.MaxBytes = -1 }, "fetch.max_bytes"},
		{"contamination zero", func(c *Config) { c.Anomaly.Contamination = 0 }, "anomaly.contamination must be greater than 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

// TestValidate_AllFields tests that every failing field is reported at once
func TestValidate_AllFields(t *testing.T) {
	c := Default()
	c.Fetch.Timeout = 0
	c.Anomaly.Method = "dbscan"

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch.timeout must be greater than 0")
	assert.Contains(t, err.Error(), `anomaly.method must be one of zscore, iqr, isolation_forest, got "dbscan"`)
}

// TestSave_RoundTrip tests writing a config and loading it back
func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	c := Default()
	c.Anomaly.Method = "isolation_forest"
	c.Fetch.Timeout = 45 * time.Second

	require.NoError(t, Save(c, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "isolation_forest", loaded.Anomaly.Method)
	assert.Equal(t, 45*time.Second, loaded.Fetch.Timeout)
}
