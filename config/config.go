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

// Package config loads TradeFlow deployment settings from YAML, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides, e.g. TRADEFLOW_FETCH_TIMEOUT=10s.
const EnvPrefix = "TRADEFLOW"

// Config is the full deployment configuration.
type Config struct {
	LogLevel string        `mapstructure:"log_level" yaml:"log_level"`
	Fetch    FetchConfig   `mapstructure:"fetch" yaml:"fetch"`
	Schema   SchemaConfig  `mapstructure:"schema" yaml:"schema"`
	Metrics  MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Anomaly  AnomalyConfig `mapstructure:"anomaly" yaml:"anomaly"`
	S3       S3Config      `mapstructure:"s3" yaml:"s3"`
}

// FetchConfig bounds remote spreadsheet fetches.
type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	Retries   int           `mapstructure:"retries" yaml:"retries" validate:"gte=0"`
	UserAgent string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxBytes  int64         `mapstructure:"max_bytes" yaml:"max_bytes" validate:"gte=0"`
}

// SchemaConfig controls column normalization.
type SchemaConfig struct {
	Required      []string  `mapstructure:"required" yaml:"required"`
	MissingPolicy string    `mapstructure:"missing_policy" yaml:"missing_policy" validate:"oneof=fatal warn"`
	Synonyms      []Synonym `mapstructure:"synonyms" yaml:"synonyms" validate:"dive"`
}

// Synonym maps a cleaned source label onto a canonical one. Kept as a list rather
// than a map because viper lower-cases map keys and label matching is case-sensitive.
type Synonym struct {
	From string `mapstructure:"from" yaml:"from" validate:"required"`
	To   string `mapstructure:"to" yaml:"to" validate:"required"`
}

// MetricsConfig controls KPI computation.
type MetricsConfig struct {
	MoMMethod string `mapstructure:"mom_method" yaml:"mom_method" validate:"oneof=calendar encounter lexical"`
}

// AnomalyConfig holds detector defaults.
type AnomalyConfig struct {
	Method           string  `mapstructure:"method" yaml:"method" validate:"oneof=zscore iqr isolation_forest"`
	Column           string  `mapstructure:"column" yaml:"column"`
	Threshold        float64 `mapstructure:"threshold" yaml:"threshold" validate:"gt=0"`
	Multiplier       float64 `mapstructure:"multiplier" yaml:"multiplier" validate:"gte=0"`
	Contamination    float64 `mapstructure:"contamination" yaml:"contamination" validate:"gt=0,lte=0.5"`
	Seed             int64   `mapstructure:"seed" yaml:"seed"`
	PopulationStdDev bool    `mapstructure:"population_stddev" yaml:"population_stddev"`
}

// S3Config configures s3:// sources and destinations.
type S3Config struct {
	Region    string `mapstructure:"region" yaml:"region"`
	Profile   string `mapstructure:"profile" yaml:"profile"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	PathStyle bool   `mapstructure:"path_style" yaml:"path_style"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			Retries:   2,
			UserAgent: "TradeFlow/1.0",
			MaxBytes:  50 * 1024 * 1024,
		},
		Schema: SchemaConfig{
			Required:      []string{"Month", "Year", "Consignee", "Exporter", "State", "Quantity"},
			MissingPolicy: "fatal",
			Synonyms:      []Synonym{},
		},
		Metrics: MetricsConfig{MoMMethod: "calendar"},
		Anomaly: AnomalyConfig{
			Method:        "iqr",
			Column:        "Quantity",
			Threshold:     3.0,
			Multiplier:    1.5,
			Contamination: 0.05,
			Seed:          42,
		},
		S3: S3Config{Region: "us-east-1"},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("fetch.timeout", d.Fetch.Timeout)
	v.SetDefault("fetch.retries", d.Fetch.Retries)
	v.SetDefault("fetch.user_agent", d.Fetch.UserAgent)
	v.SetDefault("fetch.max_bytes", d.Fetch.MaxBytes)
	v.SetDefault("schema.required", d.Schema.Required)
	v.SetDefault("schema.missing_policy", d.Schema.MissingPolicy)
	v.SetDefault("schema.synonyms", d.Schema.Synonyms)
	v.SetDefault("metrics.mom_method", d.Metrics.MoMMethod)
	v.SetDefault("anomaly.method", d.Anomaly.Method)
	v.SetDefault("anomaly.column", d.Anomaly.Column)
	v.SetDefault("anomaly.threshold", d.Anomaly.Threshold)
	v.SetDefault("anomaly.multiplier", d.Anomaly.Multiplier)
	v.SetDefault("anomaly.contamination", d.Anomaly.Contamination)
	v.SetDefault("anomaly.seed", d.Anomaly.Seed)
	v.SetDefault("anomaly.population_stddev", d.Anomaly.PopulationStdDev)
	v.SetDefault("s3.region", d.S3.Region)
	v.SetDefault("s3.profile", d.S3.Profile)
	v.SetDefault("s3.endpoint", d.S3.Endpoint)
	v.SetDefault("s3.path_style", d.S3.PathStyle)
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. An empty cfgFile looks for
// ~/.tradeflow/config.yaml and silently falls back to defaults when absent;
// an explicit cfgFile must exist.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".tradeflow"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes the configuration as YAML to path. An empty path writes
// ~/.tradeflow/config.yaml, creating the directory if necessary.
func Save(c *Config, path string) error {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".tradeflow")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

var validate = newValidator()

// newValidator reports fields by their config key rather than their Go name.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks enumerations and numeric bounds. Every failing field is reported.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = formatFieldError(fe)
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// formatFieldError renders fe with its dotted config key, e.g. fetch.timeout.
func formatFieldError(fe validator.FieldError) string {
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", key)
	case "oneof":
		return fmt.Sprintf("%s must be one of %s, got %q", key, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", key, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", key, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be at most %s, got %v", key, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", key, fe.Tag())
	}
}

// SynonymMap returns the configured synonyms as a lookup table.
func (s SchemaConfig) SynonymMap() map[string]string {
	m := make(map[string]string, len(s.Synonyms))
	for _, syn := range s.Synonyms {
		m[syn.From] = syn.To
	}
	return m
}
