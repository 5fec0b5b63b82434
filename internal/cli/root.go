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

// Package cli implements the tradeflow command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aaronlmathis/tradeflow/config"
	"github.com/aaronlmathis/tradeflow/logger"
)

// app holds global flags and state loaded before each command.
type app struct {
	cfgFile  string
	logLevel string
	file     string
	url      string
	filters  []string

	cfg *config.Config
	log logger.Logger
}

// Execute is the entry point called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the command tree. Each call returns independent state.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tradeflow",
		Short: "Normalize trade import records and report on them",
		Long: `tradeflow reads a CSV, XLSX or XLS file (or an exported Parquet or JSON lines
file), a shared spreadsheet link or an s3:// object. It normalizes the columns and
values, then prints KPIs, breakdowns and anomalies or exports the filtered result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (default is ~/.tradeflow/config.yaml)")
	f.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	f.StringVar(&a.file, "file", "", "path to a .csv, .xlsx, .xls, .parquet or .jsonl file")
	f.StringVar(&a.url, "url", "", "shared spreadsheet link or s3://bucket/key")
	f.StringArrayVar(&a.filters, "filter", nil, "filter as Column=v1,v2 (repeatable; All selects everything)")

	root.AddCommand(
		newInspectCommand(a),
		newOptionsCommand(a),
		newKPIsCommand(a),
		newBreakdownCommand(a),
		newAnomaliesCommand(a),
		newExportCommand(a),
		newConfigCommand(a),
	)
	return root
}

// setup loads configuration and the logger. Logs go to stderr.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	log, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	a.cfg = cfg
	a.log = log
	return nil
}
