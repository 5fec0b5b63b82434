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

// Package types resolves export destinations and formats to data sinks.
package types

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/tradeflow/core"
	"github.com/aaronlmathis/tradeflow/writers"
)

// OutputFormat represents a supported sink format.
type OutputFormat int

const (
	FormatCSV OutputFormat = iota
	FormatJSON
	FormatXLSX
	FormatParquet
	FormatPostgres
	FormatMongo
)

var formatNames = map[OutputFormat]string{
	FormatCSV:      "csv",
	FormatJSON:     "json",
	FormatXLSX:     "xlsx",
	FormatParquet:  "parquet",
	FormatPostgres: "postgres",
	FormatMongo:    "mongo",
}

func (f OutputFormat) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("OutputFormat(%d)", int(f))
}

// ParseOutputFormat maps a format name to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "jsonl", "ndjson":
		return FormatJSON, nil
	case "postgresql":
		return FormatPostgres, nil
	case "mongodb":
		return FormatMongo, nil
	}
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown output format %q", s)
}

// FormatFromPath guesses the file format from a path or object key extension.
func FormatFromPath(path string) (OutputFormat, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, true
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON, true
	case ".xlsx":
		return FormatXLSX, true
	case ".parquet":
		return FormatParquet, true
	}
	return 0, false
}

// OutputLocation creates a DataSink for a given format. Columns fixes the field order
// of the written rows.
type OutputLocation interface {
	NewSink(ctx context.Context, format OutputFormat, columns []string) (core.DataSink, error)
}

// ParseLocation maps a destination string to a location:
//
//	s3://bucket/key                          S3Location
//	postgres://user@host/db?table=trades     PostgresLocation
//	mongodb://host:27017/db?collection=x     MongoLocation
//	anything else                            FileLocation
func ParseLocation(dest string) (OutputLocation, error) {
	switch {
	case strings.HasPrefix(dest, "s3://"):
		u, err := url.Parse(dest)
		if err != nil || u.Host == "" || strings.Trim(u.Path, "/") == "" {
			return nil, fmt.Errorf("invalid s3 destination %q: expected s3://bucket/key", dest)
		}
		return S3Location{Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}, nil
	case strings.HasPrefix(dest, "postgres://"), strings.HasPrefix(dest, "postgresql://"):
		dsn, table, err := splitQueryParam(dest, "table", "trades")
		if err != nil {
			return nil, err
		}
		return PostgresLocation{DSN: dsn, Table: table}, nil
	case strings.HasPrefix(dest, "mongodb://"), strings.HasPrefix(dest, "mongodb+srv://"):
		uri, collection, err := splitQueryParam(dest, "collection", "trades")
		if err != nil {
			return nil, err
		}
		u, _ := url.Parse(uri)
		database := strings.Trim(u.Path, "/")
		if database == "" {
			database = "tradeflow"
		}
		return MongoLocation{URI: uri, Database: database, Collection: collection}, nil
	case dest == "":
		return nil, fmt.Errorf("destination is required")
	}
	return FileLocation{Path: dest}, nil
}

// splitQueryParam removes one query parameter from a connection URL, so drivers
// never see an option they do not understand.
func splitQueryParam(raw, key, fallback string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid destination: %w", err)
	}
	q := u.Query()
	value := q.Get(key)
	if value == "" {
		value = fallback
	}
	q.Del(key)
	u.RawQuery = q.Encode()
	return u.String(), value, nil
}

// newFileSink builds a file-format writer over w.
func newFileSink(w io.WriteCloser, format OutputFormat, columns []string) (core.DataSink, error) {
	switch format {
	case FormatCSV:
		return writers.NewCSVWriter(w, writers.WithHeaders(columns))
	case FormatJSON:
		return writers.NewJSONWriter(w, writers.WithJSONHeaders(columns)), nil
	case FormatXLSX:
		return writers.NewXLSXWriter(w, writers.WithXLSXHeaders(columns))
	case FormatParquet:
		return writers.NewParquetWriter(w, writers.WithFieldOrder(columns))
	default:
		return nil, fmt.Errorf("format %s cannot be written to a file", format)
	}
}

// FileLocation writes output to a local filesystem path.
type FileLocation struct {
	Path string
}

// NewSink instantiates a writer for the file location, creating parent directories.
func (f FileLocation) NewSink(ctx context.Context, format OutputFormat, columns []string) (core.DataSink, error) {
	if format == FormatPostgres || format == FormatMongo {
		return nil, fmt.Errorf("format %s cannot be written to a file", format)
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(f.Path)
	if err != nil {
		return nil, err
	}
	sink, err := newFileSink(file, format, columns)
	if err != nil {
		file.Close()
		os.Remove(f.Path)
		return nil, err
	}
	return sink, nil
}

// S3UploadAPI is the subset of the S3 upload manager used for exports.
type S3UploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// S3Location writes objects to an S3 bucket. Without an Uploader one is built from
// the default AWS configuration chain.
type S3Location struct {
	Bucket    string
	Key       string
	Region    string
	Profile   string
	Endpoint  string
	PathStyle bool
	Uploader  S3UploadAPI
}

// s3WriteCloser buffers the object and uploads it on Close.
type s3WriteCloser struct {
	ctx      context.Context
	buf      bytes.Buffer
	uploader S3UploadAPI
	bucket   string
	key      string
}

func (s *s3WriteCloser) Write(p []byte) (int, error) { return s.buf.Write(p) }

func (s *s3WriteCloser) Close() error {
	_, err := s.uploader.Upload(s.ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(s.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

// NewSink creates a writer uploading to S3 when closed.
func (s S3Location) NewSink(ctx context.Context, format OutputFormat, columns []string) (core.DataSink, error) {
	if s.Uploader == nil {
		var opts []func(*awsconfig.LoadOptions) error
		if s.Region != "" {
			opts = append(opts, awsconfig.WithRegion(s.Region))
		}
		if s.Profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(s.Profile))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(cfg, func(o *s3.Options) {
			if s.Endpoint != "" {
				o.BaseEndpoint = aws.String(s.Endpoint)
			}
			o.UsePathStyle = s.PathStyle
		})
		s.Uploader = s3manager.NewUploader(client)
	}

	w := &s3WriteCloser{ctx: ctx, uploader: s.Uploader, bucket: s.Bucket, key: s.Key}
	return newFileSink(w, format, columns)
}

// PostgresLocation directs output to a PostgreSQL table, created if absent.
type PostgresLocation struct {
	DSN   string
	Table string
}

// NewSink instantiates a PostgreSQL writer.
func (p PostgresLocation) NewSink(ctx context.Context, format OutputFormat, columns []string) (core.DataSink, error) {
	if format != FormatPostgres {
		return nil, fmt.Errorf("unsupported format %s for postgres destination", format)
	}
	return writers.NewPostgresWriter(
		writers.WithPostgresDSN(p.DSN),
		writers.WithTableName(p.Table),
		writers.WithColumns(columns),
		writers.WithCreateTable(true),
	)
}

// MongoLocation directs output to a MongoDB collection.
type MongoLocation struct {
	URI        string
	Database   string
	Collection string
}

// NewSink instantiates a MongoDB writer.
func (m MongoLocation) NewSink(ctx context.Context, format OutputFormat, columns []string) (core.DataSink, error) {
	if format != FormatMongo {
		return nil, fmt.Errorf("unsupported format %s for mongo destination", format)
	}
	return writers.NewMongoWriter(ctx,
		writers.WithMongoURI(m.URI),
		writers.WithMongoDatabase(m.Database),
		writers.WithMongoCollection(m.Collection),
		writers.WithMongoFields(columns),
	)
}
