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

package types

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/tradeflow/core"
)

type fakeUploader struct {
	bucket string
	key    string
	body   []byte
}

func (f *fakeUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	f.bucket = *input.Bucket
	f.key = *input.Key
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.body = data
	return &s3manager.UploadOutput{}, nil
}

// TestParseOutputFormat tests names, aliases and unknown formats
func TestParseOutputFormat(t *testing.T) {
	for name, want := range map[string]OutputFormat{
		"csv": FormatCSV, "JSON": FormatJSON, "ndjson": FormatJSON, "xlsx": FormatXLSX,
		"parquet": FormatParquet, "postgresql": FormatPostgres, "mongo": FormatMongo,
	} {
		got, err := ParseOutputFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseOutputFormat("xml")
	assert.Error(t, err)
	assert.Equal(t, "parquet", FormatParquet.String())
}

// TestFormatFromPath tests extension detection
func TestFormatFromPath(t *testing.T) {
	f, ok := FormatFromPath("out/trades.XLSX")
	assert.True(t, ok)
	assert.Equal(t, FormatXLSX, f)

	_, ok = FormatFromPath("trades.txt")
	assert.False(t, ok)
}

// TestParseLocation tests destination parsing
func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("s3://exports/2024/trades.csv")
	require.NoError(t, err)
	assert.Equal(t, S3Location{Bucket: "exports", Key: "2024/trades.csv"}, loc)

	loc, err = ParseLocation("postgres://loader@db/trade?sslmode=disable&table=imports")
	require.NoError(t, err)
	assert.Equal(t, PostgresLocation{DSN: "postgres://loader@db/trade?sslmode=disable", Table: "imports"}, loc)

	loc, err = ParseLocation("mongodb://localhost:27017/analytics")
	require.NoError(t, err)
	assert.Equal(t, MongoLocation{URI: "mongodb://localhost:27017/analytics", Database: "analytics", Collection: "trades"}, loc)

	loc, err = ParseLocation("trades.csv")
	require.NoError(t, err)
	assert.Equal(t, FileLocation{Path: "trades.csv"}, loc)

	_, err = ParseLocation("s3://bucket-only")
	assert.Error(t, err)
	_, err = ParseLocation("")
	assert.Error(t, err)
}

// TestFileLocation_CSV tests writing a CSV file in a new directory
func TestFileLocation_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "trades.csv")
	sink, err := FileLocation{Path: path}.NewSink(context.Background(), FormatCSV, []string{"State", "Quantity"})
	require.NoError(t, err)

	require.NoError(t, sink.Write(context.Background(), core.Record{"State": "CA", "Quantity": 12.5}))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "State,Quantity\nCA,12.5\n", string(data))
}

// TestFileLocation_UnsupportedFormat tests database formats are rejected
func TestFileLocation_UnsupportedFormat(t *testing.T) {
	_, err := FileLocation{Path: filepath.Join(t.TempDir(), "x")}.NewSink(context.Background(), FormatMongo, nil)
	assert.Error(t, err)
}

// TestS3Location_Upload tests that the object is uploaded on close
func TestS3Location_Upload(t *testing.T) {
	uploader := &fakeUploader{}
	loc := S3Location{Bucket: "exports", Key: "trades.json", Uploader: uploader}

	sink, err := loc.NewSink(context.Background(), FormatJSON, []string{"State"})
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), core.Record{"State": "CA"}))
	assert.Nil(t, uploader.body)

	require.NoError(t, sink.Close())
	assert.Equal(t, "exports", uploader.bucket)
	assert.Equal(t, "trades.json", uploader.key)
	assert.Equal(t, "{\"State\":\"CA\"}\n", string(uploader.body))
}

// TestDatabaseLocations_FormatMismatch tests format checks before connecting
func TestDatabaseLocations_FormatMismatch(t *testing.T) {
	_, err := PostgresLocation{DSN: "postgres://x", Table: "t"}.NewSink(context.Background(), FormatCSV, nil)
	assert.Error(t, err)

	_, err = MongoLocation{URI: "mongodb://x", Database: "d", Collection: "c"}.NewSink(context.Background(), FormatCSV, nil)
	assert.Error(t, err)
}
