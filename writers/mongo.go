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

package writers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/aaronlmathis/tradeflow/core"
)

// MongoWriterError provides structured error information for MongoDB writer operations.
type MongoWriterError struct {
	Op         string // Operation that failed (e.g., "connect", "insert")
	Collection string // Collection being written when the error occurred
	Err        error  // Underlying error
}

func (e *MongoWriterError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("mongo writer %s [%s]: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("mongo writer %s: %v", e.Op, e.Err)
}

func (e *MongoWriterError) Unwrap() error {
	return e.Err
}

// MongoWriterStats holds statistics about the MongoDB writer's performance.
type MongoWriterStats struct {
	RecordsWritten  int64
	BatchesWritten  int64
	WriteDuration   time.Duration
	LastWriteTime   time.Time
	NullValueCounts map[string]int64
}

// MongoWriterOptions configures the MongoDB writer.
type MongoWriterOptions struct {
	URI          string        // MongoDB connection URI
	Database     string        // Database name
	Collection   string        // Collection name
	Fields       []string      // Document field order
	BatchSize    int           // Documents per InsertMany
	Timeout      time.Duration // Connect and flush timeout
	MaxPoolSize  uint64        // Connection pool size
	Username     string        // Authentication username
	Password     string        // Authentication password
	AuthDatabase string        // Authentication database
	Ordered      bool          // Stop a batch at the first failed insert
	DropFirst    bool          // Drop the collection before the first batch
	Majority     bool          // Require majority write concern
}

// WriterOptionMongo is a functional option for MongoWriterOptions.
type WriterOptionMongo func(*MongoWriterOptions)

// WithMongoURI sets the connection URI.
func WithMongoURI(uri string) WriterOptionMongo {
	return func(opts *MongoWriterOptions) { opts.URI = uri }
}

// WithMongoDatabase sets the target database.
func WithMongoDatabase(database string) WriterOptionMongo {
	return func(opts *MongoWriterOptions) { opts.Database = database }
}

// WithMongoCollection sets the target collection.
func WithMongoCollection(collection string) WriterOptionMongo {
	return func(opts *MongoWriterOptions) { opts.Collection = collection }
}

// WithMongoFields fixes the document field order.
func WithMongoFields(fields []string) WriterOptionMongo {
	return func(opts *MongoWriterOptions) { opts.Fields = append([]string(nil), fields...) }
}

// WithMongoBatchSize sets how many documents go into one InsertMany.
func WithMongoBatchSize(size int) WriterOptionMongo {
	return func(opts *MongoWriterOptions) { opts.BatchSize = size }
}

// WithMongoTimeout sets the connect and flush timeout.
func WithMongoTimeout(timeout time.Duration) WriterOptionMongo {
	return func(opts *MongoWriterOptions) { opts.Timeout = timeout }
}

// WithMongoAuth sets credentials. An empty authDB authenticates against the target database.
func WithMongoAuth(username, password, authDB string) WriterOptionMongo {
	return func(opts *MongoWriterOptions) {
		opts.Username = username
		opts.Password = password
		opts.AuthDatabase = authDB
	}
}

// WithMongoDropFirst drops the collection before the first batch.
func WithMongoDropFirst(drop bool) WriterOptionMongo {
	return func(opts *MongoWriterOptions) { opts.DropFirst = drop }
}

// WithMongoMajority requests majority write concern.
func WithMongoMajority(majority bool) WriterOptionMongo {
	return func(opts *MongoWriterOptions) { opts.Majority = majority }
}

// MongoWriter implements core.DataSink for MongoDB output. Each record becomes one
// document with fields in column order; missing cells are stored as null.
type MongoWriter struct {
	client      *mongo.Client
	collection  *mongo.Collection
	opts        MongoWriterOptions
	fields      []string
	buffer      []interface{}
	stats       MongoWriterStats
	initialized bool
	closed      bool
	errorState  bool
	mu          sync.Mutex
}

// NewMongoWriter validates options, connects and pings the server.
func NewMongoWriter(ctx context.Context, options ...WriterOptionMongo) (*MongoWriter, error) {
	opts := MongoWriterOptions{
		URI:         "mongodb://localhost:27017",
		BatchSize:   500,
		Timeout:     30 * time.Second,
		MaxPoolSize: 10,
		Ordered:     true,
	}
	for _, option := range options {
		option(&opts)
	}

	if opts.Database == "" {
		return nil, &MongoWriterError{Op: "validate", Err: fmt.Errorf("database name is required")}
	}
	if opts.Collection == "" {
		return nil, &MongoWriterError{Op: "validate", Err: fmt.Errorf("collection name is required")}
	}
	if opts.BatchSize <= 0 {
		return nil, &MongoWriterError{Op: "validate", Err: fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)}
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, buildMongoClientOptions(opts))
	if err != nil {
		return nil, &MongoWriterError{Op: "connect", Err: err}
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, &MongoWriterError{Op: "ping", Err: err}
	}

	return &MongoWriter{
		client:     client,
		collection: client.Database(opts.Database).Collection(opts.Collection),
		opts:       opts,
		fields:     append([]string(nil), opts.Fields...),
		buffer:     make([]interface{}, 0, opts.BatchSize),
		stats:      MongoWriterStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// buildMongoClientOptions constructs client options from writer configuration.
func buildMongoClientOptions(opts MongoWriterOptions) *options.ClientOptions {
	clientOpts := options.Client().ApplyURI(opts.URI)

	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.Timeout > 0 {
		clientOpts.SetConnectTimeout(opts.Timeout)
	}
	if opts.Username != "" && opts.Password != "" {
		auth := options.Credential{
			Username:   opts.Username,
			Password:   opts.Password,
			AuthSource: opts.AuthDatabase,
		}
		if auth.AuthSource == "" {
			auth.AuthSource = opts.Database
		}
		clientOpts.SetAuth(auth)
	}
	if opts.Majority {
		clientOpts.SetWriteConcern(writeconcern.Majority())
	}
	clientOpts.SetRetryWrites(true)
	return clientOpts
}

// Stats returns a copy of the writer statistics.
func (mw *MongoWriter) Stats() MongoWriterStats {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	statsCopy := mw.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(mw.stats.NullValueCounts))
	for k, v := range mw.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}

// Write implements the core.DataSink interface.
func (mw *MongoWriter) Write(ctx context.Context, record core.Record) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	if mw.closed {
		return &MongoWriterError{Op: "write", Collection: mw.opts.Collection, Err: fmt.Errorf("writer is closed")}
	}
	if mw.errorState {
		return &MongoWriterError{Op: "write", Collection: mw.opts.Collection, Err: fmt.Errorf("writer is in error state")}
	}
	if len(mw.fields) == 0 {
		mw.fields = sortedKeys(record)
	}

	doc := toDocument(mw.fields, record)
	for _, e := range doc {
		if e.Value == nil {
			mw.stats.NullValueCounts[e.Key]++
		}
	}
	mw.buffer = append(mw.buffer, doc)
	mw.stats.RecordsWritten++

	if len(mw.buffer) >= mw.opts.BatchSize {
		if err := mw.flushUnsafe(ctx); err != nil {
			mw.errorState = true
			return err
		}
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (mw *MongoWriter) Flush() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), mw.opts.Timeout)
	defer cancel()
	return mw.flushUnsafe(ctx)
}

// Close flushes pending documents and disconnects.
func (mw *MongoWriter) Close() error {
	if err := mw.Flush(); err != nil {
		return err
	}

	mw.mu.Lock()
	defer mw.mu.Unlock()

	if mw.closed {
		return nil
	}
	mw.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), mw.opts.Timeout)
	defer cancel()
	if err := mw.client.Disconnect(ctx); err != nil {
		return &MongoWriterError{Op: "disconnect", Err: err}
	}
	return nil
}

// flushUnsafe inserts the buffered documents (must hold mutex).
func (mw *MongoWriter) flushUnsafe(ctx context.Context) error {
	if len(mw.buffer) == 0 {
		return nil
	}
	start := time.Now()

	if !mw.initialized {
		if mw.opts.DropFirst {
			if err := mw.collection.Drop(ctx); err != nil {
				return &MongoWriterError{Op: "drop", Collection: mw.opts.Collection, Err: err}
			}
		}
		mw.initialized = true
	}

	insertOpts := options.InsertMany().SetOrdered(mw.opts.Ordered)
	if _, err := mw.collection.InsertMany(ctx, mw.buffer, insertOpts); err != nil {
		return &MongoWriterError{Op: "insert", Collection: mw.opts.Collection, Err: err}
	}

	mw.stats.BatchesWritten++
	mw.stats.WriteDuration += time.Since(start)
	mw.stats.LastWriteTime = time.Now()
	mw.buffer = mw.buffer[:0]
	return nil
}

// toDocument converts a record to an ordered BSON document.
func toDocument(fields []string, record core.Record) bson.D {
	doc := make(bson.D, 0, len(fields))
	for _, f := range fields {
		v := record[f]
		if core.IsMissing(v) {
			v = nil
		}
		doc = append(doc, bson.E{Key: f, Value: v})
	}
	return doc
}
