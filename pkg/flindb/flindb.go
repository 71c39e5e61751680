// Package flindb is the public entry point of the embeddable document store.
//
//	adapter, _ := flindb.NewFileAdapter("./data", flindb.WithCompression(flindb.CompressionZstd))
//	db, err := flindb.Open(ctx, "app", flindb.WithAdapter(adapter))
//	users, _ := db.AddCollection("users", flindb.CollectionOptions{Indices: []string{"email"}})
//	users.Insert(flindb.Document{"email": "odin@asgard", "age": 600})
//	docs, _ := users.Chain().Find(map[string]any{"age": map[string]any{"$gt": 100}}).Data()
//	db.SaveDatabase(ctx)
package flindb

import (
	"context"
	"errors"

	"github.com/skshohagmiah/flindb/internal/db"
	"github.com/skshohagmiah/flindb/internal/metrics"
	"github.com/skshohagmiah/flindb/internal/ops"
	"github.com/skshohagmiah/flindb/internal/query"
	"github.com/skshohagmiah/flindb/internal/storage"
)

type (
	Database           = db.Database
	Collection         = db.Collection
	ResultSet          = db.ResultSet
	Document           = db.Document
	CollectionOptions  = db.CollectionOptions
	RangedIndexOptions = db.RangedIndexOptions
	IndexInfo          = db.IndexInfo
	Option             = db.Option

	Query        = query.Query
	QueryBuilder = query.Builder
	Operator     = ops.Op

	Adapter     = storage.Adapter
	Compression = storage.Compression
	Metrics     = metrics.Metrics
)

var (
	ErrNotFound            = db.ErrNotFound
	ErrConstraintViolation = db.ErrConstraintViolation
	ErrIndexInconsistency  = db.ErrIndexInconsistency
	ErrMalformedQuery      = db.ErrMalformedQuery
	ErrInvalidCollection   = db.ErrInvalidCollection
	ErrInvalidDocument     = db.ErrInvalidDocument
	ErrNoAdapter           = db.ErrNoAdapter
	ErrInvalidSnapshot     = db.ErrInvalidSnapshot
)

const (
	CompressionNone = storage.CompressionNone
	CompressionZstd = storage.CompressionZstd
	CompressionLZ4  = storage.CompressionLZ4
)

var (
	New         = db.New
	NewQuery    = db.NewQuery
	WithAdapter = db.WithAdapter
	WithLogger  = db.WithLogger
	WithMetrics = db.WithMetrics
	NewMetrics  = metrics.New

	NewMemoryAdapter = storage.NewMemoryAdapter
	NewFileAdapter   = storage.NewFileAdapter
	WithCompression  = storage.WithCompression
	NewBadgerAdapter = storage.NewBadgerAdapter
	NewSQLiteAdapter = storage.NewSQLiteAdapter
	NewS3Adapter     = storage.NewS3Adapter
	NewMirrorAdapter = storage.NewMirrorAdapter
)

// Open creates a database and loads its saved snapshot when the adapter has
// one. A database never saved before opens empty.
func Open(ctx context.Context, name string, opts ...Option) (*Database, error) {
	d := db.New(name, opts...)
	err := d.LoadDatabase(ctx)
	if err == nil || errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrNoAdapter) {
		return d, nil
	}
	return nil, err
}
