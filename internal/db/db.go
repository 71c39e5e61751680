// Package db is the embeddable document store: a Database of named
// Collections, queried through lazy ResultSet pipelines and persisted as
// JSON snapshots through a storage.Adapter.
package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/skshohagmiah/flindb/internal/metrics"
	"github.com/skshohagmiah/flindb/internal/storage"
)

// Database is a named set of collections. It is not safe for concurrent
// use; callers serialize access.
type Database struct {
	name        string
	collections map[string]*Collection
	adapter     storage.Adapter
	log         *zap.Logger
	metrics     *metrics.Metrics

	// id of the snapshot last saved or loaded
	snapshotID string
}

// Option configures a Database
type Option func(*Database)

// WithAdapter sets the persistence adapter used by Save/Load/Delete.
func WithAdapter(a storage.Adapter) Option {
	return func(d *Database) { d.adapter = a }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Database) {
		if l != nil {
			d.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Database) { d.metrics = m }
}

// New creates an empty database
func New(name string, opts ...Option) *Database {
	d := &Database{
		name:        name,
		collections: make(map[string]*Collection),
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With(zap.String("database", name))
	return d
}

// Name returns the database name
func (d *Database) Name() string { return d.name }

// SnapshotID returns the id of the snapshot last saved or loaded, or "".
func (d *Database) SnapshotID() string { return d.snapshotID }

// AddCollection creates a collection, or returns the existing one of that
// name unchanged.
func (d *Database) AddCollection(name string, opts CollectionOptions) (*Collection, error) {
	if c, ok := d.collections[name]; ok {
		return c, nil
	}
	c, err := newCollection(name, opts, d.log, d.metrics)
	if err != nil {
		return nil, err
	}
	if err := c.applyIndexOptions(opts); err != nil {
		return nil, err
	}
	d.collections[name] = c
	d.metrics.Documents(name, 0)
	d.log.Debug("collection added", zap.String("collection", name))
	return c, nil
}

// GetCollection returns a collection by name
func (d *Database) GetCollection(name string) (*Collection, error) {
	c, ok := d.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", ErrNotFound, name)
	}
	return c, nil
}

// RemoveCollection drops a collection and its documents
func (d *Database) RemoveCollection(name string) error {
	if _, ok := d.collections[name]; !ok {
		return fmt.Errorf("%w: collection %s", ErrNotFound, name)
	}
	delete(d.collections, name)
	d.metrics.Forget(name)
	return nil
}

// ListCollections returns the collection names, sorted.
func (d *Database) ListCollections() []string {
	return sortedKeys(d.collections)
}

// Serialize encodes the whole database as a JSON snapshot.
func (d *Database) Serialize() ([]byte, error) {
	s := snapshot{
		Format:      snapshotFormat,
		ID:          newSnapshotID(),
		Name:        d.name,
		SavedAt:     now().UTC(),
		Collections: make([]collectionSnapshot, 0, len(d.collections)),
	}
	for _, name := range d.ListCollections() {
		s.Collections = append(s.Collections, d.collections[name].snapshot())
	}
	data, err := encodeSnapshot(s)
	if err != nil {
		return nil, err
	}
	d.snapshotID = s.ID
	return data, nil
}

// LoadJSON replaces every collection with the contents of a snapshot. The
// snapshot is fully decoded first; on error the database is unchanged.
func (d *Database) LoadJSON(data []byte) error {
	s, err := decodeSnapshot(data)
	if err != nil {
		return err
	}
	loaded := make(map[string]*Collection, len(s.Collections))
	for _, cs := range s.Collections {
		if _, dup := loaded[cs.Name]; dup {
			return invalidSnapshot("collection %s appears twice", cs.Name)
		}
		c, err := restoreCollection(cs, d.log, d.metrics)
		if err != nil {
			return err
		}
		loaded[cs.Name] = c
	}

	for name := range d.collections {
		if _, ok := loaded[name]; !ok {
			d.metrics.Forget(name)
		}
	}
	d.collections = loaded
	d.snapshotID = s.ID
	for name, c := range loaded {
		d.metrics.Documents(name, c.Len())
	}
	return nil
}

// SaveDatabase serializes the database and hands it to the adapter.
func (d *Database) SaveDatabase(ctx context.Context) error {
	if d.adapter == nil {
		return ErrNoAdapter
	}
	data, err := d.Serialize()
	if err != nil {
		return err
	}
	start := time.Now()
	err = d.adapter.SaveDatabase(ctx, d.name, data)
	d.metrics.Persist("save", start, err)
	if err != nil {
		return fmt.Errorf("failed to save database %s: %w", d.name, err)
	}
	d.log.Info("database saved",
		zap.String("snapshot", d.snapshotID),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// LoadDatabase replaces the in-memory state with the adapter's copy. A
// missing database reports ErrNotFound and leaves the state untouched.
func (d *Database) LoadDatabase(ctx context.Context) error {
	if d.adapter == nil {
		return ErrNoAdapter
	}
	start := time.Now()
	data, err := d.adapter.LoadDatabase(ctx, d.name)
	d.metrics.Persist("load", start, err)
	if err != nil {
		return adapterErr("load", d.name, err)
	}
	if err := d.LoadJSON(data); err != nil {
		return err
	}
	d.log.Info("database loaded",
		zap.String("snapshot", d.snapshotID),
		zap.Int("collections", len(d.collections)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// DeleteDatabase removes the adapter's copy. In-memory state is kept.
func (d *Database) DeleteDatabase(ctx context.Context) error {
	if d.adapter == nil {
		return ErrNoAdapter
	}
	start := time.Now()
	err := d.adapter.DeleteDatabase(ctx, d.name)
	d.metrics.Persist("delete", start, err)
	if err != nil {
		return adapterErr("delete", d.name, err)
	}
	d.log.Info("database deleted")
	return nil
}

func adapterErr(op, name string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("failed to %s database %s: %w", op, name, err)
}

// Close releases the adapter when it holds resources.
func (d *Database) Close() error {
	if c, ok := d.adapter.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
