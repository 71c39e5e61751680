package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/skshohagmiah/flindb/internal/storage/transactions"
)

const badgerPrefix = "db:"

// BadgerAdapter stores snapshots in a BadgerDB keyspace under "db:<name>".
type BadgerAdapter struct {
	db *badger.DB
}

// NewBadgerAdapter opens (or creates) a Badger store at path. An empty path
// keeps everything in memory.
func NewBadgerAdapter(path string) (*BadgerAdapter, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	// one version per key; snapshots are whole blobs
	opts.NumVersionsToKeep = 1
	opts.ValueThreshold = 1024
	if path == "" {
		opts.InMemory = true
	} else {
		opts.SyncWrites = true
		opts.CompactL0OnClose = true
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}
	return &BadgerAdapter{db: db}, nil
}

func badgerKey(name string) []byte {
	return []byte(badgerPrefix + name)
}

func (a *BadgerAdapter) LoadDatabase(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := transactions.ReadTxn(a.db, func(txn *badger.Txn) error {
		var err error
		data, err = transactions.GetKey(txn, badgerKey(name))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if errors.Is(err, badger.ErrDBClosed) {
		return nil, ErrClosed
	}
	return data, err
}

func (a *BadgerAdapter) SaveDatabase(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkName(name); err != nil {
		return err
	}
	err := transactions.WriteTxn(a.db, func(txn *badger.Txn) error {
		return txn.Set(badgerKey(name), data)
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

func (a *BadgerAdapter) DeleteDatabase(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := transactions.WriteTxn(a.db, func(txn *badger.Txn) error {
		ok, err := transactions.ExistsKey(txn, badgerKey(name))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return txn.Delete(badgerKey(name))
	})
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

// ListDatabases returns the saved names in key order.
func (a *BadgerAdapter) ListDatabases(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := transactions.ReadTxn(a.db, func(txn *badger.Txn) error {
		for _, k := range transactions.KeysWithPrefix(txn, []byte(badgerPrefix)) {
			names = append(names, strings.TrimPrefix(string(k), badgerPrefix))
		}
		return nil
	})
	return names, err
}

// Close closes the Badger store
func (a *BadgerAdapter) Close() error {
	return a.db.Close()
}
