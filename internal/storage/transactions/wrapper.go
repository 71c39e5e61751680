// Package transactions holds small helpers around Badger transactions.
package transactions

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ReadTxn runs fn in a view transaction
func ReadTxn(db *badger.DB, fn func(*badger.Txn) error) error {
	return db.View(fn)
}

// WriteTxn runs fn in an update transaction
func WriteTxn(db *badger.DB, fn func(*badger.Txn) error) error {
	return db.Update(fn)
}

// GetKey returns a copy of the value stored under key.
func GetKey(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// ExistsKey reports whether key is present
func ExistsKey(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// KeysWithPrefix returns every key under prefix, without values.
func KeysWithPrefix(txn *badger.Txn, prefix []byte) [][]byte {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	return keys
}
