// Package storage holds the persistence adapters a database saves its
// snapshots through. An adapter stores one opaque blob per database name.
package storage

import (
	"context"
	"errors"
	"strings"
)

// Common errors
var (
	ErrNotFound    = errors.New("database not found")
	ErrInvalidName = errors.New("invalid database name")
	ErrClosed      = errors.New("adapter closed")
)

// Adapter is the persistence boundary. Implementations must be safe for
// concurrent use.
type Adapter interface {
	// LoadDatabase returns the blob saved under name, or an error wrapping
	// ErrNotFound.
	LoadDatabase(ctx context.Context, name string) ([]byte, error)
	// SaveDatabase replaces the blob saved under name.
	SaveDatabase(ctx context.Context, name string, data []byte) error
	// DeleteDatabase removes the blob saved under name. Deleting an unknown
	// name reports ErrNotFound.
	DeleteDatabase(ctx context.Context, name string) error
}

// Lister is implemented by adapters that can enumerate saved databases.
type Lister interface {
	ListDatabases(ctx context.Context) ([]string, error)
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\\x00") || name == "." || name == ".." {
		return ErrInvalidName
	}
	return nil
}
