package db

import (
	"errors"

	"github.com/skshohagmiah/flindb/internal/index"
	"github.com/skshohagmiah/flindb/internal/query"
)

// Common errors
var (
	ErrNotFound            = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrInvalidCollection   = errors.New("invalid collection")
	ErrInvalidDocument     = errors.New("invalid document")
	ErrNoAdapter           = errors.New("no persistence adapter configured")
	ErrInvalidSnapshot     = errors.New("invalid snapshot")

	ErrIndexInconsistency = index.ErrIndexInconsistency
	ErrMalformedQuery     = query.ErrMalformedQuery
)

// Document represents a single document in a collection
type Document map[string]interface{}

// Bookkeeping fields stamped on every stored document
const (
	FieldID        = "_id"
	FieldCreatedAt = "_created_at"
	FieldUpdatedAt = "_updated_at"
)

// ID returns the document id, if it carries one.
func (d Document) ID() (int64, bool) {
	return toID(d[FieldID])
}

// CollectionOptions configures a collection at creation.
type CollectionOptions struct {
	Indices       []string                      `json:"indices,omitempty"`
	RangedIndexes map[string]RangedIndexOptions `json:"rangedIndexes,omitempty"`
	Unique        []string                      `json:"unique,omitempty"`
	Schema        string                        `json:"schema,omitempty"`
}

// RangedIndexOptions configures one ranged index. The only tree is "avl".
type RangedIndexOptions struct {
	IndexType string `json:"indexTypeName,omitempty"`
}

// IndexInfo describes an active index
type IndexInfo struct {
	Field   string `json:"field"`
	Kind    string `json:"kind"`
	Entries int    `json:"entries"`
}

// Operation names recorded in metrics and logs
const (
	opInsert = "insert"
	opUpdate = "update"
	opRemove = "remove"
	opFind   = "find"
)
