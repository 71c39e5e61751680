package db

import (
	"fmt"

	"github.com/skshohagmiah/flindb/internal/query"
)

// NewQuery returns a fluent builder whose Build result can be passed to
// Find and friends.
func NewQuery() *query.Builder {
	return query.NewBuilder()
}

// Find returns copies of the documents matching q in ascending id order.
// A nil or empty query matches every document.
func (c *Collection) Find(q map[string]any) ([]Document, error) {
	return c.Chain().Find(q).Data()
}

// FindOne returns the matching document with the lowest id
func (c *Collection) FindOne(q map[string]any) (Document, error) {
	docs, err := c.Chain().Find(q).Limit(1).Data()
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no document in %s matches", ErrNotFound, c.name)
	}
	return docs[0], nil
}

// Count returns the number of documents matching q
func (c *Collection) Count(q map[string]any) (int, error) {
	if len(q) == 0 {
		return len(c.docs), nil
	}
	return c.Chain().Find(q).Count()
}

// FindAndUpdate applies fn to a copy of every matching document and stores
// the result.
func (c *Collection) FindAndUpdate(q map[string]any, fn func(Document)) (int, error) {
	return c.Chain().Find(q).Update(fn)
}

// FindAndRemove deletes every matching document
func (c *Collection) FindAndRemove(q map[string]any) (int, error) {
	return c.Chain().Find(q).Remove()
}
