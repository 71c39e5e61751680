package db

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/skshohagmiah/flindb/internal/index"
	"github.com/skshohagmiah/flindb/internal/metrics"
	"github.com/skshohagmiah/flindb/internal/query"
	"github.com/skshohagmiah/flindb/internal/value"
)

// Collection is a named set of documents with its secondary indexes. It is
// not safe for concurrent use.
type Collection struct {
	name    string
	docs    map[int64]Document
	live    *roaring64.Bitmap
	maxID   int64
	options CollectionOptions

	binary map[string]*index.Binary
	ranged map[string]*index.Ranged
	// unique field -> unique key -> owning id
	unique map[string]map[string]int64

	schema *gojsonschema.Schema

	log     *zap.Logger
	metrics *metrics.Metrics
}

func newCollection(name string, opts CollectionOptions, log *zap.Logger, m *metrics.Metrics) (*Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidCollection)
	}
	c := &Collection{
		name:    name,
		docs:    make(map[int64]Document),
		live:    roaring64.New(),
		binary:  make(map[string]*index.Binary),
		ranged:  make(map[string]*index.Ranged),
		unique:  make(map[string]map[string]int64),
		log:     log.With(zap.String("collection", name)),
		metrics: m,
	}
	if err := c.SetSchema(opts.Schema); err != nil {
		return nil, err
	}
	for field, ro := range opts.RangedIndexes {
		if ro.IndexType != "" && ro.IndexType != "avl" {
			return nil, fmt.Errorf("%w: unknown ranged index type %q on %s", ErrInvalidCollection, ro.IndexType, field)
		}
	}
	return c, nil
}

// applyIndexOptions creates the indexes named in opts over the current
// documents.
func (c *Collection) applyIndexOptions(opts CollectionOptions) error {
	for _, field := range opts.Indices {
		if err := c.EnsureIndex(field); err != nil {
			return err
		}
	}
	for _, field := range sortedKeys(opts.RangedIndexes) {
		if err := c.EnsureRangedIndex(field); err != nil {
			return err
		}
	}
	for _, field := range opts.Unique {
		if err := c.EnsureUniqueIndex(field); err != nil {
			return err
		}
	}
	return nil
}

// Name returns the collection name
func (c *Collection) Name() string { return c.name }

// Len returns the number of live documents
func (c *Collection) Len() int { return len(c.docs) }

// MaxID returns the highest id ever assigned
func (c *Collection) MaxID() int64 { return c.maxID }

// Options returns the current definition, including indexes added since
// creation.
func (c *Collection) Options() CollectionOptions {
	out := CollectionOptions{Schema: c.options.Schema}
	out.Indices = sortedKeys(c.binary)
	if len(c.ranged) > 0 {
		out.RangedIndexes = make(map[string]RangedIndexOptions, len(c.ranged))
		for field := range c.ranged {
			out.RangedIndexes[field] = RangedIndexOptions{IndexType: "avl"}
		}
	}
	out.Unique = sortedKeys(c.unique)
	return out
}

// SetSchema replaces the JSON schema documents are validated against. An
// empty schema disables validation. Existing documents are not re-checked.
func (c *Collection) SetSchema(schema string) error {
	if schema == "" {
		c.schema = nil
		c.options.Schema = ""
		return nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return fmt.Errorf("%w: invalid json schema: %v", ErrInvalidCollection, err)
	}
	c.schema = compiled
	c.options.Schema = schema
	return nil
}

func (c *Collection) validateSchema(doc Document) error {
	if c.schema == nil {
		return nil
	}
	result, err := c.schema.Validate(gojsonschema.NewGoLoader(value.Encode(userFields(doc))))
	if err != nil {
		return fmt.Errorf("%w: schema validation error: %v", ErrInvalidDocument, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}
	return nil
}

func (c *Collection) keyOf(field string) index.KeyFunc {
	return func(id int64) (value.Value, bool) {
		doc, ok := c.docs[id]
		if !ok {
			return value.Value{}, false
		}
		return value.Lookup(doc, field), true
	}
}

// checkUnique reports a unique-field clash between doc and any live
// document other than self, or a key already claimed in pending.
func (c *Collection) checkUnique(doc Document, self int64, pending map[string]map[string]struct{}) error {
	for field, owners := range c.unique {
		key, ok := value.Lookup(doc, field).UniqueKey()
		if !ok {
			continue
		}
		if owner, taken := owners[key]; taken && owner != self {
			return fmt.Errorf("%w: duplicate value for unique field %s", ErrConstraintViolation, field)
		}
		if pending == nil {
			continue
		}
		if _, taken := pending[field][key]; taken {
			return fmt.Errorf("%w: duplicate value for unique field %s", ErrConstraintViolation, field)
		}
		if pending[field] == nil {
			pending[field] = make(map[string]struct{})
		}
		pending[field][key] = struct{}{}
	}
	return nil
}

func (c *Collection) claimUnique(id int64, doc Document) {
	for field, owners := range c.unique {
		if key, ok := value.Lookup(doc, field).UniqueKey(); ok {
			owners[key] = id
		}
	}
}

func (c *Collection) releaseUnique(id int64, doc Document) {
	for field, owners := range c.unique {
		if key, ok := value.Lookup(doc, field).UniqueKey(); ok && owners[key] == id {
			delete(owners, key)
		}
	}
}

// Insert adds a document, assigns its _id and bookkeeping timestamps, and
// writes them back into doc.
func (c *Collection) Insert(doc Document) (int64, error) {
	ids, err := c.InsertMany([]Document{doc})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// InsertMany adds documents as one unit: every document is checked before
// any is stored, so a failure leaves the collection unchanged.
func (c *Collection) InsertMany(docs []Document) ([]int64, error) {
	prepared := make([]Document, len(docs))
	pending := make(map[string]map[string]struct{})
	for i, doc := range docs {
		if doc == nil {
			return nil, fmt.Errorf("%w: nil document", ErrInvalidDocument)
		}
		if _, ok := doc[FieldID]; ok {
			return nil, fmt.Errorf("%w: document already has an %s", ErrConstraintViolation, FieldID)
		}
		stored := cloneDoc(doc)
		if err := c.validateSchema(stored); err != nil {
			return nil, err
		}
		if err := c.checkUnique(stored, 0, pending); err != nil {
			return nil, err
		}
		prepared[i] = stored
	}

	stamp := now().UnixMilli()
	ids := make([]int64, len(prepared))
	for i, stored := range prepared {
		c.maxID++
		id := c.maxID
		stored[FieldID] = id
		stored[FieldCreatedAt] = stamp
		stored[FieldUpdatedAt] = stamp
		c.docs[id] = stored
		c.live.Add(uint64(id))
		for field, idx := range c.binary {
			idx.Insert(id, value.Lookup(stored, field))
		}
		for field, idx := range c.ranged {
			idx.Insert(id, value.Lookup(stored, field))
		}
		c.claimUnique(id, stored)

		docs[i][FieldID] = id
		docs[i][FieldCreatedAt] = stamp
		docs[i][FieldUpdatedAt] = stamp
		ids[i] = id
		c.metrics.Op(c.name, opInsert)
	}
	c.metrics.Documents(c.name, len(c.docs))
	return ids, nil
}

// Update replaces the stored document carrying doc's _id. _created_at is
// kept from the stored version.
func (c *Collection) Update(doc Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	id, ok := doc.ID()
	if !ok {
		return fmt.Errorf("%w: missing or malformed %s", ErrInvalidDocument, FieldID)
	}
	old, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("%w: document %d in %s", ErrNotFound, id, c.name)
	}

	stored := cloneDoc(doc)
	if err := c.validateSchema(stored); err != nil {
		return err
	}
	if err := c.checkUnique(stored, id, nil); err != nil {
		return err
	}

	stamp := now().UnixMilli()
	stored[FieldID] = id
	stored[FieldCreatedAt] = old[FieldCreatedAt]
	stored[FieldUpdatedAt] = stamp

	for field, idx := range c.binary {
		idx.Update(id, value.Lookup(stored, field))
	}
	for field, idx := range c.ranged {
		idx.Update(id, value.Lookup(stored, field))
	}
	c.releaseUnique(id, old)
	c.claimUnique(id, stored)
	c.docs[id] = stored

	doc[FieldUpdatedAt] = stamp
	c.metrics.Op(c.name, opUpdate)
	return nil
}

// Remove deletes a document by id. The id is never reused.
func (c *Collection) Remove(id int64) error {
	old, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("%w: document %d in %s", ErrNotFound, id, c.name)
	}
	for _, idx := range c.binary {
		idx.Remove(id)
	}
	for _, idx := range c.ranged {
		idx.Remove(id)
	}
	c.releaseUnique(id, old)
	delete(c.docs, id)
	c.live.Remove(uint64(id))

	c.metrics.Op(c.name, opRemove)
	c.metrics.Documents(c.name, len(c.docs))
	return nil
}

// RemoveDocument deletes the document carrying doc's _id.
func (c *Collection) RemoveDocument(doc Document) error {
	id, ok := doc.ID()
	if !ok {
		return fmt.Errorf("%w: missing or malformed %s", ErrInvalidDocument, FieldID)
	}
	return c.Remove(id)
}

// Get retrieves a copy of a document by id
func (c *Collection) Get(id int64) (Document, error) {
	doc, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %d in %s", ErrNotFound, id, c.name)
	}
	return cloneDoc(doc), nil
}

// EnsureIndex builds a binary index on field. It is a no-op when one
// exists.
func (c *Collection) EnsureIndex(field string) error {
	if field == "" {
		return fmt.Errorf("%w: empty index field", ErrInvalidCollection)
	}
	if _, ok := c.binary[field]; ok {
		return nil
	}
	idx := index.BuildBinary(field, c.ids(), c.keyOf(field))
	if err := idx.Validate(len(c.docs), c.keyOf(field)); err != nil {
		return err
	}
	c.binary[field] = idx
	c.log.Debug("binary index built", zap.String("field", field), zap.Int("entries", idx.Len()))
	return nil
}

// EnsureRangedIndex builds a ranged index on field. It is a no-op when one
// exists.
func (c *Collection) EnsureRangedIndex(field string) error {
	if field == "" {
		return fmt.Errorf("%w: empty index field", ErrInvalidCollection)
	}
	if _, ok := c.ranged[field]; ok {
		return nil
	}
	idx := c.buildRanged(field)
	if err := idx.Validate(len(c.docs), c.keyOf(field)); err != nil {
		return err
	}
	c.ranged[field] = idx
	c.log.Debug("ranged index built", zap.String("field", field), zap.Int("height", idx.Height()))
	return nil
}

func (c *Collection) buildRanged(field string) *index.Ranged {
	idx := index.NewRanged(field)
	keyOf := c.keyOf(field)
	for _, id := range c.ids() {
		key, _ := keyOf(id)
		idx.Insert(id, key)
	}
	return idx
}

// EnsureUniqueIndex constrains field to distinct values among documents
// where it is a scalar. Fails without change if live documents clash.
func (c *Collection) EnsureUniqueIndex(field string) error {
	if field == "" {
		return fmt.Errorf("%w: empty index field", ErrInvalidCollection)
	}
	if _, ok := c.unique[field]; ok {
		return nil
	}
	owners, err := c.buildUnique(field)
	if err != nil {
		return err
	}
	c.unique[field] = owners
	return nil
}

func (c *Collection) buildUnique(field string) (map[string]int64, error) {
	owners := make(map[string]int64)
	for _, id := range c.ids() {
		key, ok := value.Lookup(c.docs[id], field).UniqueKey()
		if !ok {
			continue
		}
		if other, taken := owners[key]; taken {
			return nil, fmt.Errorf("%w: documents %d and %d share unique field %s", ErrConstraintViolation, other, id, field)
		}
		owners[key] = id
	}
	return owners, nil
}

// DropIndex removes every index on field.
func (c *Collection) DropIndex(field string) error {
	_, b := c.binary[field]
	_, r := c.ranged[field]
	_, u := c.unique[field]
	if !b && !r && !u {
		return fmt.Errorf("%w: no index on %s.%s", ErrNotFound, c.name, field)
	}
	delete(c.binary, field)
	delete(c.ranged, field)
	delete(c.unique, field)
	return nil
}

// Indexes describes the active indexes, ordered by field.
func (c *Collection) Indexes() []IndexInfo {
	var out []IndexInfo
	for field, idx := range c.binary {
		out = append(out, IndexInfo{Field: field, Kind: idx.Kind().String(), Entries: idx.Len()})
	}
	for field, idx := range c.ranged {
		out = append(out, IndexInfo{Field: field, Kind: idx.Kind().String(), Entries: idx.Len()})
	}
	for field, owners := range c.unique {
		out = append(out, IndexInfo{Field: field, Kind: "unique", Entries: len(owners)})
	}
	slices.SortFunc(out, func(a, b IndexInfo) int {
		if n := strings.Compare(a.Field, b.Field); n != 0 {
			return n
		}
		return strings.Compare(a.Kind, b.Kind)
	})
	return out
}

// CheckIndexes validates every index against the live documents without
// repairing anything.
func (c *Collection) CheckIndexes() error {
	var errs []error
	for _, field := range sortedKeys(c.binary) {
		errs = append(errs, c.binary[field].Validate(len(c.docs), c.keyOf(field)))
	}
	for _, field := range sortedKeys(c.ranged) {
		errs = append(errs, c.ranged[field].Validate(len(c.docs), c.keyOf(field)))
	}
	for _, field := range sortedKeys(c.unique) {
		want, err := c.buildUnique(field)
		if err == nil && !maps.Equal(want, c.unique[field]) {
			err = fmt.Errorf("%w: %s: unique owners out of date", ErrIndexInconsistency, field)
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateIndexes checks every index and rebuilds the ones that no longer
// mirror the documents. It returns the rebuilt fields. Documents that now
// clash on a unique field leave that field's owners untouched and are
// reported as ErrConstraintViolation.
func (c *Collection) ValidateIndexes() ([]string, error) {
	var rebuilt []string
	for _, field := range sortedKeys(c.binary) {
		if err := c.binary[field].Validate(len(c.docs), c.keyOf(field)); err != nil {
			c.rebuildWarn(field, err)
			c.binary[field] = index.BuildBinary(field, c.ids(), c.keyOf(field))
			rebuilt = append(rebuilt, field)
		}
	}
	for _, field := range sortedKeys(c.ranged) {
		if err := c.ranged[field].Validate(len(c.docs), c.keyOf(field)); err != nil {
			c.rebuildWarn(field, err)
			c.ranged[field] = c.buildRanged(field)
			if !slices.Contains(rebuilt, field) {
				rebuilt = append(rebuilt, field)
			}
		}
	}
	var errs []error
	for _, field := range sortedKeys(c.unique) {
		owners, err := c.buildUnique(field)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if maps.Equal(owners, c.unique[field]) {
			continue
		}
		c.rebuildWarn(field, fmt.Errorf("%w: %s: unique owners out of date", ErrIndexInconsistency, field))
		c.unique[field] = owners
		if !slices.Contains(rebuilt, field) {
			rebuilt = append(rebuilt, field)
		}
	}
	return rebuilt, errors.Join(errs...)
}

func (c *Collection) rebuildWarn(field string, err error) {
	c.log.Warn("rebuilding index", zap.String("field", field), zap.Error(err))
	c.metrics.IndexRebuilt(c.name, field)
}

func (c *Collection) ids() []int64 {
	return query.IDs(c.live)
}

// IDs returns every live document id. Part of query.Source.
func (c *Collection) IDs() *roaring64.Bitmap { return c.live.Clone() }

// Value resolves a dotted path in a live document. Part of query.Source.
func (c *Collection) Value(id int64, path string) value.Value {
	return value.Lookup(c.docs[id], path)
}

// Index returns the index serving path, preferring the ranged one. Part of
// query.Source.
func (c *Collection) Index(path string) index.Index {
	if idx, ok := c.ranged[path]; ok {
		return idx
	}
	if idx, ok := c.binary[path]; ok {
		return idx
	}
	return nil
}
