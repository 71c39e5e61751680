package db

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skshohagmiah/flindb/internal/index"
	"github.com/skshohagmiah/flindb/internal/metrics"
	"github.com/skshohagmiah/flindb/internal/value"
)

const snapshotFormat = "flindb/1"

// snapshot is the persisted form of a database
type snapshot struct {
	Format      string               `json:"format"`
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	SavedAt     time.Time            `json:"savedAt"`
	Collections []collectionSnapshot `json:"collections"`
}

type collectionSnapshot struct {
	Name          string                          `json:"name"`
	MaxID         int64                           `json:"maxId"`
	Options       CollectionOptions               `json:"options"`
	Documents     []map[string]any                `json:"documents"`
	BinaryIndexes map[string][]int64              `json:"binaryIndexes,omitempty"`
	RangedIndexes map[string]index.RangedSnapshot `json:"rangedIndexes,omitempty"`
}

func (c *Collection) snapshot() collectionSnapshot {
	cs := collectionSnapshot{
		Name:      c.name,
		MaxID:     c.maxID,
		Options:   c.Options(),
		Documents: make([]map[string]any, 0, len(c.docs)),
	}
	for _, id := range c.ids() {
		cs.Documents = append(cs.Documents, value.Encode(map[string]any(c.docs[id])).(map[string]any))
	}
	if len(c.binary) > 0 {
		cs.BinaryIndexes = make(map[string][]int64, len(c.binary))
		for field, idx := range c.binary {
			cs.BinaryIndexes[field] = idx.Backup()
		}
	}
	if len(c.ranged) > 0 {
		cs.RangedIndexes = make(map[string]index.RangedSnapshot, len(c.ranged))
		for field, idx := range c.ranged {
			cs.RangedIndexes[field] = idx.Backup()
		}
	}
	return cs
}

func invalidSnapshot(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSnapshot, fmt.Sprintf(format, args...))
}

// restoreCollection rebuilds a collection from its snapshot. Saved index
// layouts are reused when they validate; anything missing or damaged is
// rebuilt from the documents.
func restoreCollection(cs collectionSnapshot, log *zap.Logger, m *metrics.Metrics) (*Collection, error) {
	c, err := newCollection(cs.Name, CollectionOptions{
		Schema:        cs.Options.Schema,
		RangedIndexes: cs.Options.RangedIndexes,
	}, log, m)
	if err != nil {
		return nil, err
	}

	for i, raw := range cs.Documents {
		doc, ok := value.Decode(raw).(map[string]any)
		if !ok || doc == nil {
			return nil, invalidSnapshot("%s: document %d is not an object", cs.Name, i)
		}
		id, ok := toID(doc[FieldID])
		if !ok {
			return nil, invalidSnapshot("%s: document %d has no valid %s", cs.Name, i, FieldID)
		}
		if _, dup := c.docs[id]; dup {
			return nil, invalidSnapshot("%s: id %d appears twice", cs.Name, id)
		}
		doc[FieldID] = id
		for _, f := range []string{FieldCreatedAt, FieldUpdatedAt} {
			if ms, ok := doc[f].(float64); ok {
				doc[f] = int64(ms)
			}
		}
		c.docs[id] = Document(doc)
		c.live.Add(uint64(id))
		c.maxID = max(c.maxID, id)
	}
	c.maxID = max(c.maxID, cs.MaxID)

	for _, field := range cs.Options.Indices {
		if field == "" {
			return nil, invalidSnapshot("%s: empty index field", cs.Name)
		}
		c.restoreBinary(field, cs.BinaryIndexes)
	}
	for _, field := range sortedKeys(cs.Options.RangedIndexes) {
		if field == "" {
			return nil, invalidSnapshot("%s: empty index field", cs.Name)
		}
		c.restoreRanged(field, cs.RangedIndexes)
	}
	for _, field := range cs.Options.Unique {
		if err := c.EnsureUniqueIndex(field); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collection) restoreBinary(field string, saved map[string][]int64) {
	keyOf := c.keyOf(field)
	if ids, ok := saved[field]; ok {
		idx, err := index.RestoreBinary(field, ids, keyOf)
		if err == nil {
			err = idx.Validate(len(c.docs), keyOf)
		}
		if err == nil {
			c.binary[field] = idx
			return
		}
		c.rebuildWarn(field, err)
	} else {
		c.log.Debug("no saved binary index, rebuilding", zap.String("field", field))
	}
	c.binary[field] = index.BuildBinary(field, c.ids(), keyOf)
}

func (c *Collection) restoreRanged(field string, saved map[string]index.RangedSnapshot) {
	keyOf := c.keyOf(field)
	if snap, ok := saved[field]; ok {
		var idx *index.Ranged
		err := fmt.Errorf("%w: %s: snapshot is for field %q", ErrIndexInconsistency, field, snap.Field)
		if snap.Field == field {
			idx, err = index.RestoreRanged(snap, keyOf)
		}
		if err == nil {
			err = idx.Validate(len(c.docs), keyOf)
		}
		if err == nil {
			c.ranged[field] = idx
			return
		}
		c.rebuildWarn(field, err)
	} else {
		c.log.Debug("no saved ranged index, rebuilding", zap.String("field", field))
	}
	c.ranged[field] = c.buildRanged(field)
}

func encodeSnapshot(s snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (snapshot, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if s.Format != snapshotFormat {
		return s, invalidSnapshot("unsupported format %q", s.Format)
	}
	return s, nil
}

func newSnapshotID() string {
	return uuid.NewString()
}
