package flindb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skshohagmiah/flindb/pkg/flindb"
)

func TestOpenSaveReopen(t *testing.T) {
	ctx := context.Background()
	adapter, err := flindb.NewFileAdapter(t.TempDir(), flindb.WithCompression(flindb.CompressionLZ4))
	require.NoError(t, err)

	db, err := flindb.Open(ctx, "app", flindb.WithAdapter(adapter))
	require.NoError(t, err)
	assert.Empty(t, db.ListCollections())

	events, err := db.AddCollection("events", flindb.CollectionOptions{
		RangedIndexes: map[string]flindb.RangedIndexOptions{"at": {IndexType: "avl"}},
	})
	require.NoError(t, err)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 10 {
		_, err := events.Insert(flindb.Document{"at": base.Add(time.Duration(i) * time.Hour), "n": i})
		require.NoError(t, err)
	}
	require.NoError(t, db.SaveDatabase(ctx))

	again, err := flindb.Open(ctx, "app", flindb.WithAdapter(adapter))
	require.NoError(t, err)
	events, err = again.GetCollection("events")
	require.NoError(t, err)

	q := flindb.NewQuery().Between("at", base.Add(2*time.Hour), base.Add(4*time.Hour)).Build()
	docs, err := events.Chain().Find(q).SimpleSort("n", true).Data()
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.EqualValues(t, 4, docs[0]["n"])
}

func TestOpenWithoutAdapter(t *testing.T) {
	db, err := flindb.Open(context.Background(), "scratch")
	require.NoError(t, err)
	assert.Equal(t, "scratch", db.Name())
	assert.ErrorIs(t, db.SaveDatabase(context.Background()), flindb.ErrNoAdapter)
}
