package db

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skshohagmiah/flindb/internal/value"
)

func newColl(t *testing.T, opts CollectionOptions) *Collection {
	t.Helper()
	c, err := New("db").AddCollection("coll", opts)
	require.NoError(t, err)
	return c
}

func count(t *testing.T, c *Collection, q map[string]any) int {
	t.Helper()
	n, err := c.Count(q)
	require.NoError(t, err)
	return n
}

func field(t *testing.T, docs []Document, name string) []any {
	t.Helper()
	out := make([]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, d[name])
	}
	return out
}

func TestMixedDatatypes(t *testing.T) {
	c := newColl(t, CollectionOptions{})
	for _, v := range []any{nil, "asdf", "11", 2, "1", "4", 7.2, "5", 4, "18.1"} {
		_, err := c.Insert(Document{"a": v, "b": 5})
		require.NoError(t, err)
	}

	check := func() {
		doc, err := c.FindOne(map[string]any{"a": "asdf"})
		require.NoError(t, err)
		assert.Equal(t, "asdf", doc["a"])
		assert.Equal(t, 1, count(t, c, map[string]any{"a": 4}))
		assert.Equal(t, 1, count(t, c, map[string]any{"a": "4"}))
		assert.Equal(t, 5, count(t, c, map[string]any{"a": map[string]any{"$between": []any{4, 12}}}))
		assert.Equal(t, 4, count(t, c, map[string]any{"a": map[string]any{"$gte": "7.2"}}))
		n, err := c.Chain().
			Find(map[string]any{"a": map[string]any{"$gte": "7.2"}}).
			Find(map[string]any{"a": map[string]any{"$finite": true}}).
			Count()
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, 3, count(t, c, map[string]any{"a": map[string]any{"$gt": "7.2"}}))
		assert.Equal(t, 7, count(t, c, map[string]any{"a": map[string]any{"$lte": "7.2"}}))
	}
	check()
	require.NoError(t, c.EnsureIndex("a"))
	check()
	require.NoError(t, c.EnsureRangedIndex("a"))
	check()
}

func TestStrictNumericRange(t *testing.T) {
	c := newColl(t, CollectionOptions{})
	for _, v := range []any{nil, "11", 2, "1", "4", 7.2, "5", 4, "18.1"} {
		c.Insert(Document{"a": v, "b": 5})
	}
	// numeric strings never satisfy the $j operators
	assert.Equal(t, 1, count(t, c, map[string]any{"a": map[string]any{"$jgt": 5}}))
	assert.Equal(t, 1, count(t, c, map[string]any{"a": map[string]any{"$jgte": 5}}))
	assert.Equal(t, 2, count(t, c, map[string]any{"a": map[string]any{"$jlt": 7.2}}))
	assert.Equal(t, 3, count(t, c, map[string]any{"a": map[string]any{"$jlte": 7.2}}))
	assert.Equal(t, 2, count(t, c, map[string]any{"a": map[string]any{"$jbetween": []any{3.2, 7.8}}}))
}

func TestBetween(t *testing.T) {
	c := newColl(t, CollectionOptions{})
	for _, n := range []int{5, 15, 75, 100} {
		c.Insert(Document{"count": n})
	}
	between := func(lo, hi int) []any {
		docs, err := c.Chain().Find(map[string]any{"count": map[string]any{"$between": []any{lo, hi}}}).SimpleSort("count", false).Data()
		require.NoError(t, err)
		return field(t, docs, "count")
	}
	assert.Equal(t, []any{15, 75}, between(15, 75))
	assert.Equal(t, []any{100}, between(76, 100))
	require.NoError(t, c.EnsureRangedIndex("count"))
	assert.Equal(t, []any{15, 75}, between(15, 75))
	assert.Equal(t, []any{100}, between(76, 100))

	c = newColl(t, CollectionOptions{})
	for _, d := range []Document{
		{"name": "first", "count": 5},
		{"name": "mjolnir", "count": 15},
		{"name": "gungnir", "count": 15},
		{"name": "tyrfing", "count": 75},
		{"name": "draupnir", "count": 75},
		{"name": "last", "count": 100},
	} {
		c.Insert(d)
	}
	bounds := []struct {
		lo, hi, want int
	}{
		{-1, 4, 0}, {-1, 5, 1}, {-1, 6, 1}, {99, 140, 1}, {100, 140, 1},
		{101, 140, 0}, {12, 76, 4}, {20, 60, 0}, {15, 75, 4},
	}
	for _, indexed := range []bool{false, true} {
		if indexed {
			require.NoError(t, c.EnsureRangedIndex("count"))
		}
		for _, b := range bounds {
			got := count(t, c, map[string]any{"count": map[string]any{"$between": []any{b.lo, b.hi}}})
			assert.Equal(t, b.want, got, "indexed=%v [%d,%d]", indexed, b.lo, b.hi)
		}
		docs, err := c.Chain().Find(map[string]any{"count": map[string]any{"$between": []any{15, 75}}}).SimpleSort("count", false).Data()
		require.NoError(t, err)
		assert.Equal(t, []any{"mjolnir", "gungnir", "tyrfing", "draupnir"}, field(t, docs, "name"))
	}
}

func TestIndexedIn(t *testing.T) {
	c := newColl(t, CollectionOptions{RangedIndexes: map[string]RangedIndexOptions{"count": {}}})
	c.Insert(Document{"name": "mjolnir", "count": 73})
	c.Insert(Document{"name": "gungnir", "count": 5})
	c.Insert(Document{"name": "tyrfing", "count": 15})
	c.Insert(Document{"name": "draupnir", "count": 132})

	docs, err := c.Chain().Find(map[string]any{"count": map[string]any{"$in": []any{15, 73}}}).SimpleSort("count", false).Data()
	require.NoError(t, err)
	assert.Equal(t, []any{15, 73}, field(t, docs, "count"))
}

func TestKeyInOperators(t *testing.T) {
	c := newColl(t, CollectionOptions{})
	c.Insert(Document{"name": "mjolnir"})

	assert.Equal(t, 1, count(t, c, map[string]any{"name": map[string]any{"$keyin": map[string]any{"mjolnir": "not relevant"}}}))
	assert.Equal(t, 1, count(t, c, map[string]any{"name": map[string]any{"$keyin": map[string]any{"mjolnir": nil}}}))
	assert.Equal(t, 0, count(t, c, map[string]any{"name": map[string]any{"$nkeyin": map[string]any{"mjolnir": nil}}}))
	assert.Equal(t, 0, count(t, c, map[string]any{"name": map[string]any{"$definedin": map[string]any{"mjolnir": nil}}}))
	assert.Equal(t, 1, count(t, c, map[string]any{"name": map[string]any{"$undefinedin": map[string]any{"mjolnir": nil}}}))
}

func TestContains(t *testing.T) {
	c := newColl(t, CollectionOptions{})
	c.Insert(Document{"name": "odin", "weapons": []any{"gungnir", "draupnir"}, "options": map[string]any{"a": true, "b": true}})
	c.Insert(Document{"name": "thor", "weapons": []any{"mjolnir"}, "options": map[string]any{"b": true, "c": true}})
	c.Insert(Document{"name": "svafrlami", "weapons": []any{"tyrfing"}, "options": map[string]any{}})
	c.Insert(Document{"name": "arngrim", "weapons": []any{"tyrfing"}, "options": map[string]any{"c": true}})

	op := func(path, op string, operand any) int {
		return count(t, c, map[string]any{path: map[string]any{op: operand}})
	}
	assert.Equal(t, 1, op("name", "$contains", "d"))
	assert.Equal(t, 4, op("name", "$containsAny", []any{"o", "i"}))
	assert.Equal(t, 0, op("name", "$containsNone", []any{"i", "o"}))

	assert.Equal(t, 1, op("weapons", "$contains", []any{"gungnir", "draupnir"}))
	assert.Equal(t, 2, op("weapons", "$contains", "tyrfing"))
	assert.Equal(t, 3, op("weapons", "$containsAny", []any{"tyrfing", "mjolnir"}))
	assert.Equal(t, 1, op("weapons", "$containsNone", []any{"tyrfing", "gungnir"}))

	assert.Equal(t, 1, op("options", "$contains", []any{"a", "b"}))
	assert.Equal(t, 3, op("options", "$containsAny", []any{"b", "c"}))
	assert.Equal(t, 1, op("options", "$containsNone", []any{"a", "b", "c"}))
}

func TestSize(t *testing.T) {
	c := newColl(t, CollectionOptions{})
	tree := []Document{
		{"text": "Q", "value": "q", "parents_id": []any{}},
		{"text": "R", "value": "r", "parents_id": []any{17}},
		{"text": "S", "value": "s", "parents_id": []any{17, 18, 19, 20}},
		{"text": "T", "value": "t", "parents_id": []any{17, 18}},
		{"text": "U", "value": "u", "parents_id": []any{17, 18, 19}},
	}
	_, err := c.InsertMany(tree)
	require.NoError(t, err)

	docs, err := c.Find(map[string]any{"parents_id": map[string]any{"$size": 4}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "s", docs[0]["value"])
}

func TestPointQueriesAndIDRetirement(t *testing.T) {
	c := newColl(t, CollectionOptions{Indices: []string{"_id"}})
	ids, err := c.InsertMany([]Document{{"n": 1}, {"n": 2}, {"n": 3}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	doc, err := c.FindOne(map[string]any{"_id": ids[1]})
	require.NoError(t, err)
	assert.Equal(t, 2, doc["n"])

	require.NoError(t, c.Remove(ids[2]))
	next, err := c.Insert(Document{"n": 4})
	require.NoError(t, err)
	assert.Equal(t, int64(4), next)
	assert.Equal(t, 0, count(t, c, map[string]any{"_id": ids[2]}))
	assert.Equal(t, int64(4), c.MaxID())
}

func TestUniqueIndex(t *testing.T) {
	c := newColl(t, CollectionOptions{Unique: []string{"email"}, Indices: []string{"age"}})
	_, err := c.Insert(Document{"email": "a@x", "age": 1})
	require.NoError(t, err)
	b := Document{"email": "b@x", "age": 2}
	_, err = c.Insert(b)
	require.NoError(t, err)

	_, err = c.Insert(Document{"email": "a@x", "age": 3})
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 0, count(t, c, map[string]any{"age": 3}))

	// a failing batch stores nothing
	_, err = c.InsertMany([]Document{{"email": "c@x"}, {"email": "c@x"}})
	assert.ErrorIs(t, err, ErrConstraintViolation)
	assert.Equal(t, 2, c.Len())

	b["email"] = "a@x"
	assert.ErrorIs(t, c.Update(b), ErrConstraintViolation)
	stored, _ := c.Get(2)
	assert.Equal(t, "b@x", stored["email"])

	// the freed value can be claimed once its owner changes
	b["email"] = "b2@x"
	require.NoError(t, c.Update(b))
	_, err = c.Insert(Document{"email": "b@x"})
	require.NoError(t, err)

	// documents without the field are not constrained
	_, err = c.InsertMany([]Document{{"age": 9}, {"age": 9}})
	require.NoError(t, err)

	assert.ErrorIs(t, c.EnsureUniqueIndex("age"), ErrConstraintViolation)
	assert.Equal(t, []IndexInfo{
		{Field: "age", Kind: "binary", Entries: 5},
		{Field: "email", Kind: "unique", Entries: 3},
	}, c.Indexes())
}

func TestSchema(t *testing.T) {
	schema := `{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"age": {"type": "integer", "minimum": 0}
		},
		"required": ["name"],
		"additionalProperties": false
	}`
	c := newColl(t, CollectionOptions{Schema: schema})

	_, err := c.Insert(Document{"name": "odin", "age": 50})
	require.NoError(t, err)
	_, err = c.Insert(Document{"age": 50})
	assert.ErrorIs(t, err, ErrInvalidDocument)
	_, err = c.Insert(Document{"name": "thor", "hammer": true})
	assert.ErrorIs(t, err, ErrInvalidDocument)

	doc, _ := c.Get(1)
	doc["age"] = -1
	assert.ErrorIs(t, c.Update(doc), ErrInvalidDocument)

	_, err = New("db").AddCollection("bad", CollectionOptions{Schema: "{"})
	assert.ErrorIs(t, err, ErrInvalidCollection)
}

func TestResultSetPipeline(t *testing.T) {
	c := newColl(t, CollectionOptions{})
	ages := []int{20, 22, 24, 21, 22, 24}
	for i, name := range []string{"odin", "thor", "heimdall", "sif", "frigg", "balder"} {
		c.Insert(Document{"name": name, "age": ages[i], "when": time.Unix(int64(1000-i), 0)})
	}

	rs := c.Chain().
		Find(map[string]any{"age": map[string]any{"$gte": 21}}).
		Where(func(d Document) bool { return d["name"] != "sif" }).
		SimpleSort("age", true)
	docs, err := rs.Data()
	require.NoError(t, err)
	// stable: equal ages keep ascending id order
	assert.Equal(t, []any{"heimdall", "balder", "thor", "frigg"}, field(t, docs, "name"))

	// re-running sees later mutations
	c.Insert(Document{"name": "tyr", "age": 30, "when": time.Unix(2000, 0)})
	n, err := rs.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	docs, err = c.Chain().Sort(func(a, b Document) int {
		return value.CompareAny(a["when"], b["when"])
	}).Limit(2).Data()
	require.NoError(t, err)
	assert.Equal(t, []any{"balder", "frigg"}, field(t, docs, "name"))

	updated, err := c.Chain().Find(map[string]any{"name": map[string]any{"$regex": "^t"}}).Update(func(d Document) {
		d["god"] = true
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.Equal(t, 2, count(t, c, map[string]any{"god": true}))

	removed, err := c.Chain().Find(map[string]any{"god": map[string]any{"$exists": false}}).Remove()
	require.NoError(t, err)
	assert.Equal(t, 5, removed)
	assert.Equal(t, 2, c.Len())

	bad := c.Chain().Find(map[string]any{"a": map[string]any{"$zzz": 1}})
	assert.ErrorIs(t, bad.Err(), ErrMalformedQuery)
	_, err = bad.IDs()
	assert.ErrorIs(t, err, ErrMalformedQuery)
}

func TestFindAndUpdate(t *testing.T) {
	c := newColl(t, CollectionOptions{RangedIndexes: map[string]RangedIndexOptions{"score": {}}})
	for i := 0; i < 10; i++ {
		c.Insert(Document{"score": i})
	}
	n, err := c.FindAndUpdate(map[string]any{"score": map[string]any{"$lt": 5}}, func(d Document) {
		d["score"] = d["score"].(int) + 100
	})
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, count(t, c, map[string]any{"score": map[string]any{"$gte": 100}}))
	rebuilt, err := c.ValidateIndexes()
	require.NoError(t, err)
	assert.Empty(t, rebuilt)
	require.NoError(t, c.CheckIndexes())
}

func TestRandomMutationParity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	plain := newColl(t, CollectionOptions{})
	indexed := newColl(t, CollectionOptions{
		Indices:       []string{"v"},
		RangedIndexes: map[string]RangedIndexOptions{"w": {}},
	})
	pick := func() any {
		switch rng.Intn(6) {
		case 0:
			return nil
		case 1:
			return fmt.Sprint(rng.Intn(20))
		case 2:
			return rng.Float64() * 20
		case 3:
			return "s" + fmt.Sprint(rng.Intn(5))
		default:
			return rng.Intn(20)
		}
	}
	for step := 0; step < 400; step++ {
		switch r := rng.Intn(10); {
		case r < 6 || plain.Len() == 0:
			v, w := pick(), pick()
			d1, d2 := Document{"v": v, "w": w}, Document{"v": v, "w": w}
			if rng.Intn(5) == 0 {
				delete(d1, "w")
				delete(d2, "w")
			}
			id1, err := plain.Insert(d1)
			require.NoError(t, err)
			id2, err := indexed.Insert(d2)
			require.NoError(t, err)
			require.Equal(t, id1, id2)
		case r < 8:
			ids, _ := plain.Chain().IDs()
			id := ids[rng.Intn(len(ids))]
			v := pick()
			require.NoError(t, plain.Update(Document{FieldID: id, "v": v, "w": v}))
			require.NoError(t, indexed.Update(Document{FieldID: id, "v": v, "w": v}))
		default:
			ids, _ := plain.Chain().IDs()
			id := ids[rng.Intn(len(ids))]
			require.NoError(t, plain.Remove(id))
			require.NoError(t, indexed.Remove(id))
		}
	}
	require.NoError(t, indexed.CheckIndexes())

	queries := []map[string]any{
		{"v": map[string]any{"$between": []any{4, 12}}},
		{"w": map[string]any{"$between": []any{4, 12}}},
		{"v": map[string]any{"$gt": "7"}, "w": map[string]any{"$lte": 15}},
		{"w": map[string]any{"$neq": 3}},
		{"w": map[string]any{"$aeq": nil}},
		{"v": map[string]any{"$in": []any{1, "1", "s2"}}},
		{"v": 3},
		{"w": map[string]any{"$lt": "s3"}},
	}
	for _, q := range queries {
		want, err := plain.Chain().Find(q).IDs()
		require.NoError(t, err)
		got, err := indexed.Chain().Find(q).IDs()
		require.NoError(t, err)
		assert.Equal(t, want, got, "%v", q)
	}
}

func TestWhereCannotMutateStore(t *testing.T) {
	c := newColl(t, CollectionOptions{Indices: []string{"name"}})
	c.Insert(Document{"name": "odin"})
	c.Insert(Document{"name": "thor"})

	n, err := c.Chain().Where(func(d Document) bool {
		d["name"] = "jotunn"
		return true
	}).Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, c.CheckIndexes())
	assert.Equal(t, 1, count(t, c, map[string]any{"name": "odin"}))
	assert.Zero(t, count(t, c, map[string]any{"name": "jotunn"}))
}

func TestValidateIndexesRepairs(t *testing.T) {
	c := newColl(t, CollectionOptions{Indices: []string{"a"}, RangedIndexes: map[string]RangedIndexOptions{"b": {}}})
	for i := 0; i < 5; i++ {
		c.Insert(Document{"a": i, "b": i})
	}
	// mutate stored documents behind the indexes' back
	c.docs[1]["a"] = 99
	c.docs[2]["b"] = 99
	assert.ErrorIs(t, c.CheckIndexes(), ErrIndexInconsistency)
	rebuilt, err := c.ValidateIndexes()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rebuilt)
	require.NoError(t, c.CheckIndexes())
	assert.Equal(t, 1, count(t, c, map[string]any{"a": map[string]any{"$gt": 50}}))
}

func TestValidateIndexesRepairsUnique(t *testing.T) {
	c := newColl(t, CollectionOptions{Unique: []string{"email"}})
	for _, e := range []string{"odin@asgard", "thor@asgard", "heimdall@asgard"} {
		_, err := c.Insert(Document{"email": e})
		require.NoError(t, err)
	}
	c.docs[2]["email"] = "thor@midgard"
	assert.ErrorIs(t, c.CheckIndexes(), ErrIndexInconsistency)

	rebuilt, err := c.ValidateIndexes()
	require.NoError(t, err)
	assert.Equal(t, []string{"email"}, rebuilt)
	require.NoError(t, c.CheckIndexes())

	// the released value is free again, the new one is owned
	_, err = c.Insert(Document{"email": "thor@asgard"})
	require.NoError(t, err)
	_, err = c.Insert(Document{"email": "thor@midgard"})
	assert.ErrorIs(t, err, ErrConstraintViolation)

	// a real clash cannot be repaired
	c.docs[1]["email"] = "thor@midgard"
	_, err = c.ValidateIndexes()
	assert.ErrorIs(t, err, ErrConstraintViolation)
}
