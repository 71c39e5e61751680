package db

import (
	"errors"
	"testing"
	"time"
)

// Helper function to create a test collection
func createTestCollection(t testing.TB) (*Database, *Collection) {
	db := New("test")
	users, err := db.AddCollection("users", CollectionOptions{})
	if err != nil {
		t.Fatalf("Failed to create test collection: %v", err)
	}
	return db, users
}

// TestInsert tests basic document insertion
func TestInsert(t *testing.T) {
	_, users := createTestCollection(t)

	doc := Document{
		"name":  "John Doe",
		"age":   30,
		"email": "john@example.com",
	}

	id, err := users.Insert(doc)
	if err != nil {
		t.Fatalf("Failed to insert document: %v", err)
	}

	if id != 1 {
		t.Fatalf("Expected first id 1, got %d", id)
	}
	if doc[FieldID] != int64(1) {
		t.Errorf("Expected _id written back, got %v", doc[FieldID])
	}

	// the same document cannot be inserted twice
	if _, err := users.Insert(doc); !errors.Is(err, ErrConstraintViolation) {
		t.Errorf("Expected constraint violation, got %v", err)
	}
}

// TestGet tests document retrieval
func TestGet(t *testing.T) {
	_, users := createTestCollection(t)

	originalDoc := Document{
		"name": "John Doe",
		"age":  30,
	}

	id, err := users.Insert(originalDoc)
	if err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	retrievedDoc, err := users.Get(id)
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}

	if name, ok := retrievedDoc["name"].(string); !ok || name != "John Doe" {
		t.Errorf("Name mismatch: expected 'John Doe', got '%v'", retrievedDoc["name"])
	}

	if age, ok := retrievedDoc["age"].(int); !ok || age != 30 {
		t.Errorf("Age mismatch: expected 30, got %v", retrievedDoc["age"])
	}

	// mutating the copy does not touch the stored document
	retrievedDoc["name"] = "changed"
	again, _ := users.Get(id)
	if again["name"] != "John Doe" {
		t.Errorf("Stored document changed through a copy: %v", again["name"])
	}

	if _, err := users.Get(99); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestFind tests document finding
func TestFind(t *testing.T) {
	_, users := createTestCollection(t)

	for i := 0; i < 5; i++ {
		users.Insert(Document{
			"name": "User " + string(rune('A'+i)),
			"age":  20 + i,
		})
	}

	results, err := users.Find(nil)
	if err != nil {
		t.Fatalf("Failed to find documents: %v", err)
	}

	if len(results) != 5 {
		t.Errorf("Expected 5 documents, got %d", len(results))
	}

	results, err = users.Find(map[string]any{"age": map[string]any{"$gt": 22}})
	if err != nil {
		t.Fatalf("Failed to find with filter: %v", err)
	}

	if len(results) != 2 {
		t.Errorf("Expected 2 documents with age > 22, got %d", len(results))
	}

	if _, err := users.Find(map[string]any{"age": map[string]any{"$older": 1}}); !errors.Is(err, ErrMalformedQuery) {
		t.Errorf("Expected ErrMalformedQuery, got %v", err)
	}
}

// TestUpdate tests document updates
func TestUpdate(t *testing.T) {
	_, users := createTestCollection(t)

	doc := Document{
		"name": "John",
		"age":  30,
	}
	id, err := users.Insert(doc)
	if err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	doc["age"] = 31
	if err := users.Update(doc); err != nil {
		t.Fatalf("Failed to update: %v", err)
	}

	updated, err := users.Get(id)
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if updated["age"] != 31 {
		t.Errorf("Expected age 31, got %v", updated["age"])
	}

	if err := users.Update(Document{FieldID: int64(42), "age": 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := users.Update(Document{"age": 1}); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("Expected ErrInvalidDocument, got %v", err)
	}
}

// TestDelete tests document deletion
func TestDelete(t *testing.T) {
	_, users := createTestCollection(t)

	id, _ := users.Insert(Document{"name": "John"})

	if err := users.Remove(id); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	if _, err := users.Get(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	if err := users.Remove(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}

	// ids are never reused
	next, _ := users.Insert(Document{"name": "Jane"})
	if next != id+1 {
		t.Errorf("Expected id %d, got %d", id+1, next)
	}
}

// TestIndex tests that indexed and unindexed finds agree
func TestIndex(t *testing.T) {
	_, users := createTestCollection(t)

	for i := 0; i < 20; i++ {
		users.Insert(Document{"city": []string{"NYC", "LA", "SF"}[i%3], "n": i})
	}

	before, _ := users.Find(map[string]any{"city": "NYC"})

	if err := users.EnsureIndex("city"); err != nil {
		t.Fatalf("Failed to create index: %v", err)
	}

	after, _ := users.Find(map[string]any{"city": "NYC"})
	if len(before) != 7 || len(after) != 7 {
		t.Errorf("Expected 7 NYC documents before and after indexing, got %d and %d", len(before), len(after))
	}

	indexes := users.Indexes()
	if len(indexes) != 1 || indexes[0].Field != "city" || indexes[0].Entries != 20 {
		t.Errorf("Unexpected index list: %+v", indexes)
	}

	if err := users.DropIndex("city"); err != nil {
		t.Fatalf("Failed to drop index: %v", err)
	}
	if err := users.DropIndex("city"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound dropping a missing index, got %v", err)
	}
}

// TestCount tests document counting
func TestCount(t *testing.T) {
	_, users := createTestCollection(t)

	for i := 0; i < 10; i++ {
		users.Insert(Document{"index": i})
	}

	count, err := users.Count(nil)
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}

	if count != 10 {
		t.Errorf("Expected count 10, got %d", count)
	}

	count, _ = users.Count(map[string]any{"index": map[string]any{"$lt": 4}})
	if count != 4 {
		t.Errorf("Expected filtered count 4, got %d", count)
	}
}

// TestDeleteMany tests removing all documents matching a query
func TestDeleteMany(t *testing.T) {
	_, users := createTestCollection(t)

	for i := 0; i < 10; i++ {
		users.Insert(Document{
			"age":    20 + i,
			"active": i%2 == 0,
		})
	}

	deleted, err := users.FindAndRemove(map[string]any{"active": false})
	if err != nil {
		t.Fatalf("Failed to delete many: %v", err)
	}

	if deleted != 5 {
		t.Errorf("Expected 5 deletions, got %d", deleted)
	}

	if users.Len() != 5 {
		t.Errorf("Expected 5 remaining documents, got %d", users.Len())
	}
}

// TestFindOne tests finding a single document
func TestFindOne(t *testing.T) {
	_, users := createTestCollection(t)

	for i := 0; i < 3; i++ {
		users.Insert(Document{"age": 20 + i})
	}

	doc, err := users.FindOne(map[string]any{"age": map[string]any{"$gte": 21}})
	if err != nil {
		t.Fatalf("Failed to find one: %v", err)
	}

	if age, ok := doc["age"].(int); !ok || age != 21 {
		t.Errorf("Expected age 21, got %v", doc["age"])
	}

	if _, err := users.FindOne(map[string]any{"age": 99}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestTimestamps tests that documents have creation and update timestamps
func TestTimestamps(t *testing.T) {
	_, users := createTestCollection(t)

	clock := time.UnixMilli(1_700_000_000_000)
	now = func() time.Time { return clock }
	defer func() { now = time.Now }()

	doc := Document{"name": "John"}
	id, err := users.Insert(doc)
	if err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	retrieved, _ := users.Get(id)
	createdAt, ok := retrieved[FieldCreatedAt].(int64)
	if !ok || createdAt != clock.UnixMilli() {
		t.Errorf("_created_at missing or invalid: %v", retrieved[FieldCreatedAt])
	}

	clock = clock.Add(time.Second)
	retrieved["age"] = 25
	retrieved[FieldCreatedAt] = int64(0)
	if err := users.Update(retrieved); err != nil {
		t.Fatalf("Failed to update: %v", err)
	}

	updated, _ := users.Get(id)
	if updated[FieldCreatedAt] != createdAt {
		t.Errorf("_created_at should survive updates: %v", updated[FieldCreatedAt])
	}
	if updated[FieldUpdatedAt] != clock.UnixMilli() {
		t.Errorf("_updated_at should advance: %v", updated[FieldUpdatedAt])
	}
}

// TestSorting tests document sorting
func TestSorting(t *testing.T) {
	_, users := createTestCollection(t)

	ages := []int{25, 30, 20, 35, 22}
	for _, age := range ages {
		users.Insert(Document{
			"name": "User",
			"age":  age,
		})
	}

	results, err := users.Chain().SimpleSort("age", false).Data()
	if err != nil {
		t.Fatalf("Failed to find with sort: %v", err)
	}

	for i := 0; i < len(results)-1; i++ {
		if results[i]["age"].(int) > results[i+1]["age"].(int) {
			t.Errorf("Sort order incorrect at position %d", i)
		}
	}

	results, err = users.Chain().SimpleSort("age", true).Data()
	if err != nil {
		t.Fatalf("Failed to find with desc sort: %v", err)
	}

	for i := 0; i < len(results)-1; i++ {
		if results[i]["age"].(int) < results[i+1]["age"].(int) {
			t.Errorf("Reverse sort order incorrect at position %d", i)
		}
	}
}

// TestPagination tests offset and limit
func TestPagination(t *testing.T) {
	_, users := createTestCollection(t)

	for i := 0; i < 10; i++ {
		users.Insert(Document{
			"name":  "User " + string(rune('A'+i)),
			"order": i,
		})
	}

	results, err := users.Chain().Offset(5).Limit(3).Data()
	if err != nil {
		t.Fatalf("Failed to find with pagination: %v", err)
	}

	if len(results) != 3 || results[0]["order"] != 5 {
		t.Errorf("Expected 3 results starting at order 5, got %v", results)
	}

	if _, err := users.Chain().Limit(-1).Data(); !errors.Is(err, ErrMalformedQuery) {
		t.Errorf("Expected ErrMalformedQuery for negative limit, got %v", err)
	}
}

// BenchmarkInsert benchmarks document insertion
func BenchmarkInsert(b *testing.B) {
	_, users := createTestCollection(b)
	users.EnsureIndex("age")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		users.Insert(Document{
			"name": "User",
			"age":  30,
		})
	}
}

// BenchmarkFind benchmarks finding documents
func BenchmarkFind(b *testing.B) {
	_, users := createTestCollection(b)
	users.EnsureRangedIndex("age")

	for i := 0; i < 1000; i++ {
		users.Insert(Document{
			"name": "User",
			"age":  20 + i%20,
		})
	}

	q := map[string]any{"age": map[string]any{"$gt": 25}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		users.Find(q)
	}
}

// BenchmarkUpdate benchmarks document updates
func BenchmarkUpdate(b *testing.B) {
	_, users := createTestCollection(b)
	users.EnsureIndex("age")

	doc := Document{"name": "User", "age": 30}
	users.Insert(doc)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doc["age"] = 30 + i
		users.Update(doc)
	}
}
