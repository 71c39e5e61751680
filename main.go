package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/skshohagmiah/flindb/pkg/flindb"
)

func main() {
	ctx := context.Background()

	// Create a temporary directory for demo
	tmpDir := "./flindb-data"
	defer os.RemoveAll(tmpDir)

	adapter, err := flindb.NewFileAdapter(tmpDir, flindb.WithCompression(flindb.CompressionZstd))
	if err != nil {
		log.Fatal(err)
	}
	db, err := flindb.Open(ctx, "demo", flindb.WithAdapter(adapter))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("FlinDB Document Store Demo")
	fmt.Println("==========================")

	fmt.Println("\n1. Creating collection 'users' (binary index on name, ranged index on age)")
	users, err := db.AddCollection("users", flindb.CollectionOptions{
		Indices:       []string{"name"},
		RangedIndexes: map[string]flindb.RangedIndexOptions{"age": {}},
		Unique:        []string{"email"},
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("2. Inserting documents")
	ids, err := users.InsertMany([]flindb.Document{
		{"name": "Alice", "email": "alice@example.com", "age": 31, "joined": time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"name": "Bob", "email": "bob@example.com", "age": "27", "tags": []any{"admin"}},
		{"name": "Charlie", "email": "charlie@example.com", "age": 45},
		{"name": "Dana", "email": "dana@example.com"},
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("   ids: %v\n", ids)

	fmt.Println("\n3. Age between 25 and 40, oldest first (numeric strings compare as numbers)")
	docs, err := users.Chain().
		Find(flindb.NewQuery().Between("age", 25, 40).Build()).
		SimpleSort("age", true).
		Data()
	if err != nil {
		log.Fatal(err)
	}
	for _, d := range docs {
		fmt.Printf("   %v (age %v)\n", d["name"], d["age"])
	}

	fmt.Println("\n4. Duplicate email is rejected")
	_, err = users.Insert(flindb.Document{"name": "Eve", "email": "bob@example.com"})
	fmt.Printf("   error: %v\n", err)

	fmt.Println("\n5. Updating Dana")
	n, err := users.FindAndUpdate(map[string]any{"name": "Dana"}, func(d flindb.Document) {
		d["age"] = 52
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("   updated %d\n", n)

	fmt.Println("\n6. Saving and reopening")
	if err := db.SaveDatabase(ctx); err != nil {
		log.Fatal(err)
	}
	reopened, err := flindb.Open(ctx, "demo", flindb.WithAdapter(adapter))
	if err != nil {
		log.Fatal(err)
	}
	users, err = reopened.GetCollection("users")
	if err != nil {
		log.Fatal(err)
	}
	count, err := users.Count(map[string]any{"age": map[string]any{"$gte": 40}})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("   snapshot %s, users aged 40+: %d\n", reopened.SnapshotID(), count)

	fmt.Println("\nDemo completed successfully!")
}
