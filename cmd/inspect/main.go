// Package main provides a read-only inspection tool for the document
// database. It prints per-collection counts and a sample of each
// collection's documents.
//
// Usage:
//
//	DB_PATH=~/Libroteca/data/db go run ./cmd/inspect
package main

import (
	"encoding/json/v2"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const sampleSize = 3

var collections = []string{"users", "authors", "books", "favorites", "comments"}

func main() {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/Libroteca/data/db")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Database Inspection ===")
	fmt.Println()

	for _, collection := range collections {
		if err := inspectCollection(db, collection); err != nil {
			log.Fatalf("Failed to inspect %s: %v", collection, err)
		}
	}
}

func inspectCollection(db *badger.DB, collection string) error {
	prefix := collection + ":"
	count := 0
	indexCount := 0
	var samples []string

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			key := string(it.Item().Key())
			docID := key[len(prefix):]

			if strings.HasPrefix(docID, "idx:") {
				indexCount++
				continue
			}
			count++

			if count > sampleSize {
				continue
			}

			err := it.Item().Value(func(val []byte) error {
				var doc map[string]any
				if err := json.Unmarshal(val, &doc); err != nil {
					return err
				}
				samples = append(samples, "  "+docID)
				for _, field := range []string{"email", "display_name", "full_name", "title", "user_id", "book_id", "user_name", "text"} {
					if v, ok := doc[field].(string); ok && v != "" {
						samples = append(samples, fmt.Sprintf("    %s: %s", field, truncate(v, 60)))
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d documents", collection, count)
	if indexCount > 0 {
		fmt.Printf(" (%d index keys)", indexCount)
	}
	fmt.Println()
	for _, line := range samples {
		fmt.Println(line)
	}
	if count > sampleSize {
		fmt.Printf("  ... and %d more\n", count-sampleSize)
	}
	fmt.Println()
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
