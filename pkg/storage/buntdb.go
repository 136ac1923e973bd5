// Package storage provides the durable store used to persist the engine's
// registries. Records are JSON documents keyed by entity id; registries
// replace their record set wholesale on save.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/buntdb"
)

// Store is a durable id->record mapping
type Store interface {
	// Replace atomically swaps all stored records for the given set
	Replace(records map[string]json.RawMessage) error
	// All returns every stored record keyed by id
	All() (map[string]json.RawMessage, error)
	Close() error
}

// BuntStore implements Store using BuntDB
type BuntStore struct {
	db *buntdb.DB
}

// FromMemory creates an in-memory store
func FromMemory() (Store, error) {
	return NewBuntStore(":memory:")
}

// FromFile creates a file-based store
func FromFile(file string) (Store, error) {
	return NewBuntStore(file)
}

// NewBuntStore creates a new BuntDB store instance
func NewBuntStore(sourceFile string) (Store, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	return &BuntStore{db: db}, nil
}

// Replace swaps all stored records for the given set in one transaction
func (b *BuntStore) Replace(records map[string]json.RawMessage) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		if err := tx.DeleteAll(); err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}

		for id, record := range records {
			if _, _, err := tx.Set(id, string(record), nil); err != nil {
				return fmt.Errorf("failed to store record %s: %w", id, err)
			}
		}

		return nil
	})
}

// All returns every stored record keyed by id
func (b *BuntStore) All() (map[string]json.RawMessage, error) {
	records := make(map[string]json.RawMessage)

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(key, value string) bool {
			records[key] = json.RawMessage(value)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate over records: %w", err)
	}

	return records, nil
}

// Close closes the database connection
func (b *BuntStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
