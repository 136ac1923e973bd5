package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Record is the GORM model for a persisted registry entry
type Record struct {
	ID        string `gorm:"primaryKey"`
	Data      string
	UpdatedAt time.Time
}

// SQLStore implements Store on top of a GORM-supported database
type SQLStore struct {
	db *gorm.DB
}

// FromSQL creates a store backed by the given GORM dialector
func FromSQL(dialect gorm.Dialector, opts ...gorm.Option) (Store, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate records table: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// Replace swaps all stored records for the given set in one transaction
func (s *SQLStore) Replace(records map[string]json.RawMessage) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&Record{}).Error; err != nil {
			return fmt.Errorf("failed to clear records: %w", err)
		}

		for id, record := range records {
			row := Record{ID: id, Data: string(record), UpdatedAt: time.Now()}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to store record %s: %w", id, err)
			}
		}

		return nil
	})
}

// All returns every stored record keyed by id
func (s *SQLStore) All() (map[string]json.RawMessage, error) {
	var rows []Record
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	records := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		records[row.ID] = json.RawMessage(row.Data)
	}

	return records, nil
}

// Close releases the underlying database connection
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
