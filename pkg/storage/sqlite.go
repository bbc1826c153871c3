package storage

import (
	"context"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenSQLite opens (or creates) a SQLite database file and migrates the
// bot_state table into it.
func OpenSQLite(ctx context.Context, path string) (*GormStorage, error) {
	db, err := gorm.Open(gormlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers anyway.
	sqlDB.SetMaxOpenConns(1)

	s := NewGormStorageFromDB(db)
	if err := s.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate bot_state: %w", err)
	}
	return s, nil
}
