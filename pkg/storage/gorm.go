package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"
)

// StateRecord is the row layout of the bot_state table.
type StateRecord struct {
	Key       string `gorm:"column:state_key;primaryKey;size:255"`
	ETag      string `gorm:"column:etag;size:32;not null"`
	Value     string `gorm:"column:value;type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (StateRecord) TableName() string { return "bot_state" }

// DBProvider hands out connections. frame's datastore pool satisfies it.
type DBProvider interface {
	DB(ctx context.Context, readOnly bool) *gorm.DB
}

type singleDB struct {
	db *gorm.DB
}

func (s singleDB) DB(ctx context.Context, _ bool) *gorm.DB {
	return s.db.WithContext(ctx)
}

// GormStorage stores items in a SQL table through GORM.
type GormStorage struct {
	provider DBProvider
}

// NewGormStorage creates a storage backed by a connection provider.
func NewGormStorage(provider DBProvider) *GormStorage {
	return &GormStorage{provider: provider}
}

// NewGormStorageFromDB creates a storage backed by a single *gorm.DB.
func NewGormStorageFromDB(db *gorm.DB) *GormStorage {
	return &GormStorage{provider: singleDB{db: db}}
}

// Provider returns the connection provider so other tables can share it.
func (s *GormStorage) Provider() DBProvider { return s.provider }

// Migrate creates or updates the bot_state table.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.provider.DB(ctx, false).AutoMigrate(&StateRecord{})
}

func (s *GormStorage) Read(ctx context.Context, keys []string) (map[string]Item, error) {
	if err := validateKeys(keys); err != nil {
		return nil, err
	}
	out := make(map[string]Item, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var rows []StateRecord
	if err := s.provider.DB(ctx, true).Where("state_key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read bot_state: %w", err)
	}
	for _, r := range rows {
		out[r.Key] = Item{Value: []byte(r.Value), ETag: r.ETag}
	}
	return out, nil
}

func (s *GormStorage) Write(ctx context.Context, changes map[string]Item) (map[string]string, error) {
	etags := make(map[string]string, len(changes))

	err := s.provider.DB(ctx, false).Transaction(func(tx *gorm.DB) error {
		for k, it := range changes {
			if k == "" {
				return ErrInvalidKey
			}
			etag := xid.New().String()

			var cur StateRecord
			err := tx.Where("state_key = ?", k).Take(&cur).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				rec := StateRecord{Key: k, ETag: etag, Value: string(it.Value)}
				if err := tx.Create(&rec).Error; err != nil {
					return fmt.Errorf("insert %q: %w", k, err)
				}
				etags[k] = etag
				continue
			}
			if err != nil {
				return fmt.Errorf("load %q: %w", k, err)
			}
			if conflicts(it.ETag, cur.ETag, true) {
				return preconditionError(k)
			}

			res := tx.Model(&StateRecord{}).
				Where("state_key = ? AND etag = ?", k, cur.ETag).
				Updates(map[string]any{"etag": etag, "value": string(it.Value)})
			if res.Error != nil {
				return fmt.Errorf("update %q: %w", k, res.Error)
			}
			if res.RowsAffected == 0 {
				return preconditionError(k)
			}
			etags[k] = etag
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return etags, nil
}

func (s *GormStorage) Delete(ctx context.Context, keys []string) error {
	if err := validateKeys(keys); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.provider.DB(ctx, false).Where("state_key IN ?", keys).Delete(&StateRecord{}).Error; err != nil {
		return fmt.Errorf("delete bot_state: %w", err)
	}
	return nil
}
