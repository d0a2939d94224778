package kvstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/foodmarketplace/pkg/db/models"
)

// DB stores values in the kv_entries table.
type DB struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDB(db *gorm.DB) *DB {
	return &DB{db: db, now: time.Now}
}

func (s *DB) Load(ctx context.Context, key string) (string, bool, error) {
	var entry models.KVEntry
	err := s.db.WithContext(ctx).Where("storage_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

// Save upserts in a single statement so readers never observe a partial write.
func (s *DB) Save(ctx context.Context, key, value string) error {
	entry := models.KVEntry{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "storage_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
}

func (s *DB) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("storage_key = ?", key).Delete(&models.KVEntry{}).Error
}

// Take deletes only the row it read, so a racing writer or taker makes it
// report absent instead of handing the same value out twice.
func (s *DB) Take(ctx context.Context, key string) (string, bool, error) {
	value, ok, err := s.Load(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	res := s.db.WithContext(ctx).
		Where("storage_key = ? AND value = ?", key, value).
		Delete(&models.KVEntry{})
	if res.Error != nil {
		return "", false, res.Error
	}
	if res.RowsAffected == 0 {
		return "", false, nil
	}
	return value, true, nil
}
