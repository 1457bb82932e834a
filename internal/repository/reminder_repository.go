package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"backoffice/internal/model"
)

// ReminderRepository is the reminder tracking ledger. A unique index on
// (target_id, reminder_type) backs the seeder's idempotency key.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) ListAll(ctx context.Context) ([]model.ReminderEntry, error) {
	var entries []model.ReminderEntry
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return entries, nil
}

// AppendMissing inserts entries whose key is not yet present. Rows that lose
// a race with a concurrent seeder are dropped by the unique index.
func (r *ReminderRepository) AppendMissing(ctx context.Context, entries []model.ReminderEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&entries, 100)
	if res.Error != nil {
		return 0, fmt.Errorf("append reminders: %w", res.Error)
	}
	return res.RowsAffected, nil
}
