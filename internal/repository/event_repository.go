package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"backoffice/internal/model"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// ListAll returns every event; which ones are upcoming depends on the clock
// and is decided by the reminder package.
func (r *EventRepository) ListAll(ctx context.Context) ([]model.Event, error) {
	var events []model.Event
	if err := r.db.WithContext(ctx).Order("date ASC").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
