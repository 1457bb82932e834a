package model

import "time"

// Subscriber is a Telegram user who receives code-red alerts.
type Subscriber struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string
	Muted      bool `gorm:"default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
