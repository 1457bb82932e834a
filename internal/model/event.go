package model

import "time"

// Event is a webinar or other dated slot that reminders hang off.
type Event struct {
	ID        string `gorm:"primaryKey"`
	Kind      string `gorm:"default:webinar"`
	Title     string
	Date      string
	Time      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
