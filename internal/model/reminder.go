package model

import "time"

// ReminderEntry is one tracking-ledger row per (TargetID, ReminderType).
type ReminderEntry struct {
	ID            uint   `gorm:"primaryKey"`
	ReminderType  string `gorm:"uniqueIndex:idx_reminder_target_type"`
	TargetID      string `gorm:"uniqueIndex:idx_reminder_target_type"`
	TargetDate    string
	Status        string
	CampaignID    string
	DashboardLink string
	PostID        string
	Notes         string
	CreatedBy     string
	LastChecked   *time.Time
	CreatedAt     time.Time
}
