package model

import "time"

// Priority ranks a task by urgency.
type Priority string

const (
	PriorityRed    Priority = "code-red"
	PriorityYellow Priority = "code-yellow"
	PriorityGreen  Priority = "code-green"
	PriorityWhite  Priority = "code-white"
)

// Task is an actionable item derived from a bid record. ID is deterministic
// so re-running the rules never produces a second row for the same finding.
type Task struct {
	ID        string `gorm:"primaryKey"`
	Title     string
	Priority  Priority `gorm:"index"`
	DueAt     string
	RawText   string
	Notes     string
	CreatedBy string
	TZ        string
	Done      bool `gorm:"default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
