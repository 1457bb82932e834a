package model

import "time"

// Content statuses as written by the content calendar.
const (
	ContentDraft     = "Draft"
	ContentScheduled = "Scheduled"
	ContentPublished = "Published"
)

// ContentPost is a social post in the content calendar. Purpose tags what it
// is for ("webinar-1day", "weekly-monday"), TargetID what it points at.
type ContentPost struct {
	ID                uint `gorm:"primaryKey"`
	Title             string
	Body              string
	Purpose           string `gorm:"index"`
	TargetID          string `gorm:"index"`
	Status            string `gorm:"index"`
	ScheduleDate      string
	Platforms         string
	PublishedDate     *time.Time
	FacebookPostID    string
	LinkedInPostID    string `gorm:"column:linkedin_post_id"`
	InstagramPostID   string
	TelegramMessageID string
	AnalyticsJSON     string
	LastError         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
