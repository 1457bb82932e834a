package model

import "time"

// Bid stages map to the two bid tabs of the tracking workbook.
const (
	BidStageActive    = "active"
	BidStageSubmitted = "submitted"
)

// BidRecord is a procurement bid as scraped from notification emails. Fields
// stay loosely typed strings; the rule engine does the parsing.
type BidRecord struct {
	ID                   uint   `gorm:"primaryKey"`
	SourceEmailID        string `gorm:"index"`
	Stage                string `gorm:"index"`
	EmailSubject         string
	Agency               string
	Recommendation       string
	Score                string
	Relevance            string
	DueDate              string
	DateAdded            string
	Status               string
	BidSystem            string
	Country              string
	URL                  string
	SubmittedDate        string
	FormalBidOpeningDate string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// SubmissionConfirmation remembers which submitted bids were already
// confirmed, independently of whether the confirmation task still exists.
type SubmissionConfirmation struct {
	SourceEmailID string `gorm:"primaryKey"`
	ConfirmedAt   time.Time
}
