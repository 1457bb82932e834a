package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"backoffice/internal/model"
)

// BidRepository reads bid rows and the submission confirmation list.
type BidRepository struct {
	db *gorm.DB
}

func NewBidRepository(db *gorm.DB) *BidRepository {
	return &BidRepository{db: db}
}

// ListByStage returns bids of one stage in ledger order.
func (r *BidRepository) ListByStage(ctx context.Context, stage string) ([]model.BidRecord, error) {
	var bids []model.BidRecord
	if err := r.db.WithContext(ctx).Where("stage = ?", stage).Order("id ASC").Find(&bids).Error; err != nil {
		return nil, fmt.Errorf("list %s bids: %w", stage, err)
	}
	return bids, nil
}

// ConfirmedIDs returns source email IDs whose submission was confirmed.
func (r *BidRepository) ConfirmedIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.SubmissionConfirmation{}).Pluck("source_email_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list confirmations: %w", err)
	}
	return ids, nil
}

// RecordConfirmations remembers ids; already known ids are left alone.
func (r *BidRepository) RecordConfirmations(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	rows := make([]model.SubmissionConfirmation, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, model.SubmissionConfirmation{SourceEmailID: id, ConfirmedAt: at})
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return fmt.Errorf("record confirmations: %w", err)
	}
	return nil
}
