package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"backoffice/internal/model"
	"backoffice/internal/publish"
)

// platformColumns maps platform names to their correlation id column.
var platformColumns = map[string]string{
	"facebook":  "facebook_post_id",
	"linkedin":  "linkedin_post_id",
	"instagram": "instagram_post_id",
	"telegram":  "telegram_message_id",
}

// ContentRepository is the content calendar.
type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) ListScheduled(ctx context.Context) ([]model.ContentPost, error) {
	var posts []model.ContentPost
	if err := r.db.WithContext(ctx).Where("LOWER(status) = LOWER(?)", model.ContentScheduled).
		Order("id ASC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list scheduled content: %w", err)
	}
	return posts, nil
}

// ListLive returns scheduled and published posts, the evidence rows for
// social and weekly reminders.
func (r *ContentRepository) ListLive(ctx context.Context) ([]model.ContentPost, error) {
	var posts []model.ContentPost
	if err := r.db.WithContext(ctx).
		Where("LOWER(status) IN ?", []string{"scheduled", "published"}).
		Order("id ASC").Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("list live content: %w", err)
	}
	return posts, nil
}

// MarkPublished writes the whole outcome in one UPDATE, conditional on the
// row still being Scheduled.
func (r *ContentRepository) MarkPublished(ctx context.Context, id uint, out publish.Outcome) error {
	updates := map[string]interface{}{
		"status":         model.ContentPublished,
		"published_date": out.PublishedAt,
		"analytics_json": out.AnalyticsJSON,
		"last_error":     "",
	}
	for name, column := range platformColumns {
		updates[column] = out.ID(name)
	}

	res := r.db.WithContext(ctx).Model(&model.ContentPost{}).
		Where("id = ? AND LOWER(status) = LOWER(?)", id, model.ContentScheduled).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("mark post %d published: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark post %d published: row is no longer scheduled", id)
	}
	return nil
}

// AnnotateError records why a post could not be completed.
func (r *ContentRepository) AnnotateError(ctx context.Context, id uint, msg string) error {
	if err := r.db.WithContext(ctx).Model(&model.ContentPost{}).
		Where("id = ?", id).Update("last_error", msg).Error; err != nil {
		return fmt.Errorf("annotate post %d: %w", id, err)
	}
	return nil
}

var _ publish.Store = (*ContentRepository)(nil)
