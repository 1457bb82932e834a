package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"backoffice/internal/model"
)

// TaskRepository stores rule-engine tasks keyed by their deterministic ID.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListIDs returns every task ID already in the ledger.
func (r *TaskRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.Task{}).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list task ids: %w", err)
	}
	return ids, nil
}

// CreateMany inserts tasks, skipping IDs that already exist. It returns the
// number of rows actually written.
func (r *TaskRepository) CreateMany(ctx context.Context, tasks []model.Task) (int64, error) {
	if len(tasks) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&tasks, 100)
	if res.Error != nil {
		return 0, fmt.Errorf("create tasks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Claim inserts a single task and reports whether this call wrote it. False
// means the ID already existed, e.g. a concurrent run got there first.
func (r *TaskRepository) Claim(ctx context.Context, task model.Task) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&task)
	if res.Error != nil {
		return false, fmt.Errorf("claim task %s: %w", task.ID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListOpen returns unfinished tasks, most urgent first.
func (r *TaskRepository) ListOpen(ctx context.Context, limit int) ([]model.Task, error) {
	var tasks []model.Task
	q := r.db.WithContext(ctx).Where("done = ?", false).
		Order("CASE priority WHEN 'code-red' THEN 0 WHEN 'code-yellow' THEN 1 WHEN 'code-green' THEN 2 ELSE 3 END").
		Order("due_at = '' ASC, due_at ASC, created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// MarkDone closes an open task and reports whether one was closed. Closed
// tasks keep their row so the ID stays known.
func (r *TaskRepository) MarkDone(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ? AND done = ?", id, false).Update("done", true)
	if res.Error != nil {
		return false, fmt.Errorf("complete task: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
