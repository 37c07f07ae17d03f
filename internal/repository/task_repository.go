package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"todobot/internal/model"
)

// TaskRepository handles CRUD for tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// ListByUser returns all tasks of one user, incomplete first, then by
// ascending deadline within each group.
func (r *TaskRepository) ListByUser(ctx context.Context, userID int64) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("completed ASC, deadline ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// Delete removes a task for the given user. It reports whether a row
// was actually removed, so callers can tell "not found or not yours"
// apart from success.
func (r *TaskRepository) Delete(ctx context.Context, userID int64, taskID uint) (bool, error) {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).
		Delete(&model.Task{})
	if res.Error != nil {
		return false, fmt.Errorf("delete task: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkCompleted flips completed for a still-open task of the given
// user. The completed=false guard makes a repeated call report false.
func (r *TaskRepository) MarkCompleted(ctx context.Context, userID int64, taskID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ? AND completed = ?", userID, taskID, false).
		Update("completed", true)
	if res.Error != nil {
		return false, fmt.Errorf("complete task: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DueWithin returns incomplete tasks of all users with a deadline in
// [from, to). Bounds are compared in the stored text form.
func (r *TaskRepository) DueWithin(ctx context.Context, from, to time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("completed = ? AND deadline >= ? AND deadline < ?",
			false, from.Format(model.DeadlineLayout), to.Format(model.DeadlineLayout)).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("due tasks: %w", err)
	}
	return tasks, nil
}

// ListPendingAfter returns incomplete tasks of all users with a
// deadline strictly after the given instant. Used to restore alarms on
// startup.
func (r *TaskRepository) ListPendingAfter(ctx context.Context, after time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("completed = ? AND deadline > ?", false, after.Format(model.DeadlineLayout)).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("pending tasks: %w", err)
	}
	return tasks, nil
}
