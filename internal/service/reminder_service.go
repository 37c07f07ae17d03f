package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"todobot/internal/model"
	"todobot/internal/repository"
)

// NoTasksFound is the list reply when the user has no tasks at all.
const NoTasksFound = "No tasks found."

const listHeader = "id: description - category - completed - due by deadline"

// Alarms is the slice of the alarm registry the service needs.
type Alarms interface {
	Schedule(id uint, fireAt time.Time, payload AlarmPayload)
	Cancel(id uint)
}

// ReminderService keeps the task store and the alarm registry
// consistent: every add persists first and schedules second, every
// delete removes the row first and cancels second.
type ReminderService struct {
	repo   *repository.TaskRepository
	alarms Alarms
	log    zerolog.Logger
	now    func() time.Time
}

func NewReminderService(repo *repository.TaskRepository, alarms Alarms, log zerolog.Logger) *ReminderService {
	return &ReminderService{
		repo:   repo,
		alarms: alarms,
		log:    log,
		now:    time.Now,
	}
}

// AddTask validates the input, persists the task and registers its
// exact-deadline alarm. The deadline must parse as YYYY-MM-DD HH:MM and
// be strictly in the future at validation time.
func (s *ReminderService) AddTask(ctx context.Context, owner, chatID int64, description, category, deadlineText string) (uint, error) {
	description = strings.TrimSpace(description)
	category = strings.TrimSpace(category)
	if description == "" || category == "" {
		return 0, &ValidationError{Message: "Description and category must not be empty."}
	}

	deadline, err := time.ParseInLocation(model.DeadlineLayout, strings.TrimSpace(deadlineText), time.Local)
	if err != nil {
		return 0, &ValidationError{Message: "Invalid date format. Use YYYY-MM-DD HH:MM."}
	}
	if !deadline.After(s.now()) {
		return 0, &ValidationError{Message: "The deadline must be in the future."}
	}

	task := model.Task{
		UserID:      owner,
		Description: description,
		Category:    category,
		Deadline:    deadline.Format(model.DeadlineLayout),
	}
	if err := s.repo.Create(ctx, &task); err != nil {
		return 0, &StoreError{Op: "add task", Err: err}
	}

	s.alarms.Schedule(task.ID, deadline, AlarmPayload{
		TaskID:  task.ID,
		ChatID:  chatID,
		Message: fmt.Sprintf("Reminder: Your task '%s' is due now!", description),
	})

	s.log.Info().Uint("task_id", task.ID).Int64("user_id", owner).
		Str("deadline", task.Deadline).Msg("task added")
	return task.ID, nil
}

// DeleteTask removes the task and cancels any pending alarm for it.
// Tasks of other users look exactly like missing tasks.
func (s *ReminderService) DeleteTask(ctx context.Context, owner int64, taskID uint) error {
	deleted, err := s.repo.Delete(ctx, owner, taskID)
	if err != nil {
		return &StoreError{Op: "delete task", Err: err}
	}
	if !deleted {
		return &NotFoundError{TaskID: taskID}
	}

	s.alarms.Cancel(taskID)
	s.log.Info().Uint("task_id", taskID).Int64("user_id", owner).Msg("task deleted")
	return nil
}

// CompleteTask flips completed in place. An unknown id and an already
// completed task both come back as NotFoundError. The pending alarm is
// left untouched, so a completed task can still trigger its "due now"
// notification; see DESIGN.md.
func (s *ReminderService) CompleteTask(ctx context.Context, owner int64, taskID uint) error {
	completed, err := s.repo.MarkCompleted(ctx, owner, taskID)
	if err != nil {
		return &StoreError{Op: "complete task", Err: err}
	}
	if !completed {
		return &NotFoundError{TaskID: taskID}
	}

	s.log.Info().Uint("task_id", taskID).Int64("user_id", owner).Msg("task completed")
	return nil
}

// ListTasks returns the user's tasks, incomplete first, then by
// ascending deadline.
func (s *ReminderService) ListTasks(ctx context.Context, owner int64) ([]model.Task, error) {
	tasks, err := s.repo.ListByUser(ctx, owner)
	if err != nil {
		return nil, &StoreError{Op: "list tasks", Err: err}
	}
	return tasks, nil
}

// RenderTasks produces the one-line-per-task /list reply.
func RenderTasks(tasks []model.Task) string {
	if len(tasks) == 0 {
		return NoTasksFound
	}

	var b strings.Builder
	b.WriteString(listHeader)
	for _, task := range tasks {
		completed := "False"
		if task.Completed {
			completed = "True"
		}
		b.WriteString(fmt.Sprintf("\n%d: %s - %s - %s - due by %s",
			task.ID, task.Description, task.Category, completed, task.Deadline))
	}
	return b.String()
}

// RestoreAlarms re-registers exact-deadline alarms for every pending
// task with a future deadline. Called once at startup; the reference
// design lost these timers on restart. Restored alarms are delivered to
// the owner's private chat.
func (s *ReminderService) RestoreAlarms(ctx context.Context) (int, error) {
	now := s.now()
	tasks, err := s.repo.ListPendingAfter(ctx, now)
	if err != nil {
		return 0, &StoreError{Op: "restore alarms", Err: err}
	}

	restored := 0
	for _, task := range tasks {
		fireAt, err := task.DeadlineTime()
		if err != nil {
			s.log.Warn().Err(err).Uint("task_id", task.ID).Msg("unparseable stored deadline, skipping alarm")
			continue
		}
		s.alarms.Schedule(task.ID, fireAt, AlarmPayload{
			TaskID:  task.ID,
			ChatID:  task.UserID,
			Message: fmt.Sprintf("Reminder: Your task '%s' is due now!", task.Description),
		})
		restored++
	}

	if restored > 0 {
		s.log.Info().Int("count", restored).Msg("restored pending alarms")
	}
	return restored, nil
}
