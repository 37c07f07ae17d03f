package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"todobot/internal/model"
	"todobot/internal/repository"
)

type scheduledAlarm struct {
	id      uint
	fireAt  time.Time
	payload AlarmPayload
}

type fakeAlarms struct {
	mu        sync.Mutex
	scheduled []scheduledAlarm
	cancelled []uint
}

func (f *fakeAlarms) Schedule(id uint, fireAt time.Time, payload AlarmPayload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, scheduledAlarm{id: id, fireAt: fireAt, payload: payload})
}

func (f *fakeAlarms) Cancel(id uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
}

func newTestRepo(t *testing.T) *repository.TaskRepository {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	return repository.NewTaskRepository(db)
}

func newTestService(t *testing.T) (*ReminderService, *repository.TaskRepository, *fakeAlarms) {
	t.Helper()
	repo := newTestRepo(t)
	alarms := &fakeAlarms{}
	svc := NewReminderService(repo, alarms, zerolog.Nop())
	return svc, repo, alarms
}

func futureDeadline(d time.Duration) string {
	return time.Now().Add(d).Format(model.DeadlineLayout)
}

func TestAddTaskPersistsAndSchedules(t *testing.T) {
	t.Parallel()
	svc, repo, alarms := newTestService(t)
	ctx := context.Background()

	deadline := futureDeadline(10 * time.Minute)
	id, err := svc.AddTask(ctx, 7, 70, "Prepare presentation", "work", deadline)
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a fresh id")
	}

	tasks, err := repo.ListByUser(ctx, 7)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one row, got %d", len(tasks))
	}
	task := tasks[0]
	if task.Completed || task.Description != "Prepare presentation" || task.Category != "work" || task.Deadline != deadline {
		t.Fatalf("unexpected row: %+v", task)
	}

	if len(alarms.scheduled) != 1 {
		t.Fatalf("expected one alarm, got %d", len(alarms.scheduled))
	}
	alarm := alarms.scheduled[0]
	if alarm.id != id || alarm.payload.TaskID != id || alarm.payload.ChatID != 70 {
		t.Fatalf("unexpected alarm: %+v", alarm)
	}
	if alarm.payload.Message != "Reminder: Your task 'Prepare presentation' is due now!" {
		t.Fatalf("unexpected alarm message: %q", alarm.payload.Message)
	}
	if alarm.fireAt.Format(model.DeadlineLayout) != deadline {
		t.Fatalf("alarm fireAt %v does not match deadline %s", alarm.fireAt, deadline)
	}
}

func TestAddTaskValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		desc     string
		category string
		deadline string
		message  string
	}{
		{
			name: "bad format", desc: "d", category: "c", deadline: "tomorrow",
			message: "Invalid date format. Use YYYY-MM-DD HH:MM.",
		},
		{
			name: "date only", desc: "d", category: "c", deadline: "2030-01-01",
			message: "Invalid date format. Use YYYY-MM-DD HH:MM.",
		},
		{
			name: "past deadline", desc: "d", category: "c", deadline: "2001-01-01 10:00",
			message: "The deadline must be in the future.",
		},
		{
			name: "empty description", desc: "  ", category: "c", deadline: futureDeadline(time.Hour),
			message: "Description and category must not be empty.",
		},
		{
			name: "empty category", desc: "d", category: " ", deadline: futureDeadline(time.Hour),
			message: "Description and category must not be empty.",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, repo, alarms := newTestService(t)
			ctx := context.Background()

			_, err := svc.AddTask(ctx, 1, 1, tt.desc, tt.category, tt.deadline)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Message != tt.message {
				t.Fatalf("message = %q, want %q", verr.Message, tt.message)
			}

			tasks, err := repo.ListByUser(ctx, 1)
			if err != nil {
				t.Fatalf("ListByUser: %v", err)
			}
			if len(tasks) != 0 {
				t.Fatalf("expected no rows, got %d", len(tasks))
			}
			if len(alarms.scheduled) != 0 {
				t.Fatalf("expected no alarms, got %d", len(alarms.scheduled))
			}
		})
	}
}

func TestAddTaskExactlyNowIsRejected(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)

	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return now }

	_, err := svc.AddTask(context.Background(), 1, 1, "d", "c", now.Format(model.DeadlineLayout))
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != "The deadline must be in the future." {
		t.Fatalf("expected future-deadline validation error, got %v", err)
	}
}

func TestDeleteTaskRemovesRowAndCancelsAlarm(t *testing.T) {
	t.Parallel()
	svc, repo, alarms := newTestService(t)
	ctx := context.Background()

	id, err := svc.AddTask(ctx, 1, 1, "d", "c", futureDeadline(time.Hour))
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	if err := svc.DeleteTask(ctx, 1, id); err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	tasks, err := repo.ListByUser(ctx, 1)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected row removed, got %d rows", len(tasks))
	}
	if len(alarms.cancelled) != 1 || alarms.cancelled[0] != id {
		t.Fatalf("expected cancel of %d, got %v", id, alarms.cancelled)
	}

	err = svc.DeleteTask(ctx, 1, id)
	var nferr *NotFoundError
	if !errors.As(err, &nferr) {
		t.Fatalf("expected NotFoundError on repeated delete, got %v", err)
	}
}

func TestDeleteTaskOfOtherOwnerIsNotFound(t *testing.T) {
	t.Parallel()
	svc, _, alarms := newTestService(t)
	ctx := context.Background()

	id, err := svc.AddTask(ctx, 1, 1, "d", "c", futureDeadline(time.Hour))
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	err = svc.DeleteTask(ctx, 2, id)
	var nferr *NotFoundError
	if !errors.As(err, &nferr) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(alarms.cancelled) != 0 {
		t.Fatalf("expected no cancels, got %v", alarms.cancelled)
	}
}

func TestCompleteTaskFlipsFlagOnce(t *testing.T) {
	t.Parallel()
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.AddTask(ctx, 1, 1, "d", "c", futureDeadline(time.Hour))
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	if err := svc.CompleteTask(ctx, 1, id); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	tasks, err := repo.ListByUser(ctx, 1)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(tasks) != 1 || !tasks[0].Completed {
		t.Fatalf("expected completed row, got %+v", tasks)
	}

	err = svc.CompleteTask(ctx, 1, id)
	var nferr *NotFoundError
	if !errors.As(err, &nferr) {
		t.Fatalf("expected NotFoundError on repeated complete, got %v", err)
	}
}

// Completing a task deliberately leaves its exact-deadline alarm
// pending; the reference behaves the same way.
func TestCompleteLeavesAlarmPending(t *testing.T) {
	t.Parallel()
	svc, _, alarms := newTestService(t)
	ctx := context.Background()

	id, err := svc.AddTask(ctx, 1, 1, "d", "c", futureDeadline(time.Hour))
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if err := svc.CompleteTask(ctx, 1, id); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	if len(alarms.cancelled) != 0 {
		t.Fatalf("complete must not cancel the alarm, got cancels %v", alarms.cancelled)
	}
}

func TestListTasksIsIdempotent(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddTask(ctx, 1, 1, "b", "c", futureDeadline(2*time.Hour)); err != nil {
		t.Fatalf("AddTask: %v", err)
	}
	if _, err := svc.AddTask(ctx, 1, 1, "a", "c", futureDeadline(time.Hour)); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	first, err := svc.ListTasks(ctx, 1)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	second, err := svc.ListTasks(ctx, 1)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if RenderTasks(first) != RenderTasks(second) {
		t.Fatal("expected identical output for consecutive lists")
	}
	if first[0].Description != "a" || first[1].Description != "b" {
		t.Fatalf("expected deadline ordering, got %+v", first)
	}
}

func TestRenderTasks(t *testing.T) {
	t.Parallel()

	if got := RenderTasks(nil); got != "No tasks found." {
		t.Fatalf("empty render = %q", got)
	}

	tasks := []model.Task{
		{ID: 1, Description: "Prepare presentation", Category: "work", Deadline: "2030-10-15 10:00"},
		{ID: 2, Description: "Buy milk", Category: "home", Deadline: "2030-10-16 18:30", Completed: true},
	}
	got := RenderTasks(tasks)
	want := "id: description - category - completed - due by deadline\n" +
		"1: Prepare presentation - work - False - due by 2030-10-15 10:00\n" +
		"2: Buy milk - home - True - due by 2030-10-16 18:30"
	if got != want {
		t.Fatalf("render = %q, want %q", got, want)
	}
}

func TestRestoreAlarmsSchedulesOnlyPendingFutureTasks(t *testing.T) {
	t.Parallel()
	svc, repo, alarms := newTestService(t)
	ctx := context.Background()

	now := time.Date(2030, 6, 1, 9, 0, 0, 0, time.Local)
	svc.now = func() time.Time { return now }
	deadline := func(d time.Duration) string { return now.Add(d).Format(model.DeadlineLayout) }

	future := model.Task{UserID: 5, Description: "future", Category: "c", Deadline: deadline(2 * time.Hour)}
	if err := repo.Create(ctx, &future); err != nil {
		t.Fatalf("Create: %v", err)
	}
	overdue := model.Task{UserID: 5, Description: "overdue", Category: "c", Deadline: deadline(-time.Hour)}
	if err := repo.Create(ctx, &overdue); err != nil {
		t.Fatalf("Create: %v", err)
	}
	done := model.Task{UserID: 5, Description: "done", Category: "c", Deadline: deadline(3 * time.Hour), Completed: true}
	if err := repo.Create(ctx, &done); err != nil {
		t.Fatalf("Create: %v", err)
	}

	restored, err := svc.RestoreAlarms(ctx)
	if err != nil {
		t.Fatalf("RestoreAlarms: %v", err)
	}
	if restored != 1 {
		t.Fatalf("restored = %d, want 1", restored)
	}
	if len(alarms.scheduled) != 1 || alarms.scheduled[0].id != future.ID {
		t.Fatalf("expected alarm for task %d, got %+v", future.ID, alarms.scheduled)
	}
	if alarms.scheduled[0].payload.ChatID != 5 {
		t.Fatalf("restored alarm must target the owner, got chat %d", alarms.scheduled[0].payload.ChatID)
	}
}

func TestStoreErrorSurfacesAsStoreError(t *testing.T) {
	t.Parallel()
	repo := newTestRepo(t)
	alarms := &fakeAlarms{}
	svc := NewReminderService(repo, alarms, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.AddTask(ctx, 1, 1, "d", "c", futureDeadline(time.Hour))
	var serr *StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StoreError with cancelled context, got %v", err)
	}
	if len(alarms.scheduled) != 0 {
		t.Fatal("no alarm may be scheduled when persistence fails")
	}
}
