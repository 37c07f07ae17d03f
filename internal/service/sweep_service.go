package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"todobot/internal/repository"
)

// SweepService runs the once-per-day bulk reminder: the first poll tick
// at or after the configured start time finds every incomplete task due
// within the next 24 hours and reminds its owner. The state machine
// rolls back to waiting once the clock drops below the start time again
// after midnight, so the sweep fires at most once per calendar day.
type SweepService struct {
	repo     *repository.TaskRepository
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time

	startHour, startMin, startSec int

	// mu serializes ticks: the cron scheduler runs every invocation in
	// a fresh goroutine, and a sweep may outlast the poll interval.
	mu       sync.Mutex
	reminded bool
}

// NewSweepService builds the sweep with a wall-clock start in strict
// HH:MM:SS form.
func NewSweepService(repo *repository.TaskRepository, notifier Notifier, start string, log zerolog.Logger) (*SweepService, error) {
	t, err := time.Parse("15:04:05", start)
	if err != nil {
		return nil, fmt.Errorf("invalid daily reminder start %q: %w", start, err)
	}
	return &SweepService{
		repo:      repo,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
		startHour: t.Hour(),
		startMin:  t.Minute(),
		startSec:  t.Second(),
	}, nil
}

// Tick advances the day-boundary state machine. It is called once per
// coarse poll interval; acceptable drift is bounded by that interval.
func (s *SweepService) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(),
		s.startHour, s.startMin, s.startSec, 0, now.Location())

	switch {
	case !s.reminded && !now.Before(start):
		s.reminded = true
		s.sweep(ctx, now)
	case s.reminded && now.Before(start):
		s.reminded = false
	}
}

// sweep reminds every owner of a task due within the next 24 hours. A
// repository failure aborts this sweep only; a delivery failure skips
// just that task.
func (s *SweepService) sweep(ctx context.Context, now time.Time) {
	tasks, err := s.repo.DueWithin(ctx, now, now.Add(24*time.Hour))
	if err != nil {
		s.log.Error().Err(err).Msg("daily sweep query failed")
		return
	}

	for _, task := range tasks {
		msg := fmt.Sprintf("Reminder: Task '%s' is due in 24 hours!", task.Description)
		if err := s.notifier.Send(task.UserID, msg); err != nil {
			s.log.Error().Err(err).Uint("task_id", task.ID).Int64("user_id", task.UserID).
				Msg("daily reminder delivery failed")
			continue
		}
		s.log.Info().Uint("task_id", task.ID).Int64("user_id", task.UserID).
			Msg("notified user about task due in 24 hours")
	}
}
