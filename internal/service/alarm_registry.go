package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AlarmPayload is the value an alarm carries from Schedule to fire
// time: which task it is about, where to deliver, and the message.
type AlarmPayload struct {
	TaskID  uint
	ChatID  int64
	Message string
}

// AlarmRegistry owns the mapping from task id to a pending one-shot
// exact-deadline timer. At most one alarm exists per task id, and each
// registered alarm delivers at most once, also under concurrent
// Schedule/Cancel/fire.
type AlarmRegistry struct {
	notifier Notifier
	log      zerolog.Logger

	mu     sync.Mutex
	timers map[uint]*time.Timer
}

func NewAlarmRegistry(notifier Notifier, log zerolog.Logger) *AlarmRegistry {
	return &AlarmRegistry{
		notifier: notifier,
		log:      log,
		timers:   make(map[uint]*time.Timer),
	}
}

// Schedule registers a one-shot alarm firing at fireAt. A fireAt in the
// past or now fires as soon as possible. Task ids are not reused for
// live tasks, so scheduling over an existing entry is rejected.
func (r *AlarmRegistry) Schedule(id uint, fireAt time.Time, payload AlarmPayload) {
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.timers[id]; exists {
		r.log.Warn().Uint("task_id", id).Msg("alarm already scheduled, ignoring")
		return
	}
	r.timers[id] = time.AfterFunc(delay, func() {
		r.fire(id, payload)
	})
}

// Cancel removes the pending alarm for id. When none exists (already
// fired, or never registered) it logs a warning and returns.
func (r *AlarmRegistry) Cancel(id uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timer, ok := r.timers[id]
	if !ok {
		r.log.Warn().Uint("task_id", id).Msg("no pending alarm to cancel")
		return
	}
	timer.Stop()
	delete(r.timers, id)
}

// Len reports the number of pending alarms.
func (r *AlarmRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// StopAll stops every pending timer without delivering. In-flight
// alarms are not drained on shutdown.
func (r *AlarmRegistry) StopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, timer := range r.timers {
		timer.Stop()
		delete(r.timers, id)
	}
}

func (r *AlarmRegistry) fire(id uint, payload AlarmPayload) {
	// Re-check under the lock so a concurrent Cancel wins and the
	// notification is never delivered twice.
	r.mu.Lock()
	if _, ok := r.timers[id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.timers, id)
	r.mu.Unlock()

	if err := r.notifier.Send(payload.ChatID, payload.Message); err != nil {
		r.log.Error().Err(err).Uint("task_id", id).Int64("chat_id", payload.ChatID).
			Msg("alarm delivery failed")
		return
	}
	r.log.Info().Uint("task_id", id).Int64("chat_id", payload.ChatID).
		Msg("notified user about due task")
}
