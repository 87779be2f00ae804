package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Thiht/transactor"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"timebox"
)

// activeSession is the authoritative in-memory timer state. anchor marks
// when the current running (or frozen, if paused) interval began; remaining
// is the time left as of the anchor, not as of now. remaining may go
// negative once the interval overruns; it is clamped at read time only.
type activeSession struct {
	session   timebox.Session
	anchor    time.Time
	remaining time.Duration
	paused    bool
}

// Timer is the process-wide active-session state machine. At most one
// session is active at a time. Mutating transitions hold the write lock for
// their whole critical section, durable writes included, so no two
// transitions can interleave; status takes the read lock.
type Timer struct {
	mu    sync.RWMutex
	store timebox.Store
	tx    transactor.Transactor
	l     log.Logger

	active *activeSession
}

func NewTimer(store timebox.Store, tx transactor.Transactor, logger log.Logger) *Timer {
	return &Timer{
		store: store,
		tx:    tx,
		l:     logger,
	}
}

type TimerStatus struct {
	TimeRemaining     int64               `json:"time_remaining"`
	IsRunning         bool                `json:"is_running"`
	IsPaused          bool                `json:"is_paused"`
	SessionType       timebox.SessionType `json:"session_type"`
	TaskTitle         *string             `json:"task_title"`
	InterruptionCount int                 `json:"interruption_count"`
}

// Start resolves the user (created on first access), records a new session
// row and installs it as the active one. A session already active is
// dropped in memory and replaced.
func (t *Timer) Start(ctx context.Context, userID string, taskID *string, sessionType timebox.SessionType) (timebox.Session, error) {
	if !sessionType.Valid() {
		return timebox.Session{}, fmt.Errorf("invalid session type: %q", sessionType)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		t.l.Warn("replacing active session", "sessionID", t.active.session.ID)
	}

	now := time.Now()
	session := timebox.Session{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Type:      sessionType,
		StartTime: now,
		CreatedAt: now,
	}
	var settings timebox.Settings
	err := t.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := t.store.GetOrCreateUser(ctx, userID, timebox.DefaultUserName)
		if err != nil {
			return fmt.Errorf("failed to resolve user: %w", err)
		}
		session.UserID = user.ID

		stored, ok, err := t.store.GetSettings(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
		if !ok {
			stored = timebox.DefaultSettings(user.ID)
		}
		settings = stored

		if err := t.store.InsertSession(ctx, session); err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		return nil
	})
	if err != nil {
		return timebox.Session{}, fmt.Errorf("failed to start session: %w", err)
	}

	t.active = &activeSession{
		session:   session,
		anchor:    now,
		remaining: settings.Duration(sessionType),
	}
	return session, nil
}

// Pause freezes the countdown: remaining absorbs the elapsed interval and
// the anchor resets. No-op when idle or already paused.
func (t *Timer) Pause(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil || t.active.paused {
		return nil
	}

	now := time.Now()
	t.active.remaining -= now.Sub(t.active.anchor)
	t.active.anchor = now
	t.active.paused = true
	return nil
}

// Resume restarts the countdown from the frozen remaining value. No-op when
// idle or already running.
func (t *Timer) Resume(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil || !t.active.paused {
		return nil
	}

	t.active.anchor = time.Now()
	t.active.paused = false
	return nil
}

// Stop writes end time and duration to the session row and clears the
// active session. No-op when idle. The recorded duration is the elapsed
// time since the last anchor reset.
func (t *Timer) Stop(ctx context.Context) error {
	return t.flush(ctx)
}

// Save is Stop under a different caller intent (app shutdown rather than a
// user-initiated stop).
func (t *Timer) Save(ctx context.Context) error {
	return t.flush(ctx)
}

func (t *Timer) flush(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return nil
	}

	now := time.Now()
	duration := int(now.Sub(t.active.anchor).Seconds())
	err := t.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return t.store.FinishSession(ctx, t.active.session.ID, now, duration)
	})
	if err != nil {
		return fmt.Errorf("failed to stop session: %w", err)
	}

	t.l.Debug("stopped session", "sessionID", t.active.session.ID, "durationSeconds", duration)
	t.active = nil
	return nil
}

func (t *Timer) HasActive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active != nil
}

// RecordInterruption bumps the interruption counter, durably first so the
// in-memory count never runs ahead of the stored one.
func (t *Timer) RecordInterruption(ctx context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		return 0, timebox.ErrNoActiveSession
	}

	if err := t.store.IncrementInterruptions(ctx, t.active.session.ID); err != nil {
		return 0, fmt.Errorf("failed to record interruption: %w", err)
	}
	t.active.session.InterruptionCount++
	t.active.session.Interrupted = true
	return t.active.session.InterruptionCount, nil
}

// Status reports the live timer state without mutating it. The task title
// lookup is best-effort: absence or a lookup failure yields no title.
func (t *Timer) Status(ctx context.Context) TimerStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.active == nil {
		return TimerStatus{SessionType: timebox.SessionFocus}
	}

	remaining := t.active.remaining
	if !t.active.paused {
		remaining -= time.Since(t.active.anchor)
	}
	if remaining < 0 {
		remaining = 0
	}

	var taskTitle *string
	if t.active.session.TaskID != nil {
		if task, ok, err := t.store.GetTask(ctx, *t.active.session.TaskID); err == nil && ok {
			taskTitle = &task.Title
		}
	}

	return TimerStatus{
		TimeRemaining:     int64(remaining.Seconds()),
		IsRunning:         true,
		IsPaused:          t.active.paused,
		SessionType:       t.active.session.Type,
		TaskTitle:         taskTitle,
		InterruptionCount: t.active.session.InterruptionCount,
	}
}
