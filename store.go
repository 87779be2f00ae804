package timebox

import (
	"context"
	"time"
)

// UserStore covers identity and per-user settings. Get-or-create accessors
// are idempotent under concurrent first access.
type UserStore interface {
	GetOrCreateUser(ctx context.Context, id, name string) (User, error)
	GetUser(ctx context.Context, id string) (User, bool, error)
	GetSettings(ctx context.Context, userID string) (Settings, bool, error)
	GetOrCreateSettings(ctx context.Context, userID string) (Settings, error)
	UpdateSettings(ctx context.Context, userID string, patch SettingsPatch) (Settings, error)
}

type TaskStore interface {
	InsertTask(ctx context.Context, userID, title string, estimatedPomodoros *int) (Task, error)
	GetTask(ctx context.Context, id string) (Task, bool, error)
	GetTasks(ctx context.Context, userID string) ([]Task, error)
	UpdateTask(ctx context.Context, id string, patch TaskPatch) (Task, error)
	DeleteTask(ctx context.Context, id string) error
	GetTasksWithPomodoroCounts(ctx context.Context, userID string) ([]TaskWithCount, error)
}

// SessionStore records started and stopped sessions. End time and duration
// are written together, exactly once, by FinishSession.
type SessionStore interface {
	InsertSession(ctx context.Context, s Session) error
	FinishSession(ctx context.Context, id string, endTime time.Time, durationSeconds int) error
	IncrementInterruptions(ctx context.Context, id string) error
	GetSessions(ctx context.Context, userID string) ([]Session, error)
	GetSessionsByDateRange(ctx context.Context, userID string, from, to time.Time) ([]Session, error)
}

type GoalStore interface {
	InsertGoal(ctx context.Context, draft GoalDraft) (Goal, error)
	GetGoals(ctx context.Context, userID string) ([]Goal, error)
	UpdateGoal(ctx context.Context, id string, patch GoalPatch) (Goal, error)
	DeleteGoal(ctx context.Context, id string) error
}

type Store interface {
	UserStore
	TaskStore
	SessionStore
	GoalStore
}
