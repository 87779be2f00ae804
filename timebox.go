// Package timebox holds the domain records and store contracts for the
// timebox desktop timer backend.
package timebox

import (
	"time"
)

// DefaultUserID is the well-known identity used when a command does not
// supply one. It is seeded at migration time and never deleted.
const (
	DefaultUserID   = "default_user"
	DefaultUserName = "Default User"
)

type SessionType string

const (
	SessionFocus      SessionType = "FOCUS"
	SessionShortBreak SessionType = "SHORT_BREAK"
	SessionLongBreak  SessionType = "LONG_BREAK"
)

func (t SessionType) Valid() bool {
	switch t {
	case SessionFocus, SessionShortBreak, SessionLongBreak:
		return true
	}
	return false
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
}

type Settings struct {
	UserID                string `json:"user_id"`
	FocusMinutes          int    `json:"focus_minutes"`
	ShortBreakMinutes     int    `json:"short_break_minutes"`
	LongBreakMinutes      int    `json:"long_break_minutes"`
	CyclesBeforeLongBreak int    `json:"cycles_before_long_break"`
	StrictMode            bool   `json:"strict_mode"`
	AutoStartBreaks       bool   `json:"auto_start_breaks"`
}

// DefaultSettings are the values synthesized when a user has no stored
// settings row: 25/5/15 minute intervals, long break every 4 cycles.
func DefaultSettings(userID string) Settings {
	return Settings{
		UserID:                userID,
		FocusMinutes:          25,
		ShortBreakMinutes:     5,
		LongBreakMinutes:      15,
		CyclesBeforeLongBreak: 4,
	}
}

// Duration maps a session type to its configured interval length.
// Settings store whole minutes; conversion happens here, at start time.
func (s Settings) Duration(t SessionType) time.Duration {
	switch t {
	case SessionShortBreak:
		return time.Duration(s.ShortBreakMinutes) * time.Minute
	case SessionLongBreak:
		return time.Duration(s.LongBreakMinutes) * time.Minute
	default:
		return time.Duration(s.FocusMinutes) * time.Minute
	}
}

type SettingsPatch struct {
	FocusMinutes          *int  `json:"focus_minutes"`
	ShortBreakMinutes     *int  `json:"short_break_minutes"`
	LongBreakMinutes      *int  `json:"long_break_minutes"`
	CyclesBeforeLongBreak *int  `json:"cycles_before_long_break"`
	StrictMode            *bool `json:"strict_mode"`
	AutoStartBreaks       *bool `json:"auto_start_breaks"`
}

type Task struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	Title              string    `json:"title"`
	EstimatedPomodoros int       `json:"estimated_pomodoros"`
	Completed          bool      `json:"completed"`
	CreatedAt          time.Time `json:"created_at"`
}

type TaskPatch struct {
	Title              *string `json:"title"`
	EstimatedPomodoros *int    `json:"estimated_pomodoros"`
	Completed          *bool   `json:"completed"`
}

// TaskWithCount pairs a task with the number of FOCUS sessions that
// reference it. Tasks with no such sessions carry a zero count.
type TaskWithCount struct {
	Task
	ActualPomodoros int64 `json:"actual_pomodoros"`
}

type Session struct {
	ID                string      `json:"id"`
	UserID            string      `json:"user_id"`
	TaskID            *string     `json:"task_id"`
	Type              SessionType `json:"session_type"`
	StartTime         time.Time   `json:"start_time"`
	EndTime           *time.Time  `json:"end_time"`
	DurationSeconds   *int        `json:"duration_seconds"`
	Interrupted       bool        `json:"interrupted"`
	InterruptionCount int         `json:"interruption_count"`
	ManualOverride    bool        `json:"manual_override"`
	CreatedAt         time.Time   `json:"created_at"`
}

type Goal struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Title              string     `json:"title"`
	TargetPomodoros    int        `json:"target_pomodoros"`
	CompletedPomodoros int        `json:"completed_pomodoros"`
	Completed          bool       `json:"completed"`
	Category           *string    `json:"category"`
	Motivation         *string    `json:"motivation"`
	TargetDate         *time.Time `json:"target_date"`
	Description        *string    `json:"description"`
	CreatedAt          time.Time  `json:"created_at"`
}

// GoalDraft carries the caller-supplied fields for goal creation.
type GoalDraft struct {
	UserID          string     `json:"user_id"`
	Title           string     `json:"title"`
	TargetPomodoros int        `json:"target_pomodoros"`
	Category        *string    `json:"category"`
	Motivation      *string    `json:"motivation"`
	TargetDate      *time.Time `json:"target_date"`
	Description     *string    `json:"description"`
}

type GoalPatch struct {
	Title           *string    `json:"title"`
	TargetPomodoros *int       `json:"target_pomodoros"`
	Completed       *bool      `json:"completed"`
	Category        *string    `json:"category"`
	Motivation      *string    `json:"motivation"`
	TargetDate      *time.Time `json:"target_date"`
	Description     *string    `json:"description"`
}
