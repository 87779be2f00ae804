package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	txStdLib "github.com/Thiht/transactor/stdlib"
	"github.com/charmbracelet/log"

	"timebox"
)

const selectSession = "SELECT id, user_id, task_id, session_type, start_time, end_time, duration_seconds, interrupted, interruption_count, manual_override, created_at FROM pomodoro_sessions"

type sessionEntity struct {
	ID                string
	UserID            string
	TaskID            sql.NullString
	SessionType       string
	StartTime         int64
	EndTime           sql.NullInt64
	DurationSeconds   sql.NullInt64
	Interrupted       bool
	InterruptionCount int
	ManualOverride    bool
	CreatedAt         int64
}

type sessionRepo struct {
	dbGetter txStdLib.DBGetter
	l        log.Logger
}

// InsertSession records a freshly started session. End time and duration
// stay NULL until FinishSession.
func (r *sessionRepo) InsertSession(ctx context.Context, s timebox.Session) error {
	if s.ID == "" || s.UserID == "" {
		return fmt.Errorf("provide required fields 'ID' and 'UserID'")
	}
	if !s.Type.Valid() {
		return fmt.Errorf("invalid session type: %q", s.Type)
	}

	var taskID sql.NullString
	if s.TaskID != nil {
		taskID = sql.NullString{String: *s.TaskID, Valid: true}
	}
	args := []any{
		s.ID,
		s.UserID,
		taskID,
		string(s.Type),
		s.StartTime.Unix(),
		s.Interrupted,
		s.InterruptionCount,
		s.ManualOverride,
		s.CreatedAt.Unix(),
	}
	query := "INSERT INTO pomodoro_sessions (id, user_id, task_id, session_type, start_time, interrupted, interruption_count, manual_override, created_at) VALUES " + parameters(len(args))
	r.l.Debug("creating session", "query", query, "args", args)
	if _, err := r.dbGetter(ctx).ExecContext(ctx, query, args...); err != nil {
		return classify(err)
	}
	return nil
}

// FinishSession writes end time and duration together, marking the session
// stopped.
func (r *sessionRepo) FinishSession(ctx context.Context, id string, endTime time.Time, durationSeconds int) error {
	if id == "" {
		return fmt.Errorf("provide id")
	}

	query := "UPDATE pomodoro_sessions SET end_time = ?, duration_seconds = ? WHERE id = ?"
	r.l.Debug("finishing session", "query", query, "id", id, "durationSeconds", durationSeconds)
	res, err := r.dbGetter(ctx).ExecContext(ctx, query, endTime.Unix(), durationSeconds, id)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", id, timebox.ErrNotFound)
	}
	return nil
}

func (r *sessionRepo) IncrementInterruptions(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("provide id")
	}

	query := "UPDATE pomodoro_sessions SET interruption_count = interruption_count + 1, interrupted = 1 WHERE id = ?"
	r.l.Debug("incrementing interruptions", "query", query, "id", id)
	res, err := r.dbGetter(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("session %s: %w", id, timebox.ErrNotFound)
	}
	return nil
}

func (r *sessionRepo) GetSessions(ctx context.Context, userID string) ([]timebox.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("provide userID")
	}

	query := selectSession + " WHERE user_id = ? ORDER BY start_time DESC"
	r.l.Debug("getting sessions", "query", query, "userID", userID)
	return r.querySessions(ctx, query, userID)
}

// GetSessionsByDateRange returns sessions started within [from, to), most
// recent first.
func (r *sessionRepo) GetSessionsByDateRange(ctx context.Context, userID string, from, to time.Time) ([]timebox.Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("provide userID")
	}

	query := selectSession + " WHERE user_id = ? AND start_time >= ? AND start_time < ? ORDER BY start_time DESC"
	r.l.Debug("getting sessions by date range", "query", query, "userID", userID, "from", from, "to", to)
	return r.querySessions(ctx, query, userID, from.Unix(), to.Unix())
}

func (r *sessionRepo) querySessions(ctx context.Context, query string, args ...any) ([]timebox.Session, error) {
	rows, err := r.dbGetter(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint

	var sessions []timebox.Session
	for rows.Next() {
		session, err := extractSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func extractSession(s scannable) (timebox.Session, error) {
	var e sessionEntity
	if err := s.Scan(&e.ID, &e.UserID, &e.TaskID, &e.SessionType, &e.StartTime, &e.EndTime, &e.DurationSeconds, &e.Interrupted, &e.InterruptionCount, &e.ManualOverride, &e.CreatedAt); err != nil {
		return timebox.Session{}, err
	}
	return mapToSession(e), nil
}

func mapToSession(e sessionEntity) timebox.Session {
	session := timebox.Session{
		ID:                e.ID,
		UserID:            e.UserID,
		Type:              timebox.SessionType(e.SessionType),
		StartTime:         time.Unix(e.StartTime, 0),
		Interrupted:       e.Interrupted,
		InterruptionCount: e.InterruptionCount,
		ManualOverride:    e.ManualOverride,
		CreatedAt:         time.Unix(e.CreatedAt, 0),
	}
	if e.TaskID.Valid {
		session.TaskID = &e.TaskID.String
	}
	if e.EndTime.Valid {
		endTime := time.Unix(e.EndTime.Int64, 0)
		session.EndTime = &endTime
	}
	if e.DurationSeconds.Valid {
		duration := int(e.DurationSeconds.Int64)
		session.DurationSeconds = &duration
	}
	return session
}
