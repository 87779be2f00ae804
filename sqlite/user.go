package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	txStdLib "github.com/Thiht/transactor/stdlib"
	"github.com/charmbracelet/log"

	"timebox"
)

const (
	selectUser     = "SELECT id, name, timezone, created_at FROM users"
	selectSettings = "SELECT user_id, focus_minutes, short_break_minutes, long_break_minutes, cycles_before_long_break, strict_mode, auto_start_breaks FROM pomodoro_settings"
)

type userEntity struct {
	ID        string
	Name      string
	Timezone  string
	CreatedAt int64
}

type userRepo struct {
	dbGetter txStdLib.DBGetter
	l        log.Logger
}

// GetOrCreateUser resolves a user by id, inserting it with default settings
// on first access. Insert-if-absent, so concurrent first calls cannot
// produce duplicates or fail.
func (r *userRepo) GetOrCreateUser(ctx context.Context, id, name string) (timebox.User, error) {
	if id == "" {
		id = timebox.DefaultUserID
	}
	if name == "" {
		name = timebox.DefaultUserName
	}

	db := r.dbGetter(ctx)
	query := "INSERT OR IGNORE INTO users (id, name, timezone, created_at) VALUES " + parameters(4)
	args := []any{id, name, "UTC", time.Now().Unix()}
	r.l.Debug("ensuring user", "query", query, "args", args)
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return timebox.User{}, classify(err)
	}
	if _, err := db.ExecContext(ctx, "INSERT OR IGNORE INTO pomodoro_settings (user_id) VALUES (?)", id); err != nil {
		return timebox.User{}, classify(err)
	}

	user, ok, err := r.GetUser(ctx, id)
	if err != nil {
		return timebox.User{}, err
	}
	if !ok {
		return timebox.User{}, fmt.Errorf("user %s: %w", id, timebox.ErrNotFound)
	}
	return user, nil
}

func (r *userRepo) GetUser(ctx context.Context, id string) (timebox.User, bool, error) {
	if id == "" {
		return timebox.User{}, false, fmt.Errorf("provide id")
	}

	row := r.dbGetter(ctx).QueryRowContext(ctx, selectUser+" WHERE id = ?", id)
	var e userEntity
	if err := row.Scan(&e.ID, &e.Name, &e.Timezone, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return timebox.User{}, false, nil
		}
		return timebox.User{}, false, err
	}

	return timebox.User{
		ID:        e.ID,
		Name:      e.Name,
		Timezone:  e.Timezone,
		CreatedAt: time.Unix(e.CreatedAt, 0),
	}, true, nil
}

func (r *userRepo) GetSettings(ctx context.Context, userID string) (timebox.Settings, bool, error) {
	if userID == "" {
		return timebox.Settings{}, false, fmt.Errorf("provide userID")
	}

	row := r.dbGetter(ctx).QueryRowContext(ctx, selectSettings+" WHERE user_id = ?", userID)
	settings, err := extractSettings(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return timebox.Settings{}, false, nil
		}
		return timebox.Settings{}, false, err
	}
	return settings, true, nil
}

// GetOrCreateSettings returns the stored settings for a user, inserting the
// defaults first if no row exists yet.
func (r *userRepo) GetOrCreateSettings(ctx context.Context, userID string) (timebox.Settings, error) {
	if userID == "" {
		return timebox.Settings{}, fmt.Errorf("provide userID")
	}

	db := r.dbGetter(ctx)
	r.l.Debug("ensuring settings", "userID", userID)
	if _, err := db.ExecContext(ctx, "INSERT OR IGNORE INTO pomodoro_settings (user_id) VALUES (?)", userID); err != nil {
		return timebox.Settings{}, classify(err)
	}

	settings, ok, err := r.GetSettings(ctx, userID)
	if err != nil {
		return timebox.Settings{}, err
	}
	if !ok {
		return timebox.Settings{}, fmt.Errorf("settings for user %s: %w", userID, timebox.ErrNotFound)
	}
	return settings, nil
}

func (r *userRepo) UpdateSettings(ctx context.Context, userID string, patch timebox.SettingsPatch) (timebox.Settings, error) {
	settings, err := r.GetOrCreateSettings(ctx, userID)
	if err != nil {
		return timebox.Settings{}, err
	}

	if patch.FocusMinutes != nil {
		settings.FocusMinutes = *patch.FocusMinutes
	}
	if patch.ShortBreakMinutes != nil {
		settings.ShortBreakMinutes = *patch.ShortBreakMinutes
	}
	if patch.LongBreakMinutes != nil {
		settings.LongBreakMinutes = *patch.LongBreakMinutes
	}
	if patch.CyclesBeforeLongBreak != nil {
		settings.CyclesBeforeLongBreak = *patch.CyclesBeforeLongBreak
	}
	if patch.StrictMode != nil {
		settings.StrictMode = *patch.StrictMode
	}
	if patch.AutoStartBreaks != nil {
		settings.AutoStartBreaks = *patch.AutoStartBreaks
	}

	query := "UPDATE pomodoro_settings SET focus_minutes = ?, short_break_minutes = ?, long_break_minutes = ?, cycles_before_long_break = ?, strict_mode = ?, auto_start_breaks = ? WHERE user_id = ?"
	args := []any{
		settings.FocusMinutes,
		settings.ShortBreakMinutes,
		settings.LongBreakMinutes,
		settings.CyclesBeforeLongBreak,
		settings.StrictMode,
		settings.AutoStartBreaks,
		userID,
	}
	r.l.Debug("updating settings", "query", query, "args", args)
	if _, err := r.dbGetter(ctx).ExecContext(ctx, query, args...); err != nil {
		return timebox.Settings{}, classify(err)
	}

	return settings, nil
}

func extractSettings(s scannable) (timebox.Settings, error) {
	var settings timebox.Settings
	err := s.Scan(
		&settings.UserID,
		&settings.FocusMinutes,
		&settings.ShortBreakMinutes,
		&settings.LongBreakMinutes,
		&settings.CyclesBeforeLongBreak,
		&settings.StrictMode,
		&settings.AutoStartBreaks,
	)
	return settings, err
}
