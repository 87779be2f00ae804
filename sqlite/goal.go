package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	txStdLib "github.com/Thiht/transactor/stdlib"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"timebox"
)

const selectGoal = "SELECT id, user_id, title, target_pomodoros, completed_pomodoros, completed, category, motivation, target_date, description, created_at FROM goals"

type goalEntity struct {
	ID                 string
	UserID             string
	Title              string
	TargetPomodoros    int
	CompletedPomodoros int
	Completed          bool
	Category           sql.NullString
	Motivation         sql.NullString
	TargetDate         sql.NullInt64
	Description        sql.NullString
	CreatedAt          int64
}

type goalRepo struct {
	dbGetter txStdLib.DBGetter
	l        log.Logger
}

func (r *goalRepo) InsertGoal(ctx context.Context, draft timebox.GoalDraft) (timebox.Goal, error) {
	if draft.UserID == "" || draft.Title == "" {
		return timebox.Goal{}, fmt.Errorf("provide required fields 'UserID' and 'Title'")
	}

	goal := timebox.Goal{
		ID:              uuid.NewString(),
		UserID:          draft.UserID,
		Title:           draft.Title,
		TargetPomodoros: draft.TargetPomodoros,
		Category:        draft.Category,
		Motivation:      draft.Motivation,
		TargetDate:      draft.TargetDate,
		Description:     draft.Description,
		CreatedAt:       time.Now(),
	}
	e := mapToGoalEntity(goal)

	args := []any{
		e.ID,
		e.UserID,
		e.Title,
		e.TargetPomodoros,
		e.CompletedPomodoros,
		e.Completed,
		e.Category,
		e.Motivation,
		e.TargetDate,
		e.Description,
		e.CreatedAt,
	}
	query := "INSERT INTO goals (id, user_id, title, target_pomodoros, completed_pomodoros, completed, category, motivation, target_date, description, created_at) VALUES " + parameters(len(args))
	r.l.Debug("creating goal", "query", query, "args", args)
	if _, err := r.dbGetter(ctx).ExecContext(ctx, query, args...); err != nil {
		return timebox.Goal{}, classify(err)
	}

	return goal, nil
}

func (r *goalRepo) GetGoals(ctx context.Context, userID string) ([]timebox.Goal, error) {
	if userID == "" {
		return nil, fmt.Errorf("provide userID")
	}

	query := selectGoal + " WHERE user_id = ? ORDER BY created_at DESC"
	r.l.Debug("getting goals", "query", query, "userID", userID)
	rows, err := r.dbGetter(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint

	var goals []timebox.Goal
	for rows.Next() {
		goal, err := extractGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, goal)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return goals, nil
}

func (r *goalRepo) UpdateGoal(ctx context.Context, id string, patch timebox.GoalPatch) (timebox.Goal, error) {
	goal, err := r.getGoal(ctx, id)
	if err != nil {
		return timebox.Goal{}, err
	}

	if patch.Title != nil {
		goal.Title = *patch.Title
	}
	if patch.TargetPomodoros != nil {
		goal.TargetPomodoros = *patch.TargetPomodoros
	}
	if patch.Completed != nil {
		goal.Completed = *patch.Completed
	}
	if patch.Category != nil {
		goal.Category = patch.Category
	}
	if patch.Motivation != nil {
		goal.Motivation = patch.Motivation
	}
	if patch.TargetDate != nil {
		goal.TargetDate = patch.TargetDate
	}
	if patch.Description != nil {
		goal.Description = patch.Description
	}

	e := mapToGoalEntity(goal)
	query := "UPDATE goals SET title = ?, target_pomodoros = ?, completed = ?, category = ?, motivation = ?, target_date = ?, description = ? WHERE id = ?"
	args := []any{e.Title, e.TargetPomodoros, e.Completed, e.Category, e.Motivation, e.TargetDate, e.Description, e.ID}
	r.l.Debug("updating goal", "query", query, "args", args)
	if _, err := r.dbGetter(ctx).ExecContext(ctx, query, args...); err != nil {
		return timebox.Goal{}, classify(err)
	}

	return goal, nil
}

func (r *goalRepo) DeleteGoal(ctx context.Context, id string) error {
	if _, err := r.getGoal(ctx, id); err != nil {
		return err
	}

	r.l.Debug("deleting goal", "id", id)
	if _, err := r.dbGetter(ctx).ExecContext(ctx, "DELETE FROM goals WHERE id = ?", id); err != nil {
		return classify(err)
	}
	return nil
}

func (r *goalRepo) getGoal(ctx context.Context, id string) (timebox.Goal, error) {
	if id == "" {
		return timebox.Goal{}, fmt.Errorf("provide id")
	}

	row := r.dbGetter(ctx).QueryRowContext(ctx, selectGoal+" WHERE id = ?", id)
	goal, err := extractGoal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return timebox.Goal{}, fmt.Errorf("goal %s: %w", id, timebox.ErrNotFound)
		}
		return timebox.Goal{}, err
	}
	return goal, nil
}

func extractGoal(s scannable) (timebox.Goal, error) {
	var e goalEntity
	if err := s.Scan(&e.ID, &e.UserID, &e.Title, &e.TargetPomodoros, &e.CompletedPomodoros, &e.Completed, &e.Category, &e.Motivation, &e.TargetDate, &e.Description, &e.CreatedAt); err != nil {
		return timebox.Goal{}, err
	}
	return mapToGoal(e), nil
}

func mapToGoalEntity(g timebox.Goal) goalEntity {
	e := goalEntity{
		ID:                 g.ID,
		UserID:             g.UserID,
		Title:              g.Title,
		TargetPomodoros:    g.TargetPomodoros,
		CompletedPomodoros: g.CompletedPomodoros,
		Completed:          g.Completed,
		CreatedAt:          g.CreatedAt.Unix(),
	}
	if g.Category != nil {
		e.Category = sql.NullString{String: *g.Category, Valid: true}
	}
	if g.Motivation != nil {
		e.Motivation = sql.NullString{String: *g.Motivation, Valid: true}
	}
	if g.TargetDate != nil {
		e.TargetDate = sql.NullInt64{Int64: g.TargetDate.Unix(), Valid: true}
	}
	if g.Description != nil {
		e.Description = sql.NullString{String: *g.Description, Valid: true}
	}
	return e
}

func mapToGoal(e goalEntity) timebox.Goal {
	goal := timebox.Goal{
		ID:                 e.ID,
		UserID:             e.UserID,
		Title:              e.Title,
		TargetPomodoros:    e.TargetPomodoros,
		CompletedPomodoros: e.CompletedPomodoros,
		Completed:          e.Completed,
		CreatedAt:          time.Unix(e.CreatedAt, 0),
	}
	if e.Category.Valid {
		goal.Category = &e.Category.String
	}
	if e.Motivation.Valid {
		goal.Motivation = &e.Motivation.String
	}
	if e.TargetDate.Valid {
		targetDate := time.Unix(e.TargetDate.Int64, 0)
		goal.TargetDate = &targetDate
	}
	if e.Description.Valid {
		goal.Description = &e.Description.String
	}
	return goal
}
