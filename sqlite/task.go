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

const selectTask = "SELECT id, user_id, title, estimated_pomodoros, completed, created_at FROM tasks"

type taskEntity struct {
	ID                 string
	UserID             string
	Title              string
	EstimatedPomodoros int
	Completed          bool
	CreatedAt          int64
}

type taskRepo struct {
	dbGetter txStdLib.DBGetter
	l        log.Logger
}

func (r *taskRepo) InsertTask(ctx context.Context, userID, title string, estimatedPomodoros *int) (timebox.Task, error) {
	if userID == "" || title == "" {
		return timebox.Task{}, fmt.Errorf("provide required fields 'UserID' and 'Title'")
	}

	estimated := 1
	if estimatedPomodoros != nil {
		estimated = *estimatedPomodoros
	}
	task := timebox.Task{
		ID:                 uuid.NewString(),
		UserID:             userID,
		Title:              title,
		EstimatedPomodoros: estimated,
		CreatedAt:          time.Now(),
	}

	args := []any{task.ID, task.UserID, task.Title, task.EstimatedPomodoros, task.Completed, task.CreatedAt.Unix()}
	query := "INSERT INTO tasks (id, user_id, title, estimated_pomodoros, completed, created_at) VALUES " + parameters(len(args))
	r.l.Debug("creating task", "query", query, "args", args)
	if _, err := r.dbGetter(ctx).ExecContext(ctx, query, args...); err != nil {
		return timebox.Task{}, classify(err)
	}

	return task, nil
}

func (r *taskRepo) GetTask(ctx context.Context, id string) (timebox.Task, bool, error) {
	if id == "" {
		return timebox.Task{}, false, fmt.Errorf("provide id")
	}

	row := r.dbGetter(ctx).QueryRowContext(ctx, selectTask+" WHERE id = ?", id)
	task, err := extractTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return timebox.Task{}, false, nil
		}
		return timebox.Task{}, false, err
	}
	return task, true, nil
}

func (r *taskRepo) GetTasks(ctx context.Context, userID string) ([]timebox.Task, error) {
	if userID == "" {
		return nil, fmt.Errorf("provide userID")
	}

	query := selectTask + " WHERE user_id = ? ORDER BY created_at DESC"
	r.l.Debug("getting tasks", "query", query, "userID", userID)
	rows, err := r.dbGetter(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint

	var tasks []timebox.Task
	for rows.Next() {
		task, err := extractTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// UpdateTask overlays only the supplied patch fields onto the stored row.
func (r *taskRepo) UpdateTask(ctx context.Context, id string, patch timebox.TaskPatch) (timebox.Task, error) {
	task, ok, err := r.GetTask(ctx, id)
	if err != nil {
		return timebox.Task{}, err
	}
	if !ok {
		return timebox.Task{}, fmt.Errorf("task %s: %w", id, timebox.ErrNotFound)
	}

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.EstimatedPomodoros != nil {
		task.EstimatedPomodoros = *patch.EstimatedPomodoros
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}

	query := "UPDATE tasks SET title = ?, estimated_pomodoros = ?, completed = ? WHERE id = ?"
	args := []any{task.Title, task.EstimatedPomodoros, task.Completed, task.ID}
	r.l.Debug("updating task", "query", query, "args", args)
	if _, err := r.dbGetter(ctx).ExecContext(ctx, query, args...); err != nil {
		return timebox.Task{}, classify(err)
	}

	return task, nil
}

// DeleteTask removes a task. Sessions referencing it keep their rows; the
// task reference is nulled by the schema's ON DELETE SET NULL rule.
func (r *taskRepo) DeleteTask(ctx context.Context, id string) error {
	_, ok, err := r.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("task %s: %w", id, timebox.ErrNotFound)
	}

	r.l.Debug("deleting task", "id", id)
	if _, err := r.dbGetter(ctx).ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id); err != nil {
		return classify(err)
	}
	return nil
}

// GetTasksWithPomodoroCounts joins each task to the count of FOCUS sessions
// referencing it; tasks without sessions are included with count 0.
func (r *taskRepo) GetTasksWithPomodoroCounts(ctx context.Context, userID string) ([]timebox.TaskWithCount, error) {
	if userID == "" {
		return nil, fmt.Errorf("provide userID")
	}

	query := `SELECT t.id, t.user_id, t.title, t.estimated_pomodoros, t.completed, t.created_at, COUNT(ps.id)
		FROM tasks t
		LEFT JOIN pomodoro_sessions ps ON t.id = ps.task_id AND ps.session_type = 'FOCUS'
		WHERE t.user_id = ?
		GROUP BY t.id
		ORDER BY t.created_at DESC`
	r.l.Debug("getting tasks with pomodoro counts", "userID", userID)
	rows, err := r.dbGetter(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint

	var result []timebox.TaskWithCount
	for rows.Next() {
		var e taskEntity
		var count int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.EstimatedPomodoros, &e.Completed, &e.CreatedAt, &count); err != nil {
			return nil, err
		}
		result = append(result, timebox.TaskWithCount{
			Task:            mapToTask(e),
			ActualPomodoros: count,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func extractTask(s scannable) (timebox.Task, error) {
	var e taskEntity
	if err := s.Scan(&e.ID, &e.UserID, &e.Title, &e.EstimatedPomodoros, &e.Completed, &e.CreatedAt); err != nil {
		return timebox.Task{}, err
	}
	return mapToTask(e), nil
}

func mapToTask(e taskEntity) timebox.Task {
	return timebox.Task{
		ID:                 e.ID,
		UserID:             e.UserID,
		Title:              e.Title,
		EstimatedPomodoros: e.EstimatedPomodoros,
		Completed:          e.Completed,
		CreatedAt:          time.Unix(e.CreatedAt, 0),
	}
}
