package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timebox"
)

// fakeTransactor runs the function directly, no real transaction.
type fakeTransactor struct{}

func (fakeTransactor) WithinTransaction(ctx context.Context, txFunc func(context.Context) error) error {
	return txFunc(ctx)
}

// mockStore is a mock implementation of timebox.Store; only the methods the
// timer touches have configurable behavior.
type mockStore struct {
	getOrCreateUserFunc        func(context.Context, string, string) (timebox.User, error)
	getSettingsFunc            func(context.Context, string) (timebox.Settings, bool, error)
	getTaskFunc                func(context.Context, string) (timebox.Task, bool, error)
	insertSessionFunc          func(context.Context, timebox.Session) error
	finishSessionFunc          func(context.Context, string, time.Time, int) error
	incrementInterruptionsFunc func(context.Context, string) error
}

func (m *mockStore) GetOrCreateUser(ctx context.Context, id, name string) (timebox.User, error) {
	if m.getOrCreateUserFunc != nil {
		return m.getOrCreateUserFunc(ctx, id, name)
	}
	if id == "" {
		id = timebox.DefaultUserID
	}
	return timebox.User{ID: id, Name: name}, nil
}

func (m *mockStore) GetUser(ctx context.Context, id string) (timebox.User, bool, error) {
	return timebox.User{}, false, nil
}

func (m *mockStore) GetSettings(ctx context.Context, userID string) (timebox.Settings, bool, error) {
	if m.getSettingsFunc != nil {
		return m.getSettingsFunc(ctx, userID)
	}
	return timebox.Settings{}, false, nil
}

func (m *mockStore) GetOrCreateSettings(ctx context.Context, userID string) (timebox.Settings, error) {
	return timebox.DefaultSettings(userID), nil
}

func (m *mockStore) UpdateSettings(ctx context.Context, userID string, patch timebox.SettingsPatch) (timebox.Settings, error) {
	return timebox.Settings{}, nil
}

func (m *mockStore) InsertTask(ctx context.Context, userID, title string, estimatedPomodoros *int) (timebox.Task, error) {
	return timebox.Task{}, nil
}

func (m *mockStore) GetTask(ctx context.Context, id string) (timebox.Task, bool, error) {
	if m.getTaskFunc != nil {
		return m.getTaskFunc(ctx, id)
	}
	return timebox.Task{}, false, nil
}

func (m *mockStore) GetTasks(ctx context.Context, userID string) ([]timebox.Task, error) {
	return nil, nil
}

func (m *mockStore) UpdateTask(ctx context.Context, id string, patch timebox.TaskPatch) (timebox.Task, error) {
	return timebox.Task{}, nil
}

func (m *mockStore) DeleteTask(ctx context.Context, id string) error { return nil }

func (m *mockStore) GetTasksWithPomodoroCounts(ctx context.Context, userID string) ([]timebox.TaskWithCount, error) {
	return nil, nil
}

func (m *mockStore) InsertSession(ctx context.Context, s timebox.Session) error {
	if m.insertSessionFunc != nil {
		return m.insertSessionFunc(ctx, s)
	}
	return nil
}

func (m *mockStore) FinishSession(ctx context.Context, id string, endTime time.Time, durationSeconds int) error {
	if m.finishSessionFunc != nil {
		return m.finishSessionFunc(ctx, id, endTime, durationSeconds)
	}
	return nil
}

func (m *mockStore) IncrementInterruptions(ctx context.Context, id string) error {
	if m.incrementInterruptionsFunc != nil {
		return m.incrementInterruptionsFunc(ctx, id)
	}
	return nil
}

func (m *mockStore) GetSessions(ctx context.Context, userID string) ([]timebox.Session, error) {
	return nil, nil
}

func (m *mockStore) GetSessionsByDateRange(ctx context.Context, userID string, from, to time.Time) ([]timebox.Session, error) {
	return nil, nil
}

func (m *mockStore) InsertGoal(ctx context.Context, draft timebox.GoalDraft) (timebox.Goal, error) {
	return timebox.Goal{}, nil
}

func (m *mockStore) GetGoals(ctx context.Context, userID string) ([]timebox.Goal, error) {
	return nil, nil
}

func (m *mockStore) UpdateGoal(ctx context.Context, id string, patch timebox.GoalPatch) (timebox.Goal, error) {
	return timebox.Goal{}, nil
}

func (m *mockStore) DeleteGoal(ctx context.Context, id string) error { return nil }

func newTestTimer(store *mockStore) *Timer {
	return NewTimer(store, fakeTransactor{}, *log.Default())
}

func TestStart_StatusReportsConfiguredRemaining(t *testing.T) {
	store := &mockStore{
		getSettingsFunc: func(ctx context.Context, userID string) (timebox.Settings, bool, error) {
			s := timebox.DefaultSettings(userID)
			s.FocusMinutes = 25
			return s, true, nil
		},
	}
	timer := newTestTimer(store)

	session, err := timer.Start(context.Background(), "u1", nil, timebox.SessionFocus)
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, timebox.SessionFocus, session.Type)
	assert.Nil(t, session.EndTime)
	assert.Nil(t, session.DurationSeconds)

	status := timer.Status(context.Background())
	assert.True(t, status.IsRunning)
	assert.False(t, status.IsPaused)
	assert.InDelta(t, 1500, status.TimeRemaining, 1)
}

func TestStart_DefaultsWhenNoStoredSettings(t *testing.T) {
	timer := newTestTimer(&mockStore{})

	_, err := timer.Start(context.Background(), "", nil, timebox.SessionShortBreak)
	require.NoError(t, err)

	// 5 minute short break from the synthesized defaults
	status := timer.Status(context.Background())
	assert.InDelta(t, 300, status.TimeRemaining, 1)
	assert.Equal(t, timebox.SessionShortBreak, status.SessionType)
}

func TestStart_InvalidSessionType(t *testing.T) {
	timer := newTestTimer(&mockStore{})

	_, err := timer.Start(context.Background(), "u1", nil, timebox.SessionType("NAP"))
	assert.Error(t, err)
	assert.False(t, timer.HasActive())
}

func TestStart_ReplacesActiveSession(t *testing.T) {
	var inserted []timebox.Session
	store := &mockStore{
		insertSessionFunc: func(ctx context.Context, s timebox.Session) error {
			inserted = append(inserted, s)
			return nil
		},
	}
	timer := newTestTimer(store)

	first, err := timer.Start(context.Background(), "u1", nil, timebox.SessionFocus)
	require.NoError(t, err)
	second, err := timer.Start(context.Background(), "u1", nil, timebox.SessionLongBreak)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Len(t, inserted, 2)
	assert.Equal(t, timebox.SessionLongBreak, timer.Status(context.Background()).SessionType)
}

func TestStart_StorageFailureLeavesIdle(t *testing.T) {
	store := &mockStore{
		insertSessionFunc: func(ctx context.Context, s timebox.Session) error {
			return errors.New("disk full")
		},
	}
	timer := newTestTimer(store)

	_, err := timer.Start(context.Background(), "u1", nil, timebox.SessionFocus)
	assert.Error(t, err)
	assert.False(t, timer.HasActive())

	// lock released on failure, subsequent calls still work
	assert.NoError(t, timer.Stop(context.Background()))
}

func TestPauseResume_RemainingUnchanged(t *testing.T) {
	timer := newTestTimer(&mockStore{})
	_, err := timer.Start(context.Background(), "u1", nil, timebox.SessionFocus)
	require.NoError(t, err)

	require.NoError(t, timer.Pause(context.Background()))
	atPause := timer.Status(context.Background())
	assert.True(t, atPause.IsPaused)
	assert.True(t, atPause.IsRunning)

	require.NoError(t, timer.Resume(context.Background()))
	afterResume := timer.Status(context.Background())
	assert.False(t, afterResume.IsPaused)
	assert.InDelta(t, atPause.TimeRemaining, afterResume.TimeRemaining, 1)
}

func TestPause_IdempotentWhenAlreadyPaused(t *testing.T) {
	timer := newTestTimer(&mockStore{})
	_, err := timer.Start(context.Background(), "u1", nil, timebox.SessionFocus)
	require.NoError(t, err)

	require.NoError(t, timer.Pause(context.Background()))
	before := timer.Status(context.Background())

	// a second pause must not drain the frozen remaining value
	timer.active.anchor = time.Now().Add(-10 * time.Minute)
	require.NoError(t, timer.Pause(context.Background()))
	after := timer.Status(context.Background())
	assert.Equal(t, before.TimeRemaining, after.TimeRemaining)
}

func TestResume_NoopWhenRunning(t *testing.T) {
	timer := newTestTimer(&mockStore{})
	_, err := timer.Start(context.Background(), "u1", nil, timebox.SessionFocus)
	require.NoError(t, err)

	// a redundant resume must not reset the anchor and stretch the timer
	timer.active.anchor = time.Now().Add(-time.Minute)
	require.NoError(t, timer.Resume(context.Background()))
	status := timer.Status(context.Background())
	assert.InDelta(t, 1440, status.TimeRemaining, 1)
}

func TestPauseResumeStop_NoopWhenIdle(t *testing.T) {
	finishCalls := 0
	store := &mockStore{
		finishSessionFunc: func(ctx context.Context, id string, endTime time.Time, durationSeconds int) error {
			finishCalls++
			return nil
		},
	}
	timer := newTestTimer(store)

	assert.NoError(t, timer.Pause(context.Background()))
	assert.NoError(t, timer.Resume(context.Background()))
	assert.NoError(t, timer.Stop(context.Background()))
	assert.NoError(t, timer.Save(context.Background()))
	assert.Equal(t, 0, finishCalls)
}

func TestStatus_IdleDefaults(t *testing.T) {
	timer := newTestTimer(&mockStore{})

	status := timer.Status(context.Background())
	assert.Equal(t, int64(0), status.TimeRemaining)
	assert.False(t, status.IsRunning)
	assert.False(t, status.IsPaused)
	assert.Equal(t, timebox.SessionFocus, status.SessionType)
	assert.Nil(t, status.TaskTitle)
	assert.Equal(t, 0, status.InterruptionCount)
}

func TestStatus_IdleAfterStop(t *testing.T) {
	timer := newTestTimer(&mockStore{})
	_, err := timer.Start(context.Background(), "u1", nil, timebox.SessionFocus)
	require.NoError(t, err)
	require.NoError(t, timer.Stop(context.Background()))

	status := timer.Status(context.Background())
	assert.Equal(t, int64(0), status.TimeRemaining)
	assert.False(t, status.IsRunning)
	assert.False(t, status.IsPaused)
}

func TestStatus_RemainingNeverNegative(t *testing.T) {
	timer := newTestTimer(&mockStore{})
	_, err := timer.Start(context.Background(), "u1", nil, timebox.SessionFocus)
	require.NoError(t, err)

	// overrun the whole interval
	timer.active.anchor = time.Now().Add(-2 * time.Hour)
	assert.Equal(t, int64(0), timer.Status(context.Background()).TimeRemaining)

	// a frozen negative value must clamp too
	timer.active.paused = true
	timer.active.remaining = -5 * time.Second
	assert.Equal(t, int64(0), timer.Status(context.Background()).TimeRemaining)
}

func TestStatus_TaskTitleBestEffort(t *testing.T) {
	taskID := "t1"
	store := &mockStore{
		getTaskFunc: func(ctx context.Context, id string) (timebox.Task, bool, error) {
			return timebox.Task{}, false, errors.New("db gone")
		},
	}
	timer := newTestTimer(store)
	_, err := timer.Start(context.Background(), "u1", &taskID, timebox.SessionFocus)
	require.NoError(t, err)

	// lookup failure collapses to no title, not an error
	assert.Nil(t, timer.Status(context.Background()).TaskTitle)

	store.getTaskFunc = func(ctx context.Context, id string) (timebox.Task, bool, error) {
		return timebox.Task{ID: id, Title: "Write report"}, true, nil
	}
	status := timer.Status(context.Background())
	require.NotNil(t, status.TaskTitle)
	assert.Equal(t, "Write report", *status.TaskTitle)
}

func TestStop_WritesDurationSinceAnchor(t *testing.T) {
	var gotID string
	var gotDuration int
	store := &mockStore{
		finishSessionFunc: func(ctx context.Context, id string, endTime time.Time, durationSeconds int) error {
			gotID = id
			gotDuration = durationSeconds
			return nil
		},
	}
	timer := newTestTimer(store)
	session, err := timer.Start(context.Background(), "u1", nil, timebox.SessionFocus)
	require.NoError(t, err)

	timer.active.anchor = time.Now().Add(-90 * time.Second)
	require.NoError(t, timer.Stop(context.Background()))

	assert.Equal(t, session.ID, gotID)
	assert.InDelta(t, 90, gotDuration, 1)
	assert.False(t, timer.HasActive())
}

func TestSave_FlushesLikeStop(t *testing.T) {
	finishCalls := 0
	store := &mockStore{
		finishSessionFunc: func(ctx context.Context, id string, endTime time.Time, durationSeconds int) error {
			finishCalls++
			return nil
		},
	}
	timer := newTestTimer(store)
	_, err := timer.Start(context.Background(), "u1", nil, timebox.SessionFocus)
	require.NoError(t, err)

	require.NoError(t, timer.Save(context.Background()))
	assert.Equal(t, 1, finishCalls)
	assert.False(t, timer.HasActive())
}

func TestRecordInterruption_FailsWhenIdle(t *testing.T) {
	timer := newTestTimer(&mockStore{})

	_, err := timer.RecordInterruption(context.Background())
	assert.ErrorIs(t, err, timebox.ErrNoActiveSession)
}

func TestRecordInterruption_IncrementsByOne(t *testing.T) {
	durable := 0
	store := &mockStore{
		incrementInterruptionsFunc: func(ctx context.Context, id string) error {
			durable++
			return nil
		},
	}
	timer := newTestTimer(store)
	_, err := timer.Start(context.Background(), "u1", nil, timebox.SessionFocus)
	require.NoError(t, err)

	count, err := timer.RecordInterruption(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = timer.RecordInterruption(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, durable)
	assert.Equal(t, 2, timer.Status(context.Background()).InterruptionCount)
}

func TestRecordInterruption_StorageFailureKeepsCount(t *testing.T) {
	store := &mockStore{
		incrementInterruptionsFunc: func(ctx context.Context, id string) error {
			return errors.New("locked")
		},
	}
	timer := newTestTimer(store)
	_, err := timer.Start(context.Background(), "u1", nil, timebox.SessionFocus)
	require.NoError(t, err)

	_, err = timer.RecordInterruption(context.Background())
	assert.Error(t, err)
	// in-memory count never runs ahead of the stored one
	assert.Equal(t, 0, timer.Status(context.Background()).InterruptionCount)
}
