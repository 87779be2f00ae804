package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"timebox"
)

// server is the command surface: one route per operation, JSON in and out.
// Every failure crosses the boundary as a single human-readable message.
type server struct {
	timer *Timer
	store timebox.Store
	l     log.Logger
}

func newServer(timer *Timer, store timebox.Store, logger log.Logger) *server {
	return &server{
		timer: timer,
		store: store,
		l:     logger,
	}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/session/start", s.handleStartSession)
	mux.HandleFunc("POST /api/session/pause", s.handlePauseSession)
	mux.HandleFunc("POST /api/session/resume", s.handleResumeSession)
	mux.HandleFunc("POST /api/session/stop", s.handleStopSession)
	mux.HandleFunc("POST /api/session/save", s.handleSaveSession)
	mux.HandleFunc("GET /api/session/status", s.handleTimerStatus)
	mux.HandleFunc("GET /api/session/active", s.handleHasActiveSession)
	mux.HandleFunc("POST /api/session/interruption", s.handleRecordInterruption)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handleUpdateSettings)

	mux.HandleFunc("POST /api/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/tasks/counts", s.handleTaskCounts)
	mux.HandleFunc("PATCH /api/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.handleDeleteTask)

	mux.HandleFunc("POST /api/goals", s.handleCreateGoal)
	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("PATCH /api/goals/{id}", s.handleUpdateGoal)
	mux.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)

	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/today", s.handleTodaySessions)

	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startSessionRequest struct {
	UserID      string              `json:"user_id"`
	TaskID      *string             `json:"task_id"`
	SessionType timebox.SessionType `json:"session_type"`
}

func (s *server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	session, err := s.timer.Start(r.Context(), req.UserID, req.TaskID, req.SessionType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *server) handlePauseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.timer.Pause(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *server) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	if err := s.timer.Resume(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	if err := s.timer.Stop(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	if err := s.timer.Save(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *server) handleTimerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.timer.Status(r.Context()))
}

func (s *server) handleHasActiveSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"active": s.timer.HasActive()})
}

func (s *server) handleRecordInterruption(w http.ResponseWriter, r *http.Request) {
	count, err := s.timer.RecordInterruption(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"interruption_count": count})
}

func (s *server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID := userIDParam(r)
	if _, err := s.store.GetOrCreateUser(r.Context(), userID, timebox.DefaultUserName); err != nil {
		s.writeError(w, err)
		return
	}
	settings, err := s.store.GetOrCreateSettings(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type updateSettingsRequest struct {
	UserID string `json:"user_id"`
	timebox.SettingsPatch
}

func (s *server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.UserID == "" {
		req.UserID = timebox.DefaultUserID
	}

	if _, err := s.store.GetOrCreateUser(r.Context(), req.UserID, timebox.DefaultUserName); err != nil {
		s.writeError(w, err)
		return
	}
	settings, err := s.store.UpdateSettings(r.Context(), req.UserID, req.SettingsPatch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

type createTaskRequest struct {
	UserID             string `json:"user_id"`
	Title              string `json:"title"`
	EstimatedPomodoros *int   `json:"estimated_pomodoros"`
}

func (s *server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Title == "" {
		writeBadRequest(w, "title is required")
		return
	}
	if req.UserID == "" {
		req.UserID = timebox.DefaultUserID
	}

	task, err := s.store.InsertTask(r.Context(), req.UserID, req.Title, req.EstimatedPomodoros)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.GetTasks(r.Context(), userIDParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if tasks == nil {
		tasks = []timebox.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *server) handleTaskCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.GetTasksWithPomodoroCounts(r.Context(), userIDParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if counts == nil {
		counts = []timebox.TaskWithCount{}
	}
	writeJSON(w, http.StatusOK, counts)
}

func (s *server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var patch timebox.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	task, err := s.store.UpdateTask(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w)
}

func (s *server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var draft timebox.GoalDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if draft.Title == "" {
		writeBadRequest(w, "title is required")
		return
	}
	if draft.UserID == "" {
		draft.UserID = timebox.DefaultUserID
	}

	goal, err := s.store.InsertGoal(r.Context(), draft)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.store.GetGoals(r.Context(), userIDParam(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if goals == nil {
		goals = []timebox.Goal{}
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var patch timebox.GoalPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	goal, err := s.store.UpdateGoal(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteGoal(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	writeOK(w)
}

// handleListSessions serves both the full history and the date-range query;
// bounds are RFC 3339 and the range is half-open [from, to).
func (s *server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	userID := userIDParam(r)
	fromParam := r.URL.Query().Get("from")
	toParam := r.URL.Query().Get("to")

	var sessions []timebox.Session
	var err error
	if fromParam != "" || toParam != "" {
		var from, to time.Time
		if from, err = time.Parse(time.RFC3339, fromParam); err != nil {
			writeBadRequest(w, "invalid 'from' bound, want RFC 3339")
			return
		}
		if to, err = time.Parse(time.RFC3339, toParam); err != nil {
			writeBadRequest(w, "invalid 'to' bound, want RFC 3339")
			return
		}
		sessions, err = s.store.GetSessionsByDateRange(r.Context(), userID, from, to)
	} else {
		sessions, err = s.store.GetSessions(r.Context(), userID)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []timebox.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *server) handleTodaySessions(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	sessions, err := s.store.GetSessionsByDateRange(r.Context(), userIDParam(r), from, from.Add(24*time.Hour))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []timebox.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func userIDParam(r *http.Request) string {
	if id := r.URL.Query().Get("user_id"); id != "" {
		return id
	}
	return timebox.DefaultUserID
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeError maps the internal error kind onto an HTTP status; the body is
// always a single opaque message.
func (s *server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch timebox.KindOf(err) {
	case timebox.KindNotFound:
		status = http.StatusNotFound
	case timebox.KindNoActiveSession, timebox.KindConstraint:
		status = http.StatusConflict
	}
	s.l.Error("command failed", "err", err)
	writeJSON(w, status, errorResponse{Error: fmt.Sprintf("%v", err)})
}
