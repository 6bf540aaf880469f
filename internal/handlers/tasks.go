package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskforge/apiserver/internal/logging"
	"github.com/taskforge/apiserver/internal/services"
	"github.com/taskforge/apiserver/types"
)

// TaskAPI is the task surface the task routes need.
type TaskAPI interface {
	Create(ctx context.Context, owner string, task types.Task) (types.Task, error)
	Get(ctx context.Context, owner, id string) (types.Task, error)
	Update(ctx context.Context, owner, id string, update types.TaskUpdate) (types.Task, error)
	Delete(ctx context.Context, owner, id string) (types.Task, error)
	List(ctx context.Context, owner string, q types.TaskQuery) ([]types.Task, error)
}

// TaskHandler provides owner-scoped task endpoints.
type TaskHandler struct {
	tasks TaskAPI
	log   logging.Logger
}

func NewTaskHandler(tasks TaskAPI, log logging.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, log: log}
}

// TaskRouter registers task routes on the given router. Every route
// requires authentication.
func TaskRouter(r chi.Router, tasks TaskAPI, auth Authenticator, log logging.Logger) {
	handler := NewTaskHandler(tasks, log)

	r.Use(RequireAuth(auth, log))
	r.Post("/", handler.CreateTask)
	r.Get("/", handler.ListTasks)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", handler.GetTask)
		r.Patch("/", handler.UpdateTask)
		r.Delete("/", handler.DeleteTask)
	})
}

type TaskCreateRequest struct {
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(w, r, h.log)
	if !ok {
		return
	}

	var req TaskCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.tasks.Create(r.Context(), session.User.ID, types.Task{
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// ListTasks serves GET /tasks?completed=true&limit=10&skip=20&sortBy=createdAt:desc.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(w, r, h.log)
	if !ok {
		return
	}

	q, err := services.ParseTaskQuery(session.User.ID, r.URL.Query())
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	tasks, err := h.tasks.List(r.Context(), session.User.ID, q)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(w, r, h.log)
	if !ok {
		return
	}

	task, err := h.tasks.Get(r.Context(), session.User.ID, chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(w, r, h.log)
	if !ok {
		return
	}

	var body map[string]json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	update, err := services.DecodeTaskUpdate(body)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	task, err := h.tasks.Update(r.Context(), session.User.ID, chi.URLParam(r, "taskID"), update)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(w, r, h.log)
	if !ok {
		return
	}

	task, err := h.tasks.Delete(r.Context(), session.User.ID, chi.URLParam(r, "taskID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
