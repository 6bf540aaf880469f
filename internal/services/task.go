package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/taskforge/apiserver/internal/store"
	"github.com/taskforge/apiserver/types"
)

// DefaultTaskLimit caps a listing when the request names no limit.
const DefaultTaskLimit = 10

var taskUpdateFields = map[string]bool{
	"description": true,
	"completed":   true,
}

var sortFields = map[string]types.SortField{
	"createdAt":   types.SortByCreatedAt,
	"created_at":  types.SortByCreatedAt,
	"updatedAt":   types.SortByUpdatedAt,
	"updated_at":  types.SortByUpdatedAt,
	"description": types.SortByDescription,
	"completed":   types.SortByCompleted,
}

// TaskService implements owner-scoped task operations.
type TaskService struct {
	tasks TaskRepository
}

func NewTaskService(tasks TaskRepository) *TaskService {
	return &TaskService{tasks: tasks}
}

// ParseTaskQuery resolves listing parameters for owner.
//
//	completed  absent or empty: no filter; "true": true; anything else: false
//	limit      absent: DefaultTaskLimit; 0: no cap
//	skip       absent: 0
//	sortBy     field:dir or field_dir; dir "desc" sorts descending
func ParseTaskQuery(owner string, params url.Values) (types.TaskQuery, error) {
	q := types.TaskQuery{Owner: owner, Limit: DefaultTaskLimit}

	if raw := params.Get("completed"); raw != "" {
		completed := raw == "true"
		q.Completed = &completed
	}

	if params.Has("limit") {
		limit, err := strconv.Atoi(strings.TrimSpace(params.Get("limit")))
		if err != nil || limit < 0 {
			return types.TaskQuery{}, invalid("limit", "must be a non-negative integer")
		}
		q.Limit = limit
	}

	if params.Has("skip") {
		skip, err := strconv.Atoi(strings.TrimSpace(params.Get("skip")))
		if err != nil || skip < 0 {
			return types.TaskQuery{}, invalid("skip", "must be a non-negative integer")
		}
		q.Skip = skip
	}

	if raw := strings.TrimSpace(params.Get("sortBy")); raw != "" {
		order, err := parseSort(raw)
		if err != nil {
			return types.TaskQuery{}, err
		}
		q.Sort = &order
	}

	return q, nil
}

func parseSort(raw string) (types.SortOrder, error) {
	name, dir := raw, ""
	if i := strings.LastIndexAny(raw, ":_"); i >= 0 {
		if _, ok := sortFields[raw]; !ok {
			name, dir = raw[:i], raw[i+1:]
		}
	}
	field, ok := sortFields[name]
	if !ok {
		return types.SortOrder{}, invalid("sortBy", fmt.Sprintf("cannot sort by %q", name))
	}
	return types.SortOrder{Field: field, Descending: dir == "desc"}, nil
}

// DecodeTaskUpdate reads a JSON update body. Any key outside description and
// completed rejects the whole body with ErrInvalidOperation.
func DecodeTaskUpdate(body map[string]json.RawMessage) (types.TaskUpdate, error) {
	var update types.TaskUpdate
	for key := range body {
		if !taskUpdateFields[key] {
			return types.TaskUpdate{}, ErrInvalidOperation
		}
	}
	if raw, ok := body["description"]; ok {
		var description string
		if err := json.Unmarshal(raw, &description); err != nil {
			return types.TaskUpdate{}, invalid("description", "must be a string")
		}
		update.Description = &description
	}
	if raw, ok := body["completed"]; ok {
		var completed bool
		if err := json.Unmarshal(raw, &completed); err != nil {
			return types.TaskUpdate{}, invalid("completed", "must be a boolean")
		}
		update.Completed = &completed
	}
	return update, nil
}

// Create stores task for owner. The owner in task is ignored.
func (s *TaskService) Create(ctx context.Context, owner string, task types.Task) (types.Task, error) {
	task.Description = strings.TrimSpace(task.Description)
	if task.Description == "" {
		return types.Task{}, invalid("description", "is required")
	}
	task.ID = ""
	task.Owner = owner

	created, err := s.tasks.Create(ctx, task)
	if err != nil {
		return types.Task{}, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

func (s *TaskService) Get(ctx context.Context, owner, id string) (types.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Task{}, ErrNotFound
	}
	task, err := s.tasks.GetForOwner(ctx, id, owner)
	if err != nil {
		return types.Task{}, notFound(err, "load task")
	}
	return task, nil
}

// Update applies update to one of owner's tasks.
func (s *TaskService) Update(ctx context.Context, owner, id string, update types.TaskUpdate) (types.Task, error) {
	task, err := s.Get(ctx, owner, id)
	if err != nil {
		return types.Task{}, err
	}

	if update.Description != nil {
		description := strings.TrimSpace(*update.Description)
		if description == "" {
			return types.Task{}, invalid("description", "is required")
		}
		task.Description = description
	}
	if update.Completed != nil {
		task.Completed = *update.Completed
	}

	updated, err := s.tasks.Update(ctx, task)
	if err != nil {
		return types.Task{}, notFound(err, "update task")
	}
	return updated, nil
}

// Delete removes one of owner's tasks and returns it.
func (s *TaskService) Delete(ctx context.Context, owner, id string) (types.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return types.Task{}, ErrNotFound
	}
	task, err := s.tasks.DeleteForOwner(ctx, id, owner)
	if err != nil {
		return types.Task{}, notFound(err, "delete task")
	}
	return task, nil
}

// List returns owner's tasks for q. The owner of q is always replaced by
// owner.
func (s *TaskService) List(ctx context.Context, owner string, q types.TaskQuery) ([]types.Task, error) {
	q.Owner = owner
	tasks, err := s.tasks.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
