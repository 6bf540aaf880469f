package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskforge/apiserver/internal/db"
	"github.com/taskforge/apiserver/types"
)

const taskColumns = `id, description, completed, owner_id, created_at, updated_at`

// TaskRepository handles persistence for tasks. Every read and write other
// than Create and DeleteByOwner is scoped by both task id and owner id.
type TaskRepository struct {
	db db.DBTX
}

func NewTaskRepository(conn db.DBTX) *TaskRepository {
	return &TaskRepository{db: conn}
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now

	const query = `
		INSERT INTO tasks (id, description, completed, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := db.Conn(ctx, r.db).ExecContext(
		ctx,
		query,
		task.ID,
		task.Description,
		task.Completed,
		task.Owner,
		task.CreatedAt,
		task.UpdatedAt,
	); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) GetForOwner(ctx context.Context, id, owner string) (types.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND owner_id = $2`
	return scanTask(db.Conn(ctx, r.db).QueryRowContext(ctx, query, id, owner))
}

// Update writes the mutable fields of task. The owner column is part of the
// predicate and is never written.
func (r *TaskRepository) Update(ctx context.Context, task types.Task) (types.Task, error) {
	task.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE tasks
		SET description = $1,
			completed = $2,
			updated_at = $3
		WHERE id = $4 AND owner_id = $5`
	result, err := db.Conn(ctx, r.db).ExecContext(
		ctx,
		query,
		task.Description,
		task.Completed,
		task.UpdatedAt,
		task.ID,
		task.Owner,
	)
	if err != nil {
		return types.Task{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

// DeleteForOwner removes one task and returns it as it was before deletion.
func (r *TaskRepository) DeleteForOwner(ctx context.Context, id, owner string) (types.Task, error) {
	const query = `DELETE FROM tasks WHERE id = $1 AND owner_id = $2 RETURNING ` + taskColumns
	return scanTask(db.Conn(ctx, r.db).QueryRowContext(ctx, query, id, owner))
}

// DeleteByOwner removes every task of owner and reports how many were removed.
func (r *TaskRepository) DeleteByOwner(ctx context.Context, owner string) (int64, error) {
	const query = `DELETE FROM tasks WHERE owner_id = $1`
	result, err := db.Conn(ctx, r.db).ExecContext(ctx, query, owner)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// List returns the owner's tasks filtered, ordered, and windowed by q.
func (r *TaskRepository) List(ctx context.Context, q types.TaskQuery) ([]types.Task, error) {
	query, args, err := buildListQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := db.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]types.Task, 0)
	for rows.Next() {
		var task types.Task
		if err := rows.Scan(
			&task.ID,
			&task.Description,
			&task.Completed,
			&task.Owner,
			&task.CreatedAt,
			&task.UpdatedAt,
		); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func buildListQuery(q types.TaskQuery) (string, []any, error) {
	if strings.TrimSpace(q.Owner) == "" {
		return "", nil, errors.New("task query requires an owner")
	}

	var b strings.Builder
	args := []any{q.Owner}
	b.WriteString(`SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1`)

	if q.Completed != nil {
		args = append(args, *q.Completed)
		fmt.Fprintf(&b, ` AND completed = $%d`, len(args))
	}

	order := "created_at ASC"
	if q.Sort != nil {
		column, err := sortColumn(q.Sort.Field)
		if err != nil {
			return "", nil, err
		}
		dir := "ASC"
		if q.Sort.Descending {
			dir = "DESC"
		}
		order = column + " " + dir
	}
	b.WriteString(` ORDER BY ` + order + `, id ASC`)

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	if q.Skip > 0 {
		args = append(args, q.Skip)
		fmt.Fprintf(&b, ` OFFSET $%d`, len(args))
	}

	return b.String(), args, nil
}

func sortColumn(field types.SortField) (string, error) {
	switch field {
	case types.SortByCreatedAt, types.SortByUpdatedAt, types.SortByDescription, types.SortByCompleted:
		return string(field), nil
	default:
		return "", fmt.Errorf("unsupported sort field %q", field)
	}
}

func scanTask(row *sql.Row) (types.Task, error) {
	var task types.Task
	err := row.Scan(
		&task.ID,
		&task.Description,
		&task.Completed,
		&task.Owner,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, err
	}
	return task, nil
}
