package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskforge/apiserver/internal/db"
	"github.com/taskforge/apiserver/types"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, mock
}

func boolPtr(v bool) *bool { return &v }

func TestBuildListQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     types.TaskQuery
		wantSQL   string
		wantArgs  []any
		wantError bool
	}{
		{
			name:     "owner only",
			query:    types.TaskQuery{Owner: "u1"},
			wantSQL:  `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 ORDER BY created_at ASC, id ASC`,
			wantArgs: []any{"u1"},
		},
		{
			name: "completed filter with sort and window",
			query: types.TaskQuery{
				Owner:     "u1",
				Completed: boolPtr(false),
				Limit:     2,
				Skip:      4,
				Sort:      &types.SortOrder{Field: types.SortByDescription, Descending: true},
			},
			wantSQL:  `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 AND completed = $2 ORDER BY description DESC, id ASC LIMIT $3 OFFSET $4`,
			wantArgs: []any{"u1", false, 2, 4},
		},
		{
			name:     "skip without limit",
			query:    types.TaskQuery{Owner: "u1", Skip: 3, Sort: &types.SortOrder{Field: types.SortByUpdatedAt}},
			wantSQL:  `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 ORDER BY updated_at ASC, id ASC OFFSET $2`,
			wantArgs: []any{"u1", 3},
		},
		{
			name:      "missing owner",
			query:     types.TaskQuery{Limit: 10},
			wantError: true,
		},
		{
			name:      "unknown sort column",
			query:     types.TaskQuery{Owner: "u1", Sort: &types.SortOrder{Field: "owner_id; DROP TABLE tasks"}},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sqlText, args, err := buildListQuery(tt.query)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sqlText)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestTaskRepository_List(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTaskRepository(conn)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "description", "completed", "owner_id", "created_at", "updated_at"}).
		AddRow("t3", "third", false, "u1", now, now).
		AddRow("t4", "fourth", false, "u1", now, now)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM tasks WHERE owner_id = $1 ORDER BY created_at ASC, id ASC LIMIT $2 OFFSET $3`)).
		WithArgs("u1", 2, 2).
		WillReturnRows(rows)

	tasks, err := repo.List(context.Background(), types.TaskQuery{Owner: "u1", Limit: 2, Skip: 2})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "t3", tasks[0].ID)
	assert.Equal(t, "u1", tasks[1].Owner)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_GetForOwnerNotFound(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTaskRepository(conn)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1 AND owner_id = $2`)).
		WithArgs("t1", "intruder").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetForOwner(context.Background(), "t1", "intruder")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRepository_UpdateScopedByOwner(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTaskRepository(conn)

	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $4 AND owner_id = $5`)).
		WithArgs("done", true, sqlmock.AnyArg(), "t1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), types.Task{ID: "t1", Owner: "u2", Description: "done", Completed: true})
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTaskRepository_DeleteByOwnerInsideUnitOfWork(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewTaskRepository(conn)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM tasks WHERE owner_id = $1`)).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	var removed int64
	err := db.NewUnitOfWork(conn).Do(context.Background(), func(ctx context.Context) error {
		var err error
		removed, err = repo.DeleteByOwner(ctx, "u1")
		return err
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}
