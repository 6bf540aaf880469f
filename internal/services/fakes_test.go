package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/taskforge/apiserver/internal/store"
	"github.com/taskforge/apiserver/types"
)

// memStore is an in-memory stand-in for the Postgres repositories. Do
// snapshots the whole store and restores it when fn fails.
type memStore struct {
	mu      sync.Mutex
	users   map[string]types.User
	tokens  map[string][]string
	tasks   map[string]types.Task
	avatars map[string][]byte
	seq     int

	failDeleteByOwner error
	failUserDelete    error
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]types.User{},
		tokens:  map[string][]string{},
		tasks:   map[string]types.Task{},
		avatars: map[string][]byte{},
	}
}

func (m *memStore) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	users := cloneMap(m.users)
	tokens := map[string][]string{}
	for k, v := range m.tokens {
		tokens[k] = append([]string(nil), v...)
	}
	tasks := cloneMap(m.tasks)
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.users, m.tokens, m.tasks = users, tokens, tasks
		m.mu.Unlock()
		return err
	}
	return nil
}

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memStore) userRepo() *memUsers   { return &memUsers{m} }
func (m *memStore) tokenRepo() *memTokens { return &memTokens{m} }
func (m *memStore) taskRepo() *memTasks   { return &memTasks{m} }

type memUsers struct{ m *memStore }

func (r *memUsers) GetByID(_ context.Context, id string) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r *memUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUsers) Create(_ context.Context, user types.User) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	r.m.users[user.ID] = user
	return user, nil
}

func (r *memUsers) Update(_ context.Context, user types.User) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	r.m.users[user.ID] = user
	return user, nil
}

func (r *memUsers) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failUserDelete != nil {
		return r.m.failUserDelete
	}
	if _, ok := r.m.users[id]; !ok {
		return store.ErrNotFound
	}
	for _, t := range r.m.tasks {
		if t.Owner == id {
			panic("user deleted while it still owns tasks")
		}
	}
	delete(r.m.users, id)
	delete(r.m.tokens, id)
	return nil
}

type memTokens struct{ m *memStore }

func (r *memTokens) Add(_ context.Context, userID, token string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, t := range r.m.tokens[userID] {
		if t == token {
			return nil
		}
	}
	r.m.tokens[userID] = append(r.m.tokens[userID], token)
	return nil
}

func (r *memTokens) Exists(_ context.Context, userID, token string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, t := range r.m.tokens[userID] {
		if t == token {
			return true, nil
		}
	}
	return false, nil
}

func (r *memTokens) List(_ context.Context, userID string) ([]string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return append([]string(nil), r.m.tokens[userID]...), nil
}

func (r *memTokens) Remove(_ context.Context, userID, token string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	kept := r.m.tokens[userID][:0]
	for _, t := range r.m.tokens[userID] {
		if t != token {
			kept = append(kept, t)
		}
	}
	r.m.tokens[userID] = kept
	return nil
}

func (r *memTokens) Clear(_ context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.tokens, userID)
	return nil
}

type memTasks struct{ m *memStore }

func (r *memTasks) Create(_ context.Context, task types.Task) (types.Task, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.seq++
	task.ID = uuid.NewString()
	task.CreatedAt = time.Unix(int64(r.m.seq), 0).UTC()
	task.UpdatedAt = task.CreatedAt
	r.m.tasks[task.ID] = task
	return task, nil
}

func (r *memTasks) GetForOwner(_ context.Context, id, owner string) (types.Task, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tasks[id]
	if !ok || t.Owner != owner {
		return types.Task{}, store.ErrNotFound
	}
	return t, nil
}

func (r *memTasks) Update(_ context.Context, task types.Task) (types.Task, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tasks[task.ID]
	if !ok || t.Owner != task.Owner {
		return types.Task{}, store.ErrNotFound
	}
	r.m.tasks[task.ID] = task
	return task, nil
}

func (r *memTasks) DeleteForOwner(_ context.Context, id, owner string) (types.Task, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tasks[id]
	if !ok || t.Owner != owner {
		return types.Task{}, store.ErrNotFound
	}
	delete(r.m.tasks, id)
	return t, nil
}

func (r *memTasks) DeleteByOwner(_ context.Context, owner string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failDeleteByOwner != nil {
		return 0, r.m.failDeleteByOwner
	}
	var n int64
	for id, t := range r.m.tasks {
		if t.Owner == owner {
			delete(r.m.tasks, id)
			n++
		}
	}
	return n, nil
}

func (r *memTasks) List(_ context.Context, q types.TaskQuery) ([]types.Task, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]types.Task, 0)
	for _, t := range r.m.tasks {
		if t.Owner != q.Owner {
			continue
		}
		if q.Completed != nil && t.Completed != *q.Completed {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if q.Sort != nil && q.Sort.Field == types.SortByDescription && a.Description != b.Description {
			return (a.Description < b.Description) != q.Sort.Descending
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			desc := q.Sort != nil && q.Sort.Field == types.SortByCreatedAt && q.Sort.Descending
			return a.CreatedAt.Before(b.CreatedAt) != desc
		}
		return a.ID < b.ID
	})
	if q.Skip >= len(out) {
		return []types.Task{}, nil
	}
	out = out[q.Skip:]
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memStore) PutAvatar(_ context.Context, userID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return store.ErrNotFound
	}
	m.avatars[userID] = data
	return nil
}

func (m *memStore) GetAvatar(_ context.Context, userID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.avatars[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func (m *memStore) DeleteAvatar(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.avatars, userID)
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (n *mockNotifier) NotifyWelcome(ctx context.Context, email, name string) {
	n.Called(ctx, email, name)
}

func (n *mockNotifier) NotifyCancellation(ctx context.Context, email, name string) {
	n.Called(ctx, email, name)
}

type fakeImages struct {
	err error
}

func (f fakeImages) Avatar(data []byte) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("png:"), data...), nil
}
