package services

import (
	"context"

	"github.com/taskforge/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id string) error
}

// TokenRepository defines persistence of each user's active session tokens.
type TokenRepository interface {
	Add(ctx context.Context, userID, token string) error
	Exists(ctx context.Context, userID, token string) (bool, error)
	List(ctx context.Context, userID string) ([]string, error)
	Remove(ctx context.Context, userID, token string) error
	Clear(ctx context.Context, userID string) error
}

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	Create(ctx context.Context, task types.Task) (types.Task, error)
	GetForOwner(ctx context.Context, id, owner string) (types.Task, error)
	Update(ctx context.Context, task types.Task) (types.Task, error)
	DeleteForOwner(ctx context.Context, id, owner string) (types.Task, error)
	DeleteByOwner(ctx context.Context, owner string) (int64, error)
	List(ctx context.Context, q types.TaskQuery) ([]types.Task, error)
}

// AvatarStore keeps one PNG blob per user.
type AvatarStore interface {
	PutAvatar(ctx context.Context, userID string, data []byte) error
	GetAvatar(ctx context.Context, userID string) ([]byte, error)
	DeleteAvatar(ctx context.Context, userID string) error
}

// UnitOfWork runs fn so that all repository calls made with the ctx it is
// given commit or roll back together.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}

// TokenIssuer signs session tokens and recovers the user id from them.
type TokenIssuer interface {
	Issue(userID string) (string, error)
	Verify(token string) (string, error)
}

// SessionCache short-circuits token resolution.
type SessionCache interface {
	Lookup(ctx context.Context, token string) (types.User, bool)
	Store(ctx context.Context, token string, user types.User) error
	Invalidate(ctx context.Context, tokens ...string) error
}

// Notifier sends account emails. Calls must not block on delivery and
// delivery failures are never reported back.
type Notifier interface {
	NotifyWelcome(ctx context.Context, email, name string)
	NotifyCancellation(ctx context.Context, email, name string)
}

// ImageProcessor turns an uploaded image into the stored avatar encoding.
type ImageProcessor interface {
	Avatar(data []byte) ([]byte, error)
}

// Logger is the subset of logging.Logger used by services.
type Logger interface {
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
}

type noopSessions struct{}

func (noopSessions) Lookup(context.Context, string) (types.User, bool) { return types.User{}, false }
func (noopSessions) Store(context.Context, string, types.User) error { return nil }
func (noopSessions) Invalidate(context.Context, ...string) error { return nil }

type noopNotifier struct{}

func (noopNotifier) NotifyWelcome(context.Context, string, string) {}
func (noopNotifier) NotifyCancellation(context.Context, string, string) {}

type noopLogger struct{}

func (noopLogger) Warn(context.Context, string, ...any) {}
func (noopLogger) Error(context.Context, string, ...any) {}
