package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/taskforge/apiserver/internal/store"
	"github.com/taskforge/apiserver/types"
)

var profileUpdateFields = map[string]bool{
	"name":     true,
	"age":      true,
	"password": true,
}

// UserService manages the authenticated user's own account: profile edits,
// avatar, and account deletion.
type UserService struct {
	users    UserRepository
	tokens   TokenRepository
	tasks    TaskRepository
	avatars  AvatarStore
	uow      UnitOfWork
	hasher   PasswordHasher
	images   ImageProcessor
	sessions SessionCache
	notifier Notifier
	log      Logger

	// avatarInRow is set when avatars live in the users row and are removed
	// together with it.
	avatarInRow bool
}

// UserDeps groups the collaborators of UserService.
type UserDeps struct {
	Users    UserRepository
	Tokens   TokenRepository
	Tasks    TaskRepository
	Avatars  AvatarStore
	UoW      UnitOfWork
	Hasher   PasswordHasher
	Images   ImageProcessor
	Sessions SessionCache
	Notifier Notifier
	Logger   Logger

	AvatarInRow bool
}

func NewUserService(deps UserDeps) *UserService {
	if deps.Sessions == nil {
		deps.Sessions = noopSessions{}
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	return &UserService{
		users:       deps.Users,
		tokens:      deps.Tokens,
		tasks:       deps.Tasks,
		avatars:     deps.Avatars,
		uow:         deps.UoW,
		hasher:      deps.Hasher,
		images:      deps.Images,
		sessions:    deps.Sessions,
		notifier:    deps.Notifier,
		log:         deps.Logger,
		avatarInRow: deps.AvatarInRow,
	}
}

// DecodeProfileUpdate reads a JSON update body. Any key outside name, age,
// and password rejects the whole body with ErrInvalidOperation.
func DecodeProfileUpdate(body map[string]json.RawMessage) (types.ProfileUpdate, error) {
	var update types.ProfileUpdate
	for key := range body {
		if !profileUpdateFields[key] {
			return types.ProfileUpdate{}, ErrInvalidOperation
		}
	}
	if raw, ok := body["name"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return types.ProfileUpdate{}, invalid("name", "must be a string")
		}
		update.Name = &name
	}
	if raw, ok := body["age"]; ok {
		var age int
		if err := json.Unmarshal(raw, &age); err != nil {
			return types.ProfileUpdate{}, invalid("age", "Age must be a positive number")
		}
		update.Age = &age
	}
	if raw, ok := body["password"]; ok {
		var password string
		if err := json.Unmarshal(raw, &password); err != nil {
			return types.ProfileUpdate{}, invalid("password", "must be a string")
		}
		update.Password = &password
	}
	return update, nil
}

// UpdateProfile applies update to the user. The password is rehashed only
// when the update carries one.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update types.ProfileUpdate) (types.User, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return types.User{}, invalid("name", "is required")
		}
		user.Name = name
	}
	if update.Age != nil {
		if *update.Age < 0 {
			return types.User{}, invalid("age", "Age must be a positive number")
		}
		user.Age = *update.Age
	}
	if update.Password != nil {
		password := strings.TrimSpace(*update.Password)
		if err := validatePassword(password); err != nil {
			return types.User{}, err
		}
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = hash
	}

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("update user: %w", err)
	}
	s.forgetSessions(ctx, userID)
	return updated, nil
}

// DeleteAccount removes the user and every task it owns in one transaction,
// tasks first, then sends the cancellation notice. It returns the user as it
// was before deletion.
func (s *UserService) DeleteAccount(ctx context.Context, userID string) (types.User, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	var tokens []string
	err = s.uow.Do(ctx, func(ctx context.Context) error {
		var err error
		if tokens, err = s.tokens.List(ctx, userID); err != nil {
			return fmt.Errorf("list tokens: %w", err)
		}
		if _, err := s.tasks.DeleteByOwner(ctx, userID); err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		if err := s.tokens.Clear(ctx, userID); err != nil {
			return fmt.Errorf("clear tokens: %w", err)
		}
		return s.users.Delete(ctx, userID)
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("delete user: %w", err)
	}

	if !s.avatarInRow && s.avatars != nil {
		if err := s.avatars.DeleteAvatar(ctx, userID); err != nil {
			s.log.Warn(ctx, "avatar cleanup failed", "user_id", userID, "error", err)
		}
	}
	if err := s.sessions.Invalidate(ctx, tokens...); err != nil {
		s.log.Warn(ctx, "session cache invalidation failed", "user_id", userID, "error", err)
	}

	s.notifier.NotifyCancellation(ctx, user.Email, user.Name)
	return user, nil
}

// SetAvatar normalizes the upload and stores it as the user's avatar.
func (s *UserService) SetAvatar(ctx context.Context, userID string, upload []byte) error {
	png, err := s.images.Avatar(upload)
	if err != nil {
		return invalid("avatar", "Please upload an image")
	}
	if err := s.avatars.PutAvatar(ctx, userID, png); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("store avatar: %w", err)
	}
	return nil
}

// DeleteAvatar removes the user's avatar. Removing an absent avatar succeeds.
func (s *UserService) DeleteAvatar(ctx context.Context, userID string) error {
	if err := s.avatars.DeleteAvatar(ctx, userID); err != nil {
		return fmt.Errorf("delete avatar: %w", err)
	}
	return nil
}

// Avatar returns the PNG avatar of any user. It fails with ErrNotFound when
// the user or the avatar is absent.
func (s *UserService) Avatar(ctx context.Context, userID string) ([]byte, error) {
	if _, err := s.load(ctx, userID); err != nil {
		return nil, err
	}
	data, err := s.avatars.GetAvatar(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load avatar: %w", err)
	}
	return data, nil
}

func (s *UserService) load(ctx context.Context, userID string) (types.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return types.User{}, ErrNotFound
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// forgetSessions drops cached sessions of the user so the next request sees
// the new profile.
func (s *UserService) forgetSessions(ctx context.Context, userID string) {
	tokens, err := s.tokens.List(ctx, userID)
	if err != nil {
		s.log.Warn(ctx, "list tokens for cache invalidation failed", "user_id", userID, "error", err)
		return
	}
	if err := s.sessions.Invalidate(ctx, tokens...); err != nil {
		s.log.Warn(ctx, "session cache invalidation failed", "user_id", userID, "error", err)
	}
}
