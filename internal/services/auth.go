package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/taskforge/apiserver/internal/store"
	"github.com/taskforge/apiserver/types"
)

// Session is an authenticated principal together with the token that
// authenticated it.
type Session struct {
	User  types.User
	Token string
}

// AuthService owns credential verification and the session token lifecycle.
type AuthService struct {
	users    UserRepository
	tokens   TokenRepository
	uow      UnitOfWork
	hasher   PasswordHasher
	issuer   TokenIssuer
	sessions SessionCache
	notifier Notifier
	log      Logger
}

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Users    UserRepository
	Tokens   TokenRepository
	UoW      UnitOfWork
	Hasher   PasswordHasher
	Issuer   TokenIssuer
	Sessions SessionCache
	Notifier Notifier
	Logger   Logger
}

func NewAuthService(deps AuthDeps) *AuthService {
	if deps.Sessions == nil {
		deps.Sessions = noopSessions{}
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	return &AuthService{
		users:    deps.Users,
		tokens:   deps.Tokens,
		uow:      deps.UoW,
		hasher:   deps.Hasher,
		issuer:   deps.Issuer,
		sessions: deps.Sessions,
		notifier: deps.Notifier,
		log:      deps.Logger,
	}
}

// Authenticate resolves a bearer token to its session. The token must carry
// a valid signature and still be in the user's active token set.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrUnauthorized
	}

	userID, err := s.issuer.Verify(token)
	if err != nil {
		return Session{}, ErrUnauthorized
	}

	if _, err := uuid.Parse(userID); err != nil {
		return Session{}, ErrUnauthorized
	}
	active, err := s.tokens.Exists(ctx, userID, token)
	if err != nil {
		return Session{}, fmt.Errorf("check token: %w", err)
	}
	if !active {
		return Session{}, ErrUnauthorized
	}

	// The cache only spares the user lookup; membership above always hits the
	// token repository.
	if user, ok := s.sessions.Lookup(ctx, token); ok && user.ID == userID {
		return Session{User: user, Token: token}, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrUnauthorized
		}
		return Session{}, fmt.Errorf("load user: %w", err)
	}

	if err := s.sessions.Store(ctx, token, user); err != nil {
		s.log.Warn(ctx, "session cache store failed", "user_id", user.ID, "error", err)
	}
	return Session{User: user, Token: token}, nil
}

// Register creates an account from profile and opens its first session.
func (s *AuthService) Register(ctx context.Context, profile types.Profile) (types.User, string, error) {
	profile = normalizeProfile(profile)
	if err := validateProfile(profile); err != nil {
		return types.User{}, "", err
	}

	hash, err := s.hasher.Hash(profile.Password)
	if err != nil {
		return types.User{}, "", err
	}

	var (
		user  types.User
		token string
	)
	err = s.uow.Do(ctx, func(ctx context.Context) error {
		created, err := s.users.Create(ctx, types.User{
			Name:         profile.Name,
			Email:        profile.Email,
			Age:          profile.Age,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}
		user = created

		token, err = s.openSession(ctx, user.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return types.User{}, "", invalid("email", "Email is already registered")
		}
		return types.User{}, "", fmt.Errorf("create user: %w", err)
	}

	s.notifier.NotifyWelcome(ctx, user.Email, user.Name)
	return user, token, nil
}

// Login verifies credentials and opens a new session. Unknown email and wrong
// password both fail with ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return types.User{}, "", ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, "", ErrInvalidCredentials
		}
		return types.User{}, "", fmt.Errorf("load user: %w", err)
	}

	ok, err := s.hasher.Verify(strings.TrimSpace(password), user.PasswordHash)
	if err != nil {
		return types.User{}, "", fmt.Errorf("verify password for user %s: %w", user.ID, err)
	}
	if !ok {
		return types.User{}, "", ErrInvalidCredentials
	}

	token, err := s.openSession(ctx, user.ID)
	if err != nil {
		return types.User{}, "", err
	}
	return user, token, nil
}

// Logout revokes only the session's own token. Revoking an already absent
// token succeeds.
func (s *AuthService) Logout(ctx context.Context, session Session) error {
	if err := s.tokens.Remove(ctx, session.User.ID, session.Token); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	s.forget(ctx, session.User.ID, session.Token)
	return nil
}

// LogoutAll revokes every token of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	tokens, err := s.tokens.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("list tokens: %w", err)
	}
	if err := s.tokens.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	s.forget(ctx, userID, tokens...)
	return nil
}

func (s *AuthService) openSession(ctx context.Context, userID string) (string, error) {
	token, err := s.issuer.Issue(userID)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	if err := s.tokens.Add(ctx, userID, token); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

func (s *AuthService) forget(ctx context.Context, userID string, tokens ...string) {
	if err := s.sessions.Invalidate(ctx, tokens...); err != nil {
		s.log.Warn(ctx, "session cache invalidation failed", "user_id", userID, "error", err)
	}
}
