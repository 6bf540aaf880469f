package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/taskforge/apiserver/internal/logging"
	"github.com/taskforge/apiserver/internal/services"
)

// Authenticator resolves a bearer token to a session.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (services.Session, error)
}

// RequireAuth rejects requests without an active bearer token and injects
// the resolved session into the request context.
func RequireAuth(auth Authenticator, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				respondError(w, r, log, services.ErrUnauthorized)
				return
			}

			session, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				respondError(w, r, log, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withSession(r.Context(), session)))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// currentSession fetches the session placed by RequireAuth. A missing
// session writes 401 and returns false.
func currentSession(w http.ResponseWriter, r *http.Request, log logging.Logger) (services.Session, bool) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		respondError(w, r, log, services.ErrUnauthorized)
		return services.Session{}, false
	}
	return session, true
}
