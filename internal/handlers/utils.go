package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/taskforge/apiserver/internal/logging"
	"github.com/taskforge/apiserver/internal/services"
)

type contextKey string

const contextSessionKey contextKey = "session"

func withSession(ctx context.Context, session services.Session) context.Context {
	return context.WithValue(ctx, contextSessionKey, session)
}

func sessionFromContext(ctx context.Context) (services.Session, bool) {
	session, ok := ctx.Value(contextSessionKey).(services.Session)
	return session, ok && session.User.ID != ""
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// statusFor maps a service error to its HTTP status and client message.
func statusFor(err error) (int, string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusBadRequest, "Unable to login"
	case errors.Is(err, services.ErrInvalidOperation):
		return http.StatusBadRequest, "Invalid updates"
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized, "Please authenticate."
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "Not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func respondError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, message)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	return nil
}
