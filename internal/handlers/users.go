package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taskforge/apiserver/internal/logging"
	"github.com/taskforge/apiserver/internal/services"
	"github.com/taskforge/apiserver/types"
)

const (
	maxAvatarBytes   = 1_000_000
	formFieldAvatar  = "avatar"
	avatarUploadHint = "please upload an image"
)

var avatarExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// SessionAPI is the account session surface the user routes need.
type SessionAPI interface {
	Authenticator
	Register(ctx context.Context, profile types.Profile) (types.User, string, error)
	Login(ctx context.Context, email, password string) (types.User, string, error)
	Logout(ctx context.Context, session services.Session) error
	LogoutAll(ctx context.Context, userID string) error
}

// AccountAPI is the profile and lifecycle surface the user routes need.
type AccountAPI interface {
	UpdateProfile(ctx context.Context, userID string, update types.ProfileUpdate) (types.User, error)
	DeleteAccount(ctx context.Context, userID string) (types.User, error)
	SetAvatar(ctx context.Context, userID string, upload []byte) error
	DeleteAvatar(ctx context.Context, userID string) error
	Avatar(ctx context.Context, userID string) ([]byte, error)
}

// UserHandler provides account endpoints.
type UserHandler struct {
	sessions SessionAPI
	accounts AccountAPI
	log      logging.Logger
}

func NewUserHandler(sessions SessionAPI, accounts AccountAPI, log logging.Logger) *UserHandler {
	return &UserHandler{sessions: sessions, accounts: accounts, log: log}
}

// UserRouter registers user routes on the given router.
func UserRouter(r chi.Router, sessions SessionAPI, accounts AccountAPI, log logging.Logger) {
	handler := NewUserHandler(sessions, accounts, log)
	requireAuth := RequireAuth(sessions, log)

	r.Post("/", handler.Register)
	r.Post("/login", handler.Login)
	r.Get("/{userID}/avatar", handler.GetAvatar)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/logout", handler.Logout)
		r.Post("/logoutAll", handler.LogoutAll)
		r.Get("/me", handler.Me)
		r.Patch("/me", handler.UpdateMe)
		r.Delete("/me", handler.DeleteMe)
		r.Post("/me/avatar", handler.UploadAvatar)
		r.Delete("/me/avatar", handler.DeleteAvatar)
	})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  types.User `json:"user"`
	Token string     `json:"token"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var profile types.Profile
	if err := decodeJSON(r, &profile); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, token, err := h.sessions.Register(r.Context(), profile)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, AuthResponse{User: user, Token: token})
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.log, services.ErrInvalidCredentials)
		return
	}

	user, token, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{User: user, Token: token})
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(w, r, h.log)
	if !ok {
		return
	}
	if err := h.sessions.Logout(r.Context(), session); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *UserHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(w, r, h.log)
	if !ok {
		return
	}
	if err := h.sessions.LogoutAll(r.Context(), session.User.ID); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(w, r, h.log)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, session.User)
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(w, r, h.log)
	if !ok {
		return
	}

	var body map[string]json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	update, err := services.DecodeProfileUpdate(body)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}

	user, err := h.accounts.UpdateProfile(r.Context(), session.User.ID, update)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(w, r, h.log)
	if !ok {
		return
	}
	user, err := h.accounts.DeleteAccount(r.Context(), session.User.ID)
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(w, r, h.log)
	if !ok {
		return
	}

	data, err := readAvatarUpload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.accounts.SetAvatar(r.Context(), session.User.ID, data); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *UserHandler) DeleteAvatar(w http.ResponseWriter, r *http.Request) {
	session, ok := currentSession(w, r, h.log)
	if !ok {
		return
	}
	if err := h.accounts.DeleteAvatar(r.Context(), session.User.ID); err != nil {
		respondError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *UserHandler) GetAvatar(w http.ResponseWriter, r *http.Request) {
	data, err := h.accounts.Avatar(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, r, h.log, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// readAvatarUpload reads the single "avatar" file of a multipart request,
// enforcing the size cap and the image file extension.
func readAvatarUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	// Leave room for multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes+64<<10)
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.New("file too large")
		}
		return nil, errors.New(avatarUploadHint)
	}

	file, header, err := r.FormFile(formFieldAvatar)
	if err != nil {
		return nil, errors.New(avatarUploadHint)
	}
	defer file.Close()

	if !avatarExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
		return nil, errors.New(avatarUploadHint)
	}
	return readFileLimited(file, maxAvatarBytes)
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, errors.New("file too large")
	}
	return data, nil
}
