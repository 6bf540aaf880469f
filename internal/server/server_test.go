package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskforge/apiserver/config"
	"github.com/taskforge/apiserver/internal/auth"
	"github.com/taskforge/apiserver/internal/logging"
	"github.com/taskforge/apiserver/internal/store"
	"github.com/taskforge/apiserver/types"
)

func TestNew_RequiresJWTSecret(t *testing.T) {
	_, err := New(context.Background(), config.Config{}, logging.Discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestNewAvatarStore(t *testing.T) {
	ctx := context.Background()

	got, err := NewAvatarStore(ctx, config.Config{Avatar: config.AvatarConfig{Backend: config.AvatarBackendDB}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.AvatarRepository{}, got)

	_, err = NewAvatarStore(ctx, config.Config{Avatar: config.AvatarConfig{Backend: "s3"}}, nil)
	assert.Error(t, err)

	_, err = NewAvatarStore(ctx, config.Config{Avatar: config.AvatarConfig{Backend: config.AvatarBackendMinio}}, nil)
	assert.Error(t, err, "minio without credentials")
}

func TestNewQueue_RejectsUnknownBackend(t *testing.T) {
	_, err := NewQueue(context.Background(), config.Config{MQ: config.MQConfig{Backend: "kafka"}})
	assert.Error(t, err)
}

func TestNewQueue_Memory(t *testing.T) {
	cfg := config.Config{MQ: config.MQConfig{Backend: config.MQBackendMemory, Channel: "account-notifications"}}
	queue, err := NewQueue(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "account-notifications", queue.Channel())
	assert.NoError(t, queue.Close())
}

func TestNewMailer(t *testing.T) {
	m, err := NewMailer(config.SMTPConfig{From: "noreply@example.com"}, logging.Discard())
	require.NoError(t, err)
	assert.NoError(t, m.Send(context.Background(), types.Notification{
		Kind:  types.NotificationWelcome,
		Email: "mike@example.com",
		Name:  "Mike",
	}))

	_, err = NewMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 587}, logging.Discard())
	assert.NoError(t, err)
}

func TestRouter_WiresRoutes(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()

	issuer, err := auth.NewTokenIssuer("test-secret")
	require.NoError(t, err)

	s := &Server{db: conn, log: logging.Discard()}
	deps, err := s.wire(context.Background(), config.Config{}, conn, issuer)
	require.NoError(t, err)
	router := newRouter(s.log, conn, deps)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	mock.ExpectClose()
	require.NoError(t, s.Shutdown(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
