package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/taskforge/apiserver/config"
	"github.com/taskforge/apiserver/internal/auth"
	"github.com/taskforge/apiserver/internal/cache"
	"github.com/taskforge/apiserver/internal/db"
	"github.com/taskforge/apiserver/internal/handlers"
	"github.com/taskforge/apiserver/internal/imaging"
	"github.com/taskforge/apiserver/internal/logging"
	"github.com/taskforge/apiserver/internal/mq"
	"github.com/taskforge/apiserver/internal/notify"
	"github.com/taskforge/apiserver/internal/services"
	"github.com/taskforge/apiserver/internal/store"
)

// Server wraps the HTTP server, router, and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	dispatcher *notify.Dispatcher
	log        *logging.SlogLogger

	// closers run in order on shutdown after HTTP traffic has drained.
	closers []io.Closer
}

// New opens every backing service named by cfg and builds the router.
func New(ctx context.Context, cfg config.Config, log *logging.SlogLogger) (*Server, error) {
	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret)
	if err != nil {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Server{db: dbConn, log: log}

	deps, err := s.wire(ctx, cfg, dbConn, issuer)
	if err != nil {
		_ = s.close()
		return nil, err
	}

	s.router = newRouter(log, dbConn, deps)
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

type routeDeps struct {
	auth  *services.AuthService
	users *services.UserService
	tasks *services.TaskService
}

func (s *Server) wire(ctx context.Context, cfg config.Config, dbConn *sql.DB, issuer *auth.TokenIssuer) (routeDeps, error) {
	userRepo := store.NewUserRepository(dbConn)
	tokenRepo := store.NewTokenRepository(dbConn)
	taskRepo := store.NewTaskRepository(dbConn)
	uow := db.NewUnitOfWork(dbConn)

	avatars, err := NewAvatarStore(ctx, cfg, dbConn)
	if err != nil {
		return routeDeps{}, err
	}
	if c, ok := avatars.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}

	sessions := s.sessionCache(ctx, cfg.Redis)

	sender, err := s.notificationSender(ctx, cfg)
	if err != nil {
		return routeDeps{}, err
	}
	s.dispatcher = notify.NewDispatcher(sender, s.log.With("component", "notify"))

	hasher := auth.NewPasswordHasher(auth.DefaultCost)
	authService := services.NewAuthService(services.AuthDeps{
		Users:    userRepo,
		Tokens:   tokenRepo,
		UoW:      uow,
		Hasher:   hasher,
		Issuer:   issuer,
		Sessions: sessions,
		Notifier: s.dispatcher,
		Logger:   s.log,
	})
	userService := services.NewUserService(services.UserDeps{
		Users:       userRepo,
		Tokens:      tokenRepo,
		Tasks:       taskRepo,
		Avatars:     avatars,
		UoW:         uow,
		Hasher:      hasher,
		Images:      imaging.NewResizer(),
		Sessions:    sessions,
		Notifier:    s.dispatcher,
		Logger:      s.log,
		AvatarInRow: cfg.Avatar.Backend == config.AvatarBackendDB,
	})

	return routeDeps{
		auth:  authService,
		users: userService,
		tasks: services.NewTaskService(taskRepo),
	}, nil
}

func (s *Server) sessionCache(ctx context.Context, cfg config.RedisConfig) *auth.SessionCache {
	client := cache.New(cfg.Addr, cfg.Password, cfg.DB)
	if client == nil {
		return auth.NewSessionCache(nil, cfg.TTL)
	}
	if err := client.Ping(ctx); err != nil {
		s.log.Warn(ctx, "redis unreachable, session cache degraded", "addr", cfg.Addr, "error", err)
	}
	s.closers = append(s.closers, client)
	return auth.NewSessionCache(client, cfg.TTL)
}

// notificationSender publishes to the broker when one is configured and
// otherwise writes the rendered emails to the log. The memory broker runs its
// worker inside this process.
func (s *Server) notificationSender(ctx context.Context, cfg config.Config) (notify.Sender, error) {
	if cfg.MQ.Backend == config.MQBackendNone || cfg.MQ.Backend == "" {
		return notify.NewMailer(cfg.SMTP.From, notify.NewLogTransport(s.log)), nil
	}
	queue, err := NewQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, queue)

	if cfg.MQ.Backend == config.MQBackendMemory {
		mailer, err := NewMailer(cfg.SMTP, s.log)
		if err != nil {
			return nil, err
		}
		worker := notify.NewWorker(queue, mailer, s.log.With("component", "worker"))
		go func() {
			if err := worker.Run(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, mq.ErrClosed) {
				s.log.Error(ctx, "in-process notification worker stopped", "error", err)
			}
		}()
	}
	return notify.NewPublisher(queue), nil
}

func newRouter(log *logging.SlogLogger, dbConn *sql.DB, deps routeDeps) *chi.Mux {
	accessLog := middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(log.Slog().Handler(), slog.LevelInfo),
		NoColor: true,
	})

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		accessLog,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(dbConn))
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, deps.auth, deps.users, log)
	})
	router.Route("/tasks", func(r chi.Router) {
		handlers.TaskRouter(r, deps.tasks, deps.auth, log)
	})
	return router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight requests and
// notifications until ctx is done, then releases backing services.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.dispatcher != nil {
		if err := s.dispatcher.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("pending notifications: %w", err))
		}
	}
	if err := s.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
		s.db = nil
	}
	return errors.Join(errs...)
}
