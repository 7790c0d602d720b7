package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jjudge-oj/practice/config"
	"github.com/jjudge-oj/practice/internal/db"
	"github.com/jjudge-oj/practice/internal/handlers"
	"github.com/jjudge-oj/practice/internal/leaderboard"
	"github.com/jjudge-oj/practice/internal/logging"
	"github.com/jjudge-oj/practice/internal/mailer"
	"github.com/jjudge-oj/practice/internal/mq"
	"github.com/jjudge-oj/practice/internal/practice"
	"github.com/jjudge-oj/practice/internal/services"
	"github.com/jjudge-oj/practice/internal/session"
	"github.com/jjudge-oj/practice/internal/storage"
	"github.com/jjudge-oj/practice/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Server wraps the HTTP server, its router and the background mail worker.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
	bus        session.Bus
	redis      *redis.Client
	worker     *mailer.Worker
	workspaces *practice.Workspaces
	logger     *zap.Logger

	stopWorker context.CancelFunc
	workerDone chan struct{}
}

// RouterDeps are the collaborators the HTTP routes are built from.
type RouterDeps struct {
	Identity    handlers.Identity
	Notifier    *session.Notifier
	Workspaces  handlers.Workspaces
	Scores      leaderboard.ScoreFetcher
	Users       handlers.Users
	Avatars     handlers.Avatars
	Resources   []handlers.Resource
	CORSOrigins []string
	OnLogout    func(tokenID string)
	Logger      *zap.Logger
}

// New connects every backing service named by cfg, starts the mail worker
// and builds the server.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{logger: logger}
	ok := false
	defer func() {
		if !ok {
			s.close()
		}
	}()

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.db = dbConn

	broker, err := mq.Open(ctx, cfg.Broker)
	if err != nil {
		return nil, err
	}
	s.broker = broker

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	notifier := session.NewNotifier()
	var revoker session.Revoker = session.NewMemoryRevoker()
	s.bus = session.NewLocalBus(notifier)
	if cfg.Redis.Address != "" {
		client, err := session.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		s.redis = client
		bus, err := session.NewRedisBus(ctx, client, notifier, logger)
		if err != nil {
			return nil, err
		}
		s.bus = bus
		revoker = session.NewRedisRevoker(client)
	}

	sender, err := mailer.NewSender(cfg.Mail, logger)
	if err != nil {
		return nil, err
	}
	s.worker = mailer.NewWorker(broker, sender, logger)

	resources, err := handlers.LoadResources(cfg.ResourcesFile)
	if err != nil {
		return nil, fmt.Errorf("resources: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	taskRepo := store.NewTaskRepository(dbConn)
	scoreRepo := store.NewScoreRepository(dbConn)
	verificationRepo := store.NewVerificationRepository(dbConn)

	userService := services.NewUserService(userRepo)
	taskService := services.NewTaskService(taskRepo)
	scoreService := services.NewScoreService(scoreRepo)
	identityService := services.NewIdentityService(services.IdentityDeps{
		Users:         userRepo,
		Verifications: verificationRepo,
		Publisher:     broker,
		Bus:           s.bus,
		Notifier:      notifier,
		Revoker:       revoker,
		Logger:        logger,
	}, cfg.Auth, cfg.PublicURL)

	var objectStore services.ObjectStore
	if objects != nil {
		objectStore = objects
	}
	avatarService := services.NewAvatarService(objectStore, userRepo, scoreRepo, cfg.PublicURL, logger)

	s.workspaces = practice.NewWorkspaces(taskService, cfg.Auth.TokenTTL)

	s.router = NewRouter(RouterDeps{
		Identity:    identityService,
		Notifier:    notifier,
		Workspaces:  s.workspaces,
		Scores:      scoreService,
		Users:       userService,
		Avatars:     avatarService,
		Resources:   resources,
		CORSOrigins: cfg.CORSOrigins,
		OnLogout:    s.workspaces.Drop,
		Logger:      logger,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.startWorker()
	ok = true
	return s, nil
}

// NewRouter builds the HTTP routes. Practice, leaderboard, profile and
// resources sit behind the session gate.
func NewRouter(deps RouterDeps) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logging.Middleware(logger),
		cors.Handler(cors.Options{
			AllowedOrigins: deps.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}),
		handlers.LoadSession(deps.Identity),
	)

	// Websockets outlive the request timeout.
	router.Get("/session/events", handlers.NewEventsHandler(deps.Notifier, deps.CORSOrigins, logger).Serve)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/", Index)
		r.Get("/healthz", handlers.Healthz)
		r.Route("/auth", func(r chi.Router) {
			handlers.AuthRouter(r, deps.Identity, deps.OnLogout)
		})
		r.Route("/avatars", func(r chi.Router) {
			handlers.AvatarRouter(r, deps.Avatars)
		})

		r.Group(func(r chi.Router) {
			r.Use(handlers.RequireAccess)
			r.Route("/practice", func(r chi.Router) {
				handlers.PracticeRouter(r, deps.Workspaces)
			})
			r.Route("/leaderboard", func(r chi.Router) {
				handlers.LeaderboardRouter(r, deps.Scores)
			})
			r.Route("/profile", func(r chi.Router) {
				handlers.ProfileRouter(r, deps.Users, deps.Avatars, deps.Identity)
			})
			r.Route("/resources", func(r chi.Router) {
				handlers.ResourcesRouter(r, deps.Resources)
			})
		})
	})

	return router
}

// IndexResponse lists the entry points of the API.
type IndexResponse struct {
	Name   string   `json:"name"`
	Status string   `json:"status"`
	Levels []string `json:"levels"`
	Routes []string `json:"routes"`
}

// Index describes the API for clients that open the root URL.
func Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(IndexResponse{
		Name:   "practice",
		Status: "ok",
		Levels: []string{"junior", "middle", "senior"},
		Routes: []string{
			"/auth/register", "/auth/login", "/auth/logout", "/auth/verify",
			"/auth/resend", "/auth/reload", "/auth/me",
			"/practice/{level}", "/leaderboard", "/profile", "/resources",
			"/session/events",
		},
	})
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) startWorker() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopWorker = cancel
	s.workerDone = make(chan struct{})
	go func() {
		defer close(s.workerDone)
		if err := s.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mail worker stopped", zap.Error(err))
		}
	}()
}

// Shutdown drains in-flight requests, stops the worker and closes every
// backing connection.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.stopWorker != nil {
		s.stopWorker()
		select {
		case <-s.workerDone:
		case <-ctx.Done():
		}
	}
	s.close()
	return err
}

func (s *Server) close() {
	if s.bus != nil {
		_ = s.bus.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
