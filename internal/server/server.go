package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/codecrack-oj/apiserver/config"
	"github.com/codecrack-oj/apiserver/internal/db"
	"github.com/codecrack-oj/apiserver/internal/events"
	"github.com/codecrack-oj/apiserver/internal/handlers"
	"github.com/codecrack-oj/apiserver/internal/judge"
	"github.com/codecrack-oj/apiserver/internal/services"
	"github.com/codecrack-oj/apiserver/internal/storage"
	"github.com/codecrack-oj/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v2"
)

// Server wraps the HTTP server, router, and the connections it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	publisher  events.Publisher
}

// New constructs a fully wired Server: database, object storage, the
// judging pipeline, and the optional event publisher.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := httplog.NewLogger("apiserver", httplog.Options{
		LogLevel: slog.LevelInfo,
		Concise:  true,
	})
	slog.SetDefault(logger.Logger)

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objectStorage, err := storage.NewFromConfig(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if err := objectStorage.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	publisher, err := events.NewFromConfig(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	problemRepo := store.NewProblemRepository(dbConn)
	userRepo := store.NewUserRepository(dbConn)
	submissionRepo := store.NewSubmissionRepository(dbConn)

	judgeClient := judge.NewClient(cfg.Judge)
	dispatcher := judge.NewDispatcher(judgeClient, cfg.Judge.Concurrency)
	evaluator := judge.NewEvaluator(dispatcher, cfg.Judge.RunDeadline, cfg.Judge.SubmitDeadline)

	problemService := services.NewProblemService(problemRepo, objectStorage)
	userService := services.NewUserService(userRepo)
	submissionService := services.NewSubmissionService(
		submissionRepo, problemService, evaluator, publisher, cfg.Events.Channel)

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if jwtSecret == "" {
		_ = dbConn.Close()
		_ = publisher.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	authMiddleware := handlers.RequireAuth(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		httplog.RequestLogger(logger),
		middleware.Timeout(90*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, jwtSecret)
	})
	router.Route("/problems", func(r chi.Router) {
		handlers.ProblemRouter(r, problemService, userService, authMiddleware)
	})
	router.Route("/submission", func(r chi.Router) {
		handlers.SubmissionRouter(r, submissionService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Submit-mode judgments can legitimately take the better part of
		// a minute, so the write timeout sits above the submit deadline.
		WriteTimeout: cfg.Judge.SubmitDeadline + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		publisher:  publisher,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
