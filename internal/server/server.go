package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/smartkids/tutoring-api/config"
	"github.com/smartkids/tutoring-api/internal/db"
	"github.com/smartkids/tutoring-api/internal/handlers"
	"github.com/smartkids/tutoring-api/internal/logging"
	"github.com/smartkids/tutoring-api/internal/mq"
	"github.com/smartkids/tutoring-api/internal/services"
	"github.com/smartkids/tutoring-api/internal/storage"
	"github.com/smartkids/tutoring-api/internal/store"
)

// Server wraps the HTTP server and the clients it owns.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	storage    *storage.Storage
	mq         *mq.MQ
	logger     *slog.Logger
}

// New connects to the database and the optional storage and broker
// backends, then builds the router.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		if objects != nil {
			_ = objects.Close()
		}
		_ = dbConn.Close()
		return nil, err
	}

	st := store.New(dbConn, store.Options{
		OperationTimeout: cfg.Database.OperationTimeout,
		SlowQuery:        cfg.Database.SlowQuery,
		Logger:           logger,
	})

	accounts := services.NewAccountService(st, st.Students, st.Tutors, services.NewBcryptHasher(), cfg.SignupCode)
	enrollments := services.NewEnrollmentService(st, st.Students, st.Tutors, st.Enrollments, logger)
	if broker != nil {
		enrollments.WithEvents(broker, cfg.MQ.EnrollmentChannel)
	}
	officeHours := services.NewOfficeHoursService(st, st.OfficeHours, st.Students, st.Tutors, logger)

	// A nil *storage.Storage must not reach the service as a non-nil interface.
	var objectStore services.ObjectStore
	if objects != nil {
		objectStore = objects
	}
	applications := services.NewApplicationService(st.Applications, objectStore, logger)

	authMiddleware := handlers.RequireAuth(cfg.JWTSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		logging.RequestLogger(logger),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz(st, logger))
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, accounts, cfg.JWTSecret, logger)
	})
	router.Route("/tutor-applications", func(r chi.Router) {
		handlers.ApplicationRouter(r, applications, logger)
	})
	router.Route("/tutors", func(r chi.Router) {
		handlers.TutorRouter(r, enrollments, officeHours, authMiddleware, logger)
	})
	router.Route("/students", func(r chi.Router) {
		handlers.StudentRouter(r, enrollments, officeHours, authMiddleware, logger)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		db:         dbConn,
		storage:    objects,
		mq:         broker,
		logger:     logger,
	}, nil
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker, the object
// storage client and the pool.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if mqErr := s.mq.Close(); mqErr != nil {
			s.logger.Warn("close mq", "error", mqErr)
		}
	}
	if s.storage != nil {
		if storageErr := s.storage.Close(); storageErr != nil {
			s.logger.Warn("close storage", "error", storageErr)
		}
	}
	if s.db != nil {
		if dbErr := s.db.Close(); dbErr != nil {
			s.logger.Warn("close database", "error", dbErr)
		}
	}
	return err
}
