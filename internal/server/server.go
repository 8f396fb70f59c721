package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rentshare/apiserver/config"
	"github.com/rentshare/apiserver/internal/auth"
	"github.com/rentshare/apiserver/internal/db"
	"github.com/rentshare/apiserver/internal/handlers"
	"github.com/rentshare/apiserver/internal/logging"
	"github.com/rentshare/apiserver/internal/mq"
	"github.com/rentshare/apiserver/internal/reconcile"
	"github.com/rentshare/apiserver/internal/services"
	"github.com/rentshare/apiserver/internal/store"
	"github.com/rentshare/apiserver/internal/store/memstore"
)

// Options adjusts how New assembles the server.
type Options struct {
	// InMemory replaces Postgres with the in-process store and the message
	// broker with an in-process queue drained by a local worker.
	InMemory bool

	// Logger defaults to one built from cfg.Logging.
	Logger *slog.Logger
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger
	db         *sql.DB
	queue      *mq.MQ
	worker     *reconcile.Worker

	workerOnce   sync.Once
	workerCancel context.CancelFunc
	workerDone   sync.WaitGroup
}

type repositories struct {
	users    services.UserRepository
	listings services.ListingRepository
	reviews  services.ReviewRepository
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.New(cfg.Logging)
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("JWT_SECRET is required: %w", err)
	}

	s := &Server{logger: logger}

	var repos repositories
	if opts.InMemory {
		mem := memstore.New()
		repos = repositories{users: mem.Users, listings: mem.Listings, reviews: mem.Reviews}
		s.queue = mq.New(mq.NewMemoryBackend())
	} else {
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.db = dbConn
		repos = repositories{
			users:    store.NewUserRepository(dbConn),
			listings: store.NewListingRepository(dbConn),
			reviews:  store.NewReviewRepository(dbConn),
		}

		queue, err := mq.Open(ctx, cfg.MQ)
		switch {
		case errors.Is(err, mq.ErrNotConfigured):
			logger.WarnContext(ctx, "no message queue configured; stale aggregates wait for the next reconcile")
		case err != nil:
			_ = dbConn.Close()
			return nil, err
		default:
			s.queue = queue
		}
	}

	var notifier services.RecomputeNotifier
	if s.queue != nil {
		notifier = mq.NewRecomputePublisher(s.queue, cfg.MQ.Channel)
	}

	userService := services.NewUserService(repos.users, auth.NewBcryptHasher(cfg.Auth.BcryptCost), tokens)
	listingService := services.NewListingService(repos.listings, repos.users, logger)
	ratingService := services.NewRatingService(repos.reviews, repos.listings, repos.users, notifier, logger)

	if opts.InMemory {
		s.worker = reconcile.NewWorker(s.queue, cfg.MQ.Channel, ratingService, logger)
	}

	requireAuth := handlers.RequireAuth(tokens, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	handlers.AuthRouter(router, userService, requireAuth, logger)
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, ratingService, logger)
	})
	router.Route("/items", func(r chi.Router) {
		handlers.ListingRouter(r, listingService, ratingService, requireAuth, logger)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server, and the local recompute worker in in-memory
// mode. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.startWorker()
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Serve runs Start until ctx is done or the listener fails, and shuts the
// server down in both cases.
func (s *Server) Serve(ctx context.Context, shutdownTimeout time.Duration) error {
	s.startWorker()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

func (s *Server) startWorker() {
	s.workerOnce.Do(func() {
		if s.worker == nil {
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		s.workerCancel = cancel
		s.workerDone.Add(1)
		go func() {
			defer s.workerDone.Done()
			if err := s.worker.Run(ctx); err != nil {
				s.logger.Error("recompute worker stopped", "err", err)
			}
		}()
	})
}

// Shutdown drains in-flight requests, then releases the worker, broker and
// database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)

	if s.workerCancel != nil {
		s.workerCancel()
		s.workerDone.Wait()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
