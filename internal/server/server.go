package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zhirschtritt/blogapi/internal/domain"
	"github.com/zhirschtritt/blogapi/internal/events"
	"github.com/zhirschtritt/blogapi/internal/migrations"
	"github.com/zhirschtritt/blogapi/internal/repository"
)

type Server struct {
	logger        *slog.Logger
	startTime     time.Time
	db            *pgxpool.Pool
	config        *Config
	userService   *domain.UserService
	postService   *domain.PostService
	eventConsumer events.EventConsumer
	*http.Server
}

type HealthResponse struct {
	Status    string        `json:"status"`
	Uptime    time.Duration `json:"uptime"`
	StartTime time.Time     `json:"start_time"`
	Database  string        `json:"database"`
}

func NewServer(config *Config, logger *slog.Logger) (*Server, error) {
	logger.Info("configuration loaded",
		"port", config.Port,
		"users_table", config.UsersTable,
		"posts_table", config.PostsTable,
		"event_consumer_type", config.EventConsumerType)

	server := &Server{
		logger:    logger,
		startTime: time.Now(),
		config:    config,
	}

	if err := server.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := server.initEventConsumer(); err != nil {
		server.db.Close()
		return nil, fmt.Errorf("failed to initialize event consumer: %w", err)
	}

	server.initServices()

	router := NewRouter(server.userService, server.postService, logger)
	router.Get("/healthz", server.healthHandler)

	server.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", config.Port),
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return server, nil
}

// NewRouter builds the HTTP routing table for the user and post endpoints.
func NewRouter(userService UserService, postService PostService, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, MessageResponse{Message: "Hello World"})
	})

	userRouter := NewUserRouter(userService, logger)
	postRouter := NewPostRouter(postService, logger)

	users := userRouter.Routes()
	users.Post("/{id}/posts", postRouter.createPost)

	router.Mount("/users", users)
	router.Mount("/posts", postRouter.Routes())

	return router
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Uptime:    time.Since(s.startTime),
		StartTime: s.startTime,
		Database:  "up",
	}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Error("database ping failed", "error", err)
			response.Status = "unhealthy"
			response.Database = "down"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, s.logger, status, response)
}

func (s *Server) Start() error {
	s.logger.Info("starting server", "port", s.config.Port, "start_time", s.startTime)

	errCh := make(chan error, 1)
	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info("server is ready to handle requests", "addr", s.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	var listenErr error
	select {
	case sig := <-quit:
		s.logger.Info("server is shutting down", "reason", sig.String())
	case listenErr = <-errCh:
		s.logger.Error("could not listen on", "addr", s.Addr, "error", listenErr)
	}

	s.shutdown()
	return listenErr
}

func (s *Server) initDatabase() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(s.config.DBConnString)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	config.MaxConns = s.config.DBMaxConns
	config.MinConns = s.config.DBMinConns
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	s.logger.Info("connecting to database", "host", config.ConnConfig.Host, "database", config.ConnConfig.Database)

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.logger.Info("database connection established successfully")
	s.db = pool

	if !s.config.AutoMigrate {
		return nil
	}

	migrator, err := migrations.NewMigrator(s.config.DBConnString, s.config.MigrationsDir, s.logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			s.logger.Error("could not close migrator", "error", err)
		}
	}()

	if err := migrator.Up(); err != nil {
		pool.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (s *Server) initEventConsumer() error {
	ctx := context.Background()
	eventsRepo := repository.NewDBEventsRepository(s.db)

	switch s.config.EventConsumerType {
	case "gochannel":
		s.eventConsumer = events.NewConsumer(eventsRepo, s.logger, events.ConsumerOptions{
			BufferSize:   1000,
			BatchSize:    100,
			BatchTimeout: 100 * time.Millisecond,
			WorkerCount:  4,
		})
	case "wal":
		walConsumer, err := events.NewWALConsumer(eventsRepo, s.logger, events.WALConsumerOptions{
			BufferSize:       1000,
			BatchSize:        100,
			BatchTimeout:     100 * time.Millisecond,
			WorkerCount:      4,
			WALDir:           filepath.Clean(s.config.WALDir),
			WALPrefix:        "event_",
			SegmentThreshold: 1000,
			MaxSegments:      10,
		})
		if err != nil {
			return fmt.Errorf("failed to create WAL consumer: %w", err)
		}
		s.eventConsumer = walConsumer
	case "nats":
		natsConsumer, err := events.NewNATSConsumer(s.config.NATSURL, s.config.NATSSubjectPrefix, s.logger)
		if err != nil {
			return err
		}
		s.eventConsumer = natsConsumer
	case "none":
		s.eventConsumer = events.NopConsumer{}
	default:
		return fmt.Errorf("unsupported event consumer type: %s", s.config.EventConsumerType)
	}

	s.eventConsumer.Start(ctx)
	s.logger.Info("initialized event consumer", "type", s.config.EventConsumerType)
	return nil
}

func (s *Server) initServices() {
	tables := repository.Tables{Users: s.config.UsersTable, Posts: s.config.PostsTable}

	s.userService = domain.NewUserService(repository.NewDBUserRepository(s.db, tables), s.eventConsumer, s.logger)
	s.postService = domain.NewPostService(repository.NewDBPostRepository(s.db, tables), s.eventConsumer, s.logger)
}

func (s *Server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.SetKeepAlivesEnabled(false)
	if err := s.Shutdown(ctx); err != nil {
		s.logger.Error("could not gracefully shutdown the server", "error", err)
	}

	// The consumer flushes into the pool, so it stops first.
	if s.eventConsumer != nil {
		s.eventConsumer.Stop()
		s.logger.Info("event consumer stopped")
	}

	if s.db != nil {
		s.db.Close()
		s.logger.Info("database connection closed")
	}

	s.logger.Info("server stopped")
}
