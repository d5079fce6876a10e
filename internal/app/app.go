package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"taskdesk/internal/config"
	"taskdesk/internal/handlers"
	"taskdesk/internal/logger"
	"taskdesk/internal/middleware"
	"taskdesk/internal/repository/inmemory"
	"taskdesk/internal/repository/postgres"
	"taskdesk/internal/service"
	"taskdesk/internal/upstream"
	"taskdesk/internal/worker"
)

type App struct {
	config  *config.Config
	server  *http.Server
	service *service.TaskService
	worker  *worker.RefreshWorker
	// shutdowns run in reverse order on stop
	shutdowns []func()
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("App: flushing logs")
		logger.Sync()
	})

	repo, err := a.buildRepository(ctx)
	if err != nil {
		return err
	}

	client := upstream.NewClient(
		a.config.Upstream.BaseURL,
		a.config.Upstream.Token,
		a.config.Upstream.Timeout,
	)

	a.service = service.NewTaskService(client, repo)
	a.worker = worker.NewRefreshWorker(
		a.service,
		a.config.Worker.RefreshInterval,
		a.config.Worker.MaxRetryElapsed,
	)

	taskHandler := handlers.NewTaskHandler(a.service)
	a.server = &http.Server{
		Addr:              a.config.ServerAddr(),
		Handler:           buildRouter(&taskHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return nil
}

func (a *App) buildRepository(ctx context.Context) (service.TaskRepository, error) {
	switch a.config.Repository.Type {
	case "postgres":
		store, err := postgres.New(ctx, a.config.Database)
		if err != nil {
			return nil, fmt.Errorf("initializing postgres repository: %w", err)
		}
		if err := store.Migrate(); err != nil {
			store.Close()
			return nil, fmt.Errorf("migrating postgres repository: %w", err)
		}
		a.shutdowns = append(a.shutdowns, store.Close)
		return store, nil
	case "inmemory", "":
		return inmemory.NewTaskStorage(), nil
	default:
		return nil, fmt.Errorf("unknown repository type %q", a.config.Repository.Type)
	}
}

func buildRouter(taskHandler *handlers.TaskHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.RateLimit(300))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/views/{role}/tasks", taskHandler.GetViewTasks)

	r.Route("/tasks/{id}", func(r chi.Router) {
		r.Get("/", taskHandler.GetTaskByID)
		r.Put("/", taskHandler.UpdateTaskByID)
		r.Post("/comments", taskHandler.AddComment)
	})

	r.Post("/refresh", taskHandler.RefreshSnapshot)
	r.Get("/health", taskHandler.HealthCheck)

	return r
}

// Run serves until ctx is cancelled, then shuts everything down in
// reverse initialization order.
func (a *App) Run(ctx context.Context) error {
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	go a.worker.Start(workerCtx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("App: server started on " + a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		a.shutdown()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("App: shutting down")
	stopWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("App: server shutdown", err)
	}

	a.shutdown()
	return nil
}

func (a *App) shutdown() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
}
