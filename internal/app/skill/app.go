package skill

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DenisKhanov/CommuteBot/internal/logcfg"
	"github.com/DenisKhanov/CommuteBot/internal/skill/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// App represents the application structure responsible for initializing
// dependencies and running the webhook server.
type App struct {
	serviceProvider *serviceProvider // The service provider for dependency injection
	config          *config.Config   // The configuration object for the application
	serverHTTP      *http.Server     // The webhook server instance
}

// NewApp creates a new instance of the application.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{}
	err := app.initDeps(ctx)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Run starts the application and runs the webhook server.
func (a *App) Run() {
	a.runServer()
}

// initDeps initializes all dependencies required by the application.
func (a *App) initDeps(ctx context.Context) error {
	inits := []func(context.Context) error{
		a.initConfig,
		a.initServiceProvider,
		a.initHTTPServer,
	}

	for _, f := range inits {
		err := f(ctx)
		if err != nil {
			return err
		}
	}

	return nil
}

// initConfig initializes the application configuration.
func (a *App) initConfig(_ context.Context) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return err
	}
	a.config = cfg
	logcfg.RunLoggerConfig(a.config.EnvLogsLevel, a.config.EnvLogFileName)
	return nil
}

// initServiceProvider initializes the service provider for dependency injection.
func (a *App) initServiceProvider(_ context.Context) error {
	a.serviceProvider = newServiceProvider(
		a.config.EnvMapsEndpoint,
		a.config.EnvMapsApiKey,
		a.config.EnvDatabaseDSN,
		a.config.EnvStoragePath,
	)
	return nil
}

// initHTTPServer initializes the webhook server with middleware and routes.
func (a *App) initHTTPServer(_ context.Context) error {
	myHandler := a.serviceProvider.Handler()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Post("/skill", myHandler.HandleSkillRequest)
	router.Get("/health", myHandler.HandleHealthCheck)

	a.serverHTTP = &http.Server{
		Addr:    a.config.EnvHTTPServer,
		Handler: router,
	}

	return nil
}

// runServer starts the webhook server and blocks until a shutdown signal
// arrives, then drains in-flight requests.
func (a *App) runServer() {
	go func() {
		logrus.Infof("HTTP server starting on: %s", a.config.EnvHTTPServer)
		if err := a.serverHTTP.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-signalChan
	logrus.Infof("Shutting down HTTP server with signal : %v...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.serverHTTP.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown error")
	}

	logrus.Info("Server exited")
}
