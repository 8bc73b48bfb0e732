// Package app provides application lifecycle management for the sync server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/glsync/glsync/internal/app/storage"
	"github.com/glsync/glsync/internal/config"
	"github.com/glsync/glsync/internal/jobs"
)

// App encapsulates all components needed to run the sync server.
// It provides lifecycle management and graceful shutdown capabilities.
type App struct {
	config     *config.Config
	manager    *jobs.Manager
	httpServer *http.Server
	storage    storage.Factory
	logger     *slog.Logger

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start registers the schedules, starts the queue workers and serves the
// control surface. It blocks until the HTTP server stops or fails.
func (app *App) Start() error {
	ln, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(ln)
}

// Serve is Start on an existing listener.
func (app *App) Serve(ln net.Listener) error {
	if err := app.manager.Initialize(app.ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to initialize job manager: %w", err)
	}
	if err := app.manager.Start(app.ctx); err != nil {
		_ = ln.Close()
		return fmt.Errorf("failed to start job manager: %w", err)
	}

	app.logger.Info("Server listening", "address", ln.Addr().String())
	if err := app.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout.
// It stops the queue workers, shuts down the HTTP server and releases storage.
func (app *App) Stop(timeout time.Duration) error {
	app.logger.Info("Shutting down server...")

	if err := app.manager.Stop(); err != nil {
		app.logger.Error("Failed to stop job manager", "error", err)
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := app.httpServer.Shutdown(shutdownCtx)
	app.storage.Cleanup()
	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	app.logger.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *App) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *App) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Manager returns the job manager
func (app *App) Manager() *jobs.Manager {
	return app.manager
}
