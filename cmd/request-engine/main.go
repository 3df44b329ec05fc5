package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/container"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/handlers"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/repository"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/routes"
	"github.com/adamstavely/cautious-lamp-sub001/common/bootstrap"
	"github.com/adamstavely/cautious-lamp-sub001/common/db"
	"github.com/adamstavely/cautious-lamp-sub001/common/server"
)

const serviceName = "request-engine"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Bootstrap common components (DB, logger, queue, telemetry)
	components, err := bootstrap.Setup(ctx, serviceName,
		bootstrap.WithDBInitHook(func(database *db.DB) error {
			return database.EnsureSchema(ctx, repository.Schema)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap %s: %v\n", serviceName, err)
		os.Exit(1)
	}
	defer components.Shutdown(context.Background())

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		components.Logger.Error("failed to initialize service container", "error", err)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, components)
	registerRoutes(e, serviceContainer)

	if err := run(ctx, e, serviceContainer); err != nil {
		components.Logger.Error("service stopped with error", "error", err)
	}

	// Let in-flight roadmap calls finish before the store goes away
	if err := serviceContainer.Close(); err != nil {
		components.Logger.Error("failed to close service container", "error", err)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := components.Health(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": serviceName,
				"error":   err.Error(),
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": serviceName,
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterRequestRoutes(e, serviceContainer)
	routes.RegisterComponentEventRoutes(e, serviceContainer)
}

// run serves HTTP and consumes component events until ctx is cancelled
func run(ctx context.Context, e *echo.Echo, serviceContainer *container.Container) error {
	components := serviceContainer.Components
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.New(serviceName, components.Config.Service.Port, e, components.Logger).Run(gctx)
	})

	if serviceContainer.ComponentEvents != nil {
		g.Go(func() error {
			return serviceContainer.ComponentEvents.Start(gctx)
		})
	}

	return g.Wait()
}
