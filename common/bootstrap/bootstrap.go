package bootstrap

import (
	"context"
	"fmt"

	"github.com/adamstavely/cautious-lamp-sub001/common/config"
	"github.com/adamstavely/cautious-lamp-sub001/common/db"
	"github.com/adamstavely/cautious-lamp-sub001/common/logger"
	"github.com/adamstavely/cautious-lamp-sub001/common/metrics"
	"github.com/adamstavely/cautious-lamp-sub001/common/queue"
	rediscommon "github.com/adamstavely/cautious-lamp-sub001/common/redis"
	"github.com/adamstavely/cautious-lamp-sub001/common/telemetry"
)

// Setup initializes all service components
// This is the main entry point for all services
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	host := metrics.CaptureSystemInfo()
	metrics.RecordServiceInfo(serviceName, host)
	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
		"storage", components.Config.Storage.Backend,
		"events", components.Config.Events.Backend,
		"host", host.Hostname,
		"os", host.OSVersion,
		"cpus", host.CPULogical,
		"memory_mb", host.TotalMemoryMB,
		"container", host.ContainerRuntime,
	)

	// 3. Initialize database (postgres storage only)
	if !options.skipDB && components.Config.Storage.Backend == "postgres" {
		components.Logger.Info("connecting to database")
		components.DB, err = db.New(ctx, components.Config, components.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		components.addCleanup(func() error {
			components.DB.Close()
			return nil
		})

		if options.dbInitHook != nil {
			components.Logger.Info("running database init hook")
			if err := options.dbInitHook(components.DB); err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("database init hook failed: %w", err)
			}
		}
	}

	// 4. Initialize event bus
	if !options.skipQueue {
		components.Logger.Info("initializing queue",
			"type", components.Config.Events.Backend,
		)

		switch components.Config.Events.Backend {
		case "memory":
			components.Queue = queue.NewMemoryQueue(components.Logger)
		case "redis":
			components.Redis, err = rediscommon.Connect(ctx,
				components.Config.RedisAddr(),
				components.Config.Redis.Password,
				components.Config.Redis.DB,
				components.Logger,
			)
			if err != nil {
				components.Shutdown(ctx)
				return nil, fmt.Errorf("failed to connect to redis: %w", err)
			}
			components.addCleanup(func() error {
				components.Logger.Info("closing redis client")
				return components.Redis.Close()
			})
			components.Queue = queue.NewRedisQueue(components.Redis, components.Logger)
		default:
			components.Shutdown(ctx)
			return nil, fmt.Errorf("unknown queue type: %s", components.Config.Events.Backend)
		}

		components.addCleanup(func() error {
			components.Logger.Info("closing queue")
			return components.Queue.Close()
		})
	}

	// 5. Initialize telemetry
	if !options.skipTelemetry {
		pprofPort, metricsPort := 0, 0
		if components.Config.Telemetry.EnablePprof {
			pprofPort = components.Config.Telemetry.PprofPort
		}
		if components.Config.Telemetry.EnableMetrics {
			metricsPort = components.Config.Telemetry.MetricsPort
		}

		if pprofPort > 0 || metricsPort > 0 {
			components.Logger.Info("initializing telemetry",
				"pprof_port", pprofPort,
				"metrics_port", metricsPort,
			)
			components.Telemetry = telemetry.New(pprofPort, metricsPort, components.Logger)

			if err := components.Telemetry.Start(ctx); err != nil {
				// Don't fail startup if telemetry fails
				components.Logger.Warn("failed to start telemetry", "error", err)
			} else {
				components.addCleanup(components.Telemetry.Close)
			}
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"redis", components.Redis != nil,
		"queue", components.Queue != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

