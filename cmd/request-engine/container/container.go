package container

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/consumer"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/repository"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/service"
	"github.com/adamstavely/cautious-lamp-sub001/common/bootstrap"
	"github.com/adamstavely/cautious-lamp-sub001/common/cache"
	"github.com/adamstavely/cautious-lamp-sub001/common/clients"
	"github.com/adamstavely/cautious-lamp-sub001/common/ratelimit"
)

// Container holds all initialized services and repositories (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components

	// Repositories
	Store *repository.Store

	// Shared infrastructure
	Limiter     ratelimit.Limiter
	EventDedupe cache.Cache

	// Services
	Roadmap        service.RoadmapService
	RequestService *service.RequestService

	// Consumers
	ComponentEvents *consumer.ComponentEventConsumer
}

// NewContainer initializes all services and repositories once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	// Initialize repositories
	var store *repository.Store
	switch cfg.Storage.Backend {
	case "memory":
		store = repository.NewMemoryStore()
	case "postgres":
		if components.DB == nil {
			return nil, fmt.Errorf("postgres storage selected but database is not initialized")
		}
		store = repository.NewPostgresStore(components.DB)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}

	// Roadmap collaborator; without a URL items are only logged
	var roadmap service.RoadmapService
	if cfg.Roadmap.URL != "" {
		roadmap = clients.NewRoadmapClient(cfg.Roadmap.URL, cfg.Roadmap.Timeout, components.Logger)
	} else {
		components.Logger.Warn("ROADMAP_URL not set, roadmap items will only be logged")
		roadmap = clients.NewLogOnlyRoadmap(components.Logger, uuid.NewString)
	}

	requestService := service.NewRequestService(&service.RequestServiceOpts{
		Store:          store,
		Roadmap:        roadmap,
		Logger:         components.Logger,
		RoadmapTimeout: cfg.Roadmap.Timeout,
	})

	// Redis when the event bus already uses it, so limits and dedupe span instances
	var limiter ratelimit.Limiter
	var dedupe cache.Cache
	if components.Redis != nil {
		limiter = ratelimit.NewRateLimiter(components.Redis.GetUnderlying(), components.Logger)
		dedupe = cache.NewRedisCache(components.Redis.GetUnderlying(), cfg.Service.Name+":")
	} else {
		limiter = ratelimit.NewMemoryLimiter(components.Logger)
		dedupe = cache.NewMemoryCache(components.Logger)
	}

	c := &Container{
		Components:     components,
		Store:          store,
		Limiter:        limiter,
		EventDedupe:    dedupe,
		Roadmap:        roadmap,
		RequestService: requestService,
	}

	if components.Queue != nil {
		c.ComponentEvents = consumer.NewComponentEventConsumer(
			components.Queue,
			requestService,
			cfg.Events.ComponentTopic,
			components.Logger,
		)
		if cfg.Events.DedupeTTL > 0 {
			c.ComponentEvents.WithDedupe(dedupe, cfg.Events.DedupeTTL)
		}
	}

	return c, nil
}

// Close waits for background work and releases container-owned resources
func (c *Container) Close() error {
	c.RequestService.Wait()
	return c.EventDedupe.Close()
}
