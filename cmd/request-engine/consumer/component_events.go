package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
	"github.com/adamstavely/cautious-lamp-sub001/common/cache"
	"github.com/adamstavely/cautious-lamp-sub001/common/queue"
)

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// ComponentLinker reacts to newly created components
type ComponentLinker interface {
	OnComponentCreated(ctx context.Context, event models.ComponentCreatedEvent) (*models.ComponentRequest, error)
}

// ComponentEventConsumer feeds component-created events from the bus into the auto-linker
type ComponentEventConsumer struct {
	queue  queue.Queue
	linker ComponentLinker
	logger Logger
	topic  string

	seen    cache.Cache
	seenTTL time.Duration
}

// NewComponentEventConsumer creates a new component event consumer
func NewComponentEventConsumer(q queue.Queue, linker ComponentLinker, topic string, logger Logger) *ComponentEventConsumer {
	return &ComponentEventConsumer{
		queue:  q,
		linker: linker,
		logger: logger,
		topic:  topic,
	}
}

// WithDedupe skips events whose component id was already handled within ttl.
// Redis-backed delivery can repeat messages; linking twice would only log noise.
func (c *ComponentEventConsumer) WithDedupe(seen cache.Cache, ttl time.Duration) *ComponentEventConsumer {
	c.seen = seen
	c.seenTTL = ttl
	return c
}

// Start subscribes to the topic and blocks until ctx is done
func (c *ComponentEventConsumer) Start(ctx context.Context) error {
	c.logger.Info("starting component event consumer", "topic", c.topic)

	if err := c.queue.Subscribe(ctx, c.topic, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.topic, err)
	}

	<-ctx.Done()
	c.logger.Info("component event consumer stopping")
	return nil
}

// handleMessage decodes one event and hands it to the linker.
// Bad payloads are logged and dropped; the linker never sees them.
func (c *ComponentEventConsumer) handleMessage(ctx context.Context, key string, value []byte) error {
	event, err := DecodeComponentCreated(value)
	if err != nil {
		c.logger.Warn("dropping malformed component event", "key", key, "error", err)
		return nil
	}

	if c.alreadySeen(ctx, event.ComponentID) {
		c.logger.Debug("skipping duplicate component event", "component_id", event.ComponentID)
		return nil
	}

	linked, err := c.linker.OnComponentCreated(ctx, *event)
	if err != nil {
		return fmt.Errorf("failed to handle component %s: %w", event.ComponentID, err)
	}
	c.markSeen(ctx, event.ComponentID)

	if linked != nil {
		c.logger.Info("component event linked request",
			"component_id", event.ComponentID,
			"request_id", linked.ID,
			"status", linked.Status)
	} else {
		c.logger.Debug("component event matched no request", "component_id", event.ComponentID)
	}
	return nil
}

func (c *ComponentEventConsumer) alreadySeen(ctx context.Context, componentID string) bool {
	if c.seen == nil {
		return false
	}
	_, ok, err := c.seen.Get(ctx, seenKey(componentID))
	if err != nil {
		c.logger.Warn("dedupe lookup failed", "component_id", componentID, "error", err)
		return false
	}
	return ok
}

func (c *ComponentEventConsumer) markSeen(ctx context.Context, componentID string) {
	if c.seen == nil {
		return
	}
	if err := c.seen.Set(ctx, seenKey(componentID), []byte{1}, c.seenTTL); err != nil {
		c.logger.Warn("dedupe store failed", "component_id", componentID, "error", err)
	}
}

func seenKey(componentID string) string {
	return "component-event:" + componentID
}

// EncodeComponentCreated serialises an event for the bus
func EncodeComponentCreated(event models.ComponentCreatedEvent) ([]byte, error) {
	if event.ComponentID == "" {
		return nil, fmt.Errorf("component id is required")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal component event: %w", err)
	}
	return data, nil
}

// DecodeComponentCreated parses an event from the bus
func DecodeComponentCreated(data []byte) (*models.ComponentCreatedEvent, error) {
	var event models.ComponentCreatedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal component event: %w", err)
	}
	if event.ComponentID == "" {
		return nil, fmt.Errorf("component event missing componentId")
	}
	return &event, nil
}

// Publish puts a component-created event on the bus, keyed by component id
func Publish(ctx context.Context, q queue.Queue, topic string, event models.ComponentCreatedEvent) error {
	data, err := EncodeComponentCreated(event)
	if err != nil {
		return err
	}
	if err := q.Publish(ctx, topic, event.ComponentID, data); err != nil {
		return fmt.Errorf("failed to publish component event: %w", err)
	}
	return nil
}
