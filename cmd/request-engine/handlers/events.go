package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/consumer"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
	"github.com/adamstavely/cautious-lamp-sub001/common/logger"
	"github.com/adamstavely/cautious-lamp-sub001/common/queue"
)

// ComponentEventDTO is the body the component lifecycle posts when a component is created
type ComponentEventDTO struct {
	ComponentID     string `json:"componentId" validate:"required"`
	ComponentName   string `json:"componentName" validate:"required"`
	LinkedRequestID string `json:"linkedRequestId"`
}

// ComponentEventHandler accepts component lifecycle webhooks and puts them on the event bus
type ComponentEventHandler struct {
	queue  queue.Queue
	topic  string
	logger *logger.Logger
}

// NewComponentEventHandler creates a new component event handler
func NewComponentEventHandler(q queue.Queue, topic string, log *logger.Logger) *ComponentEventHandler {
	return &ComponentEventHandler{
		queue:  q,
		topic:  topic,
		logger: log,
	}
}

// ComponentCreated publishes a component-created event. Linking happens asynchronously.
// POST /api/v1/components/events
func (h *ComponentEventHandler) ComponentCreated(c echo.Context) error {
	var dto ComponentEventDTO
	if handled, err := bindAndValidate(c, &dto); handled {
		return err
	}

	event := models.ComponentCreatedEvent{
		ComponentID:     dto.ComponentID,
		ComponentName:   dto.ComponentName,
		LinkedRequestID: dto.LinkedRequestID,
	}
	if err := consumer.Publish(c.Request().Context(), h.queue, h.topic, event); err != nil {
		h.logger.WithContext(c.Request().Context()).Error("failed to publish component event",
			"component_id", dto.ComponentID,
			"error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
			"error": "event bus unavailable",
		})
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"status":      "accepted",
		"componentId": dto.ComponentID,
		"topic":       h.topic,
	})
}
