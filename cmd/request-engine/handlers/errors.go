package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/service"
	"github.com/adamstavely/cautious-lamp-sub001/common/logger"
)

var badRequestErrors = []error{
	service.ErrValidation,
	service.ErrInvalidStage,
	service.ErrInvalidPriority,
	service.ErrInvalidCategory,
	service.ErrInvalidPatch,
	service.ErrInvalidFilter,
}

// respondError maps engine errors onto HTTP status codes
func respondError(c echo.Context, log *logger.Logger, err error) error {
	var transitionErr *service.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		allowed := transitionErr.Allowed
		if allowed == nil {
			allowed = []models.RequestStatus{}
		}
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":   transitionErr.Error(),
			"current": transitionErr.From,
			"allowed": allowed,
		})
	}

	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	log.WithContext(c.Request().Context()).Error("request failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"error", err)
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": "internal server error",
	})
}

func notFound(c echo.Context, id string) error {
	return c.JSON(http.StatusNotFound, map[string]interface{}{
		"error": "component request not found",
		"id":    id,
	})
}
