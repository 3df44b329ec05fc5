package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/adamstavely/cautious-lamp-sub001/common/clients"
	"github.com/adamstavely/cautious-lamp-sub001/common/logger"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// UserIDKey is the echo context key for the caller's user id
	UserIDKey ContextKey = "user_id"
)

// ExtractUserID reads the X-User-ID header into the echo context.
// The user id and the echo request id are also copied into the request
// context so log lines and outbound roadmap calls carry them.
//
// Caller identity is an opaque string; nothing here authenticates it.
//
// Usage:
//
//	e.Use(middleware.RequestID())
//	e.Use(reqmw.ExtractUserID())
func ExtractUserID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			userID := req.Header.Get("X-User-ID")
			if userID != "" {
				c.Set(string(UserIDKey), userID)
				ctx = clients.WithUserID(ctx, userID)
			}

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = req.Header.Get(echo.HeaderXRequestID)
			}
			if requestID != "" {
				ctx = clients.WithRequestID(ctx, requestID)
				ctx = logger.WithTraceID(ctx, requestID)
			}

			c.SetRequest(req.WithContext(ctx))
			return next(c)
		}
	}
}

// GetUserID retrieves the user id from the echo context.
// Returns empty string if not set
func GetUserID(c echo.Context) string {
	userID, _ := c.Get(string(UserIDKey)).(string)
	return userID
}

// RequireUserID ensures a user id exists in context.
// Writes a 401 response when it does not; callers return the error as-is.
func RequireUserID(c echo.Context) (string, bool, error) {
	userID := GetUserID(c)
	if userID == "" {
		err := c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error": "authentication required (X-User-ID header missing)",
		})
		return "", false, err
	}
	return userID, true, nil
}
