package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/adamstavely/cautious-lamp-sub001/common/logger"
	"github.com/adamstavely/cautious-lamp-sub001/common/ratelimit"
)

func TestRateLimitMiddleware(t *testing.T) {
	e := echo.New()
	limiter := ratelimit.NewMemoryLimiter(logger.Discard())
	byUser := func(c echo.Context) string { return c.Request().Header.Get("X-User-ID") }
	e.Use(RateLimitMiddleware(limiter, byUser, 1, time.Hour, http.MethodPost))

	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.POST("/things", ok)
	e.GET("/things", ok)

	send := func(method, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/things", nil)
		if user != "" {
			req.Header.Set("X-User-ID", user)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send(http.MethodPost, "alice").Code)

	rec := send(http.MethodPost, "alice")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Reads and anonymous calls are not counted
	assert.Equal(t, http.StatusOK, send(http.MethodGet, "alice").Code)
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "").Code)
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "bob").Code)
}
