package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/container"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/handlers"
	reqmw "github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/middleware"
	commonmw "github.com/adamstavely/cautious-lamp-sub001/common/middleware"
)

// RegisterRequestRoutes registers all component request routes
func RegisterRequestRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewRequestHandler(c.RequestService, c.Components.Logger)

	requests := e.Group("/api/v1/component-requests")
	requests.Use(reqmw.ExtractUserID()) // Extract X-User-ID into context
	if limit := c.Components.Config.RateLimit; limit.PerUser > 0 {
		requests.Use(commonmw.RateLimitMiddleware(c.Limiter, userRateKey, limit.PerUser, limit.Window,
			http.MethodPost, http.MethodPatch, http.MethodDelete))
	}
	{
		requests.POST("", h.CreateRequest)                   // POST /api/v1/component-requests
		requests.GET("", h.ListRequests)                     // GET /api/v1/component-requests?status=approved
		requests.GET("/analytics", h.GetAnalytics)           // GET /api/v1/component-requests/analytics
		requests.POST("/duplicates", h.CheckDuplicates)      // POST /api/v1/component-requests/duplicates
		requests.GET("/:id", h.GetRequest)                   // GET /api/v1/component-requests/{id}
		requests.PATCH("/:id", h.UpdateRequest)              // PATCH /api/v1/component-requests/{id}
		requests.DELETE("/:id", h.DeleteRequest)             // DELETE /api/v1/component-requests/{id}
		requests.POST("/:id/vote", h.VoteRequest)            // POST /api/v1/component-requests/{id}/vote
		requests.POST("/:id/transition", h.TransitionStatus) // POST /api/v1/component-requests/{id}/transition
		requests.POST("/:id/approve", h.ApproveRequest)      // POST /api/v1/component-requests/{id}/approve
		requests.POST("/:id/reject", h.RejectRequest)        // POST /api/v1/component-requests/{id}/reject
		requests.POST("/:id/assign", h.AssignRequest)        // POST /api/v1/component-requests/{id}/assign
		requests.GET("/:id/comments", h.GetComments)         // GET /api/v1/component-requests/{id}/comments
		requests.POST("/:id/comments", h.AddComment)         // POST /api/v1/component-requests/{id}/comments
		requests.POST("/:id/component", h.LinkComponent)     // POST /api/v1/component-requests/{id}/component
		requests.DELETE("/:id/component", h.UnlinkComponent) // DELETE /api/v1/component-requests/{id}/component
		requests.GET("/:id/history", h.GetHistory)           // GET /api/v1/component-requests/{id}/history
		requests.GET("/:id/approvals", h.GetApprovals)       // GET /api/v1/component-requests/{id}/approvals
	}
}

// RegisterComponentEventRoutes registers the component lifecycle webhook
func RegisterComponentEventRoutes(e *echo.Echo, c *container.Container) {
	if c.Components.Queue == nil {
		return
	}
	h := handlers.NewComponentEventHandler(c.Components.Queue, c.Components.Config.Events.ComponentTopic, c.Components.Logger)

	components := e.Group("/api/v1/components")
	components.Use(reqmw.ExtractUserID())
	{
		components.POST("/events", h.ComponentCreated) // POST /api/v1/components/events
	}
}

// userRateKey buckets writes by caller; anonymous calls fail auth in the handler anyway
func userRateKey(c echo.Context) string {
	if userID := reqmw.GetUserID(c); userID != "" {
		return "user:" + userID
	}
	return ""
}
