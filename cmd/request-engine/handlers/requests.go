package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	reqmw "github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/middleware"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/models"
	"github.com/adamstavely/cautious-lamp-sub001/cmd/request-engine/service"
	"github.com/adamstavely/cautious-lamp-sub001/common/logger"
)

const maxPatchBytes = 1 << 20

// CreateRequestDTO is the body of POST /api/v1/component-requests
type CreateRequestDTO struct {
	Title           string   `json:"title" validate:"required,max=200"`
	Description     string   `json:"description" validate:"required,max=5000"`
	UseCase         string   `json:"useCase" validate:"max=5000"`
	Category        string   `json:"category" validate:"omitempty,oneof=component pattern token icon layout utility other"`
	Priority        string   `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	Attachments     []string `json:"attachments" validate:"omitempty,dive,required"`
	EstimatedEffort string   `json:"estimatedEffort" validate:"max=50"`
	TargetRelease   string   `json:"targetRelease" validate:"max=50"`
}

// DuplicateCheckDTO is the body of POST /api/v1/component-requests/duplicates
type DuplicateCheckDTO struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

// TransitionDTO moves a request to another status
type TransitionDTO struct {
	Status  string `json:"status" validate:"required"`
	Comment string `json:"comment" validate:"max=2000"`
}

// ApproveDTO signs off one stage; an empty stage means the next pending one
type ApproveDTO struct {
	Stage string `json:"stage" validate:"omitempty,oneof=design technical final"`
}

// RejectDTO carries the rejection reason
type RejectDTO struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// AssignDTO sets or clears the assignee
type AssignDTO struct {
	Assignee string `json:"assignee"`
}

// CommentDTO is the body of POST /api/v1/component-requests/:id/comments
type CommentDTO struct {
	Content     string   `json:"content" validate:"required,max=5000"`
	Mentions    []string `json:"mentions" validate:"omitempty,dive,required"`
	Attachments []string `json:"attachments" validate:"omitempty,dive,required"`
}

// LinkComponentDTO links a request to an existing component
type LinkComponentDTO struct {
	ComponentID string `json:"componentId" validate:"required"`
}

// RequestHandler serves the component request lifecycle
type RequestHandler struct {
	service *service.RequestService
	logger  *logger.Logger
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(svc *service.RequestService, log *logger.Logger) *RequestHandler {
	return &RequestHandler{
		service: svc,
		logger:  log,
	}
}

// CreateRequest submits a new component request
// POST /api/v1/component-requests
func (h *RequestHandler) CreateRequest(c echo.Context) error {
	userID, ok, err := reqmw.RequireUserID(c)
	if !ok {
		return err
	}

	var dto CreateRequestDTO
	if handled, err := bindAndValidate(c, &dto); handled {
		return err
	}

	req, err := h.service.CreateRequest(c.Request().Context(), &service.CreateRequestInput{
		Title:           dto.Title,
		Description:     dto.Description,
		UseCase:         dto.UseCase,
		RequestedBy:     userID,
		Category:        models.Category(dto.Category),
		Priority:        models.Priority(dto.Priority),
		Attachments:     dto.Attachments,
		EstimatedEffort: dto.EstimatedEffort,
		TargetRelease:   dto.TargetRelease,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusCreated, req)
}

// ListRequests lists requests with optional filters
// GET /api/v1/component-requests?status=approved,in-progress&sort=votes&limit=20
func (h *RequestHandler) ListRequests(c echo.Context) error {
	filter, err := parseFilter(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	requests, err := h.service.GetAllRequests(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"requests": requests,
		"count":    len(requests),
	})
}

// GetRequest retrieves a specific request
// GET /api/v1/component-requests/:id
func (h *RequestHandler) GetRequest(c echo.Context) error {
	id := c.Param("id")

	req, err := h.service.GetRequest(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if req == nil {
		return notFound(c, id)
	}

	return c.JSON(http.StatusOK, req)
}

// UpdateRequest patches the editable fields of a request.
// application/json-patch+json bodies are RFC 6902 operations, anything else is a merge patch.
// PATCH /api/v1/component-requests/:id
func (h *RequestHandler) UpdateRequest(c echo.Context) error {
	id := c.Param("id")
	userID, ok, err := reqmw.RequireUserID(c)
	if !ok {
		return err
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPatchBytes))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "failed to read request body",
		})
	}

	kind := service.MergePatch
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), "application/json-patch+json") {
		kind = service.JSONPatch
	}

	req, err := h.service.UpdateRequest(c.Request().Context(), id, body, kind, userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if req == nil {
		return notFound(c, id)
	}

	return c.JSON(http.StatusOK, req)
}

// DeleteRequest removes a request with its comments and history
// DELETE /api/v1/component-requests/:id
func (h *RequestHandler) DeleteRequest(c echo.Context) error {
	id := c.Param("id")

	deleted, err := h.service.DeleteRequest(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if !deleted {
		return notFound(c, id)
	}

	return c.NoContent(http.StatusNoContent)
}

// VoteRequest toggles the caller's vote
// POST /api/v1/component-requests/:id/vote
func (h *RequestHandler) VoteRequest(c echo.Context) error {
	id := c.Param("id")
	userID, ok, err := reqmw.RequireUserID(c)
	if !ok {
		return err
	}

	req, err := h.service.VoteRequest(c.Request().Context(), id, userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if req == nil {
		return notFound(c, id)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":     req.ID,
		"votes":  req.Votes,
		"voted":  req.HasVoted(userID),
		"voters": req.Voters,
	})
}

// TransitionStatus moves a request through the workflow
// POST /api/v1/component-requests/:id/transition
func (h *RequestHandler) TransitionStatus(c echo.Context) error {
	id := c.Param("id")
	userID, ok, err := reqmw.RequireUserID(c)
	if !ok {
		return err
	}

	var dto TransitionDTO
	if handled, err := bindAndValidate(c, &dto); handled {
		return err
	}

	req, err := h.service.TransitionStatus(c.Request().Context(), id, models.RequestStatus(dto.Status), userID, dto.Comment)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if req == nil {
		return notFound(c, id)
	}

	return c.JSON(http.StatusOK, req)
}

// ApproveRequest signs off an approval stage
// POST /api/v1/component-requests/:id/approve
func (h *RequestHandler) ApproveRequest(c echo.Context) error {
	id := c.Param("id")
	userID, ok, err := reqmw.RequireUserID(c)
	if !ok {
		return err
	}

	var dto ApproveDTO
	if handled, err := bindAndValidate(c, &dto); handled {
		return err
	}

	req, err := h.service.ApproveRequest(c.Request().Context(), id, userID, models.ApprovalStage(dto.Stage))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if req == nil {
		return notFound(c, id)
	}

	return c.JSON(http.StatusOK, req)
}

// RejectRequest rejects a request
// POST /api/v1/component-requests/:id/reject
func (h *RequestHandler) RejectRequest(c echo.Context) error {
	id := c.Param("id")
	userID, ok, err := reqmw.RequireUserID(c)
	if !ok {
		return err
	}

	var dto RejectDTO
	if handled, err := bindAndValidate(c, &dto); handled {
		return err
	}

	req, err := h.service.RejectRequest(c.Request().Context(), id, userID, dto.Reason)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if req == nil {
		return notFound(c, id)
	}

	return c.JSON(http.StatusOK, req)
}

// AssignRequest sets the assignee
// POST /api/v1/component-requests/:id/assign
func (h *RequestHandler) AssignRequest(c echo.Context) error {
	id := c.Param("id")
	userID, ok, err := reqmw.RequireUserID(c)
	if !ok {
		return err
	}

	var dto AssignDTO
	if handled, err := bindAndValidate(c, &dto); handled {
		return err
	}

	req, err := h.service.AssignRequest(c.Request().Context(), id, dto.Assignee, userID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if req == nil {
		return notFound(c, id)
	}

	return c.JSON(http.StatusOK, req)
}

// AddComment adds a comment to a request
// POST /api/v1/component-requests/:id/comments
func (h *RequestHandler) AddComment(c echo.Context) error {
	id := c.Param("id")
	userID, ok, err := reqmw.RequireUserID(c)
	if !ok {
		return err
	}

	var dto CommentDTO
	if handled, err := bindAndValidate(c, &dto); handled {
		return err
	}

	comment, err := h.service.AddComment(c.Request().Context(), id, &service.AddCommentInput{
		Author:      userID,
		Content:     dto.Content,
		Mentions:    dto.Mentions,
		Attachments: dto.Attachments,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if comment == nil {
		return notFound(c, id)
	}

	return c.JSON(http.StatusCreated, comment)
}

// GetComments lists a request's comments
// GET /api/v1/component-requests/:id/comments
func (h *RequestHandler) GetComments(c echo.Context) error {
	id := c.Param("id")
	ctx := c.Request().Context()

	req, err := h.service.GetRequest(ctx, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if req == nil {
		return notFound(c, id)
	}

	comments, err := h.service.GetComments(ctx, id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"comments": comments,
		"count":    len(comments),
	})
}

// LinkComponent links a request to a component
// POST /api/v1/component-requests/:id/component
func (h *RequestHandler) LinkComponent(c echo.Context) error {
	id := c.Param("id")

	var dto LinkComponentDTO
	if handled, err := bindAndValidate(c, &dto); handled {
		return err
	}

	req, err := h.service.LinkToComponent(c.Request().Context(), id, dto.ComponentID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if req == nil {
		return notFound(c, id)
	}

	return c.JSON(http.StatusOK, req)
}

// UnlinkComponent clears a request's component link
// DELETE /api/v1/component-requests/:id/component
func (h *RequestHandler) UnlinkComponent(c echo.Context) error {
	id := c.Param("id")

	req, err := h.service.UnlinkFromComponent(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if req == nil {
		return notFound(c, id)
	}

	return c.JSON(http.StatusOK, req)
}

// GetHistory returns the status history
// GET /api/v1/component-requests/:id/history
func (h *RequestHandler) GetHistory(c echo.Context) error {
	id := c.Param("id")

	history, err := h.service.GetStatusHistory(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if history == nil {
		return notFound(c, id)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":      id,
		"history": history,
	})
}

// GetApprovals reports per-stage approval progress
// GET /api/v1/component-requests/:id/approvals
func (h *RequestHandler) GetApprovals(c echo.Context) error {
	id := c.Param("id")

	progress, err := h.service.GetApprovalProgress(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if progress == nil {
		return notFound(c, id)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":     id,
		"stages": progress,
	})
}

// CheckDuplicates scores a prospective request against existing ones
// POST /api/v1/component-requests/duplicates
func (h *RequestHandler) CheckDuplicates(c echo.Context) error {
	var dto DuplicateCheckDTO
	if handled, err := bindAndValidate(c, &dto); handled {
		return err
	}

	result, err := h.service.CheckForDuplicates(c.Request().Context(), dto.Title, dto.Description)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, result)
}

// GetAnalytics returns aggregate statistics
// GET /api/v1/component-requests/analytics
func (h *RequestHandler) GetAnalytics(c echo.Context) error {
	analytics, err := h.service.GetRequestAnalytics(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(http.StatusOK, analytics)
}

func parseFilter(c echo.Context) (*service.RequestFilter, error) {
	filter := &service.RequestFilter{
		RequestedBy: c.QueryParam("requestedBy"),
		AssignedTo:  c.QueryParam("assignedTo"),
		Search:      c.QueryParam("search"),
		Expression:  c.QueryParam("filter"),
		Sort:        c.QueryParam("sort"),
	}

	for _, s := range splitList(c.QueryParam("status")) {
		filter.Status = append(filter.Status, models.RequestStatus(s))
	}
	for _, s := range splitList(c.QueryParam("category")) {
		filter.Category = append(filter.Category, models.Category(s))
	}
	for _, s := range splitList(c.QueryParam("priority")) {
		filter.Priority = append(filter.Priority, models.Priority(s))
	}

	if raw := c.QueryParam("linked"); raw != "" {
		linked, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid linked value %q", raw)
		}
		filter.Linked = &linked
	}

	var err error
	if filter.Limit, err = parseNonNegative(c.QueryParam("limit")); err != nil {
		return nil, fmt.Errorf("invalid limit: %w", err)
	}
	if filter.Offset, err = parseNonNegative(c.QueryParam("offset")); err != nil {
		return nil, fmt.Errorf("invalid offset: %w", err)
	}

	return filter, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseNonNegative(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}
